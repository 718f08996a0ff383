package server

import (
	"log"
	"net/http"

	"github.com/vocalhire/interviewd/internal/interview"
)

// Handler assembles the HTTP surface: the per-session interview
// websocket plus the read API.
func Handler(registry *interview.Registry, store InterviewStore) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, registry)
	registerAPIRoutes(mux, store, registry)

	return mux
}

func Serve(addr string, registry *interview.Registry, store InterviewStore) error {
	log.Printf("interview API at http://%s", addr)
	return http.ListenAndServe(addr, Handler(registry, store))
}
