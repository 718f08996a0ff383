package server

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vocalhire/interviewd/internal/interview"
	"github.com/vocalhire/interviewd/internal/storage"
)

var interviewIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// InterviewStore is the slice of persistence the HTTP API reads and
// writes.
type InterviewStore interface {
	CreateInterview(id, candidate string, resume interview.ResumeContext, startedAt time.Time) error
	GetInterview(id string) (storage.Interview, error)
	ListInterviews() ([]storage.Interview, error)
	Transcript(interviewID string) ([]interview.QARecord, error)
	Assessment(interviewID string) (json.RawMessage, error)
}

type createInterviewRequest struct {
	ID         string   `json:"id"`
	Candidate  string   `json:"candidate"`
	ResumeText string   `json:"resumeText"`
	Chunks     []string `json:"chunks"`
}

func registerAPIRoutes(mux *http.ServeMux, store InterviewStore, registry *interview.Registry) {
	mux.HandleFunc("POST /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		var req createInterviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		if strings.TrimSpace(req.ResumeText) == "" {
			writeJSONError(w, http.StatusBadRequest, "resumeText is required")
			return
		}

		id := strings.TrimSpace(req.ID)
		if id == "" {
			id = newInterviewID()
		} else if !validInterviewID(id) {
			writeJSONError(w, http.StatusBadRequest, "invalid interview id")
			return
		}

		resume := interview.ResumeContext{Text: req.ResumeText, Chunks: req.Chunks}
		if err := store.CreateInterview(id, req.Candidate, resume, time.Now().UTC()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("create interview: %v", err))
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})

	mux.HandleFunc("GET /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		interviews, err := store.ListInterviews()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list interviews: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, interviews)
	})

	mux.HandleFunc("GET /api/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validInterviewID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}

		iv, err := store.GetInterview(id)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get interview: %v", err))
			return
		}

		transcript, err := store.Transcript(id)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get transcript: %v", err))
			return
		}

		assessment, err := store.Assessment(id)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get assessment: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"interview":  iv,
			"transcript": transcript,
			"assessment": assessment,
		})
	})

	mux.HandleFunc("GET /api/interviews/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validInterviewID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}

		sess, ok := registry.Get(id)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"sessionId":             id,
				"active":                false,
				"connected":             false,
				"currentQuestionNumber": 0,
			})
			return
		}

		_, questionNumber := sess.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId":             id,
			"active":                sess.Active(),
			"connected":             true,
			"currentQuestionNumber": questionNumber,
		})
	})
}

func validInterviewID(id string) bool {
	return id != "" && len(id) <= 64 && interviewIDPattern.MatchString(id)
}

func newInterviewID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
