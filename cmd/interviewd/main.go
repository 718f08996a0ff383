package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/vocalhire/interviewd/internal/agent"
	"github.com/vocalhire/interviewd/internal/config"
	"github.com/vocalhire/interviewd/internal/gdrive"
	"github.com/vocalhire/interviewd/internal/interview"
	"github.com/vocalhire/interviewd/internal/server"
	"github.com/vocalhire/interviewd/internal/storage"
	"github.com/vocalhire/interviewd/internal/transcribe"
)

func main() {
	log.Println("interviewd: starting")

	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, warning := range warnings {
		log.Printf("warning: %s", warning)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	var questions interview.QuestionService
	switch {
	case cfg.AgentURL != "":
		questions = agent.NewHTTP(cfg.AgentURL)
		log.Printf("using remote agent at %s", cfg.AgentURL)
	default:
		questions = agent.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.MaxQuestions)
	}

	client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	stt := transcribe.NewDeepgram(cfg.DeepgramAPIKey, transcribe.Options{
		Model:          cfg.STTModel,
		Language:       cfg.Language,
		SampleRate:     cfg.SampleRate,
		UtteranceEndMS: cfg.UtteranceEndMS,
	})

	sessionCfg := interview.Config{SilenceTimeout: cfg.ParsedSilenceTimeout()}
	registry := interview.NewRegistry(func(id string, observer interview.Observer) *interview.Session {
		return interview.NewSession(id, store, questions, stt, observer, sessionCfg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive backup disabled: %v", syncErr)
		} else {
			go func() {
				ticker := time.NewTicker(5 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						date := time.Now().UTC().Format("2006-01-02")
						if err := syncer.Sync(cfg.DBPath, date); err != nil {
							log.Printf("gdrive backup error: %v", err)
						}
					}
				}
			}()
		}
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server.Handler(registry, store)}
	go func() {
		log.Printf("interviewd: listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("interviewd: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}

	registry.Shutdown()
}
