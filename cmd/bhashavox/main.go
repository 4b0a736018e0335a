package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bhashavox/bhashavox/internal/coach"
	"github.com/bhashavox/bhashavox/internal/config"
	"github.com/bhashavox/bhashavox/internal/conversation"
	"github.com/bhashavox/bhashavox/internal/httpapi"
	"github.com/bhashavox/bhashavox/internal/ledger"
	"github.com/bhashavox/bhashavox/internal/memory"
	"github.com/bhashavox/bhashavox/internal/observability"
	"github.com/bhashavox/bhashavox/internal/ollama"
	"github.com/bhashavox/bhashavox/internal/prompt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.MaxHistoryTurns)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL != "" {
		log.Printf("conversation memory: postgres")
	} else {
		log.Printf("conversation memory: in-memory (max %d turns)", cfg.MaxHistoryTurns)
	}

	client, err := ollama.NewClient(ollama.Config{
		Mode:    cfg.OllamaClientMode,
		BaseURL: cfg.OllamaBaseURL,
	})
	if err != nil {
		log.Fatalf("ollama client init failed: %v", err)
	}

	engine := coach.NewEngine(
		conversation.NewManager(),
		store,
		ledger.New(),
		prompt.NewComposer(cfg.MaxPromptChars),
		client,
		metrics,
		coach.Options{
			Model:          cfg.ModelName,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			ContextTurns:   cfg.ContextTurns,
			BackendTimeout: cfg.BackendTimeout,
			MaxRetries:     cfg.MaxRetries,
		},
	)

	if available, _, err := engine.BackendStatus(ctx); err != nil {
		log.Printf("ollama backend unreachable at startup: %v", err)
	} else if !available {
		log.Printf("model %q is not served by the backend yet", cfg.ModelName)
	} else {
		log.Printf("ollama backend ready, model %q available", cfg.ModelName)
	}

	api := httpapi.New(cfg, engine, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
