package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/fiscora/retrieval-engine/internal/adapters/http"
	"github.com/fiscora/retrieval-engine/internal/bootstrap"
	"github.com/fiscora/retrieval-engine/internal/config"
	"github.com/fiscora/retrieval-engine/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(bootstrap.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go func() {
		if err := app.WatchCorpusUpdates(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("corpus_update_watch_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(app.Retriever, httpadapter.RouterOptions{
		Service:         bootstrap.ServiceName,
		ModelID:         cfg.ModelID,
		Temperature:     cfg.Temperature,
		TemplateVersion: cfg.TemplateVersion,
		CacheTTL:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Cache:           app.Cache,
		Epochs:          app.Epochs,
		KeyDeriver:      app.KeyDFn,
		MetricsHandler:  app.Metrics.Handler(),
		CacheRecorder:   app.Metrics,
		DefaultTopK:     cfg.TopK,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      app.Metrics.Middleware(bootstrap.ServiceName, router.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
