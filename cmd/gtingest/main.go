// Command gtingest ingests guarantee-instrument CSV files into Kafka, a
// key-value store and NATS JetStream.
//
// Usage:
//
//	gtingest                  serve the HTTP API until SIGINT/SIGTERM
//	gtingest key.csv ...      run one batch over the given object keys and exit
//	gtingest -                run one batch over every object in the source
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gtingest/internal/config"
	"github.com/JonMunkholm/gtingest/internal/events"
	"github.com/JonMunkholm/gtingest/internal/logging"
	"github.com/JonMunkholm/gtingest/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		code := runOnce(ctx, a, os.Args[1:], log)
		a.Close()
		os.Exit(code)
	}

	serve(ctx, a, log)
	a.Close()
}

// runOnce processes one batch and returns the process exit code.
func runOnce(ctx context.Context, a *app, args []string, log *slog.Logger) int {
	keys := args
	if len(args) == 1 && args[0] == "-" {
		keys = nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Ingest.BatchTimeout)
	defer cancel()

	result, err := a.pipeline.RunBatch(ctx, a.source, keys)
	if err != nil {
		log.Error("batch failed", "batch_id", result.BatchID, "failed_files", result.FailedFiles, "error", err)
		return 1
	}
	log.Info("batch succeeded", "batch_id", result.BatchID, "files", len(result.Files), "rows", result.Rows)
	return 0
}

// serve runs the HTTP API, and the event log consumer when enabled, until
// ctx is cancelled.
func serve(ctx context.Context, a *app, log *slog.Logger) {
	if a.cfg.Events.Consume {
		consumer := events.NewConsumer(a.nats.JS, a.cfg.Events.Stream, a.cfg.Events.Subject, log)
		if err := consumer.Start(ctx); err != nil {
			log.Error("event consumer failed to start", "error", err)
		} else {
			defer consumer.Stop()
		}
	}

	server := web.NewServer(web.Options{
		Pipeline:       a.pipeline,
		Source:         a.source,
		Metrics:        a.metrics.Handler(),
		Checks:         a.checks,
		BatchTimeout:   a.cfg.Ingest.BatchTimeout,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		ReadTimeout:    a.cfg.Server.ReadTimeout,
		WriteTimeout:   a.cfg.Server.WriteTimeout,
		IdleTimeout:    a.cfg.Server.IdleTimeout,
		TrustedProxies: a.cfg.Server.TrustedProxies,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(a.cfg.Server.Addr()); !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		return
	}
	<-done
}
