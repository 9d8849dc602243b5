package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensia/internal/amqp"
	"expensia/internal/cli"
	"expensia/internal/log"
	"expensia/internal/metrics"
	"expensia/internal/services"
	"expensia/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap("expensia-audit")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	// Audit events share the SQLite database with the sqlite session backend.
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		repo.Close()
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	audit := services.NewAuditService(repo, m, logger)
	auditWorker := worker.NewAuditWorker(amqpClient, audit, logger)

	// Liveness, metrics and the recorded events; the worker serves no pages.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /events", audit.EventsHandler())
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := auditWorker.Stop(ctx); err != nil {
			logger.Warn("Audit worker did not stop in time", log.FieldError, err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown error", log.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Warn("Database close failed", log.FieldError, err)
		}
	})

	auditWorker.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", log.FieldError, err, "addr", cfg.Addr())
		}
	}()

	logger.Info("Audit worker running",
		"queue", cfg.AMQPQueue,
		"db_path", cfg.SQLiteDBPath,
		"metrics", cfg.MetricsEnabled)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Audit worker stopped gracefully")
}
