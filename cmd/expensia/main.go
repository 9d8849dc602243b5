package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	// user timezones resolve without system zoneinfo
	_ "time/tzdata"

	"expensia/internal/amqp"
	"expensia/internal/api"
	"expensia/internal/cache"
	"expensia/internal/cli"
	"expensia/internal/guard"
	apphttp "expensia/internal/http"
	"expensia/internal/log"
	"expensia/internal/metrics"
	"expensia/internal/middleware/ratelimit"
	"expensia/internal/middleware/security"
	"expensia/internal/session"
	"expensia/internal/verify"
)

const cacheCleanupInterval = time.Minute

func main() {
	cfg, logger := cli.Bootstrap("expensia")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	caches := cache.NewManager(logger.Logger)

	// Session store (memory, sqlite or redis)
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	storeResult, err := session.NewFactory(logger.Logger, caches).CreateStore(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to create session store", log.FieldError, err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}

	// Session events are optional: without AMQP they are only logged.
	var (
		amqpClient *amqp.Client
		publisher  session.EventPublisher
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, session events disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP session events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	client := api.New(cfg.APIBaseURL, cfg.APITimeout,
		api.WithMetrics(m),
		api.WithLogger(logger),
	)

	manager := session.NewManager(storeResult.Store, client, session.Options{
		TTL:            cfg.SessionTTL,
		RestoreTimeout: cfg.RestoreTimeout,
		Publisher:      publisher,
		Metrics:        m,
		Logger:         logger,
	})
	client.SetUnauthorizedHook(manager.UnauthorizedHook())

	verifier := verify.NewTracker()
	caches.Register("verification_flows", verifier.Cleaner())
	caches.StartCleanup(cacheCleanupInterval)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	checks := map[string]apphttp.ReadinessCheck{
		"session_store": func(ctx context.Context) error {
			return session.Ping(ctx, storeResult.Store)
		},
	}

	srv := apphttp.NewServer(apphttp.Deps{
		Addr:         cfg.Addr(),
		Backend:      client,
		Sessions:     manager,
		Cookie:       guard.Cookie{Name: cfg.SessionCookie, Secure: cfg.CookieSecure},
		Verifier:     verifier,
		Limiter:      limiter,
		Detector:     security.NewDetector(),
		Metrics:      m,
		Logger:       logger,
		OAuthBaseURL: cfg.OAuthBaseURL,
		Checks:       checks,
	})

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		// background preference reconciles may still hold the store
		manager.Wait()
		caches.Stop()
		if err := storeResult.Cleanup(); err != nil {
			logger.Warn("Session store cleanup failed", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err)
			}
		}
	})

	logger.Info("Listening",
		"addr", cfg.Addr(),
		"api", cfg.APIBaseURL,
		"session_backend", storeResult.Backend.String(),
		"metrics", cfg.MetricsEnabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
