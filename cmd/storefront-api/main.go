package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/storefront-core/internal/api-gateway/infra/httpx"
	"github.com/jcmexdev/storefront-core/internal/api-gateway/infra/httpx/middlewares"
	"github.com/jcmexdev/storefront-core/internal/commerce"
	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/coordinator"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog/postgres"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/storefront-core/internal/devicetoken"
	"github.com/jcmexdev/storefront-core/internal/notification"
	"github.com/jcmexdev/storefront-core/internal/notification/fcm"
	"github.com/jcmexdev/storefront-core/internal/notification/history"
	"github.com/jcmexdev/storefront-core/internal/pkg/cache"
	"github.com/jcmexdev/storefront-core/internal/pkg/interceptors"
	"github.com/jcmexdev/storefront-core/internal/pkg/messaging"
	"github.com/jcmexdev/storefront-core/internal/pkg/messaging/kafka"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

const serviceName = "storefront"

func main() {
	telemetry.InitLogger()

	if err := run(); err != nil {
		slog.Error("storefront api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, cfg.OTelServiceName, cfg.Environment, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialise tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	metrics := telemetry.DefaultMetrics()

	submissionLog, closeLog, err := openSubmissionLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	httpClient := interceptors.NewClient(cfg.HTTPTimeout)

	commerceClient := commerce.NewClient(cfg.Commerce, httpClient)
	submitter := coordinator.NewSubmitter(commerceClient, cfg.Commerce,
		coordinator.WithSubmissionLog(submissionLog),
		coordinator.WithDedupCache(newCache(cfg)),
		coordinator.WithPublisher(publisher),
		coordinator.WithMetrics(metrics),
	)

	registry := devicetoken.NewRegistry()
	metrics.RegisterDeviceGauge(registry.Count)
	dispatcher := notification.NewDispatcher(registry, fcm.NewClient(cfg.Push, httpClient), metrics)

	if !cfg.Commerce.Configured() {
		slog.Warn("commerce credentials missing; order submission will be rejected")
	}
	if !cfg.Push.Configured() {
		slog.Warn("push gateway server key missing; notification sends will be rejected")
	}

	inbox := history.NewLog(registry)

	handler := httpx.NewHandler(submitter, registry, dispatcher, inbox, httpx.Readiness{
		Service:            cfg.OTelServiceName,
		CommerceConfigured: cfg.Commerce.Configured(),
		PushConfigured:     cfg.Push.Configured(),
	})
	sendLimiter := middlewares.NewRateLimiter(cfg.NotifyRatePerSecond, cfg.NotifyRateBurst)
	if sendLimiter == nil {
		slog.Info("NOTIFY_RATE_PER_SECOND is not positive, send routes are not rate limited")
	}
	router := httpx.NewRouter(handler, httpx.RouterOptions{
		Metrics:        metrics,
		SendLimiter:    sendLimiter,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("storefront api running", "addr", cfg.HTTPAddr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openSubmissionLog(ctx context.Context, cfg config.Config) (sagalog.Repository, func(), error) {
	switch cfg.SubmissionLogDriver {
	case "sqlite":
		repo, err := sqlite.Open(cfg.SubmissionLogDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case "postgres":
		repo, err := postgres.Open(ctx, cfg.SubmissionLogDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case "memory":
		return sagalog.NewMemoryRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown SUBMISSION_LOG_DRIVER %q", cfg.SubmissionLogDriver)
	}
}

func newCache(cfg config.Config) cache.Cache {
	if cfg.RedisAddr == "" {
		slog.Info("REDIS_ADDR not set, order dedup uses process memory")
		return cache.NewMemoryCache(serviceName)
	}
	return cache.NewRedisCache(cfg.RedisAddr, serviceName)
}

func newPublisher(cfg config.Config) (messaging.Publisher, func()) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return messaging.Noop{}, func() {}
	}
	p := kafka.NewPublisher(brokers)
	return p, func() {
		if err := p.Close(); err != nil {
			slog.Error("kafka writer close error", "error", err)
		}
	}
}
