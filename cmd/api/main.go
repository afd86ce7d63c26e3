package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bazarghor/checkout/internal/config"
	"github.com/bazarghor/checkout/internal/database"
	"github.com/bazarghor/checkout/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	httpadapter "github.com/bazarghor/checkout/internal/checkout/adapters/http"
	checkoutpostgres "github.com/bazarghor/checkout/internal/checkout/adapters/postgres"
	"github.com/bazarghor/checkout/internal/checkout/app"
	"github.com/bazarghor/checkout/internal/checkout/domain"
	"github.com/bazarghor/checkout/internal/checkout/metrics"
	"github.com/bazarghor/checkout/internal/events"
	"github.com/bazarghor/checkout/internal/idempotency"
	idemmemory "github.com/bazarghor/checkout/internal/idempotency/memory"
	idempostgres "github.com/bazarghor/checkout/internal/idempotency/postgres"
	idemredis "github.com/bazarghor/checkout/internal/idempotency/redis"
	"github.com/bazarghor/checkout/internal/integrity"
	"github.com/bazarghor/checkout/internal/payments"
	"github.com/bazarghor/checkout/internal/payments/sandbox"
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(bootstrapLogger)

	cfg, err := config.Load()
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing && cfg.Telemetry.OTelEndpoint != "",
		EnableMetrics:  cfg.Telemetry.EnableMetrics && cfg.Telemetry.OTelEndpoint != "",
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		bootstrapLogger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	logger := telemetry.NewLogger(telemetry.ParseLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed successfully")
	}

	meter := otel.Meter(cfg.Service.Name)

	checkoutMetrics, err := metrics.New(meter)
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	requestMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}

	durable := idempostgres.NewStore(pool, cfg.Idempotency.TTL)

	var cache idempotency.Cache
	switch cfg.Idempotency.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = idemredis.NewCache(client, "checkout:idempotency:")
	default:
		cache = idemmemory.NewCache()
	}

	idemStore := idempotency.NewLayeredStore(durable, cache, logger)

	sweeper := idempotency.NewSweeper(idemStore, cfg.Idempotency.SweepInterval, logger)
	go sweeper.Run(ctx)

	registry, err := payments.NewRegistry(
		sandbox.NewGateway(domain.GatewayBkash),
		sandbox.NewGateway(domain.GatewayNagad),
		sandbox.NewGateway(domain.GatewayRocket),
		sandbox.NewGateway(domain.GatewayCOD),
	)
	if err != nil {
		logger.Error("failed to build gateway registry", "error", err)
		os.Exit(1)
	}

	service := app.NewService(
		checkoutpostgres.NewOrderRepository(pool),
		checkoutpostgres.NewPaymentRepository(pool),
		registry,
		events.NewNoopBus(),
		integrity.NewSigner([]byte(cfg.Integrity.Secret)),
		app.Pricing{
			ShippingFlat: cfg.Pricing.ShippingFlat,
			TaxRate:      cfg.Pricing.TaxRate,
		},
		logger,
		checkoutMetrics,
	)

	guard := httpadapter.NewGuard(idemStore, logger, checkoutMetrics).
		WithWait(cfg.Idempotency.WaitBudget, cfg.Idempotency.PollInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc(cfg.HTTP.MetricsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics are exported via OTLP\n"))
	})

	httpadapter.NewHandler(service).Register(mux, guard)

	handler := withRecovery(httpadapter.WithMetrics(withLogging(mux), requestMetrics))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "environment", cfg.Service.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.InfoContext(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic recovered", "error", rec)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
