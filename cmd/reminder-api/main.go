// Package main provides the reminder API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/api/handlers"
	"github.com/medtrack/go-remind/internal/api/middleware"
	"github.com/medtrack/go-remind/internal/config"
	"github.com/medtrack/go-remind/internal/delivery"
	"github.com/medtrack/go-remind/internal/engine"
	"github.com/medtrack/go-remind/internal/observability/metrics"
	"github.com/medtrack/go-remind/internal/observability/tracing"
	"github.com/medtrack/go-remind/internal/recurrence"
	"github.com/medtrack/go-remind/internal/store"
	"github.com/medtrack/go-remind/pkg/circuitbreaker"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("REMIND_CONFIG"))
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}

	ctx := context.Background()

	// Tracing is optional; without an endpoint spans stay local no-ops.
	if cfg.OTLPEndpoint != "" {
		tracingCfg := tracing.DefaultConfig("reminder-api")
		tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := tracing.Init(ctx, tracingCfg)
		if err != nil {
			logger.Fatal("tracing init failed", zap.Error(err))
		}
		defer provider.Shutdown(context.Background())
	}

	m := metrics.New()

	// Record store: Postgres when configured, in-memory otherwise.
	var kv store.KV
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		pg := store.NewPostgres(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("schema setup failed", zap.Error(err))
		}
		kv = pg
		logger.Info("connected to database")
	} else {
		kv = store.NewMemory()
		logger.Warn("no database configured, records are in-memory only")
	}

	records := store.NewRecords(kv, logger)
	cursors := store.NewCursors(kv)

	// Delivery backend: the command topic when brokers are configured, an
	// in-process backend otherwise.
	var backend delivery.Backend
	if len(cfg.KafkaBrokers) > 0 {
		producerCfg := delivery.DefaultProducerConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		producer, err := delivery.NewProducer(producerCfg, logger)
		if err != nil {
			logger.Fatal("producer creation failed", zap.Error(err))
		}
		defer producer.Close()

		breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("delivery"), logger)
		if err != nil {
			logger.Fatal("breaker creation failed", zap.Error(err))
		}
		backend = delivery.NewKafka(producer, breaker, logger)
		logger.Info("delivery plane connected", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		backend = delivery.NewMemory()
		logger.Warn("no brokers configured, reminders stay in-process")
	}

	eng := engine.New(backend, cursors, engine.Config{
		Horizon: recurrence.HorizonPolicy{
			Location:       loc,
			LookaheadDays:  cfg.HorizonDays,
			MaxOccurrences: cfg.MaxOccurrences,
		},
		AppointmentLead: cfg.Lead(),
		ExpiryLeadDays:  cfg.ExpiryLeadDays,
	}, m, logger)

	api := handlers.New(records, eng, m, logger, loc, cfg.ExpiringWindowDays)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("reminder-api"))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))
		r.Mount("/", api.Routes())
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting reminder API", zap.String("listen", cfg.Listen))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"reminder-api","version":"1.0.0"}`)
}
