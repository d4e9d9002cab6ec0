// Package main provides the horizon relay service entry point. The relay
// periodically re-walks every record and reschedules its reminders, rolling
// the lookahead window forward for open-ended medications and repairing any
// registrations lost to earlier partial failures.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/config"
	"github.com/medtrack/go-remind/internal/delivery"
	"github.com/medtrack/go-remind/internal/engine"
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

	if cfg.DatabaseURL == "" {
		logger.Fatal("the horizon relay needs a database; an in-memory store has nothing to sweep")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	pg := store.NewPostgres(pool, logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}
	records := store.NewRecords(pg, logger)
	cursors := store.NewCursors(pg)

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
	} else {
		backend = delivery.NewMemory()
		logger.Warn("no brokers configured, sweep registers in-process only")
	}

	eng := engine.New(backend, cursors, engine.Config{
		Horizon: recurrence.HorizonPolicy{
			Location:       loc,
			LookaheadDays:  cfg.HorizonDays,
			MaxOccurrences: cfg.MaxOccurrences,
		},
		AppointmentLead: cfg.Lead(),
		ExpiryLeadDays:  cfg.ExpiryLeadDays,
	}, nil, logger)

	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		runSweep(sweepCtx, records, eng, logger)
	}

	// One sweep at startup so a fresh deployment converges immediately.
	sweep()

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, sweep); err != nil {
		logger.Fatal("bad refresh schedule", zap.String("cron", cfg.RefreshCron), zap.Error(err))
	}
	c.Start()
	logger.Info("horizon relay started", zap.String("cron", cfg.RefreshCron))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	<-c.Stop().Done()
	logger.Info("horizon relay stopped")
}

func runSweep(ctx context.Context, records *store.Records, eng *engine.Engine, logger *zap.Logger) {
	start := time.Now()
	now := time.Now()
	rescheduled, failed := 0, 0

	meds, err := records.ListMedications(ctx)
	if err != nil {
		logger.Error("sweep: list medications failed", zap.Error(err))
	}
	for i := range meds {
		if err := eng.RescheduleMedication(ctx, &meds[i], now); err != nil {
			failed++
			logger.Warn("sweep: medication reschedule failed",
				zap.Int64("record_id", meds[i].ID), zap.Error(err))
			continue
		}
		rescheduled++
	}

	appts, err := records.ListAppointments(ctx)
	if err != nil {
		logger.Error("sweep: list appointments failed", zap.Error(err))
	}
	for i := range appts {
		if err := eng.RescheduleAppointment(ctx, &appts[i], now); err != nil {
			failed++
			logger.Warn("sweep: appointment reschedule failed",
				zap.Int64("record_id", appts[i].ID), zap.Error(err))
			continue
		}
		rescheduled++
	}

	prescriptions, err := records.ListPrescriptions(ctx)
	if err != nil {
		logger.Error("sweep: list prescriptions failed", zap.Error(err))
	}
	for i := range prescriptions {
		if err := eng.ReschedulePrescription(ctx, &prescriptions[i], now); err != nil {
			failed++
			logger.Warn("sweep: prescription reschedule failed",
				zap.Int64("record_id", prescriptions[i].ID), zap.Error(err))
			continue
		}
		rescheduled++
	}

	logger.Info("sweep complete",
		zap.Int("rescheduled", rescheduled),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)))
}
