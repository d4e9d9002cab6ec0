// Package main provides the notify relay service entry point. The relay
// consumes register/cancel commands from the delivery plane, keeps the armed
// set, and pushes due reminders to the user.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/config"
	"github.com/medtrack/go-remind/internal/delivery"
	"github.com/medtrack/go-remind/internal/notify"
	"github.com/medtrack/go-remind/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("REMIND_CONFIG"))
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("the notify relay needs brokers to consume from")
	}

	m := metrics.New()

	// The relay owns topic setup: it is the first thing deployed against a
	// fresh broker.
	admin, err := delivery.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("admin client failed", zap.Error(err))
	}
	func() {
		defer admin.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := admin.EnsureTopics(ctx); err != nil {
			logger.Fatal("topic setup failed", zap.Error(err))
		}
	}()

	var sender notify.Sender
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Fatal("telegram setup failed", zap.Error(err))
		}
		sender = tg
	} else {
		sender = &notify.LogSender{Logger: logger}
		logger.Warn("no telegram token configured, reminders go to the log")
	}

	// Fired/dropped notices go to the audit topic through the same broker.
	producerCfg := delivery.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producer, err := delivery.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	relay := notify.NewRelay(sender, m, logger).WithAudit(producer)

	consumerCfg := delivery.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.KafkaBrokers
	consumer, err := delivery.NewConsumer(consumerCfg, relay.Handle, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}

	consumer.Start()
	relay.Start()
	logger.Info("notify relay started", zap.Strings("brokers", cfg.KafkaBrokers))

	// Ops endpoints only; the relay has no API surface.
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	opsAddr := os.Getenv("NOTIFY_OPS_LISTEN")
	if opsAddr == "" {
		opsAddr = ":9091"
	}
	go func() {
		if err := http.ListenAndServe(opsAddr, mux); err != nil {
			logger.Error("ops server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	consumer.Stop()
	relay.Stop()
	logger.Info("notify relay stopped")
}
