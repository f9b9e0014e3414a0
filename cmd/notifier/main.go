package main

import (
	"context"
	"errors"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/config"
	kafkax "github.com/ariefcatur/go-modular-shop/internal/kafka"
	"github.com/ariefcatur/go-modular-shop/internal/logging"
	"github.com/ariefcatur/go-modular-shop/internal/notification"
	"github.com/ariefcatur/go-modular-shop/internal/observability"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/ariefcatur/go-modular-shop/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-notifier"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownOTel, err := observability.Setup(ctx, observability.Options{
		ServiceName:    name,
		ServiceVersion: cfg.ServiceVersion,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		stdlog.Fatalf("otel setup: %v", err)
	}
	log := logging.New(logging.Options{Service: name, Level: cfg.LogLevel, OTel: cfg.OTLPEndpoint != ""})
	defer func() { _ = log.Sync() }()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis is required for event dedup", zap.Error(err))
	}

	reader, err := kafkax.NewReader(cfg.KafkaBrokers, cfg.NotifierGroup,
		orders.TopicOrderCreated, orders.TopicOrderCancelled)
	if err != nil {
		log.Fatal("kafka reader init failed", zap.Error(err))
	}

	svc := notification.NewService(notification.NewLogSender(log), redisx.NewDedup(rdb, name), log)
	cons := kafkax.NewConsumer(reader, cfg.NotifierWorkers, log)

	log.Info("notifier consumer started",
		zap.String("group", cfg.NotifierGroup),
		zap.Strings("topics", []string{orders.TopicOrderCreated, orders.TopicOrderCancelled}),
		zap.Int("workers", cfg.NotifierWorkers),
	)
	if err := cons.Start(ctx, svc.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer exit", zap.Error(err))
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownOTel(sctx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
}
