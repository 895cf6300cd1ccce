package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/pickupdesk/order-validation/internal/cache"
	"github.com/pickupdesk/order-validation/internal/clock"
	"github.com/pickupdesk/order-validation/internal/config"
	"github.com/pickupdesk/order-validation/internal/messaging"
	"github.com/pickupdesk/order-validation/internal/telemetry"
	"github.com/pickupdesk/order-validation/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "pickup-completion-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	store := cache.NewSnapshotRepository(db, clock.NewSystem(), cfg.CacheTTL, logger)
	handler := worker.NewCompletionHandler(store, logger)

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CompletedTopic, cfg.Kafka.WorkerGroup)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting completion worker",
		"brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.CompletedTopic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
