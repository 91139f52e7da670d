package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finchat/internal/amqp"
	"finchat/internal/config"
	"finchat/internal/game"
	"finchat/internal/log"
	"finchat/internal/storage"
	"finchat/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "worker"})
	log.SetDefault(logger)

	logger.Info("Starting finchat-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker always runs against SQLite: it shares the event log and
	// state snapshots with the API process through the database file.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	engine := game.NewEngine(repo, repo, repo, logger.WithComponent("game"))
	eventWorker := worker.NewEventWorker(engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// On startup, rebuild state snapshots from the event log in case the
	// worker missed events or snapshots were lost.
	users, err := repo.Users(ctx)
	if err != nil {
		logger.Error("Failed to list users for recompute", "error", err)
	} else if err := eventWorker.RecomputeUsers(ctx, users); err != nil {
		logger.Error("Startup recompute failed", "error", err)
		// Don't exit - continue with normal operation
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeXPEvents(gctx, func(msg *amqp.XPEventMessage) error {
			return eventWorker.HandleEventMessage(gctx, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
