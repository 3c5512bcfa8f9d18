package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
	"github.com/jaujye/ocean-shopping-center/pkg/pubsub"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "ocean-outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "outbox publisher terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close() }()

	psClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { _ = psClient.Close() }()

	repo := outbox.NewRepository(dbClient.DB())
	pub, err := newPublisher(dbClient, repo, psClient.DomainPublisher(), cfg.Outbox, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "outbox publisher started")
	pub.run(ctx)
	logg.Info(context.Background(), "outbox publisher stopped")
	return nil
}
