package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/internal/cron"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/metrics"
	"github.com/jaujye/ocean-shopping-center/pkg/outbox"
	"github.com/jaujye/ocean-shopping-center/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logg := logger.New(logger.Options{
		ServiceName: "ocean-cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close() }()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	jobMetrics := metrics.NewCronJobMetrics(registry)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	cartRepo, err := cart.NewRepo(dbClient)
	if err != nil {
		return err
	}
	couponRepo, err := coupon.NewRepo(dbClient)
	if err != nil {
		return err
	}

	locker, err := cron.NewRedisLock(redisClient, uuid.NewString())
	if err != nil {
		return err
	}

	sweepJob, err := cron.NewCartSweepJob(cartRepo, outboxSvc, cfg.Cart, jobMetrics, logg)
	if err != nil {
		return err
	}
	retentionJob, err := cron.NewCartRetentionJob(cartRepo, cfg.Cart, jobMetrics, logg)
	if err != nil {
		return err
	}
	couponJob, err := cron.NewCouponExpiryJob(couponRepo, cfg.Cart.SweepBatchSize, jobMetrics, logg)
	if err != nil {
		return err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(outboxRepo, cfg.Outbox, jobMetrics, logg)
	if err != nil {
		return err
	}

	jobs := cron.NewRegistry()
	jobs.Register(sweepJob)
	jobs.Register(retentionJob)
	jobs.Register(couponJob)
	jobs.Register(outboxJob)

	runner, err := cron.NewService(jobs, locker, jobMetrics, logg)
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "metrics listening")
		_ = metricsServer.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "cron worker started")
	runner.Start(ctx)
	logg.Info(context.Background(), "cron worker stopped")
	return nil
}
