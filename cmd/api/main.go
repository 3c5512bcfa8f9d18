package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	cartscontroller "github.com/jaujye/ocean-shopping-center/api/controllers/carts"
	checkoutcontroller "github.com/jaujye/ocean-shopping-center/api/controllers/checkout"
	couponscontroller "github.com/jaujye/ocean-shopping-center/api/controllers/coupons"
	healthcontroller "github.com/jaujye/ocean-shopping-center/api/controllers/health"
	orderscontroller "github.com/jaujye/ocean-shopping-center/api/controllers/orders"
	"github.com/jaujye/ocean-shopping-center/api/routes"
	"github.com/jaujye/ocean-shopping-center/internal/cart"
	"github.com/jaujye/ocean-shopping-center/internal/checkout"
	"github.com/jaujye/ocean-shopping-center/internal/coupon"
	"github.com/jaujye/ocean-shopping-center/internal/inventory"
	"github.com/jaujye/ocean-shopping-center/internal/orders"
	"github.com/jaujye/ocean-shopping-center/pkg/config"
	"github.com/jaujye/ocean-shopping-center/pkg/db"
	"github.com/jaujye/ocean-shopping-center/pkg/logger"
	"github.com/jaujye/ocean-shopping-center/pkg/migrate"
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
		ServiceName: "ocean-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close() }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	inventorySvc, err := inventory.NewService(dbClient.DB())
	if err != nil {
		return err
	}

	couponRepo, err := coupon.NewRepo(dbClient)
	if err != nil {
		return err
	}
	couponSvc, err := coupon.NewService(couponRepo, logg)
	if err != nil {
		return err
	}

	cartRepo, err := cart.NewRepo(dbClient)
	if err != nil {
		return err
	}
	cartSvc, err := cart.NewService(cartRepo, inventorySvc, couponSvc, outboxSvc, cfg.Cart, logg)
	if err != nil {
		return err
	}

	orderRepo, err := orders.NewRepo(dbClient)
	if err != nil {
		return err
	}
	checkoutSvc, err := checkout.NewService(cartRepo, couponRepo, orderRepo, outboxSvc, logg)
	if err != nil {
		return err
	}

	cartsCtrl, err := cartscontroller.NewController(cartSvc, logg)
	if err != nil {
		return err
	}
	couponsCtrl, err := couponscontroller.NewController(couponSvc, logg)
	if err != nil {
		return err
	}
	checkoutCtrl, err := checkoutcontroller.NewController(checkoutSvc, logg)
	if err != nil {
		return err
	}
	ordersCtrl, err := orderscontroller.NewController(orderRepo, logg)
	if err != nil {
		return err
	}
	healthCtrl := healthcontroller.NewController(logg, map[string]healthcontroller.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	})

	router := routes.New(cfg, logg, routes.Controllers{
		Health:   healthCtrl,
		Carts:    cartsCtrl,
		Coupons:  couponsCtrl,
		Checkout: checkoutCtrl,
		Orders:   ordersCtrl,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "api listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logg.Info(shutdownCtx, "shutting down api")
	return server.Shutdown(shutdownCtx)
}
