package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/davidmarcano/storefront-backend/api/routes"
	"github.com/davidmarcano/storefront-backend/internal/aftersales"
	"github.com/davidmarcano/storefront-backend/internal/cart"
	"github.com/davidmarcano/storefront-backend/internal/discount"
	"github.com/davidmarcano/storefront-backend/internal/inventory"
	"github.com/davidmarcano/storefront-backend/internal/orders"
	"github.com/davidmarcano/storefront-backend/internal/policy"
	product "github.com/davidmarcano/storefront-backend/internal/products"
	"github.com/davidmarcano/storefront-backend/pkg/cache"
	"github.com/davidmarcano/storefront-backend/pkg/config"
	"github.com/davidmarcano/storefront-backend/pkg/db"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
	"github.com/davidmarcano/storefront-backend/pkg/metrics"
	"github.com/davidmarcano/storefront-backend/pkg/migrate"
	"github.com/davidmarcano/storefront-backend/pkg/outbox"
	"github.com/davidmarcano/storefront-backend/pkg/payments"
	"github.com/davidmarcano/storefront-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	meters := metrics.NewStorefrontMetrics(registry)

	productCache, err := cache.NewProductCache(redisClient, cfg.Redis.CacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product cache", err)
		os.Exit(1)
	}

	gateway, err := payments.NewClient(cfg.Payment, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment client", err)
		os.Exit(1)
	}

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	stockService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, productCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger", err)
		os.Exit(1)
	}

	productService, err := product.NewService(product.NewRepository(dbClient.DB()), dbClient, stockService, productCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), productService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	discountService, err := discount.NewService(dbClient, discount.NewRepository(dbClient.DB()), events, productCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create discount service", err)
		os.Exit(1)
	}

	policyService, err := policy.NewService(dbClient.DB(), cfg.Policy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create policy service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orderRepo, dbClient, cartService, productService, stockService, gateway, events, meters, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	afterSalesService, err := aftersales.NewService(orderRepo, dbClient, productService, policyService, stockService, events, meters, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create after-sales service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
			Cart:       cartService,
			Products:   productService,
			Discounts:  discountService,
			Orders:     orderService,
			AfterSales: afterSalesService,
			Policy:     policyService,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
			os.Exit(1)
		}
	}
}
