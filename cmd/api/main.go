package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nexus-storefront/internal/ai"
	"nexus-storefront/internal/bootstrap"
	"nexus-storefront/internal/config"
	"nexus-storefront/internal/events"
	"nexus-storefront/internal/httpserver"
	"nexus-storefront/internal/identity"
	"nexus-storefront/internal/identity/firebaseid"
	"nexus-storefront/internal/logging"
	"nexus-storefront/internal/metrics"
	"nexus-storefront/internal/migrate"
	"nexus-storefront/internal/redisx"
	accountrepo "nexus-storefront/internal/repository/account"
	orderrepo "nexus-storefront/internal/repository/order"
	productrepo "nexus-storefront/internal/repository/product"
	reviewrepo "nexus-storefront/internal/repository/review"
	tokenrepo "nexus-storefront/internal/repository/token"
	userrepo "nexus-storefront/internal/repository/user"
	assistantsvc "nexus-storefront/internal/service/assistant"
	cartsvc "nexus-storefront/internal/service/cart"
	checkoutsvc "nexus-storefront/internal/service/checkout"
	customersvc "nexus-storefront/internal/service/customer"
	ordersvc "nexus-storefront/internal/service/order"
	productsvc "nexus-storefront/internal/service/product"
	profilesvc "nexus-storefront/internal/service/profile"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.ServiceName, cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()
	if backend.Pool != nil {
		if err := migrate.Apply(ctx, backend.Pool); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := backend.Store
	users := userrepo.NewDocstore(store, logger)
	orders := orderrepo.NewDocstore(store, logger)
	products := productrepo.NewDocstore(store, logger)
	reviews := reviewrepo.NewDocstore(store, logger)

	var (
		ident    identity.Provider
		accounts *customersvc.Service
	)
	switch cfg.IdentityDriver {
	case bootstrap.IdentityLocal:
		accounts = customersvc.New(accountrepo.NewPostgres(backend.Pool, logger), tokenrepo.NewPostgres(backend.Pool), cfg.VerifyTokenSecret, cfg.VerifyTokenTTL, logger)
		ident = accounts
	case bootstrap.IdentityFirebase:
		authClient, err := backend.Firebase.Auth(ctx)
		if err != nil {
			return err
		}
		ident = firebaseid.New(authClient, logger)
	default:
		return errors.New("unknown identity driver " + cfg.IdentityDriver)
	}

	checkoutDeps := checkoutsvc.Deps{Metrics: m, Logger: logger}
	assistantDeps := assistantsvc.Deps{Metrics: m, Logger: logger}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
		checkoutDeps.Idempotency = redisx.NewIdempotency(rdb)
		assistantDeps.Cache = redisx.NewTextCache(rdb)
	}

	g, gctx := errgroup.WithContext(ctx)

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName, cfg.EventBuffer, m, logger)
		publisher = producer
		g.Go(func() error { return producer.Run(gctx) })
	}

	registry := cartsvc.NewRegistry(users, logger)
	carts := cartsvc.New(registry, products, m)
	g.Go(func() error { return registry.Run(gctx, cfg.CartSweepInterval, cfg.CartMaxIdle) })

	if backend.Postgres != nil {
		g.Go(func() error { return backend.Postgres.Listen(gctx) })
	}

	checkoutDeps.Identity = ident
	checkoutDeps.Carts = carts
	checkoutDeps.Users = users
	checkoutDeps.Orders = orders
	checkoutDeps.Store = store
	checkoutDeps.Events = publisher
	checkout := checkoutsvc.New(checkoutsvc.Config{
		ShippingFee:       cfg.ShippingFee,
		WalletName:        cfg.WalletName,
		WalletDestination: cfg.WalletDestination,
	}, checkoutDeps)

	assistantDeps.Model = ai.New(ai.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.GeminiTimeout,
	}, logger)
	assistantDeps.Products = products
	assistantDeps.Orders = orders

	deps := httpserver.Deps{
		Identity:    ident,
		Catalog:     productsvc.New(products, reviews, users, logger),
		Carts:       carts,
		Checkout:    checkout,
		Profiles:    profilesvc.New(users),
		Orders:      ordersvc.New(orders, products, publisher, logger),
		Assistant:   assistantsvc.New(assistantDeps),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORSOrigins: cfg.CORSOrigins,
	}
	if accounts != nil {
		deps.Accounts = accounts
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, backend, deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreDriver),
			zap.String("identity", cfg.IdentityDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("server stopped")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
