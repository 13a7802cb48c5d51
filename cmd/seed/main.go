package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"nexus-storefront/internal/bootstrap"
	"nexus-storefront/internal/config"
	"nexus-storefront/internal/logging"
	"nexus-storefront/internal/migrate"
	productrepo "nexus-storefront/internal/repository/product"
	userrepo "nexus-storefront/internal/repository/user"
	"nexus-storefront/internal/seed"
	profilesvc "nexus-storefront/internal/service/profile"
)

func main() {
	admin := flag.String("admin", "", "uid to grant the admin role")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	// seeding never needs the identity backend
	cfg.IdentityDriver = "none"
	logger, err := logging.New("seed", cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer backend.Close()
	if backend.Pool != nil {
		if err := migrate.Apply(ctx, backend.Pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	}

	created, err := seed.Apply(ctx, productrepo.NewDocstore(backend.Store, logger))
	if err != nil {
		logger.Fatal("seed catalog", zap.Error(err))
	}
	logger.Info("seed applied", zap.Int("created", created))

	if *admin != "" {
		profiles := profilesvc.New(userrepo.NewDocstore(backend.Store, logger))
		if err := profiles.SetAdmin(ctx, *admin, true); err != nil {
			logger.Fatal("grant admin", zap.String("uid", *admin), zap.Error(err))
		}
		logger.Info("admin granted", zap.String("uid", *admin))
	}
}
