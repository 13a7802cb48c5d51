package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"nexus-storefront/internal/bootstrap"
	"nexus-storefront/internal/config"
	"nexus-storefront/internal/importer"
	"nexus-storefront/internal/migrate"
	"nexus-storefront/internal/repository/product"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to the catalog CSV (id,title,price,category,subCategory,image,description,stock,sizes)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	cfg.IdentityDriver = "none"
	ctx := context.Background()

	backend, err := bootstrap.Open(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer backend.Close()
	if backend.Pool != nil {
		if err := migrate.Apply(ctx, backend.Pool); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, product.NewDocstore(backend.Store, nil))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed after %d products: %v", count, err)
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
