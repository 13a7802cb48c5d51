// Package bootstrap opens the storage and identity backends selected in
// config for the command line entry points.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"nexus-storefront/internal/config"
	"nexus-storefront/internal/db"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity/firebaseid"
)

const (
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"

	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
)

// Backend holds the opened connections. Pool is set whenever Postgres is
// needed (postgres store or local identity); Firebase whenever Firestore or
// Firebase Auth is.
type Backend struct {
	Store    docstore.Store
	Postgres *docstore.Postgres
	Pool     *pgxpool.Pool
	Firebase *firebase.App

	firestore *firestore.Client
}

// Open connects to what cfg selects. Close must be called on the result.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	b := &Backend{}
	needPool := cfg.StoreDriver == DriverPostgres || cfg.IdentityDriver == IdentityLocal
	needFirebase := cfg.StoreDriver == DriverFirestore || cfg.IdentityDriver == IdentityFirebase

	if needPool {
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		b.Pool = pool
	}
	if needFirebase {
		app, err := firebaseid.NewApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsJSON)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Firebase = app
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		b.Postgres = docstore.NewPostgres(b.Pool, logger)
		b.Store = b.Postgres
	case DriverFirestore:
		client, err := b.Firebase.Firestore(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		b.firestore = client
		b.Store = docstore.NewFirestore(client, logger)
	case DriverMemory:
		b.Store = docstore.NewMemory()
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return b, nil
}

// Ping checks the document store. The in-memory store is always ready.
func (b *Backend) Ping(ctx context.Context) error {
	switch {
	case b.Postgres != nil:
		return b.Pool.Ping(ctx)
	case b.firestore != nil:
		_, err := b.Store.Get(ctx, "_health", "ping")
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (b *Backend) Close() {
	if b.firestore != nil {
		_ = b.firestore.Close()
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}
