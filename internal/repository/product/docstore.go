package product

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
)

type docRepo struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewDocstore returns a Repository backed by the document store.
func NewDocstore(store docstore.Store, logger *zap.Logger) Repository {
	return &docRepo{store: store, logger: logging.Or(logger), now: func() time.Time { return time.Now().UTC() }}
}

func (r *docRepo) List(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		r.logger.Error("product repo: list", zap.Error(err))
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decode(doc)
		if err != nil {
			r.logger.Warn("product repo: skip undecodable product", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("product repo: get", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return decode(doc)
}

// Upsert writes the full product, assigning an id and timestamps as needed.
func (r *docRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	now := r.now()
	if product.ID == "" {
		product.ID = docstore.NewID()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	product.Normalize()

	fields, err := docstore.Encode(product)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	if err := r.store.Set(ctx, Collection, product.ID, fields, false); err != nil {
		r.logger.Error("product repo: upsert", zap.String("id", product.ID), zap.Error(err))
		return nil, err
	}
	return &product, nil
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Collection, id)
}

func decode(doc docstore.Document) (*domain.Product, error) {
	var p domain.Product
	if err := docstore.Decode(doc.Fields, &p); err != nil {
		return nil, err
	}
	p.ID = doc.ID
	p.Normalize()
	return &p, nil
}
