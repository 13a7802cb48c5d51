package review

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/logging"
)

const Collection = "reviews"

type Repository interface {
	ListByProduct(ctx context.Context, productID string) ([]domain.Review, error)
	Create(ctx context.Context, r domain.Review) (*domain.Review, error)
}

type docRepo struct {
	store  docstore.Store
	logger *zap.Logger
}

func NewDocstore(store docstore.Store, logger *zap.Logger) Repository {
	return &docRepo{store: store, logger: logging.Or(logger)}
}

// ListByProduct returns reviews newest first.
func (r *docRepo) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	docs, err := r.store.List(ctx, Collection, docstore.Where("productId", productID))
	if err != nil {
		r.logger.Error("review repo: list", zap.String("product_id", productID), zap.Error(err))
		return nil, err
	}
	out := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		var rev domain.Review
		if err := docstore.Decode(doc.Fields, &rev); err != nil {
			continue
		}
		rev.ID = doc.ID
		out = append(out, rev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *docRepo) Create(ctx context.Context, rev domain.Review) (*domain.Review, error) {
	fields, err := docstore.Encode(rev)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	id, err := r.store.Add(ctx, Collection, fields)
	if err != nil {
		return nil, err
	}
	rev.ID = id
	return &rev, nil
}
