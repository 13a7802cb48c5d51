package product

import (
	"context"

	"nexus-storefront/internal/domain"
)

// Collection stores one document per catalog product.
const Collection = "products"

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}
