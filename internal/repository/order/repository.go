package order

import (
	"context"

	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
)

// Collection stores one document per placed order.
const Collection = "orders"

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, uid string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error
	Delete(ctx context.Context, id string) error
	// CreateWrite prepares the insert of a new order for an atomic commit.
	CreateWrite(o domain.Order) (docstore.Write, error)
}
