package account

import (
	"context"

	"nexus-storefront/internal/domain"
)

// Repository persists password accounts for the local identity provider.
type Repository interface {
	Create(ctx context.Context, a domain.Account) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
}
