package user

import (
	"context"

	"nexus-storefront/internal/docstore"
	"nexus-storefront/internal/domain"
)

// Collection holds one document per signed-in user, keyed by uid.
const Collection = "users"

// Record is the full users/{uid} document.
type Record struct {
	domain.UserProfile
	Cart []domain.CartLine `json:"cart"`
}

// ProfileUpdate lists the profile fields a merge write may touch. Nil
// pointers are left as stored.
type ProfileUpdate struct {
	Email    *string
	Username *string
	Phone    *string
	Address  *string
}

// Repository reads and writes user records.
type Repository interface {
	Get(ctx context.Context, uid string) (*Record, error)
	LoadCart(ctx context.Context, uid string) ([]domain.CartLine, bool, error)
	SaveCart(ctx context.Context, uid string, lines []domain.CartLine) error
	WatchCart(ctx context.Context, uid string, onChange func([]domain.CartLine)) (docstore.Subscription, error)
	UpdateProfile(ctx context.Context, uid string, in ProfileUpdate) error
	SetRole(ctx context.Context, uid, role string) error
	CheckoutWrite(uid, phone, address string) docstore.Write
}
