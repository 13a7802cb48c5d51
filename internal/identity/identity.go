// Package identity defines the identity provider the storefront trusts for
// sign-in state and email verification.
package identity

import (
	"context"
	"errors"

	"nexus-storefront/internal/domain"
)

// ErrUnauthenticated is returned for missing, expired or revoked credentials.
var ErrUnauthenticated = errors.New("not authenticated")

// Provider resolves bearer credentials to identities.
//
// Refresh re-reads the identity from the provider's source of truth; callers
// must not rely on a cached EmailVerified flag for gating decisions.
type Provider interface {
	CurrentUser(ctx context.Context, token string) (*domain.Identity, error)
	Refresh(ctx context.Context, id domain.Identity) (*domain.Identity, error)
	SignOut(ctx context.Context, id domain.Identity, token string) error
}
