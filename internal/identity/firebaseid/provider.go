package firebaseid

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
	"nexus-storefront/internal/logging"
)

// NewApp initialises the Firebase Admin SDK from an inline credentials JSON.
// An empty credentials string falls back to application default credentials.
func NewApp(ctx context.Context, projectID, credentialsJSON string) (*firebase.App, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id required")
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

type authClient interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Provider verifies Firebase ID tokens.
type Provider struct {
	client authClient
	logger *zap.Logger
}

func New(client *auth.Client, logger *zap.Logger) *Provider {
	return &Provider{client: client, logger: logging.Or(logger)}
}

func (p *Provider) CurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, identity.ErrUnauthenticated
	}
	tok, err := p.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		p.logger.Debug("firebase token rejected", zap.Error(err))
		return nil, identity.ErrUnauthenticated
	}
	id := &domain.Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if verified, ok := tok.Claims["email_verified"].(bool); ok {
		id.EmailVerified = verified
	}
	if name, ok := tok.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id, nil
}

// Refresh reads the user record so a verification done after sign-in is seen.
func (p *Provider) Refresh(ctx context.Context, id domain.Identity) (*domain.Identity, error) {
	rec, err := p.client.GetUser(ctx, id.UID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, identity.ErrUnauthenticated
		}
		return nil, fmt.Errorf("refresh identity: %w", err)
	}
	out := &domain.Identity{UID: id.UID, EmailVerified: rec.EmailVerified}
	if rec.UserInfo != nil {
		out.Email = rec.Email
		out.DisplayName = rec.DisplayName
	}
	return out, nil
}

func (p *Provider) SignOut(ctx context.Context, id domain.Identity, _ string) error {
	return p.client.RevokeRefreshTokens(ctx, id.UID)
}
