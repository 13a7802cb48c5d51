package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
	"nexus-storefront/internal/logging"
	accountrepo "nexus-storefront/internal/repository/account"
	tokenrepo "nexus-storefront/internal/repository/token"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

const verifyAudience = "verify-email"

// Service is the built-in identity provider: password accounts, opaque access
// tokens and signed email verification links.
type Service struct {
	repo         accountrepo.Repository
	tokenRepo    tokenrepo.Repository
	tokens       *tokenManager
	verifySecret []byte
	verifyTTL    time.Duration
	accessTTL    time.Duration
	passwordMin  int
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a Service with sane defaults.
func New(repo accountrepo.Repository, tokens tokenrepo.Repository, verifySecret string, verifyTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		tokenRepo:    tokens,
		tokens:       newTokenManager(tokens),
		verifySecret: []byte(verifySecret),
		verifyTTL:    verifyTTL,
		accessTTL:    48 * time.Hour,
		passwordMin:  8,
		logger:       logging.Or(logger),
		now:          time.Now,
	}
}

var _ identity.Provider = (*Service)(nil)

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Signup registers an unverified account and returns the verification token
// to be delivered to the user's inbox.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Account, string, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: valid email required", domain.ErrInvalidInput)
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	acct, err := s.repo.Create(ctx, domain.Account{
		Email:        email,
		PasswordHash: string(hashed),
		DisplayName:  strings.TrimSpace(in.DisplayName),
	})
	if err != nil {
		return nil, "", err
	}
	verifyToken, err := s.IssueVerification(acct.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("account created", zap.String("uid", acct.ID))
	return acct, verifyToken, nil
}

// Login validates credentials and returns an access token plus the account.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Account, string, error) {
	password = strings.TrimSpace(password)
	a, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(ctx, a.ID, "access", s.accessTTL)
	if err != nil {
		return nil, "", err
	}
	return a, access, nil
}

// CurrentUser returns the identity bound to a valid access token.
func (s *Service) CurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	meta, ok := s.tokens.Validate(ctx, token)
	if !ok {
		return nil, identity.ErrUnauthenticated
	}
	a, err := s.repo.GetByID(ctx, meta.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, identity.ErrUnauthenticated
		}
		return nil, err
	}
	id := a.Identity()
	return &id, nil
}

// Refresh re-reads the account so a verification made after login is seen.
func (s *Service) Refresh(ctx context.Context, id domain.Identity) (*domain.Identity, error) {
	a, err := s.repo.GetByID(ctx, id.UID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, identity.ErrUnauthenticated
		}
		return nil, err
	}
	out := a.Identity()
	return &out, nil
}

// SignOut revokes the presented access token.
func (s *Service) SignOut(ctx context.Context, _ domain.Identity, token string) error {
	if err := s.tokenRepo.Delete(ctx, token); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// IssueVerification signs a short lived email verification token.
func (s *Service) IssueVerification(accountID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		Audience:  jwt.ClaimStrings{verifyAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.verifyTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.verifySecret)
}

// ConfirmEmail marks the account behind a verification token as verified.
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.verifySecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(verifyAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.Subject == "" {
		return ErrInvalidToken
	}
	if err := s.repo.MarkEmailVerified(ctx, claims.Subject); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return fmt.Errorf("password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
