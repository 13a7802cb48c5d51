package customer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
	tokenrepo "nexus-storefront/internal/repository/token"
)

// memoryRepo is a lightweight in-memory account repository for tests.
type memoryRepo struct {
	byEmail map[string]domain.Account
	seq     int
}

type memoryTokenRepo struct {
	tokens map[string]tokenrepo.Token
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: make(map[string]domain.Account)}
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]tokenrepo.Token)}
}

func (r *memoryTokenRepo) Create(_ context.Context, token tokenrepo.Token) error {
	if _, exists := r.tokens[token.Token]; exists {
		return domain.ErrAlreadyExists
	}
	r.tokens[token.Token] = token
	return nil
}

func (r *memoryTokenRepo) Get(_ context.Context, token string) (*tokenrepo.Token, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := t
	return &clone, nil
}

func (r *memoryTokenRepo) Delete(_ context.Context, token string) error {
	if _, ok := r.tokens[token]; !ok {
		return domain.ErrNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *memoryTokenRepo) DeleteForAccount(_ context.Context, accountID string) error {
	for k, v := range r.tokens {
		if v.AccountID == accountID {
			delete(r.tokens, k)
		}
	}
	return nil
}

func (r *memoryRepo) Create(_ context.Context, a domain.Account) (*domain.Account, error) {
	if _, exists := r.byEmail[a.Email]; exists {
		return nil, domain.ErrAlreadyExists
	}
	r.seq++
	clone := a
	clone.ID = fmt.Sprintf("acct-%d", r.seq)
	r.byEmail[clone.Email] = clone
	return &clone, nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	if a, ok := r.byEmail[email]; ok {
		return &a, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	for _, a := range r.byEmail {
		if a.ID == id {
			clone := a
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) MarkEmailVerified(_ context.Context, id string) error {
	for k, a := range r.byEmail {
		if a.ID == id {
			a.EmailVerified = true
			r.byEmail[k] = a
			return nil
		}
	}
	return domain.ErrNotFound
}

func newTestService() *Service {
	return New(newMemoryRepo(), newMemoryTokenRepo(), "secret", time.Hour, nil)
}

func TestSignupAndLogin_SucceedsWithTrimmedPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acct, verifyToken, err := svc.Signup(ctx, SignupInput{Email: "User@Example.com", Password: " Abcdefg1 "})
	if err != nil {
		t.Fatalf("signup returned error: %v", err)
	}
	if acct.Email != "user@example.com" || acct.EmailVerified || verifyToken == "" {
		t.Fatalf("unexpected signup result %+v token=%q", acct, verifyToken)
	}

	_, access, err := svc.Login(ctx, "user@example.com", "Abcdefg1")
	if err != nil {
		t.Fatalf("login failed with trimmed password: %v", err)
	}
	id, err := svc.CurrentUser(ctx, access)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if id.UID != acct.ID || id.EmailVerified {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestValidatePassword_FailsOnWeakValues(t *testing.T) {
	cases := []struct {
		name string
		pass string
	}{
		{"too short", "Abc1"},
		{"no upper", "abcdefg1"},
		{"no lower", "ABCDEFG1"},
		{"no digit", "Abcdefgh"},
	}
	for _, tc := range cases {
		if err := validatePassword(tc.pass, 8); err == nil {
			t.Fatalf("expected error for case %s", tc.name)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, SignupInput{Email: "user@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "user@example.com", "wrongpass"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "missing@example.com", "Abcdefg1"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for missing user, got %v", err)
	}
}

func TestConfirmEmail_RefreshSeesVerification(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	acct, verifyToken, err := svc.Signup(ctx, SignupInput{Email: "v@example.com", Password: "Abcdefg1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.ConfirmEmail(ctx, verifyToken); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	id, err := svc.Refresh(ctx, domain.Identity{UID: acct.ID})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !id.EmailVerified {
		t.Fatalf("expected verified identity after confirmation")
	}
}

func TestConfirmEmail_RejectsTamperedAndExpired(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	acct, verifyToken, err := svc.Signup(ctx, SignupInput{Email: "x@example.com", Password: "Abcdefg1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.ConfirmEmail(ctx, verifyToken+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := svc.IssueVerification(acct.ID)
	if err != nil {
		t.Fatalf("IssueVerification: %v", err)
	}
	svc.now = time.Now
	if err := svc.ConfirmEmail(ctx, stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestSignOut_RevokesAccessToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, _, err := svc.Signup(ctx, SignupInput{Email: "s@example.com", Password: "Abcdefg1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	acct, access, err := svc.Login(ctx, "s@example.com", "Abcdefg1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.SignOut(ctx, acct.Identity(), access); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, access); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after sign out, got %v", err)
	}
}
