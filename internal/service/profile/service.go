// Package profile manages the delivery details and role kept on each
// user record.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nexus-storefront/internal/domain"
	userrepo "nexus-storefront/internal/repository/user"
)

type userStore interface {
	Get(ctx context.Context, uid string) (*userrepo.Record, error)
	UpdateProfile(ctx context.Context, uid string, in userrepo.ProfileUpdate) error
	SetRole(ctx context.Context, uid, role string) error
}

// View is the profile as shown to its owner.
type View struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Role          string `json:"role,omitempty"`
}

type Update struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type Service struct {
	users userStore
}

func New(users userStore) *Service {
	return &Service{users: users}
}

func (s *Service) load(ctx context.Context, uid string) (domain.UserProfile, error) {
	rec, err := s.users.Get(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserProfile{UserID: uid}, nil
	}
	if err != nil {
		return domain.UserProfile{}, err
	}
	return rec.UserProfile, nil
}

// Get merges the stored record with what the identity provider knows.
func (s *Service) Get(ctx context.Context, who domain.Identity) (View, error) {
	p, err := s.load(ctx, who.UID)
	if err != nil {
		return View{}, err
	}
	if p.Email == "" {
		p.Email = who.Email
	}
	return View{
		UID:           who.UID,
		Email:         p.Email,
		EmailVerified: who.EmailVerified,
		Username:      p.Username,
		DisplayName:   p.DisplayName(),
		Phone:         p.Phone,
		Address:       p.Address,
		Role:          p.Role,
	}, nil
}

func (s *Service) Update(ctx context.Context, who domain.Identity, in Update) (View, error) {
	username := strings.TrimSpace(in.Username)
	phone := strings.TrimSpace(in.Phone)
	address := strings.TrimSpace(in.Address)
	if username == "" {
		return View{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if phone == "" {
		return View{}, fmt.Errorf("%w: phone is required", domain.ErrInvalidInput)
	}
	email := who.Email
	err := s.users.UpdateProfile(ctx, who.UID, userrepo.ProfileUpdate{
		Email:    &email,
		Username: &username,
		Phone:    &phone,
		Address:  &address,
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, who)
}

func (s *Service) IsAdmin(ctx context.Context, uid string) (bool, error) {
	p, err := s.load(ctx, uid)
	if err != nil {
		return false, err
	}
	return p.IsAdmin(), nil
}

// SetAdmin grants or revokes the admin role.
func (s *Service) SetAdmin(ctx context.Context, uid string, admin bool) error {
	role := ""
	if admin {
		role = domain.RoleAdmin
	}
	return s.users.SetRole(ctx, uid, role)
}
