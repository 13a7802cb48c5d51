package domain

import (
	"strings"
	"time"
)

const RoleAdmin = "admin"

// Identity is the signed-in principal as reported by the identity provider.
// EmailVerified is only trustworthy right after a refresh.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName,omitempty"`
}

// UserProfile is the users/{uid} record minus the cart field.
type UserProfile struct {
	UserID        string `json:"-"`
	Email         string `json:"email,omitempty"`
	Username      string `json:"username,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	Role          string `json:"role,omitempty"`
	EmailVerified bool   `json:"-"`
}

func (p UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// DisplayName falls back to the local part of the email address.
func (p UserProfile) DisplayName() string {
	if strings.TrimSpace(p.Username) != "" {
		return p.Username
	}
	if at := strings.Index(p.Email, "@"); at > 0 {
		return p.Email[:at]
	}
	return p.Email
}

// Account is a password account held by the local identity provider.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	DisplayName   string    `json:"displayName,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (a Account) Identity() Identity {
	return Identity{UID: a.ID, Email: a.Email, EmailVerified: a.EmailVerified, DisplayName: a.DisplayName}
}
