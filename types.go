package sxpauth

import (
	"context"
	"time"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
	"github.com/sxpoptimizer/sxpauth/mailer"
)

type (
	AuthEvent  = audit.Event
	AuthAction = audit.Action
	AuditSink  = audit.Sink
	StoredUser = stores.User
	Role       = stores.Role
	TokenData  = stores.Token
	TokenType  = stores.TokenType
	Stats      = tracking.Stats
	Recipient  = mailer.Recipient
)

const (
	RoleUser  = stores.RoleUser
	RoleAdmin = stores.RoleAdmin

	TokenEmailVerification = stores.TokenEmailVerification
	TokenPasswordReset     = stores.TokenPasswordReset
)

// Mailer delivers the account emails. *mailer.Service satisfies it.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to Recipient, token string) error
	SendWelcomeEmail(ctx context.Context, to Recipient) error
	SendPasswordResetEmail(ctx context.Context, to Recipient, token string) error
}

// Credentials is a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is a registration request.
type SignupRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	AcceptedTerms bool   `json:"acceptedTerms"`
}

// User is the public view of a StoredUser, without credential material.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	Role             Role       `json:"role"`
}

func publicUser(u *StoredUser) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
		Role:             u.Role,
	}
}

// Session is what a successful login or auto-login returns.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// SignupResult reports the outcome of a completed sign-up. Session is nil
// unless auto-login is enabled.
type SignupResult struct {
	User                  *User    `json:"user"`
	Session               *Session `json:"session,omitempty"`
	VerificationEmailSent bool     `json:"verificationEmailSent"`
}

// ProfileUpdate carries the user-editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
}
