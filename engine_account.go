package sxpauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
)

func (e *Engine) loadUser(ctx context.Context, userID string) (*StoredUser, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, backendError(err)
	}
	return user, nil
}

// GetUser returns the public view of an account.
func (e *Engine) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return publicUser(user), nil
}

// UpdateProfile applies user-editable changes and records profile_update.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if update.Name != nil {
		if problems := validateName(*update.Name); len(problems) > 0 {
			verr := &ValidationError{Problems: problems}
			e.record(ctx, audit.ActionProfileUpdate, tracking.Input{
				UserID:      user.ID,
				Email:       user.Email,
				ErrorReason: verr.Reason(),
			})
			return nil, verr
		}
		changed["name"] = true
	}

	updated, err := e.users.Update(ctx, user.ID, stores.UserUpdate{Name: update.Name})
	if err != nil {
		return nil, backendError(err)
	}

	e.record(ctx, audit.ActionProfileUpdate, tracking.Input{
		UserID:   updated.ID,
		Email:    updated.Email,
		Success:  true,
		Metadata: changed,
	})
	return publicUser(updated), nil
}

// SetTwoFactor toggles the two-factor flag. Only the preference is stored;
// the second factor itself is not implemented.
func (e *Engine) SetTwoFactor(ctx context.Context, userID string, enabled bool) (*User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated, err := e.users.Update(ctx, user.ID, stores.UserUpdate{TwoFactorEnabled: &enabled})
	if err != nil {
		return nil, backendError(err)
	}

	action := audit.ActionTwoFactorDisabled
	if enabled {
		action = audit.ActionTwoFactorEnabled
	}
	e.record(ctx, action, tracking.Input{
		UserID:  updated.ID,
		Email:   updated.Email,
		Success: true,
	})
	return publicUser(updated), nil
}

// ListUsers returns every account, oldest first.
func (e *Engine) ListUsers(ctx context.Context) ([]User, error) {
	stored, err := e.users.List(ctx)
	if err != nil {
		return nil, backendError(err)
	}
	out := make([]User, 0, len(stored))
	for i := range stored {
		out = append(out, *publicUser(&stored[i]))
	}
	return out, nil
}

// DeleteUser removes an account and its outstanding tokens. Events that
// reference it are kept.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := e.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return backendError(err)
	}
	if _, err := e.tokens.RevokeForUser(ctx, user.ID); err != nil {
		e.logger.WarnContext(ctx, "token revocation after delete failed",
			slog.String("component", "engine"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	e.record(ctx, audit.ActionSecuritySettingsChange, tracking.Input{
		UserID:   user.ID,
		Email:    user.Email,
		Success:  true,
		Metadata: map[string]any{"change": "account_deleted"},
	})
	return nil
}

// SetRole changes an account's role and records security_settings_change.
func (e *Engine) SetRole(ctx context.Context, userID string, role Role) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous := user.Role
	updated, err := e.users.Update(ctx, user.ID, stores.UserUpdate{Role: &role})
	if err != nil {
		return nil, backendError(err)
	}

	e.record(ctx, audit.ActionSecuritySettingsChange, tracking.Input{
		UserID:  updated.ID,
		Email:   updated.Email,
		Success: true,
		Metadata: map[string]any{
			"change":       "role",
			"previousRole": string(previous),
			"newRole":      string(role),
		},
	})
	return publicUser(updated), nil
}

// UnlockAccount clears a lockout. Failures before the unlock no longer count
// toward the threshold.
func (e *Engine) UnlockAccount(ctx context.Context, email string) error {
	if problems := validateEmail(email); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	in := tracking.Input{Email: email, Success: true}
	if user, err := e.users.GetByEmail(ctx, email); err == nil {
		in.UserID = user.ID
	}
	e.record(ctx, audit.ActionAccountUnlocked, in)
	return nil
}
