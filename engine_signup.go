package sxpauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
)

// Signup registers an account. Checks run in order: request shape, common
// password list, then email uniqueness; each failure records signup_failure
// with its reason. A verification email is attempted after the account is
// created; failing to send it is recorded but does not fail the sign-up.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (result *SignupResult, err error) {
	ctx, _, end := e.startSpan(ctx, "signup")
	defer func() { end(err) }()

	fail := func(reason string, err error) (*SignupResult, error) {
		e.record(ctx, audit.ActionSignupFailure, tracking.Input{
			Email:       req.Email,
			ErrorReason: reason,
		})
		return nil, err
	}

	if verr := validateSignup(req, e.config.Signup.RequireTerms); verr != nil {
		return fail(verr.Reason(), verr)
	}
	if isCommonPassword(req.Password) {
		return fail(MsgWeakPassword, ErrWeakPassword)
	}

	_, err = e.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return fail(MsgUserExists, ErrUserExists)
	case !errors.Is(err, stores.ErrUserNotFound):
		return nil, backendError(err)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &stores.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    e.now().UTC(),
		Role:         stores.RoleUser,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, stores.ErrUserExists) {
			return fail(MsgUserExists, ErrUserExists)
		}
		return nil, backendError(err)
	}

	result = &SignupResult{User: publicUser(user)}
	result.VerificationEmailSent = e.sendVerification(ctx, user)

	e.record(ctx, audit.ActionSignupSuccess, tracking.Input{
		UserID:  user.ID,
		Email:   user.Email,
		Success: true,
	})

	if e.config.Signup.AutoLogin {
		session, err := e.openSession(ctx, user)
		if err != nil {
			e.logger.WarnContext(ctx, "auto-login after signup failed",
				slog.String("component", "engine"),
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			return result, nil
		}
		result.Session = session
		e.record(ctx, audit.ActionLoginSuccess, tracking.Input{
			UserID:   user.ID,
			Email:    user.Email,
			Success:  true,
			Metadata: map[string]any{"autoLogin": true},
		})
	}

	return result, nil
}
