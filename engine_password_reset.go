package sxpauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
)

// RequestPasswordReset mails a reset link when the account exists. The
// result does not reveal whether it does.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, _, end := e.startSpan(ctx, "password_reset_request")
	defer func() { end(err) }()

	if problems := validateEmail(email); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			e.record(ctx, audit.ActionPasswordResetRequest, tracking.Input{
				Email:       email,
				ErrorReason: "User not found",
			})
			return nil
		}
		return backendError(err)
	}

	token, err := e.tokens.Issue(ctx, user.ID, user.Email, stores.TokenPasswordReset)
	if err != nil {
		return backendError(err)
	}

	in := tracking.Input{UserID: user.ID, Email: user.Email, Success: true}
	if err := e.mailer.SendPasswordResetEmail(ctx, Recipient{Email: user.Email, Name: user.Name}, token.Token); err != nil {
		e.metrics.EmailFailed("password_reset")
		e.logger.WarnContext(ctx, "password reset email not sent",
			slog.String("component", "engine"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		in.Success = false
		in.ErrorReason = "Failed to send password reset email"
	}
	e.record(ctx, audit.ActionPasswordResetRequest, in)
	return nil
}

// ResetPassword redeems a reset token and sets a new password. Open sessions
// are left alone; outstanding tokens for the user are revoked.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, _, end := e.startSpan(ctx, "password_reset")
	defer func() { end(err) }()

	if err := validateNewPassword(newPassword); err != nil {
		e.record(ctx, audit.ActionPasswordResetSuccess, tracking.Input{ErrorReason: PublicMessage(err)})
		return err
	}

	result, err := e.tokens.Verify(ctx, token, stores.TokenPasswordReset)
	if err != nil {
		return backendError(err)
	}
	if !result.IsValid {
		e.record(ctx, audit.ActionPasswordResetSuccess, tracking.Input{ErrorReason: result.Error})
		return &TokenError{Reason: result.Error}
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	user, err := e.users.Update(ctx, result.TokenData.UserID, stores.UserUpdate{PasswordHash: &hash})
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return backendError(err)
	}

	if _, err := e.tokens.RevokeForUser(ctx, user.ID); err != nil {
		e.logger.WarnContext(ctx, "token revocation after reset failed",
			slog.String("component", "engine"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	e.record(ctx, audit.ActionPasswordResetSuccess, tracking.Input{
		UserID:  user.ID,
		Email:   user.Email,
		Success: true,
	})
	return nil
}

// ChangePassword replaces the password of a logged-in user after checking
// the current one. A wrong current password counts as a credential failure,
// so repeated guesses lock the account the same way failed logins do.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) (err error) {
	ctx, _, end := e.startSpan(ctx, "password_change")
	defer func() { end(err) }()

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return backendError(err)
	}

	release, err := e.tracker.BeginAttempt(ctx, user.Email)
	if err != nil {
		return err
	}
	defer release()

	if e.lockedOut(ctx, user.ID, user.Email) {
		return ErrAccountLocked
	}

	fail := func(reason string, err error) error {
		e.record(ctx, audit.ActionPasswordChange, tracking.Input{
			UserID:      user.ID,
			Email:       user.Email,
			ErrorReason: reason,
		})
		return err
	}

	if !e.passwordMatches(user, current) {
		return fail(tracking.ReasonCurrentPasswordIncorrect, ErrInvalidCredentials)
	}
	if current == next {
		return fail(PublicMessage(ErrPasswordReuse), ErrPasswordReuse)
	}
	if err := validateNewPassword(next); err != nil {
		return fail(PublicMessage(err), err)
	}

	hash, err := e.passwordHash.Hash(next)
	if err != nil {
		return err
	}
	if _, err := e.users.Update(ctx, user.ID, stores.UserUpdate{PasswordHash: &hash}); err != nil {
		return backendError(err)
	}

	e.record(ctx, audit.ActionPasswordChange, tracking.Input{
		UserID:  user.ID,
		Email:   user.Email,
		Success: true,
	})
	return nil
}
