package sxpauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
)

// sendVerification issues a fresh verification token, stores it on the user
// and mails the link. The outcome is recorded as email_verification_sent.
func (e *Engine) sendVerification(ctx context.Context, user *StoredUser) bool {
	fail := func(err error) bool {
		e.logger.WarnContext(ctx, "verification email not sent",
			slog.String("component", "engine"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		e.metrics.EmailFailed("email_verification")
		e.record(ctx, audit.ActionEmailVerificationSent, tracking.Input{
			UserID:      user.ID,
			Email:       user.Email,
			ErrorReason: "Failed to send verification email",
		})
		return false
	}

	token, err := e.tokens.Issue(ctx, user.ID, user.Email, stores.TokenEmailVerification)
	if err != nil {
		return fail(err)
	}
	if _, err := e.users.Update(ctx, user.ID, stores.UserUpdate{
		VerificationToken:       &token.Token,
		VerificationTokenExpiry: &token.ExpiresAt,
	}); err != nil {
		return fail(err)
	}

	if err := e.mailer.SendVerificationEmail(ctx, Recipient{Email: user.Email, Name: user.Name}, token.Token); err != nil {
		return fail(err)
	}

	e.record(ctx, audit.ActionEmailVerificationSent, tracking.Input{
		UserID:  user.ID,
		Email:   user.Email,
		Success: true,
	})
	return true
}

// VerifyEmail redeems a verification token and marks the account verified.
// Every attempt records email_verification_success, with success=false and
// the token's rejection reason when it fails.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (user *User, err error) {
	ctx, _, end := e.startSpan(ctx, "verify_email")
	defer func() { end(err) }()

	result, err := e.tokens.Verify(ctx, token, stores.TokenEmailVerification)
	if err != nil {
		return nil, backendError(err)
	}
	if !result.IsValid {
		e.record(ctx, audit.ActionEmailVerificationSuccess, tracking.Input{
			ErrorReason: result.Error,
		})
		return nil, &TokenError{Reason: result.Error}
	}

	verified, err := e.users.VerifyEmail(ctx, result.TokenData.UserID)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			e.record(ctx, audit.ActionEmailVerificationSuccess, tracking.Input{
				UserID:      result.TokenData.UserID,
				Email:       result.TokenData.Email,
				ErrorReason: "User not found",
			})
			return nil, ErrUserNotFound
		}
		return nil, backendError(err)
	}

	e.record(ctx, audit.ActionEmailVerificationSuccess, tracking.Input{
		UserID:  verified.ID,
		Email:   verified.Email,
		Success: true,
	})

	if err := e.mailer.SendWelcomeEmail(ctx, Recipient{Email: verified.Email, Name: verified.Name}); err != nil {
		e.metrics.EmailFailed("welcome")
		e.logger.WarnContext(ctx, "welcome email not sent",
			slog.String("component", "engine"),
			slog.String("user_id", verified.ID),
			slog.Any("error", err))
	}

	return publicUser(verified), nil
}

// ResendVerification mails a new verification link. It reports success for
// unknown or already verified addresses so callers cannot probe accounts.
func (e *Engine) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, _, end := e.startSpan(ctx, "resend_verification")
	defer func() { end(err) }()

	if problems := validateEmail(email); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return nil
		}
		return backendError(err)
	}
	if user.EmailVerified {
		return nil
	}

	e.sendVerification(ctx, user)
	return nil
}
