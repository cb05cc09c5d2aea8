package sxpauth

import (
	"context"
	"errors"
	"time"

	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
)

// Record appends an event for action on behalf of a caller, for actions the
// engine does not perform itself. It never fails.
func (e *Engine) Record(ctx context.Context, action AuthAction, userID, email string, success bool, errorReason string, metadata map[string]any) AuthEvent {
	return e.tracker.Record(ctx, action, tracking.Input{
		UserID:      userID,
		Email:       email,
		Success:     success,
		ErrorReason: errorReason,
		Metadata:    metadata,
	})
}

// Stats counts events inside window; a zero window uses the configured
// default.
func (e *Engine) Stats(window time.Duration) Stats {
	if window <= 0 {
		window = e.config.Tracking.StatsWindow
	}
	return e.tracker.Stats(window)
}

// RecentEvents returns up to limit events, newest first.
func (e *Engine) RecentEvents(limit int) []AuthEvent {
	return e.tracker.Recent(limit)
}

// UserEvents returns a user's events, newest first.
func (e *Engine) UserEvents(userID string) []AuthEvent {
	return e.tracker.ForUser(userID)
}

// ClearEvents empties the event log.
func (e *Engine) ClearEvents(ctx context.Context) {
	e.tracker.Clear(ctx)
}

// PruneEvents drops events past retention and returns how many went.
func (e *Engine) PruneEvents(ctx context.Context) int {
	return e.tracker.Prune(ctx)
}

// ShouldLock reports whether email is currently locked out under the
// configured threshold and window.
func (e *Engine) ShouldLock(email string) bool {
	return e.tracker.ShouldLock(email, e.config.Lockout.Window)
}

// IsLocked is ShouldLock with an explicit window.
func (e *Engine) IsLocked(email string, window time.Duration) bool {
	return e.tracker.ShouldLock(email, window)
}

// CleanupExpiredTokens deletes expired verification and reset tokens.
func (e *Engine) CleanupExpiredTokens(ctx context.Context) (int, error) {
	n, err := e.tokens.CleanupExpired(ctx)
	if err != nil {
		return n, backendError(err)
	}
	return n, nil
}

// IssueToken and VerifyToken expose the token store directly for callers
// that run their own flows on top of it.
func (e *Engine) IssueToken(ctx context.Context, userID, email string, tokenType TokenType) (*TokenData, error) {
	token, err := e.tokens.Issue(ctx, userID, email, tokenType)
	if err != nil {
		if errors.Is(err, stores.ErrTokenTypeInvalid) {
			return nil, &ValidationError{Problems: []string{"Invalid token type"}}
		}
		return nil, backendError(err)
	}
	return token, nil
}

func (e *Engine) VerifyToken(ctx context.Context, token string, tokenType TokenType) (*TokenData, error) {
	result, err := e.tokens.Verify(ctx, token, tokenType)
	if err != nil {
		return nil, backendError(err)
	}
	if !result.IsValid {
		return nil, &TokenError{Reason: result.Error}
	}
	return result.TokenData, nil
}

