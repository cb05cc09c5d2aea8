package sxpauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/internal/stores"
	"github.com/sxpoptimizer/sxpauth/internal/tracking"
	"github.com/sxpoptimizer/sxpauth/jwt"
	"github.com/sxpoptimizer/sxpauth/metrics"
	"github.com/sxpoptimizer/sxpauth/password"
)

// Engine runs the account flows and records every outcome in the event log.
// It is safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer

	users    *stores.UserStore
	tokens   *stores.TokenStore
	sessions *stores.SessionStore
	tracker  *tracking.Tracker

	audit   *audit.Dispatcher
	metrics *metrics.Metrics
	mailer  Mailer

	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Metrics exposes the engine's collectors, e.g. to mount their handler.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// AuditDropped reports events the audit dispatcher discarded under load.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) record(ctx context.Context, action audit.Action, in tracking.Input) {
	e.tracker.Record(ctx, action, in)
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "sxpauth."+name)
	return ctx, span, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.metrics.ObserveFlow(name, start)
	}
}

func backendError(err error) error {
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// Login checks credentials and opens a session. The order of checks is
// fixed: request shape, then lockout, then credentials. A locked account is
// rejected before its password is looked at. Attempts for the same email
// run one at a time, so concurrent guesses cannot outrun the lockout count.
func (e *Engine) Login(ctx context.Context, creds Credentials) (session *Session, err error) {
	ctx, span, end := e.startSpan(ctx, "login")
	defer func() { end(err) }()

	if verr := validateLogin(creds); verr != nil {
		e.record(ctx, audit.ActionLoginFailure, tracking.Input{
			Email:       creds.Email,
			ErrorReason: verr.Reason(),
		})
		return nil, verr
	}

	release, err := e.tracker.BeginAttempt(ctx, creds.Email)
	if err != nil {
		return nil, err
	}
	defer release()

	if e.lockedOut(ctx, "", creds.Email) {
		return nil, ErrAccountLocked
	}

	user, err := e.users.GetByEmail(ctx, creds.Email)
	if err != nil && !errors.Is(err, stores.ErrUserNotFound) {
		return nil, backendError(err)
	}

	if !e.passwordMatches(user, creds.Password) {
		in := tracking.Input{
			Email:       creds.Email,
			ErrorReason: MsgInvalidCredentials,
		}
		if user != nil {
			in.UserID = user.ID
		}
		e.record(ctx, audit.ActionLoginFailure, in)
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	loginAt := e.now().UTC()
	updated, err := e.users.Update(ctx, user.ID, stores.UserUpdate{LastLoginAt: &loginAt})
	if err != nil {
		return nil, backendError(err)
	}
	e.upgradeHashIfNeeded(ctx, updated, creds.Password)

	session, err = e.openSession(ctx, updated)
	if err != nil {
		return nil, err
	}

	e.record(ctx, audit.ActionLoginSuccess, tracking.Input{
		UserID:  updated.ID,
		Email:   updated.Email,
		Success: true,
	})
	return session, nil
}

// lockedOut records account_locked and reports true when email is past the
// failure threshold. Callers hold the email's attempt slot.
func (e *Engine) lockedOut(ctx context.Context, userID, email string) bool {
	if !e.tracker.ShouldLock(email, e.config.Lockout.Window) {
		return false
	}
	e.record(ctx, audit.ActionAccountLocked, tracking.Input{
		UserID:      userID,
		Email:       email,
		ErrorReason: MsgAccountLocked,
		Metadata: map[string]any{
			"failedAttempts": e.tracker.FailureCount(email, e.config.Lockout.Window),
			"windowMinutes":  int(e.config.Lockout.Window / time.Minute),
		},
	})
	return true
}

func (e *Engine) passwordMatches(user *StoredUser, plaintext string) bool {
	if user == nil {
		return false
	}
	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil {
		e.logger.Warn("password verification failed",
			slog.String("component", "engine"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return false
	}
	return ok
}

func (e *Engine) upgradeHashIfNeeded(ctx context.Context, user *StoredUser, plaintext string) {
	needs, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		return
	}
	if _, err := e.users.Update(ctx, user.ID, stores.UserUpdate{PasswordHash: &hash}); err != nil {
		e.logger.WarnContext(ctx, "password rehash failed",
			slog.String("component", "engine"),
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
}

// openSession signs a token, stores the session record and binds it to the
// calling client when the request carries a client session id.
func (e *Engine) openSession(ctx context.Context, user *StoredUser) (*Session, error) {
	sid := uuid.NewString()
	token, expiresAt, err := e.jwtManager.Issue(user.ID, user.Email, string(user.Role), sid)
	if err != nil {
		return nil, err
	}

	record := &stores.Session{
		ID:        sid,
		UserID:    user.ID,
		Email:     user.Email,
		Token:     token,
		CreatedAt: e.now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := e.sessions.Save(ctx, record, e.jwtManager.TTL()); err != nil {
		return nil, backendError(err)
	}

	if clientID := SessionIDFromContext(ctx); clientID != "" {
		if err := e.sessions.BindClient(ctx, clientID, token, e.jwtManager.TTL()); err != nil {
			e.logger.WarnContext(ctx, "client binding failed",
				slog.String("component", "engine"),
				slog.Any("error", err))
		}
	}

	return &Session{
		ID:        sid,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
		User:      publicUser(user),
	}, nil
}

// ValidateSession resolves a bearer token to its user. An expired token
// records session_expired and fails with ErrSessionExpired; a token whose
// session was logged out fails with ErrSessionInvalid.
func (e *Engine) ValidateSession(ctx context.Context, token string) (user *User, err error) {
	ctx, _, end := e.startSpan(ctx, "validate_session")
	defer func() { end(err) }()

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		var expired *jwt.ExpiredError
		if errors.As(err, &expired) {
			e.record(ctx, audit.ActionSessionExpired, tracking.Input{
				UserID:      expired.Claims.UID,
				Email:       expired.Claims.Email,
				ErrorReason: MsgSessionExpired,
			})
			_, _ = e.sessions.Delete(ctx, expired.Claims.SID)
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	record, err := e.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, stores.ErrSessionNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, backendError(err)
	}
	if record.Token != token {
		return nil, ErrSessionInvalid
	}

	stored, err := e.users.GetByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, backendError(err)
	}
	return publicUser(stored), nil
}

// Logout ends the session behind token. Logging out an unknown or expired
// token still succeeds.
func (e *Engine) Logout(ctx context.Context, token string) (err error) {
	ctx, _, end := e.startSpan(ctx, "logout")
	defer func() { end(err) }()

	var in tracking.Input
	claims, err := e.jwtManager.Parse(token)
	var expired *jwt.ExpiredError
	switch {
	case err == nil:
	case errors.As(err, &expired):
		claims = expired.Claims
	default:
		claims = nil
	}

	if claims != nil {
		in.UserID = claims.UID
		in.Email = claims.Email
		if _, err := e.sessions.Delete(ctx, claims.SID); err != nil {
			return backendError(err)
		}
	}
	if clientID := SessionIDFromContext(ctx); clientID != "" {
		if err := e.sessions.UnbindClient(ctx, clientID); err != nil {
			return backendError(err)
		}
	}

	in.Success = true
	e.record(ctx, audit.ActionLogout, in)
	return nil
}
