package sxpauth

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password is too common")
	ErrPasswordReuse      = errors.New("new password must be different from current password")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrAuthInProgress     = errors.New("authentication already in progress")
	ErrInvalidRole        = errors.New("invalid role")
	ErrBackendUnavailable = errors.New("auth backend unavailable")
	ErrEngineNotReady     = errors.New("engine not initialized")
)

// Messages shown to end users. They are also the errorReason on the
// matching events.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgAccountLocked      = "Account temporarily locked due to too many failed attempts. Please try again later."
	MsgUserExists         = "User already exists"
	MsgWeakPassword       = "Password is too common. Please choose a stronger password"
	MsgSessionExpired     = "Session expired"
)

// ValidationError lists every structural problem with a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// Reason is the problem list joined the way it is stored on events.
func (e *ValidationError) Reason() string {
	return strings.Join(e.Problems, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TokenError carries the user-facing reason a verification or reset token
// was rejected.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return "token invalid: " + e.Reason
}

func (e *TokenError) Is(target error) bool {
	return target == ErrTokenInvalid
}

// PublicMessage maps an error returned by the Engine to text safe to show
// a user.
func PublicMessage(err error) string {
	var verr *ValidationError
	var terr *TokenError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Reason()
	case errors.As(err, &terr):
		return terr.Reason
	case errors.Is(err, ErrAccountLocked):
		return MsgAccountLocked
	case errors.Is(err, ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, ErrUserExists):
		return MsgUserExists
	case errors.Is(err, ErrWeakPassword):
		return MsgWeakPassword
	case errors.Is(err, ErrSessionExpired):
		return MsgSessionExpired
	case errors.Is(err, ErrPasswordReuse):
		return "New password must be different from current password"
	case errors.Is(err, ErrUserNotFound):
		return "User not found"
	case errors.Is(err, ErrAuthInProgress):
		return "Authentication already in progress"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSessionInvalid):
		return "Not authenticated"
	case errors.Is(err, ErrForbidden):
		return "Not allowed"
	default:
		return "Something went wrong. Please try again."
	}
}
