package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sxpoptimizer/sxpauth"
)

type userContextKey struct{}
type tokenContextKey struct{}

// UserFromContext returns the user RequireSession resolved.
func UserFromContext(ctx context.Context) (*sxpauth.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*sxpauth.User)
	return user, ok
}

// TokenFromContext returns the bearer token RequireSession accepted.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// RequireSession rejects requests without a live session. An expired token
// is reported as such so clients can prompt for a new login.
func RequireSession(engine *sxpauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w, sxpauth.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, sxpauth.ErrUnauthorized)
				return
			}

			user, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, sxpauth.ErrBackendUnavailable) {
					writeError(w, http.StatusServiceUnavailable, err)
					return
				}
				unauthorized(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": sxpauth.PublicMessage(err)})
}
