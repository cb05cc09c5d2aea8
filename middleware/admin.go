package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/sxpoptimizer/sxpauth"
)

const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken compares X-Admin-Token against expected in constant
// time. An empty expected token disables the wrapped routes entirely.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				http.NotFound(w, r)
				return
			}

			token := r.Header.Get(HeaderAdminToken)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				logger.WarnContext(r.Context(), "admin token mismatch",
					slog.String("component", "middleware"),
					slog.String("path", r.URL.Path))
				writeError(w, http.StatusForbidden, sxpauth.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
