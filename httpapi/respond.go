package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sxpoptimizer/sxpauth"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sxpauth.ErrValidation),
		errors.Is(err, sxpauth.ErrWeakPassword),
		errors.Is(err, sxpauth.ErrTokenInvalid),
		errors.Is(err, sxpauth.ErrPasswordReuse),
		errors.Is(err, sxpauth.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, sxpauth.ErrInvalidCredentials),
		errors.Is(err, sxpauth.ErrSessionExpired),
		errors.Is(err, sxpauth.ErrSessionInvalid),
		errors.Is(err, sxpauth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, sxpauth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, sxpauth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, sxpauth.ErrUserExists),
		errors.Is(err, sxpauth.ErrAuthInProgress):
		return http.StatusConflict
	case errors.Is(err, sxpauth.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, sxpauth.ErrBackendUnavailable),
		errors.Is(err, sxpauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("component", "httpapi"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: sxpauth.PublicMessage(err)})
}

// decodeJSON reads a bounded JSON body into T. On failure it writes a 400
// and returns false.
func decodeJSON[T any](h *Handler, w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request body",
			slog.String("component", "httpapi"),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return nil, false
	}
	return &req, true
}
