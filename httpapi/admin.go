package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sxpoptimizer/sxpauth"
)

const defaultEventLimit = 50

type roleRequest struct {
	Role sxpauth.Role `json:"role"`
}

type eventsResponse struct {
	Events []sxpauth.AuthEvent `json:"events"`
	Total  int                 `json:"total"`
}

type usersResponse struct {
	Users []sxpauth.User `json:"users"`
	Total int            `json:"total"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) registerAdmin(r chi.Router) {
	r.Get("/stats", h.handleStats)
	r.Get("/events", h.handleEvents)
	r.Delete("/events", h.handleClearEvents)
	r.Post("/events/prune", h.handlePruneEvents)
	r.Post("/tokens/cleanup", h.handleCleanupTokens)
	r.Get("/users", h.handleListUsers)
	r.Delete("/users/{id}", h.handleDeleteUser)
	r.Post("/users/{id}/role", h.handleSetRole)
	r.Post("/unlock", h.handleUnlock)
}

// handleStats accepts ?window=<duration>, e.g. 1h; the default window
// applies when it is absent.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid window"})
			return
		}
		window = d
	}
	writeJSON(w, http.StatusOK, h.engine.Stats(window))
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []sxpauth.AuthEvent
	if userID := r.URL.Query().Get("userId"); userID != "" {
		events = h.engine.UserEvents(userID)
	} else {
		limit := defaultEventLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		events = h.engine.RecentEvents(limit)
	}
	if events == nil {
		events = []sxpauth.AuthEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Total: len(events)})
}

func (h *Handler) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearEvents(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePruneEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, removedResponse{Removed: h.engine.PruneEvents(r.Context())})
}

func (h *Handler) handleCleanupTokens(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.CleanupExpiredTokens(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removedResponse{Removed: n})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users, Total: len(users)})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[roleRequest](h, w, r)
	if !ok {
		return
	}
	user, err := h.engine.SetRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[emailRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.engine.UnlockAccount(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
