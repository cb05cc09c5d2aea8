package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sxpoptimizer/sxpauth"
	"github.com/sxpoptimizer/sxpauth/middleware"
)

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type twoFactorRequest struct {
	Enabled bool `json:"enabled"`
}

type userResponse struct {
	User *sxpauth.User `json:"user"`
}

func (h *Handler) registerAuth(r chi.Router) {
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/verification/resend", h.handleResendVerification)
	r.Post("/auth/password-reset", h.handleRequestPasswordReset)
	r.Get("/verify-email/{token}", h.handleVerifyEmail)
	r.Post("/reset-password/{token}", h.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.engine))
		r.Get("/auth/session", h.handleSession)
		r.Post("/auth/password/change", h.handleChangePassword)
		r.Patch("/auth/profile", h.handleUpdateProfile)
		r.Post("/auth/two-factor", h.handleTwoFactor)
	})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[sxpauth.SignupRequest](h, w, r)
	if !ok {
		return
	}
	result, err := h.engine.Signup(r.Context(), *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[sxpauth.Credentials](h, w, r)
	if !ok {
		return
	}
	session, err := h.engine.Login(r.Context(), *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleLogout succeeds with or without a valid token.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := h.engine.Logout(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[emailRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.engine.ResendVerification(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[emailRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[resetPasswordRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.engine.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[changePasswordRequest](h, w, r)
	if !ok {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[sxpauth.ProfileUpdate](h, w, r)
	if !ok {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	updated, err := h.engine.UpdateProfile(r.Context(), user.ID, *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: updated})
}

func (h *Handler) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[twoFactorRequest](h, w, r)
	if !ok {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())
	updated, err := h.engine.SetTwoFactor(r.Context(), user.ID, req.Enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: updated})
}
