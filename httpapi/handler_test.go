package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxpoptimizer/sxpauth"
	"github.com/sxpoptimizer/sxpauth/middleware"
	"github.com/sxpoptimizer/sxpauth/password"
)

const (
	adminToken   = "admin-token-for-tests"
	goodPassword = "Str0ng!Pass"
)

type outbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (o *outbox) put(kind, token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tokens == nil {
		o.tokens = map[string]string{}
	}
	o.tokens[kind] = token
}

func (o *outbox) get(kind string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[kind]
}

func (o *outbox) SendVerificationEmail(_ context.Context, _ sxpauth.Recipient, token string) error {
	o.put("verification", token)
	return nil
}

func (o *outbox) SendWelcomeEmail(context.Context, sxpauth.Recipient) error { return nil }

func (o *outbox) SendPasswordResetEmail(_ context.Context, _ sxpauth.Recipient, token string) error {
	o.put("reset", token)
	return nil
}

type apiFixture struct {
	server *httptest.Server
	mail   *outbox
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := sxpauth.DefaultConfig()
	cfg.Session.Secret = "httpapi-secret-httpapi-secret-0123"
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

	mail := &outbox{}
	engine, err := sxpauth.New().WithConfig(cfg).WithRedis(rdb).WithMailer(mail).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(New(engine, nil, Options{AdminToken: adminToken}).Routes())
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, mail: mail}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func admin() map[string]string {
	return map[string]string{middleware.HeaderAdminToken: adminToken}
}

func (f *apiFixture) signup(t *testing.T, email string) (userID, token string) {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/auth/signup", map[string]any{
		"email":         email,
		"password":      goodPassword,
		"name":          "Test User",
		"acceptedTerms": true,
	}, nil)
	require.Equal(t, http.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	session := body["session"].(map[string]any)
	return user["id"].(string), session["token"].(string)
}

func TestSignupAndSession(t *testing.T) {
	f := newFixture(t)
	userID, token := f.signup(t, "a@b.com")

	status, body := f.do(t, http.MethodGet, "/auth/session", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, body["user"].(map[string]any)["id"])

	status, body = f.do(t, http.MethodGet, "/auth/session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authenticated", body["error"])
}

func TestSignupValidationAndConflict(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/auth/signup", map[string]any{
		"email": "a@b.com", "password": "weak", "name": "Test User", "acceptedTerms": true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "Password must be at least 8 characters long")

	f.signup(t, "a@b.com")
	status, body = f.do(t, http.MethodPost, "/auth/signup", map[string]any{
		"email": "a@b.com", "password": goodPassword, "name": "Test User", "acceptedTerms": true,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, sxpauth.MsgUserExists, body["error"])

	status, _ = f.do(t, http.MethodPost, "/auth/signup", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "x@y.com")

	for i := 0; i < 5; i++ {
		status, body := f.do(t, http.MethodPost, "/auth/login", sxpauth.Credentials{Email: "x@y.com", Password: "wrong"}, nil)
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, sxpauth.MsgInvalidCredentials, body["error"])
	}

	status, body := f.do(t, http.MethodPost, "/auth/login", sxpauth.Credentials{Email: "x@y.com", Password: goodPassword}, nil)
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, sxpauth.MsgAccountLocked, body["error"])

	status, _ = f.do(t, http.MethodPost, "/admin/unlock", map[string]string{"email": "x@y.com"}, admin())
	require.Equal(t, http.StatusNoContent, status)

	status, body = f.do(t, http.MethodPost, "/auth/login", sxpauth.Credentials{Email: "x@y.com", Password: goodPassword}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	_, token := f.signup(t, "a@b.com")

	status, _ := f.do(t, http.MethodPost, "/auth/logout", nil, bearer(token))
	require.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodGet, "/auth/session", nil, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestVerifyEmailRoute(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "a@b.com")

	token := f.mail.get("verification")
	require.NotEmpty(t, token)

	status, body := f.do(t, http.MethodGet, "/verify-email/"+token, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["user"].(map[string]any)["emailVerified"])

	status, body = f.do(t, http.MethodGet, "/verify-email/"+token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Token has already been used", body["error"])

	status, _ = f.do(t, http.MethodPost, "/auth/verification/resend", map[string]string{"email": "a@b.com"}, nil)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestPasswordResetAndChange(t *testing.T) {
	f := newFixture(t)
	_, token := f.signup(t, "a@b.com")

	status, _ := f.do(t, http.MethodPost, "/auth/password-reset", map[string]string{"email": "a@b.com"}, nil)
	require.Equal(t, http.StatusAccepted, status)
	status, _ = f.do(t, http.MethodPost, "/auth/password-reset", map[string]string{"email": "ghost@b.com"}, nil)
	require.Equal(t, http.StatusAccepted, status)

	reset := f.mail.get("reset")
	require.NotEmpty(t, reset)
	status, _ = f.do(t, http.MethodPost, "/reset-password/"+reset, map[string]string{"password": "N3w!Passw0rd"}, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodPost, "/auth/password/change", map[string]string{
		"currentPassword": "N3w!Passw0rd",
		"newPassword":     "Th1rd!Passw0rd",
	}, bearer(token))
	require.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodPost, "/auth/login", sxpauth.Credentials{Email: "a@b.com", Password: "Th1rd!Passw0rd"}, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestProfileAndTwoFactor(t *testing.T) {
	f := newFixture(t)
	_, token := f.signup(t, "a@b.com")

	status, body := f.do(t, http.MethodPatch, "/auth/profile", map[string]string{"name": "New Name"}, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "New Name", body["user"].(map[string]any)["name"])

	status, body = f.do(t, http.MethodPost, "/auth/two-factor", map[string]bool{"enabled": true}, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["user"].(map[string]any)["twoFactorEnabled"])
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)
	userID, _ := f.signup(t, "a@b.com")

	status, _ := f.do(t, http.MethodGet, "/admin/stats", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := f.do(t, http.MethodGet, "/admin/stats", nil, admin())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["signups"])

	status, _ = f.do(t, http.MethodGet, "/admin/stats?window=later", nil, admin())
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodGet, "/admin/events?limit=2", nil, admin())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])

	status, body = f.do(t, http.MethodGet, "/admin/users", nil, admin())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = f.do(t, http.MethodPost, "/admin/users/"+userID+"/role", map[string]string{"role": "admin"}, admin())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", body["user"].(map[string]any)["role"])

	status, _ = f.do(t, http.MethodPost, "/admin/users/"+userID+"/role", map[string]string{"role": "root"}, admin())
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/admin/users/"+userID, nil, admin())
	require.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodDelete, "/admin/users/"+userID, nil, admin())
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodGet, "/admin/events?userId="+userID, nil, admin())
	require.Equal(t, http.StatusOK, status)
	assert.NotZero(t, body["total"])

	status, body = f.do(t, http.MethodPost, "/admin/tokens/cleanup", nil, admin())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["removed"])

	status, _ = f.do(t, http.MethodDelete, "/admin/events", nil, admin())
	require.Equal(t, http.StatusNoContent, status)
	status, body = f.do(t, http.MethodGet, "/admin/events", nil, admin())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["total"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "a@b.com")

	resp, err := f.server.Client().Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `sxpauth_events_total{action="signup_success",success="true"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&sxpauth.ValidationError{}))
	assert.Equal(t, http.StatusBadRequest, statusFor(&sxpauth.TokenError{Reason: "x"}))
	assert.Equal(t, http.StatusLocked, statusFor(sxpauth.ErrAccountLocked))
	assert.Equal(t, http.StatusConflict, statusFor(sxpauth.ErrUserExists))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(sxpauth.ErrBackendUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}
