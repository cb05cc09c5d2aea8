package sxpauth

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
)

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "a@b.com")

	name := "Grace Hopper"
	updated, err := env.engine.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", updated.Name)

	event := lastEvent(t, env.engine)
	assert.Equal(t, audit.ActionProfileUpdate, event.Action)
	assert.True(t, event.Success)

	bad := "x"
	_, err = env.engine.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: &bad})
	require.ErrorIs(t, err, ErrValidation)
	event = lastEvent(t, env.engine)
	assert.Equal(t, audit.ActionProfileUpdate, event.Action)
	assert.False(t, event.Success)

	_, err = env.engine.UpdateProfile(ctx, "missing", ProfileUpdate{Name: &name})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "a@b.com")

	updated, err := env.engine.SetTwoFactor(ctx, user.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.TwoFactorEnabled)
	assert.Equal(t, audit.ActionTwoFactorEnabled, lastEvent(t, env.engine).Action)

	updated, err = env.engine.SetTwoFactor(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.TwoFactorEnabled)
	assert.Equal(t, audit.ActionTwoFactorDisabled, lastEvent(t, env.engine).Action)
}

func TestSetRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "a@b.com")

	updated, err := env.engine.SetRole(ctx, user.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.Role)

	event := lastEvent(t, env.engine)
	assert.Equal(t, audit.ActionSecuritySettingsChange, event.Action)
	assert.Equal(t, "admin", event.Metadata["newRole"])
	assert.Equal(t, "user", event.Metadata["previousRole"])

	_, err = env.engine.SetRole(ctx, user.ID, Role("root"))
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestDeleteUser_KeepsEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "a@b.com")
	env.signup(t, "c@d.com")

	users, err := env.engine.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	require.NoError(t, env.engine.DeleteUser(ctx, user.ID))
	_, err = env.engine.GetUser(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	users, err = env.engine.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	events := env.engine.UserEvents(user.ID)
	require.NotEmpty(t, events)
	assert.Equal(t, "account_deleted", events[0].Metadata["change"])

	// the address can be registered again
	env.signup(t, "a@b.com")
}

func TestEventLog_SurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@b.com")
	before := env.engine.RecentEvents(0)
	require.NotEmpty(t, before)

	restarted, err := New().
		WithConfig(testConfig()).
		WithRedis(env.redis).
		WithMailer(env.mailer).
		WithClock(env.clock.Now).
		Build()
	require.NoError(t, err)
	defer restarted.Close()

	after := restarted.RecentEvents(0)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Action, after[i].Action)
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
	}
}

func TestEventLog_ClearPruneAndRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "a@b.com")

	env.clock.Advance(91 * 24 * time.Hour)
	custom := env.engine.Record(ctx, audit.ActionTwoFactorVerification, "u1", "a@b.com", true, "", map[string]any{"method": "totp"})
	assert.Equal(t, audit.ActionTwoFactorVerification, custom.Action)

	// Record already pruned everything past retention
	recent := env.engine.RecentEvents(0)
	require.Len(t, recent, 1)
	assert.Equal(t, custom.ID, recent[0].ID)
	assert.Equal(t, 0, env.engine.PruneEvents(ctx))

	env.engine.ClearEvents(ctx)
	assert.Empty(t, env.engine.RecentEvents(0))
	assert.Equal(t, Stats{}, env.engine.Stats(0))
}

func TestStats_CustomWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "a@b.com")

	env.clock.Advance(2 * time.Hour)
	_, _ = env.engine.Login(ctx, Credentials{Email: "a@b.com", Password: "wrong"})

	hour := env.engine.Stats(time.Hour)
	assert.Equal(t, 1, hour.TotalEvents)
	assert.Equal(t, 1, hour.FailedLogins)
	assert.Equal(t, 0, hour.Signups)

	day := env.engine.Stats(0)
	assert.Equal(t, 1, day.Signups)
	assert.Equal(t, 1, day.FailedLogins)
}

func TestMetrics_CountRecordedEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "a@b.com")

	for i := 0; i < 6; i++ {
		_, _ = env.engine.Login(ctx, Credentials{Email: "a@b.com", Password: "wrong"})
	}

	m := env.engine.Metrics()
	assert.Equal(t, 5.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("login_failure", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountLockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("signup_success", "true")))
}

func TestCleanupExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "a@b.com")
	require.NoError(t, env.engine.RequestPasswordReset(ctx, "a@b.com"))

	env.clock.Advance(2 * time.Hour)
	n, err := env.engine.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	env.clock.Advance(24 * time.Hour)
	n, err = env.engine.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIssueAndVerifyToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "a@b.com")

	token, err := env.engine.IssueToken(ctx, user.ID, user.Email, TokenPasswordReset)
	require.NoError(t, err)

	data, err := env.engine.VerifyToken(ctx, token.Token, TokenPasswordReset)
	require.NoError(t, err)
	assert.Equal(t, user.ID, data.UserID)
	assert.True(t, data.Used)

	_, err = env.engine.VerifyToken(ctx, token.Token, TokenPasswordReset)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssueToken_UnknownTypeIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "a@b.com")

	_, err := env.engine.IssueToken(context.Background(), user.ID, user.Email, TokenType("magic_link"))
	require.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, "Invalid token type", PublicMessage(err))
}

func TestRecord_SessionIDFallsBackToRequestID(t *testing.T) {
	env := newTestEnv(t)

	ctx := WithRequestID(context.Background(), "req-1")
	event := env.engine.Record(ctx, audit.ActionLogout, "u1", "a@b.com", true, "", nil)
	assert.Equal(t, "request_req-1", event.SessionID)

	ctx = WithSessionID(ctx, "tab-1")
	event = env.engine.Record(ctx, audit.ActionLogout, "u1", "a@b.com", true, "", nil)
	assert.Equal(t, "tab-1", event.SessionID)

	other := env.engine.Record(WithRequestID(context.Background(), "req-2"), audit.ActionLogout, "u1", "a@b.com", true, "", nil)
	assert.Equal(t, "request_req-2", other.SessionID)
}
