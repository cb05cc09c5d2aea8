package sxpauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
	"github.com/sxpoptimizer/sxpauth/password"
)

const testPassword = "Str0ng!Pass"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	kind  string
	to    Recipient
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *recordingMailer) add(kind string, to Recipient, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, token: token})
	return nil
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to Recipient, token string) error {
	return m.add("verification", to, token)
}

func (m *recordingMailer) SendWelcomeEmail(_ context.Context, to Recipient) error {
	return m.add("welcome", to, "")
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, to Recipient, token string) error {
	return m.add("reset", to, token)
}

func (m *recordingMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

func (m *recordingMailer) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Redis.Prefix = "test:"
	cfg.Session.Secret = "test-secret-test-secret-test-secret"
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

type testEnv struct {
	engine *Engine
	clock  *fakeClock
	mailer *recordingMailer
	redis  *redis.Client
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		clock:  newFakeClock(),
		mailer: &recordingMailer{},
		redis:  rdb,
		mr:     mr,
	}
	env.engine, err = New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMailer(env.mailer).
		WithClock(env.clock.Now).
		Build()
	require.NoError(t, err)

	t.Cleanup(func() {
		env.engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return env
}

// signup registers a user with the shared test password.
func (env *testEnv) signup(t *testing.T, email string) *User {
	t.Helper()
	res, err := env.engine.Signup(context.Background(), SignupRequest{
		Email:         email,
		Password:      testPassword,
		Name:          "Test User",
		AcceptedTerms: true,
	})
	require.NoError(t, err)
	return res.User
}

func countEvents(events []AuthEvent, action audit.Action) int {
	n := 0
	for _, e := range events {
		if e.Action == action {
			n++
		}
	}
	return n
}

func lastEvent(t *testing.T, e *Engine) AuthEvent {
	t.Helper()
	recent := e.RecentEvents(1)
	require.Len(t, recent, 1)
	return recent[0]
}
