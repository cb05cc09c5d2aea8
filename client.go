package sxpauth

import (
	"context"
	"errors"
	"sync"
)

// AuthState is where a Client is in the login lifecycle.
type AuthState string

const (
	StateAnonymous      AuthState = "anonymous"
	StateAuthenticating AuthState = "authenticating"
	StateAuthenticated  AuthState = "authenticated"
)

// Client holds the auth state of one caller, such as a browser tab, across
// requests. Operations that change state are serialized: starting one while
// another is in flight fails with ErrAuthInProgress.
type Client struct {
	engine *Engine
	id     string

	mu      sync.Mutex
	state   AuthState
	session *Session
	user    *User
}

// NewClient returns an anonymous client. clientID ties the client's events
// together and keys the stored binding used by Restore.
func (e *Engine) NewClient(clientID string) *Client {
	return &Client{
		engine: e,
		id:     clientID,
		state:  StateAnonymous,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User is the logged-in user, or nil.
func (c *Client) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

// begin moves the client into authenticating and returns the state to fall
// back to if the operation fails.
func (c *Client) begin() (AuthState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAuthenticating {
		return "", ErrAuthInProgress
	}
	prev := c.state
	c.state = StateAuthenticating
	return prev, nil
}

func (c *Client) finish(session *Session, fallback AuthState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session == nil {
		c.state = fallback
		if fallback == StateAnonymous {
			c.session, c.user = nil, nil
		}
		return
	}
	c.session = session
	c.user = session.User
	c.state = StateAuthenticated
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.id == "" || SessionIDFromContext(ctx) != "" {
		return ctx
	}
	return WithSessionID(ctx, c.id)
}

func (c *Client) Login(ctx context.Context, creds Credentials) error {
	prev, err := c.begin()
	if err != nil {
		return err
	}

	session, err := c.engine.Login(c.context(ctx), creds)
	c.finish(session, prev)
	return err
}

// Signup registers and, when auto-login is on, leaves the client
// authenticated as the new user.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	prev, err := c.begin()
	if err != nil {
		return nil, err
	}

	result, err := c.engine.Signup(c.context(ctx), req)
	var session *Session
	if result != nil {
		session = result.Session
	}
	c.finish(session, prev)
	return result, err
}

// Logout ends the current session. It is a no-op on an anonymous client.
func (c *Client) Logout(ctx context.Context) error {
	prev, err := c.begin()
	if err != nil {
		return err
	}

	var token string
	c.mu.Lock()
	if c.session != nil {
		token = c.session.Token
	}
	c.mu.Unlock()

	if prev == StateAnonymous {
		c.finish(nil, StateAnonymous)
		return nil
	}

	if err := c.engine.Logout(c.context(ctx), token); err != nil {
		c.finish(nil, prev)
		return err
	}
	c.finish(nil, StateAnonymous)
	return nil
}

// Restore re-authenticates from the token last bound to this client id.
// It leaves the client anonymous when there is no usable binding.
func (c *Client) Restore(ctx context.Context) error {
	prev, err := c.begin()
	if err != nil {
		return err
	}

	ctx = c.context(ctx)
	token, err := c.engine.sessions.ClientToken(ctx, c.id)
	if err != nil {
		c.finish(nil, prev)
		return backendError(err)
	}
	if token == "" {
		c.finish(nil, StateAnonymous)
		return nil
	}

	user, err := c.engine.ValidateSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionInvalid) {
			_ = c.engine.sessions.UnbindClient(ctx, c.id)
		}
		c.finish(nil, StateAnonymous)
		return err
	}

	claims, err := c.engine.jwtManager.Parse(token)
	if err != nil {
		c.finish(nil, StateAnonymous)
		return ErrSessionInvalid
	}
	c.finish(&Session{
		ID:        claims.SID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		User:      user,
	}, prev)
	return nil
}
