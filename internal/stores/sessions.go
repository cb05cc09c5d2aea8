package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionRedisUnavailable = errors.New("session redis unavailable")
)

// Session is a logged-in session. Token is the signed bearer token handed to
// the client.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore keeps sessions under <prefix>session:<id> with a Redis TTL,
// plus a client binding <prefix>client:<clientID> that remembers the last
// session a client logged in with.
type SessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewSessionStore(redisClient redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		redis:  redisClient,
		prefix: normalizePrefix(prefix),
	}
}

func (s *SessionStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *SessionStore) clientKey(clientID string) string {
	return s.prefix + "client:" + clientID
}

func (s *SessionStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.sessionKey(session.ID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Delete reports whether a session was removed.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Del(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return n > 0, nil
}

func (s *SessionStore) BindClient(ctx context.Context, clientID, token string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.clientKey(clientID), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}

// ClientToken returns the token bound to clientID, or "" when none is.
func (s *SessionStore) ClientToken(ctx context.Context, clientID string) (string, error) {
	token, err := s.redis.Get(ctx, s.clientKey(clientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return token, nil
}

func (s *SessionStore) UnbindClient(ctx context.Context, clientID string) error {
	if err := s.redis.Del(ctx, s.clientKey(clientID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}
