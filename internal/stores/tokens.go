package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sxpoptimizer/sxpauth/internal"
)

var (
	ErrTokenTypeInvalid      = errors.New("invalid token type")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
)

// Reasons reported by Verify. They are user-facing strings.
const (
	ReasonTokenNotFound = "Token not found"
	ReasonTokenUsed     = "Token has already been used"
	ReasonTokenExpired  = "Token has expired"
)

// TokenType distinguishes what a token may be redeemed for.
type TokenType string

const (
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
)

// Token is a single-use, time-limited credential. Expired is derived from
// ExpiresAt and never stored.
type Token struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Type      TokenType `json:"type"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}

// VerifyResult reports the outcome of a redemption attempt.
type VerifyResult struct {
	IsValid   bool
	TokenData *Token
	Error     string
}

// TokenConfig sets lifetimes per token type.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// TokenStore issues and redeems tokens under <prefix>token:<token>, with a
// per-user index used for revocation.
type TokenStore struct {
	redis    redis.UniversalClient
	prefix   string
	config   TokenConfig
	now      func() time.Time
	newToken func() (string, error)
}

func NewTokenStore(redisClient redis.UniversalClient, prefix string, cfg TokenConfig, now func() time.Time) *TokenStore {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		redis:    redisClient,
		prefix:   normalizePrefix(prefix),
		config:   cfg,
		now:      now,
		newToken: internal.NewOpaqueToken,
	}
}

func (s *TokenStore) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func (s *TokenStore) userKey(userID string) string {
	return s.prefix + "user_tokens:" + userID
}

func (s *TokenStore) ttl(tokenType TokenType) (time.Duration, error) {
	switch tokenType {
	case TokenEmailVerification:
		return s.config.VerificationTTL, nil
	case TokenPasswordReset:
		return s.config.ResetTTL, nil
	default:
		return 0, ErrTokenTypeInvalid
	}
}

// Issue creates and persists a fresh unused token.
func (s *TokenStore) Issue(ctx context.Context, userID, email string, tokenType TokenType) (*Token, error) {
	ttl, err := s.ttl(tokenType)
	if err != nil {
		return nil, err
	}

	value, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &Token{
		Token:     value,
		UserID:    userID,
		Email:     email,
		Type:      tokenType,
		ExpiresAt: now.Add(ttl),
		Used:      false,
		CreatedAt: now,
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	// Expiry is judged against ExpiresAt rather than a key TTL so that
	// "expired" stays distinguishable from "not found" until cleanup runs.
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(value), encoded, 0)
		pipe.SAdd(ctx, s.userKey(userID), value)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return record, nil
}

// Get returns the stored token without redeeming it.
func (s *TokenStore) Get(ctx context.Context, token string) (*Token, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return decodeToken(data)
}

// Verify redeems token. The first successful call flips Used to true; every
// later call reports ReasonTokenUsed. Failed checks never modify the record.
// The returned error is reserved for backend failures.
func (s *TokenStore) Verify(ctx context.Context, token string, tokenType TokenType) (VerifyResult, error) {
	if strings.TrimSpace(token) == "" {
		return VerifyResult{Error: ReasonTokenNotFound}, nil
	}

	key := s.tokenKey(token)
	var result VerifyResult

	err := watch(ctx, s.redis, func(tx *redis.Tx) error {
		result = VerifyResult{}

		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				result.Error = ReasonTokenNotFound
				return nil
			}
			return err
		}

		record, err := decodeToken(data)
		if err != nil {
			return err
		}

		switch {
		case record.Type != tokenType:
			result.Error = ReasonTokenNotFound
			return nil
		case record.Used:
			result.Error = ReasonTokenUsed
			return nil
		case s.now().After(record.ExpiresAt):
			result.Error = ReasonTokenExpired
			return nil
		}

		record.Used = true
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}

		result.IsValid = true
		result.TokenData = record
		return nil
	}, key)

	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return result, nil
}

// RevokeForUser deletes every token issued to userID.
func (s *TokenStore) RevokeForUser(ctx context.Context, userID string) (int, error) {
	tokens, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, s.tokenKey(token))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return len(tokens), nil
}

// CleanupExpired deletes tokens whose ExpiresAt has passed and returns how
// many were removed.
func (s *TokenStore) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0

	iter := s.redis.Scan(ctx, 0, s.prefix+"token:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
		}

		record, err := decodeToken(data)
		if err != nil || !now.After(record.ExpiresAt) {
			continue
		}

		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.userKey(record.UserID), record.Token)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return removed, nil
}

func decodeToken(data []byte) (*Token, error) {
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &token, nil
}
