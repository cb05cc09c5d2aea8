package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrUserRedisUnavailable = errors.New("user redis unavailable")
)

// Role is the coarse authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a registered account.
type User struct {
	ID                      string     `json:"id"`
	Email                   string     `json:"email"`
	Name                    string     `json:"name"`
	PasswordHash            string     `json:"passwordHash"`
	EmailVerified           bool       `json:"emailVerified"`
	TwoFactorEnabled        bool       `json:"twoFactorEnabled"`
	CreatedAt               time.Time  `json:"createdAt"`
	LastLoginAt             *time.Time `json:"lastLoginAt,omitempty"`
	Role                    Role       `json:"role"`
	VerificationToken       string     `json:"verificationToken,omitempty"`
	VerificationTokenExpiry *time.Time `json:"verificationTokenExpiry,omitempty"`
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Name                    *string
	PasswordHash            *string
	EmailVerified           *bool
	TwoFactorEnabled        *bool
	LastLoginAt             *time.Time
	Role                    *Role
	VerificationToken       *string
	VerificationTokenExpiry *time.Time

	// ClearVerification drops any pending verification token and expiry.
	ClearVerification bool
}

func (u UserUpdate) apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.EmailVerified != nil {
		user.EmailVerified = *u.EmailVerified
	}
	if u.TwoFactorEnabled != nil {
		user.TwoFactorEnabled = *u.TwoFactorEnabled
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		user.LastLoginAt = &t
	}
	if u.Role != nil {
		user.Role = *u.Role
	}
	if u.VerificationToken != nil {
		user.VerificationToken = *u.VerificationToken
	}
	if u.VerificationTokenExpiry != nil {
		t := *u.VerificationTokenExpiry
		user.VerificationTokenExpiry = &t
	}
	if u.ClearVerification {
		user.VerificationToken = ""
		user.VerificationTokenExpiry = nil
	}
}

// UserStore keeps accounts under <prefix>user:<id> with an email index.
type UserStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewUserStore(redisClient redis.UniversalClient, prefix string) *UserStore {
	return &UserStore{
		redis:  redisClient,
		prefix: normalizePrefix(prefix),
	}
}

func (s *UserStore) userKey(id string) string {
	return s.prefix + "user:" + id
}

func (s *UserStore) emailKey(email string) string {
	return s.prefix + "user_email:" + email
}

func (s *UserStore) setKey() string {
	return s.prefix + "users"
}

// Create stores a new account. The email index is claimed with SETNX, so a
// second account with the same email fails with ErrUserExists even when two
// sign-ups race past the caller's pre-check.
func (s *UserStore) Create(ctx context.Context, user *User) error {
	if user == nil || user.ID == "" || user.Email == "" {
		return errors.New("user id and email are required")
	}

	encoded, err := json.Marshal(user)
	if err != nil {
		return err
	}

	claimed, err := s.redis.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}
	if !claimed {
		return ErrUserExists
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(user.ID), encoded, 0)
		pipe.SAdd(ctx, s.setKey(), user.ID)
		return nil
	})
	if err != nil {
		// release the index so the email is not stranded
		_ = s.redis.Del(ctx, s.emailKey(user.Email)).Err()
		return fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}

	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	data, err := s.redis.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}
	return decodeUser(data)
}

// GetByEmail matches the email exactly; callers normalize if they want to.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}
	return s.GetByID(ctx, id)
}

// Update applies a partial update atomically and returns the new record.
func (s *UserStore) Update(ctx context.Context, id string, update UserUpdate) (*User, error) {
	key := s.userKey(id)
	var updated *User

	err := watch(ctx, s.redis, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrUserNotFound
			}
			return err
		}

		user, err := decodeUser(data)
		if err != nil {
			return err
		}
		update.apply(user)

		encoded, err := json.Marshal(user)
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
		updated = user
		return nil
	}, key)

	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}
	return updated, nil
}

// VerifyEmail marks the account verified and clears its verification token.
func (s *UserStore) VerifyEmail(ctx context.Context, id string) (*User, error) {
	verified := true
	return s.Update(ctx, id, UserUpdate{
		EmailVerified:     &verified,
		ClearVerification: true,
	})
}

// Delete removes the account and releases its email.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.userKey(id))
		pipe.Del(ctx, s.emailKey(user.Email))
		pipe.SRem(ctx, s.setKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}
	return nil
}

// List returns every account ordered by creation time.
func (s *UserStore) List(ctx context.Context) ([]User, error) {
	ids, err := s.redis.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserRedisUnavailable, err)
	}

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		user, err := s.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, *user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func decodeUser(data []byte) (*User, error) {
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}
