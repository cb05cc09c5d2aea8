package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
)

var ErrEventsRedisUnavailable = errors.New("event log redis unavailable")

// Store mirrors the whole event list to a single key as a JSON array, the
// same shape the browser build kept in local storage.
type Store struct {
	redis redis.UniversalClient
	key   string
}

func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sxp:"
	}
	return &Store{
		redis: redisClient,
		key:   prefix + "auth_events",
	}
}

func (s *Store) Key() string {
	return s.key
}

// Load returns the persisted list, or an empty list when none exists.
func (s *Store) Load(ctx context.Context) ([]audit.Event, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrEventsRedisUnavailable, err)
	}

	var events []audit.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode event log: %w", err)
	}
	return events, nil
}

func (s *Store) Save(ctx context.Context, events []audit.Event) error {
	if events == nil {
		events = []audit.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrEventsRedisUnavailable, err)
	}
	return nil
}
