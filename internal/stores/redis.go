package stores

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 4

var errTxContention = errors.New("transaction retries exhausted")

// watch runs fn inside WATCH on keys, retrying when another client touched
// the keys between WATCH and EXEC.
func watch(ctx context.Context, client redis.UniversalClient, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errTxContention
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return "sxp:"
	}
	return prefix
}
