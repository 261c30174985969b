package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const healthcheckTTL = time.Minute

// Healthcheck returns a readiness probe for the Redis server behind the
// entitlement cache and the checkout rate limiter. Both write on the request
// path, so the probe writes a short-lived key under prefix instead of a bare
// PING; a replica in read-only mode or a server still loading its dataset
// fails with ErrHealthcheckFailed.
func Healthcheck(client redis.UniversalClient, prefix string) func(context.Context) error {
	if client == nil {
		panic("redis: client is required")
	}
	key := prefix + "healthcheck"
	return func(ctx context.Context) error {
		if err := client.Set(ctx, key, time.Now().Unix(), healthcheckTTL).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("write %s: %w", key, err))
		}
		return nil
	}
}
