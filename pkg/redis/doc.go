// Package redis provides helpers for connecting to Redis and using it as a
// namespaced key-value store.
//
// It wraps the go-redis client and adds:
//
//   - Connect, which pings the server with retries before handing out a client.
//   - Storage, a context-aware key-value wrapper that keeps every key under a
//     prefix. The entitlement cache stores workspace snapshots through it.
//   - Healthcheck, a readiness probe that fails unless the server accepts writes.
//
// Config is populated from environment variables via github.com/caarlos0/env.
// An empty REDIS_URL means Redis is not used; check with Config.Enabled.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redis.NewStorage(client, cfg.KeyPrefix+"entitlement:")
//	if err := store.Set(ctx, "W1", data, 10*time.Minute); err != nil {
//		return err
//	}
//
//	val, err := store.Get(ctx, "W1")
//	if errors.Is(err, redis.ErrKeyNotFound) {
//		// miss
//	}
//
//	// Drops every key under the storage prefix, other prefixes stay.
//	err = store.Reset(ctx)
//
// # Errors
//
// Sentinel errors such as ErrRedisNotReady wrap the underlying go-redis errors
// using errors.Join.
package redis
