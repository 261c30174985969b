// Package ratelimiter implements token bucket rate limiting for the billing
// endpoints that call the payment processor.
//
// A Bucket holds Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each allowed request takes one token; a request that finds
// too few tokens is denied without consuming any.
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       5,
//		RefillRate:     1,
//		RefillInterval: 20 * time.Second,
//	})
//
//	r.With(ratelimiter.Middleware(limiter, accountKey)).Post("/checkout", h)
//
// MemoryStore keeps buckets in process; RedisStore shares them between
// instances through an atomic Lua script.
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset on every limited response, plus Retry-After when it
// denies. Requests whose key is empty are not limited, and store failures let
// the request through.
package ratelimiter
