package entitlement

import (
	"log/slog"
	"time"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache sets the snapshot cache. Use NoOpCache to disable caching.
func WithCache(c Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithTTL sets how long snapshots stay cached. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithCacheObserver registers a callback told whether each Resolve was a cache hit.
func WithCacheObserver(fn func(hit bool)) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.observe = fn
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock used for ResolvedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}
