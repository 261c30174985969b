package ratelimiter

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/vowbill/pkg/logger"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips
// limiting.
type KeyFunc func(r *http.Request) string

// DenyFunc writes the response for a denied request. Rate limit headers are
// already set when it runs.
type DenyFunc func(w http.ResponseWriter, r *http.Request, res *Result)

// FirstKey returns the first non-empty key, prefixed with its position so
// keys of different kinds never collide.
func FirstKey(keys ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		for i, fn := range keys {
			if k := fn(r); k != "" {
				return strconv.Itoa(i) + ":" + k
			}
		}
		return ""
	}
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	deny   DenyFunc
	logger *slog.Logger
	now    func() time.Time
}

// WithDenyHandler replaces the default plain text 429.
func WithDenyHandler(fn DenyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.deny = fn
		}
	}
}

// WithLogger logs store failures.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Middleware limits requests per key.
func Middleware(limiter *Bucket, key KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil || key == nil {
		panic("ratelimiter: limiter and key func are required")
	}
	cfg := &middlewareConfig{
		deny: func(w http.ResponseWriter, _ *http.Request, _ *Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), k)
			if err != nil {
				cfg.logger.WarnContext(r.Context(), "rate limit check failed, request allowed",
					logger.Component("ratelimiter"),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				if wait := res.RetryAfter(cfg.now()); wait > 0 {
					h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				}
				cfg.deny(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
