package ratelimiter

import (
	"context"
	"time"
)

// Store persists bucket state.
type Store interface {
	// ConsumeTokens refills the bucket of key and takes tokens from it when
	// enough are available. It returns the tokens left, negative when the
	// request is denied, and the time of the next refill.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)

	// Reset drops the state of key.
	Reset(ctx context.Context, key string) error
}
