package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage is a namespaced key-value wrapper over a Redis client.
// Every key is stored under the configured prefix.
type Storage struct {
	db            redis.UniversalClient
	prefix        string
	scanBatchSize int64
}

// NewStorage creates a Storage that prefixes every key with prefix.
func NewStorage(client redis.UniversalClient, prefix string) *Storage {
	if client == nil {
		panic("redis: client is required")
	}
	return &Storage{
		db:            client,
		prefix:        prefix,
		scanBatchSize: 1000,
	}
}

// Get returns the value of key. Missing keys return ErrKeyNotFound.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyNotFound
	}
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return val, err
}

// Set stores key-value with expiration. Zero duration means no expiration.
func (s *Storage) Set(ctx context.Context, key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return s.db.Set(ctx, s.prefix+key, val, exp).Err()
}

// Delete removes a key. Empty keys are ignored.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.db.Del(ctx, s.prefix+key).Err()
}

// Reset deletes every key under the prefix using SCAN, leaving other keys intact.
func (s *Storage) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		batch, next, err := s.db.Scan(ctx, cursor, s.prefix+"*", s.scanBatchSize).Result()
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := s.db.Del(ctx, batch...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
