package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitStore keeps attempt timestamps in Redis so every replica sees the
// same window. Values are JSON arrays of Unix nanoseconds.
type RateLimitStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRateLimitStore creates a Redis-backed attempt store.
func NewRateLimitStore(client redis.UniversalClient) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: "ratelimit:"}
}

func (s *RateLimitStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var nanos []int64
	if err := json.Unmarshal(data, &nanos); err != nil {
		return nil, fmt.Errorf("unmarshal attempts: %w", err)
	}
	attempts := make([]time.Time, len(nanos))
	for i, n := range nanos {
		attempts[i] = time.Unix(0, n).UTC()
	}
	return attempts, nil
}

func (s *RateLimitStore) Set(ctx context.Context, key string, attempts []time.Time, ttl time.Duration) error {
	if len(attempts) == 0 {
		return s.Delete(ctx, key)
	}
	nanos := make([]int64, len(attempts))
	for i, t := range attempts {
		nanos[i] = t.UnixNano()
	}
	data, err := json.Marshal(nanos)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

func (s *RateLimitStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *RateLimitStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
