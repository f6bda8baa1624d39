// Package redis provides Redis-backed adapters shared across replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/congregate-api/internal/clock"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/ports"
)

const maxTxRetries = 3

// stringGetter is satisfied by both the client and a WATCH transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SessionStore is a Redis-based session store for multi-replica deployments.
// Key TTLs track ExpiresAt, so Redis reclaims expired sessions on its own.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, "session:")
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix, clock: clock.Real{}}
}

// WithClock overrides the clock used to derive key TTLs.
func (s *SessionStore) WithClock(c clock.Clock) *SessionStore {
	s.clock = clock.OrReal(c)
	return s
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+sess.Token, data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return s.load(ctx, s.client, s.prefix+token)
}

// Refresh slides the expiry inside a WATCH transaction so a concurrent
// Invalidate is never overwritten.
func (s *SessionStore) Refresh(ctx context.Context, token string, lastSeen, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return ports.ErrSessionNotFound
	}
	return s.update(ctx, token, ttl, func(sess *domainauth.Session) error {
		if sess.Invalidated {
			return ports.ErrSessionNotFound
		}
		sess.LastSeenAt = lastSeen
		sess.ExpiresAt = expiresAt
		return nil
	})
}

// Invalidate marks the session revoked and keeps its remaining TTL so the
// tombstone disappears when the session would have expired anyway.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	err := s.update(ctx, token, 0, func(sess *domainauth.Session) error {
		sess.Invalidated = true
		return nil
	})
	if errors.Is(err, ports.ErrSessionNotFound) {
		return nil
	}
	return err
}

// DeleteExpired is a no-op: key TTLs already remove expired sessions.
func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Delete removes the session key outright.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+token).Err()
}

// update applies mutate under optimistic locking. ttl of zero keeps the key's TTL.
func (s *SessionStore) update(ctx context.Context, token string, ttl time.Duration, mutate func(*domainauth.Session) error) error {
	if token == "" {
		return ports.ErrSessionNotFound
	}
	key := s.prefix + token
	txf := func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := mutate(&sess); err != nil {
			return err
		}
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		args := redis.SetArgs{Mode: "XX", TTL: ttl, KeepTTL: ttl == 0}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, args)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			// SET XX found no key: it expired or was deleted mid-transaction.
			return ports.ErrSessionNotFound
		}
		return err
	}
	return fmt.Errorf("update session: %w", redis.TxFailedErr)
}

func (s *SessionStore) load(ctx context.Context, c stringGetter, key string) (domainauth.Session, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ports.ErrSessionNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}
	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}
