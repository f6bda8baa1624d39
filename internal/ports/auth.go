// Package ports defines interfaces (hexagonal ports) for identity, session and
// abuse-control behavior. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.
package ports

import (
	"context"
	"time"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
)

// SessionStore persists and retrieves user sessions keyed by token.
// Implementations must tolerate concurrent reads with occasional concurrent
// refresh/invalidate writes.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, token string) (domainauth.Session, error)
	// Refresh updates the activity and expiry timestamps of an existing,
	// non-invalidated session. It must never recreate a session that was
	// invalidated or removed.
	Refresh(ctx context.Context, token string, lastSeen, expiresAt time.Time) error
	// Invalidate marks the session unusable. Subsequent Get calls must not
	// return a usable session.
	Invalidate(ctx context.Context, token string) error
	// DeleteExpired removes sessions that expired or were invalidated before now
	// and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// UserDirectory resolves accounts for authentication.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (domainauth.User, error)
	GetByEmail(ctx context.Context, email string) (domainauth.User, error)
}
