// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.UserDirectory  = (*StaticDirectory)(nil)
	_ ports.RateLimitStore = (*FlakyRateLimitStore)(nil)
)

// NewUser builds an active account whose hash matches password. It uses the
// minimum bcrypt cost so tests stay fast.
func NewUser(id, email string, role domainauth.Role, password string) domainauth.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return domainauth.User{
		Principal: domainauth.Principal{
			ID:       id,
			Username: id,
			Email:    email,
			Role:     role,
			Active:   true,
		},
		PasswordHash: string(hash),
	}
}

// StaticDirectory serves a fixed set of users. Lookup funcs override the map.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]domainauth.User

	GetByIDFunc    func(ctx context.Context, id string) (domainauth.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (domainauth.User, error)
}

// NewStaticDirectory creates a directory seeded with users.
func NewStaticDirectory(users ...domainauth.User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]domainauth.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *StaticDirectory) Put(u domainauth.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Deactivate marks a user inactive.
func (d *StaticDirectory) Deactivate(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		u.Active = false
		d.users[id] = u
	}
}

// Remove deletes a user.
func (d *StaticDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *StaticDirectory) GetByID(ctx context.Context, id string) (domainauth.User, error) {
	if d.GetByIDFunc != nil {
		return d.GetByIDFunc(ctx, id)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return domainauth.User{}, ports.ErrUserNotFound
}

func (d *StaticDirectory) GetByEmail(ctx context.Context, email string) (domainauth.User, error) {
	if d.GetByEmailFunc != nil {
		return d.GetByEmailFunc(ctx, email)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domainauth.User{}, ports.ErrUserNotFound
}

// ErrBackendDown is returned by FlakyRateLimitStore while it is down.
var ErrBackendDown = errors.New("rate limit backend down")

// FlakyRateLimitStore wraps a store and fails every call while Down is set.
type FlakyRateLimitStore struct {
	Store ports.RateLimitStore
	down  atomic.Bool
	Calls atomic.Int64
	Pings atomic.Int64
}

// SetDown toggles the simulated outage.
func (f *FlakyRateLimitStore) SetDown(down bool) { f.down.Store(down) }

func (f *FlakyRateLimitStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	f.Calls.Add(1)
	if f.down.Load() {
		return nil, ErrBackendDown
	}
	return f.Store.Get(ctx, key)
}

func (f *FlakyRateLimitStore) Set(ctx context.Context, key string, attempts []time.Time, ttl time.Duration) error {
	f.Calls.Add(1)
	if f.down.Load() {
		return ErrBackendDown
	}
	return f.Store.Set(ctx, key, attempts, ttl)
}

func (f *FlakyRateLimitStore) Delete(ctx context.Context, key string) error {
	f.Calls.Add(1)
	if f.down.Load() {
		return ErrBackendDown
	}
	return f.Store.Delete(ctx, key)
}

func (f *FlakyRateLimitStore) Ping(ctx context.Context) error {
	f.Pings.Add(1)
	if f.down.Load() {
		return ErrBackendDown
	}
	return f.Store.Ping(ctx)
}
