package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/target/congregate-api/internal/adapters/memory"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/ports"
)

func TestNewUser_HashMatches(t *testing.T) {
	u := NewUser("u1", "u1@example.org", domainauth.RoleMember, "secret")
	assert.True(t, u.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret")))
}

func TestStaticDirectory_Lookups(t *testing.T) {
	dir := NewStaticDirectory(NewUser("u1", "u1@example.org", domainauth.RoleAdmin, "pw"))
	ctx := context.Background()

	u, err := dir.GetByEmail(ctx, "u1@example.org")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	dir.Deactivate("u1")
	u, err = dir.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.Active)

	dir.Remove("u1")
	_, err = dir.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, ports.ErrUserNotFound)
	_, err = dir.GetByEmail(ctx, "u1@example.org")
	assert.ErrorIs(t, err, ports.ErrUserNotFound)
}

func TestStaticDirectory_FuncOverride(t *testing.T) {
	dir := &StaticDirectory{
		GetByIDFunc: func(context.Context, string) (domainauth.User, error) {
			return domainauth.User{Principal: domainauth.Principal{ID: "override"}}, nil
		},
	}
	u, err := dir.GetByID(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "override", u.ID)
}

func TestFlakyRateLimitStore(t *testing.T) {
	flaky := &FlakyRateLimitStore{Store: memory.NewRateLimitStore(memory.RateLimitStoreOptions{})}
	ctx := context.Background()

	require.NoError(t, flaky.Set(ctx, "k", []time.Time{time.Now()}, time.Minute))
	flaky.SetDown(true)

	_, err := flaky.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrBackendDown)
	assert.ErrorIs(t, flaky.Ping(ctx), ErrBackendDown)

	flaky.SetDown(false)
	got, err := flaky.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(3), flaky.Calls.Load())
	assert.Equal(t, int64(1), flaky.Pings.Load())
}
