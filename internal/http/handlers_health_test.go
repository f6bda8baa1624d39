package httpx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/congregate-api/internal/adapters/memory"
	"github.com/target/congregate-api/internal/clock"
	authmocks "github.com/target/congregate-api/internal/mocks/auth"
	"github.com/target/congregate-api/internal/service"
)

func TestHealthHandler(t *testing.T) {
	clk := clock.NewFixed(testNow)
	flaky := &authmocks.FlakyRateLimitStore{Store: memory.NewRateLimitStore(memory.RateLimitStoreOptions{Clock: clk})}
	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Scope:       "login",
		Store:       flaky,
		MaxAttempts: 5,
		Window:      time.Minute,
		Clock:       clk,
	})
	require.NoError(t, err)
	h := healthHandler(limiter, nil)

	t.Run("connected", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/healthz", requestOptions{})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok","rate_limit_backend":"connected"}`, rec.Body.String())
	})

	t.Run("degraded backend still reports ok", func(t *testing.T) {
		flaky.SetDown(true)
		_, err := limiter.Check(context.Background(), "192.0.2.1")
		require.NoError(t, err)

		rec := serve(t, h, http.MethodGet, "/healthz", requestOptions{})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","rate_limit_backend":"degraded"}`, rec.Body.String())
	})

	t.Run("HEAD writes no body", func(t *testing.T) {
		rec := serve(t, h, http.MethodHead, "/healthz", requestOptions{})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestRouter_HealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", requestOptions{})
	assert.Equal(t, http.StatusOK, rec.Code)
}
