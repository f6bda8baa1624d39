package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/target/congregate-api/internal/clock"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/observability/metrics"
	"github.com/target/congregate-api/internal/observability/statsd"
	"github.com/target/congregate-api/internal/ports"
)

const (
	lockStripes              = 64
	defaultBackendTimeout    = 250 * time.Millisecond
	defaultReconnectInterval = 30 * time.Second
)

// RateLimiterOptions groups dependencies for RateLimiter.
type RateLimiterOptions struct {
	Scope             string               // Required: namespaces keys, e.g. "login"
	Store             ports.RateLimitStore // Required
	MaxAttempts       int                  // Required: > 0
	Window            time.Duration        // Required: > 0
	BackendTimeout    time.Duration        // Optional: bound on each store call
	ReconnectInterval time.Duration        // Optional: minimum gap between reconnect probes
	Clock             clock.Clock          // Optional
	Logger            *slog.Logger         // Optional
	Metrics           statsd.Sink          // Optional
}

// Decision describes the outcome of a Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
	// Degraded is set when the backend was unreachable and the check failed open.
	Degraded bool
}

// RateLimiter is a sliding-window limiter over a pluggable store.
//
// Read-modify-write cycles are serialized per identifier within this process.
// With a shared store, replicas do not coordinate, so a burst split across N
// replicas can admit up to N-1 extra attempts. That approximation is accepted
// for abuse control.
type RateLimiter struct {
	scope          string
	store          ports.RateLimitStore
	max            int
	window         time.Duration
	timeout        time.Duration
	reconnectEvery time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	metrics        statsd.Sink

	locks        [lockStripes]sync.Mutex
	disconnected atomic.Bool
	lastProbe    atomic.Int64
	probes       singleflight.Group
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(opts RateLimiterOptions) (*RateLimiter, error) {
	if opts.Store == nil {
		return nil, errors.New("RateLimitStore is required")
	}
	if opts.Scope == "" {
		return nil, errors.New("rate limiter scope is required")
	}
	if opts.MaxAttempts <= 0 || opts.Window <= 0 {
		return nil, fmt.Errorf("rate limiter %s: max attempts and window must be positive", opts.Scope)
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = defaultBackendTimeout
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		scope:          opts.Scope,
		store:          opts.Store,
		max:            opts.MaxAttempts,
		window:         opts.Window,
		timeout:        opts.BackendTimeout,
		reconnectEvery: opts.ReconnectInterval,
		clock:          clock.OrReal(opts.Clock),
		logger:         logger.With("component", "rate_limiter", "scope", opts.Scope),
		metrics:        opts.Metrics,
	}, nil
}

// Scope returns the limiter's key namespace.
func (l *RateLimiter) Scope() string { return l.scope }

// Connected reports whether the backend is currently considered reachable.
func (l *RateLimiter) Connected() bool { return !l.disconnected.Load() }

// Check records an attempt for id unless the window is already full. A
// rejection returns a RateLimited AppError alongside the Decision.
func (l *RateLimiter) Check(ctx context.Context, id string) (Decision, error) {
	now := l.clock.Now()
	if l.disconnected.Load() && !l.reconnect(ctx, now) {
		return l.failOpen(), nil
	}

	mu := l.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	key := l.key(id)
	attempts, err := l.get(ctx, key)
	if err != nil {
		l.markDisconnected(ctx, now, err)
		return l.failOpen(), nil
	}

	attempts, oldest := pruneWindow(attempts, now, l.window)
	if len(attempts) >= l.max {
		resetAt := oldest.Add(l.window)
		secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		metrics.EmitRateLimitDecision(l.metrics, l.scope, metrics.ResultRejected)
		d := Decision{
			Limit:      l.max,
			RetryAfter: time.Duration(secs) * time.Second,
			ResetAt:    resetAt,
		}
		return d, apperrors.RateLimited(fmt.Sprintf("Too many attempts. Please try again in %d seconds.", secs)).
			WithDetails(map[string]any{"retry_after_seconds": secs})
	}

	attempts = append(attempts, now)
	if err := l.set(ctx, key, attempts); err != nil {
		l.markDisconnected(ctx, now, err)
		return l.failOpen(), nil
	}

	if len(attempts) == 1 {
		oldest = now
	}
	metrics.EmitRateLimitDecision(l.metrics, l.scope, metrics.ResultAllowed)
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - len(attempts),
		ResetAt:   oldest.Add(l.window),
	}, nil
}

// Clear drops every recorded attempt for id.
func (l *RateLimiter) Clear(ctx context.Context, id string) error {
	mu := l.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.store.Delete(cctx, l.key(id)); err != nil {
		l.markDisconnected(ctx, l.clock.Now(), err)
		return fmt.Errorf("clear %s attempts: %w", l.scope, err)
	}
	return nil
}

func (l *RateLimiter) get(ctx context.Context, key string) ([]time.Time, error) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.Get(cctx, key)
}

func (l *RateLimiter) set(ctx context.Context, key string, attempts []time.Time) error {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.Set(cctx, key, attempts, l.window)
}

func (l *RateLimiter) failOpen() Decision {
	metrics.EmitRateLimitDecision(l.metrics, l.scope, metrics.ResultDegraded)
	return Decision{Allowed: true, Limit: l.max, Remaining: l.max, Degraded: true}
}

func (l *RateLimiter) markDisconnected(ctx context.Context, now time.Time, err error) {
	l.lastProbe.Store(now.UnixNano())
	if l.disconnected.CompareAndSwap(false, true) {
		l.logger.WarnContext(ctx, "rate limit backend unreachable, failing open", "error", err)
		metrics.EmitBackendState(l.metrics, l.scope, false, err)
	}
}

// reconnect probes the backend at most once per reconnect interval;
// concurrent callers share a single probe.
func (l *RateLimiter) reconnect(ctx context.Context, now time.Time) bool {
	if now.UnixNano()-l.lastProbe.Load() < int64(l.reconnectEvery) {
		return false
	}
	v, _, _ := l.probes.Do("probe", func() (any, error) {
		if !l.disconnected.Load() {
			return true, nil
		}
		l.lastProbe.Store(now.UnixNano())
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		if err := l.store.Ping(pctx); err != nil {
			l.logger.DebugContext(ctx, "rate limit backend still unreachable", "error", err)
			return false, nil
		}
		l.disconnected.Store(false)
		l.logger.InfoContext(ctx, "rate limit backend reconnected")
		metrics.EmitBackendState(l.metrics, l.scope, true, nil)
		return true, nil
	})
	ok, _ := v.(bool)
	return ok
}

func (l *RateLimiter) lockFor(id string) *sync.Mutex {
	return &l.locks[xxhash.Sum64String(id)%lockStripes]
}

func (l *RateLimiter) key(id string) string {
	return l.scope + ":" + id
}

// pruneWindow keeps attempts younger than window and returns the oldest kept.
func pruneWindow(attempts []time.Time, now time.Time, window time.Duration) ([]time.Time, time.Time) {
	kept := attempts[:0]
	var oldest time.Time
	for _, t := range attempts {
		if now.Sub(t) >= window {
			continue
		}
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
		kept = append(kept, t)
	}
	return kept, oldest
}
