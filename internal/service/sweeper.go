package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/target/congregate-api/internal/observability/metrics"
	"github.com/target/congregate-api/internal/observability/statsd"
)

// SessionReclaimer removes dead sessions. AuthService implements it.
type SessionReclaimer interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionSweeperOptions groups dependencies for SessionSweeper.
type SessionSweeperOptions struct {
	Sessions SessionReclaimer // Required
	Interval time.Duration    // Required: > 0
	Logger   *slog.Logger     // Optional
	Metrics  statsd.Sink      // Optional
}

// SessionSweeper periodically reclaims expired and invalidated sessions.
type SessionSweeper struct {
	sessions SessionReclaimer
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewSessionSweeper constructs a SessionSweeper.
func NewSessionSweeper(opts SessionSweeperOptions) (*SessionSweeper, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionReclaimer is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		sessions: opts.Sessions,
		interval: opts.Interval,
		logger:   logger.With("component", "session_sweeper"),
		metrics:  opts.Metrics,
	}, nil
}

// Run sweeps on every tick until ctx is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SessionSweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session sweeper", "interval", s.interval)

	// Spread replicas that start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "session sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session sweeper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep.
func (s *SessionSweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	removed, err := s.sessions.SweepExpired(ctx)
	metrics.EmitSweep(s.metrics, removed, time.Since(start), err)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "swept sessions", "removed", removed)
	}
	return removed, nil
}

// waitWithJitter delays up to 10% of the interval.
func (s *SessionSweeper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
