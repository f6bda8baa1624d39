package config

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitBackend selects where attempt timestamps are kept.
type RateLimitBackend string

const (
	// RateLimitBackendMemory keeps attempts in process.
	RateLimitBackendMemory RateLimitBackend = "memory"
	// RateLimitBackendShared keeps attempts in Redis so replicas share them.
	RateLimitBackendShared RateLimitBackend = "shared"
)

// UnmarshalText implements encoding.TextUnmarshaler for RateLimitBackend.
func (b *RateLimitBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "shared":
		*b = RateLimitBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid RateLimitBackend: %q (valid options: memory, shared)", v)
	}
}

// RateLimitConfig controls the sliding-window limiters.
type RateLimitConfig struct {
	// MaxAttempts and WindowSeconds govern the login limiter.
	MaxAttempts   int `env:"MAX_ATTEMPTS"   envDefault:"5"`
	WindowSeconds int `env:"WINDOW_SECONDS" envDefault:"900"`

	// APIMaxAttempts and APIWindowSeconds govern the general API limiter.
	APIMaxAttempts   int `env:"API_MAX_ATTEMPTS"   envDefault:"300"`
	APIWindowSeconds int `env:"API_WINDOW_SECONDS" envDefault:"60"`

	Backend RateLimitBackend `env:"BACKEND" envDefault:"memory"`

	// MaxIdentifiers caps the in-memory store; oldest identifiers are evicted first.
	MaxIdentifiers int `env:"MAX_IDENTIFIERS" envDefault:"10000"`

	// CleanupInterval is the cadence of the in-memory store's expiry sweep.
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`

	// BackendTimeout bounds every call into the shared store.
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"250ms"`

	// ReconnectInterval is the minimum gap between probes of an unreachable backend.
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL" envDefault:"30s"`
}

// Window returns the login window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// APIWindow returns the API window as a duration.
func (r RateLimitConfig) APIWindow() time.Duration {
	return time.Duration(r.APIWindowSeconds) * time.Second
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.WindowSeconds < 1 {
		r.WindowSeconds = 1
	}
	if r.APIMaxAttempts < 1 {
		r.APIMaxAttempts = 1
	}
	if r.APIWindowSeconds < 1 {
		r.APIWindowSeconds = 1
	}
	if r.MaxIdentifiers < 100 {
		r.MaxIdentifiers = 100
	}
	if r.CleanupInterval < time.Second {
		r.CleanupInterval = time.Second
	}
	if r.BackendTimeout <= 0 || r.BackendTimeout > 5*time.Second {
		r.BackendTimeout = 250 * time.Millisecond
	}
	if r.ReconnectInterval < time.Second {
		r.ReconnectInterval = time.Second
	}
}
