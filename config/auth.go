package config

import (
	"fmt"
	"strings"
	"time"
)

// UserDirectoryMode selects where accounts are looked up.
type UserDirectoryMode string

const (
	// UserDirectoryStatic serves accounts declared in AUTH_STATIC_USERS (development only).
	UserDirectoryStatic UserDirectoryMode = "static"
	// UserDirectoryPostgres serves accounts from the users table.
	UserDirectoryPostgres UserDirectoryMode = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for UserDirectoryMode.
func (m *UserDirectoryMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "static", "postgres":
		*m = UserDirectoryMode(v)
		return nil
	default:
		return fmt.Errorf("invalid UserDirectoryMode: %q (valid options: static, postgres)", v)
	}
}

// AuthConfig groups identity configuration.
type AuthConfig struct {
	UserDirectory UserDirectoryMode `env:"USER_DIRECTORY" envDefault:"static"`

	// StaticUsers declares development accounts as
	// "email|role|password[|member_id]" entries separated by ";".
	StaticUsers []string `env:"STATIC_USERS" envSeparator:";"`

	// AdminPolicy is a JMESPath expression evaluated against
	// {principal, method, path, params} for administrative routes.
	AdminPolicy string `env:"ADMIN_POLICY" envDefault:"principal.role == 'admin' && principal.active"`
}

// Sanitize trims entries and drops blanks.
func (a *AuthConfig) Sanitize() {
	users := a.StaticUsers[:0]
	for _, u := range a.StaticUsers {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	a.StaticUsers = users
	if strings.TrimSpace(a.AdminPolicy) == "" {
		a.AdminPolicy = "principal.role == 'admin'"
	}
}

// SessionBackend selects the session store.
type SessionBackend string

const (
	SessionBackendMemory SessionBackend = "memory"
	SessionBackendRedis  SessionBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: memory, redis)", v)
	}
}

// SessionConfig controls the session lifecycle.
type SessionConfig struct {
	Backend SessionBackend `env:"BACKEND" envDefault:"memory"`

	// Timeout is the sliding idle timeout.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30m"`

	// MaxLifetime caps a session's age regardless of activity. Zero disables the cap.
	MaxLifetime time.Duration `env:"MAX_LIFETIME" envDefault:"12h"`

	// RefreshInterval is the minimum gap between expiry refresh writes.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1m"`

	// SweepInterval is how often expired sessions are reclaimed.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.Timeout < time.Minute {
		s.Timeout = time.Minute
	}
	if s.MaxLifetime < 0 {
		s.MaxLifetime = 0
	}
	if s.MaxLifetime > 0 && s.MaxLifetime < s.Timeout {
		s.MaxLifetime = s.Timeout
	}
	if s.RefreshInterval < 0 {
		s.RefreshInterval = 0
	}
	if s.RefreshInterval > s.Timeout/2 {
		s.RefreshInterval = s.Timeout / 2
	}
	if s.SweepInterval < time.Second {
		s.SweepInterval = time.Second
	}
}
