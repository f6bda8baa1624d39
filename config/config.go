package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: user directory, sessions and the admin policy
//   - api.go: API versioning and request validation
//   - ratelimit.go: abuse control
//   - database.go: Postgres and Redis
//   - http.go: HTTP server configuration
//   - services.go: which background services run
type AppConfig struct {
	// IsDev controls development mode behavior (seeded static users, verbose logging).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is parsed with slog.Level.UnmarshalText (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth       AuthConfig       `envPrefix:"AUTH_"`
	Session    SessionConfig    `envPrefix:"SESSION_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	API        APIConfig        `envPrefix:"API_"`
	Validation ValidationConfig `envPrefix:"VALIDATION_"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of services to run.
	Services string `env:"SERVICES" envDefault:"http,session-sweeper"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Session.Sanitize()
	c.RateLimit.Sanitize()
	c.API.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode treats APP_ENV=development as a fallback for DEV.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// NeedsRedis reports whether any configured backend is Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Session.Backend == SessionBackendRedis || c.RateLimit.Backend == RateLimitBackendShared
}

// NeedsPostgres reports whether the user directory is database-backed.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Auth.UserDirectory == UserDirectoryPostgres
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[ServiceModeHTTP]
}

// IsSessionSweeperEnabled returns true if the session sweeper service is enabled.
func (c *AppConfig) IsSessionSweeperEnabled() bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[ServiceModeSessionSweeper]
}
