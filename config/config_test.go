package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - session-sweeper",
			input:    "session-sweeper",
			expected: map[ServiceMode]bool{ServiceModeSessionSweeper: true},
		},
		{
			name:  "all services with spaces",
			input: " http , session-sweeper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeSessionSweeper: true,
			},
		},
		{
			name:     "duplicate services",
			input:    "http,http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ParseServices(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.UserDirectory != UserDirectoryStatic {
		t.Errorf("UserDirectory = %q, want static", cfg.Auth.UserDirectory)
	}
	if cfg.Session.Backend != SessionBackendMemory {
		t.Errorf("Session.Backend = %q, want memory", cfg.Session.Backend)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("Session.Timeout = %v, want 30m", cfg.Session.Timeout)
	}
	if cfg.RateLimit.MaxAttempts != 5 || cfg.RateLimit.Window() != 15*time.Minute {
		t.Errorf("login limit = %d/%v, want 5/15m", cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window())
	}
	if cfg.RateLimit.Backend != RateLimitBackendMemory {
		t.Errorf("RateLimit.Backend = %q, want memory", cfg.RateLimit.Backend)
	}
	if !reflect.DeepEqual(cfg.API.SupportedVersions, []string{"v1", "v2"}) {
		t.Errorf("SupportedVersions = %v", cfg.API.SupportedVersions)
	}
	if cfg.API.DefaultVersion != "v1" {
		t.Errorf("DefaultVersion = %q, want v1", cfg.API.DefaultVersion)
	}
	if cfg.NeedsRedis() || cfg.NeedsPostgres() {
		t.Error("default config should not need external stores")
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsSessionSweeperEnabled() {
		t.Error("default services should include http and session-sweeper")
	}
}

func TestAppConfig_ParseBackendsEnv(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("RATE_LIMIT_BACKEND", "shared")
	t.Setenv("AUTH_USER_DIRECTORY", "postgres")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}

	if cfg.Session.Backend != SessionBackendRedis {
		t.Errorf("Session.Backend = %q, want redis", cfg.Session.Backend)
	}
	if !cfg.NeedsRedis() {
		t.Error("NeedsRedis() = false, want true")
	}
	if !cfg.NeedsPostgres() {
		t.Error("NeedsPostgres() = false, want true")
	}
}

func TestAppConfig_InvalidBackend(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "memcached")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected error for invalid rate limit backend")
	}
}

func TestAppConfig_ParseAPIEnv(t *testing.T) {
	t.Setenv("API_SUPPORTED_VERSIONS", "1,V2,v3")
	t.Setenv("API_DEFAULT_VERSION", "2")
	t.Setenv("API_DEPRECATED_VERSIONS", "V1:2027-01-31")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	want := APIConfig{
		SupportedVersions:  []string{"v1", "v2", "v3"},
		DefaultVersion:     "v2",
		DeprecatedVersions: map[string]string{"v1": "2027-01-31"},
		VersionHeader:      "X-API-Version",
		MediaVendor:        "congregate",
	}
	if !reflect.DeepEqual(cfg.API, want) {
		t.Errorf("API = %+v, want %+v", cfg.API, want)
	}
}

func TestAPIConfig_SanitizeAddsDefault(t *testing.T) {
	api := APIConfig{SupportedVersions: []string{"v2"}, DefaultVersion: "v1"}
	api.Sanitize()
	if !reflect.DeepEqual(api.SupportedVersions, []string{"v1", "v2"}) {
		t.Errorf("SupportedVersions = %v, want [v1 v2]", api.SupportedVersions)
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := map[string]string{
		"":     "",
		"2":    "v2",
		"V2":   "v2",
		" v1 ": "v1",
		"beta": "beta",
	}
	for in, want := range tests {
		if got := NormalizeVersion(in); got != want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	s := SessionConfig{
		Timeout:         10 * time.Second,
		MaxLifetime:     30 * time.Second,
		RefreshInterval: time.Hour,
	}
	s.Sanitize()

	if s.Timeout != time.Minute {
		t.Errorf("Timeout = %v, want 1m", s.Timeout)
	}
	if s.MaxLifetime != time.Minute {
		t.Errorf("MaxLifetime = %v, want 1m", s.MaxLifetime)
	}
	if s.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", s.RefreshInterval)
	}
	if s.SweepInterval != time.Second {
		t.Errorf("SweepInterval = %v, want 1s", s.SweepInterval)
	}
}

func TestRateLimitConfig_Sanitize(t *testing.T) {
	r := RateLimitConfig{BackendTimeout: time.Minute}
	r.Sanitize()

	if r.MaxAttempts != 1 || r.WindowSeconds != 1 {
		t.Errorf("login limit = %d/%d, want 1/1", r.MaxAttempts, r.WindowSeconds)
	}
	if r.MaxIdentifiers != 100 {
		t.Errorf("MaxIdentifiers = %d, want 100", r.MaxIdentifiers)
	}
	if r.BackendTimeout != 250*time.Millisecond {
		t.Errorf("BackendTimeout = %v, want 250ms", r.BackendTimeout)
	}
}

func TestAuthConfig_StaticUsers(t *testing.T) {
	t.Setenv("AUTH_STATIC_USERS", "a@x.org|admin|pw; ;b@x.org|member|pw|m-1")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	want := []string{"a@x.org|admin|pw", "b@x.org|member|pw|m-1"}
	if !reflect.DeepEqual(cfg.Auth.StaticUsers, want) {
		t.Errorf("StaticUsers = %v, want %v", cfg.Auth.StaticUsers, want)
	}
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Error("IsDev = false, want true when APP_ENV=development")
	}
}
