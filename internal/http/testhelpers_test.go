package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/congregate-api/config"
	"github.com/target/congregate-api/internal/adapters/memory"
	"github.com/target/congregate-api/internal/clock"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	authmocks "github.com/target/congregate-api/internal/mocks/auth"
	"github.com/target/congregate-api/internal/observability/statsd"
	"github.com/target/congregate-api/internal/service"
)

const (
	adminEmail   = "admin@example.org"
	pastorEmail  = "pastor@example.org"
	memberEmail  = "member@example.org"
	member2Email = "member2@example.org"
	testPassword = "correct horse battery"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		SupportedVersions: []string{"v1", "v2"},
		DefaultVersion:    "v1",
		VersionHeader:     "X-API-Version",
		MediaVendor:       "congregate",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Timeout:         30 * time.Minute,
		MaxLifetime:     12 * time.Hour,
		RefreshInterval: time.Minute,
		SweepInterval:   5 * time.Minute,
	}
}

type testEnv struct {
	clock    *clock.Fixed
	sessions *memory.SessionStore
	users    *authmocks.StaticDirectory
	auth     *service.AuthService
	login    *service.RateLimiter
	api      *service.RateLimiter
	metrics  *statsd.Recorder
	handler  http.Handler
}

func testUsers() []domainauth.User {
	member := authmocks.NewUser("u-member", memberEmail, domainauth.RoleMember, testPassword)
	member.MemberID = "m-100"
	member2 := authmocks.NewUser("u-member2", member2Email, domainauth.RoleMember, testPassword)
	member2.MemberID = "m-200"
	return []domainauth.User{
		authmocks.NewUser("u-admin", adminEmail, domainauth.RoleAdmin, testPassword),
		authmocks.NewUser("u-pastor", pastorEmail, domainauth.RolePastor, testPassword),
		member,
		member2,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    clock.NewFixed(testNow),
		sessions: memory.NewSessionStore(),
		users:    authmocks.NewStaticDirectory(testUsers()...),
		metrics:  &statsd.Recorder{},
	}

	var err error
	env.auth, err = service.NewAuthService(service.AuthServiceOptions{
		Sessions: env.sessions,
		Users:    env.users,
		Config:   testSessionConfig(),
		Clock:    env.clock,
	})
	require.NoError(t, err)

	env.login = newTestRateLimiter(t, "login", 5, 15*time.Minute, env.clock, env.metrics)
	env.api = newTestRateLimiter(t, "api", 300, time.Minute, env.clock, env.metrics)

	env.handler, err = NewRouter(RouterServices{
		Auth:         env.auth,
		LoginLimiter: env.login,
		APILimiter:   env.api,
		API:          testAPIConfig(),
		HTTP:         config.HTTPConfig{MaxBodyBytes: 4096},
		AdminPolicy:  "principal.role == 'admin' && principal.active",
		Metrics:      env.metrics,
		Clock:        env.clock,
	})
	require.NoError(t, err)
	return env
}

func newTestRateLimiter(t *testing.T, scope string, maxAttempts int, window time.Duration, clk clock.Clock, sink statsd.Sink) *service.RateLimiter {
	t.Helper()
	l, err := service.NewRateLimiter(service.RateLimiterOptions{
		Scope:       scope,
		Store:       memory.NewRateLimitStore(memory.RateLimitStoreOptions{Clock: clk}),
		MaxAttempts: maxAttempts,
		Window:      window,
		Clock:       clk,
		Metrics:     sink,
	})
	require.NoError(t, err)
	return l
}

type requestOptions struct {
	body    string
	token   string
	csrf    string
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, method, target string, opts requestOptions) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, e.handler, method, target, opts)
}

func serve(t *testing.T, h http.Handler, method, target string, opts requestOptions) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if opts.body != "" {
		body = strings.NewReader(opts.body)
	}
	req := httptest.NewRequest(method, target, body)
	if opts.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	if opts.csrf != "" {
		req.Header.Set(CSRFHeaderName, opts.csrf)
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// loginAs opens a session through the login endpoint.
func (e *testEnv) loginAs(t *testing.T, email string) loginResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{
		body: `{"email":"` + email + `","password":"` + testPassword + `"}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out loginResponse
	decodeData(t, rec, &out)
	require.NotEmpty(t, out.Token)
	return out
}

type testErrorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *testErrorBody  `json:"error"`
	Meta    Meta            `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// requireError asserts an error envelope with status and code.
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) testEnvelope {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code, rec.Body.String())
	return env
}
