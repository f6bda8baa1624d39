package httpx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/service"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("success", func(t *testing.T) {
		out := env.loginAs(t, pastorEmail)
		assert.NotEmpty(t, out.CSRFToken)
		assert.NotEqual(t, out.Token, out.CSRFToken)
		assert.Equal(t, testNow.Add(30*time.Minute), out.ExpiresAt.UTC())
		assert.Equal(t, "u-pastor", out.Principal.ID)
		assert.Equal(t, domainauth.RolePastor, out.Principal.Role)
	})

	t.Run("email is case insensitive", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{
			body: `{"email":"PASTOR@example.org","password":"` + testPassword + `"}`,
		})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "missing password", body: `{"email":"` + pastorEmail + `"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "malformed email", body: `{"email":"pastor","password":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "not json", body: `email=pastor`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_JSON"},
		{name: "unknown email", body: `{"email":"nobody@example.org","password":"x"}`, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_CREDENTIALS"},
		{name: "wrong password", body: `{"email":"` + pastorEmail + `","password":"x"}`, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_CREDENTIALS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := newTestEnv(t)
			rec := fresh.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{body: tt.body})
			requireError(t, rec, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestLogin_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestEnv(t)
	unknown := requireError(t, env.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{
		body: `{"email":"nobody@example.org","password":"x"}`,
	}), http.StatusUnauthorized, "INVALID_CREDENTIALS")
	wrong := requireError(t, env.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{
		body: `{"email":"` + pastorEmail + `","password":"x"}`,
	}), http.StatusUnauthorized, "INVALID_CREDENTIALS")

	assert.Equal(t, unknown.Error.Message, wrong.Error.Message)
}

func TestMeAndCSRF(t *testing.T) {
	env := newTestEnv(t)
	session := env.loginAs(t, memberEmail)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{
		token:   session.Token,
		headers: map[string]string{RequestIDHeader: "req-42"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var me domainauth.Principal
	decodeData(t, rec, &me)
	assert.Equal(t, "u-member", me.ID)
	assert.Equal(t, "m-100", me.MemberID)

	out := decodeEnvelope(t, rec)
	assert.Equal(t, "v1", out.Meta.Version)
	assert.Equal(t, "req-42", out.Meta.RequestID)

	rec = env.do(t, http.MethodGet, "/api/auth/csrf", requestOptions{token: session.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	var csrf map[string]string
	decodeData(t, rec, &csrf)
	assert.Equal(t, session.CSRFToken, csrf["csrf_token"])
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	session := env.loginAs(t, memberEmail)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", requestOptions{token: session.Token, csrf: session.CSRFToken})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", requestOptions{token: session.Token, csrf: session.CSRFToken})
	requireError(t, rec, http.StatusUnauthorized, "SESSION_REVOKED")
}

func TestSweepSessions(t *testing.T) {
	env := newTestEnv(t)
	stale := env.loginAs(t, pastorEmail)
	env.clock.Advance(31 * time.Minute)
	admin := env.loginAs(t, adminEmail)

	t.Run("not served on v1", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/admin/sessions/sweep", requestOptions{token: admin.Token, csrf: admin.CSRFToken})
		requireError(t, rec, http.StatusNotImplemented, "VERSION_NOT_IMPLEMENTED")
	})

	t.Run("pastor denied by policy", func(t *testing.T) {
		pastor := env.loginAs(t, pastorEmail)
		rec := env.do(t, http.MethodPost, "/api/v2/admin/sessions/sweep", requestOptions{token: pastor.Token, csrf: pastor.CSRFToken})
		requireError(t, rec, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS")
	})

	t.Run("admin sweeps on v2", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v2/admin/sessions/sweep", requestOptions{token: admin.Token, csrf: admin.CSRFToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out map[string]int
		decodeData(t, rec, &out)
		assert.Equal(t, 1, out["removed"])

		rec = env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{token: stale.Token})
		requireError(t, rec, http.StatusUnauthorized, "INVALID_TOKEN")
	})
}

func TestClearRateLimit(t *testing.T) {
	env := newTestEnv(t)
	bad := `{"email":"` + memberEmail + `","password":"nope"}`
	for range 5 {
		env.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{body: bad})
	}
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{body: bad})
	requireError(t, rec, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")

	// httptest requests originate from 192.0.2.1.
	const client = "192.0.2.1"

	t.Run("member cannot clear", func(t *testing.T) {
		member := loginViaService(t, env, memberEmail)
		rec := env.do(t, http.MethodDelete, "/api/v1/admin/rate-limits/"+client, requestOptions{token: member.Token, csrf: member.CSRFToken})
		requireError(t, rec, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS")
	})

	t.Run("admin clears", func(t *testing.T) {
		admin := loginViaService(t, env, adminEmail)
		rec := env.do(t, http.MethodDelete, "/api/v1/admin/rate-limits/"+client, requestOptions{token: admin.Token, csrf: admin.CSRFToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out map[string]string
		decodeData(t, rec, &out)
		assert.Equal(t, map[string]string{"scope": "login", "identifier": client}, out)

		rec = env.do(t, http.MethodPost, "/api/v1/auth/login", requestOptions{body: bad})
		requireError(t, rec, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	})
}

// loginViaService opens a session directly through the service so a full login
// window on the default test address does not block it.
func loginViaService(t *testing.T, env *testEnv, email string) loginResponse {
	t.Helper()
	res, err := env.auth.Login(t.Context(), service.LoginInput{Email: email, Password: testPassword})
	require.NoError(t, err)
	return loginResponse{Token: res.Session.Token, CSRFToken: res.Session.CSRFToken, Principal: res.Principal}
}
