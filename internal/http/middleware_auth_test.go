package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/service"
)

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer abc":         "abc",
		"BEARER   abc  ":     "abc",
		"Basic dXNlcjpwdw==": "",
		"Bearer":             "",
		"abc":                "",
	}
	for header, want := range tests {
		assert.Equal(t, want, bearerToken(header), "header %q", header)
	}
}

func TestAuthStage_FailureCodes(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{})
		requireError(t, rec, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED")
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{token: "not-a-session"})
		requireError(t, rec, http.StatusUnauthorized, "INVALID_TOKEN")
	})

	t.Run("expired session", func(t *testing.T) {
		session := env.loginAs(t, pastorEmail)
		env.clock.Advance(31 * time.Minute)
		rec := env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{token: session.Token})
		requireError(t, rec, http.StatusUnauthorized, "SESSION_EXPIRED")
	})

	t.Run("revoked session", func(t *testing.T) {
		session := env.loginAs(t, pastorEmail)
		rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", requestOptions{token: session.Token, csrf: session.CSRFToken})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{token: session.Token})
		requireError(t, rec, http.StatusUnauthorized, "SESSION_REVOKED")
	})

	t.Run("inactive account", func(t *testing.T) {
		session := env.loginAs(t, member2Email)
		env.users.Deactivate("u-member2")
		rec := env.do(t, http.MethodGet, "/api/v1/auth/me", requestOptions{token: session.Token})
		requireError(t, rec, http.StatusUnauthorized, "ACCOUNT_INACTIVE")
	})
}

func TestAuthStage_RoleRequirement(t *testing.T) {
	authn := stubAuthenticator{auth: authFor(domainauth.RoleMember, "m-1")}
	chain := buildChain(t, authn, RouteConfig{
		Method:  http.MethodGet,
		Pattern: "/pastoral/notes",
		Auth:    RequireRole(domainauth.RolePastor),
		Handler: okHandler,
	})

	rec := serve(t, chain, http.MethodGet, "/api/v1/pastoral/notes", requestOptions{token: "t"})
	requireError(t, rec, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS")

	authn.auth = authFor(domainauth.RoleAdmin, "")
	chain = buildChain(t, authn, RouteConfig{
		Method:  http.MethodGet,
		Pattern: "/pastoral/notes",
		Auth:    RequireRole(domainauth.RolePastor),
		Handler: okHandler,
	})
	rec = serve(t, chain, http.MethodGet, "/api/v1/pastoral/notes", requestOptions{token: "t"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthStage_BackendFailureIsServerError(t *testing.T) {
	authn := stubAuthenticator{err: apperrors.Wrap(errors.New("dial tcp: connection refused"),
		apperrors.ErrCodeUnavailable, apperrors.CategoryInfrastructure, "load session")}
	chain := buildChain(t, authn, RouteConfig{Method: http.MethodGet, Pattern: "/me", Handler: okHandler})

	rec := serve(t, chain, http.MethodGet, "/api/v1/me", requestOptions{token: "t"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAuthStage_OptionalNeverRejects(t *testing.T) {
	tests := []struct {
		name     string
		authn    stubAuthenticator
		token    string
		wantUser string
	}{
		{name: "no token", authn: stubAuthenticator{}, wantUser: "anonymous"},
		{
			name:     "invalid token",
			authn:    stubAuthenticator{err: apperrors.Unauthenticated(apperrors.ErrCodeInvalidToken, "bad")},
			token:    "bad",
			wantUser: "anonymous",
		},
		{
			name:     "valid token",
			authn:    stubAuthenticator{auth: authFor(domainauth.RoleMember, "m-1")},
			token:    "good",
			wantUser: "u-member",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := buildChain(t, tt.authn, RouteConfig{
				Method:  http.MethodGet,
				Pattern: "/bulletin",
				Auth:    OptionalAuth(),
				Handler: func(rc *RequestContext) (any, error) {
					if p, ok := PrincipalFromContext(rc.Context()); ok {
						return p.ID, nil
					}
					return "anonymous", nil
				},
			})
			rec := serve(t, chain, http.MethodGet, "/api/v1/bulletin", requestOptions{token: tt.token})
			require.Equal(t, http.StatusOK, rec.Code)
			var got string
			decodeData(t, rec, &got)
			assert.Equal(t, tt.wantUser, got)
		})
	}
}

func TestPolicyPredicate(t *testing.T) {
	_, err := PolicyPredicate("")
	require.Error(t, err)
	_, err = PolicyPredicate("principal.role ==")
	require.Error(t, err)

	pred, err := PolicyPredicate("principal.role == 'admin' && principal.active")
	require.NoError(t, err)

	admin := authFor(domainauth.RoleAdmin, "")
	pastor := authFor(domainauth.RolePastor, "")
	inactive := authFor(domainauth.RoleAdmin, "")
	inactive.Principal.Active = false

	for name, tc := range map[string]struct {
		authn stubAuthenticator
		want  int
	}{
		"admin allowed":         {stubAuthenticator{auth: admin}, http.StatusOK},
		"pastor denied":         {stubAuthenticator{auth: pastor}, http.StatusForbidden},
		"inactive admin denied": {stubAuthenticator{auth: inactive}, http.StatusForbidden},
	} {
		t.Run(name, func(t *testing.T) {
			chain := buildChain(t, tc.authn, RouteConfig{
				Method:  http.MethodGet,
				Pattern: "/admin/report",
				Auth:    RequireCustom("admin-policy", pred),
				Handler: okHandler,
			})
			rec := serve(t, chain, http.MethodGet, "/api/v1/admin/report", requestOptions{token: "t"})
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestPolicyPredicate_SeesRequest(t *testing.T) {
	pred, err := PolicyPredicate("method == 'GET' && params.scope == 'own'")
	require.NoError(t, err)

	rc := newRequestContext(nil, httptest.NewRequest(http.MethodGet, "/x", nil), false)
	rc.Data["scope"] = "own"
	assert.True(t, pred(&authFor(domainauth.RoleMember, "").Principal, rc))

	rc.Data["scope"] = "all"
	assert.False(t, pred(&authFor(domainauth.RoleMember, "").Principal, rc))
	assert.False(t, pred(nil, rc))
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(false))
	assert.False(t, truthy(""))
	assert.False(t, truthy([]any{}))
	assert.False(t, truthy(map[string]any{}))
	assert.True(t, truthy(0.0))
	assert.True(t, truthy("x"))
	assert.True(t, truthy([]any{1}))
}

func TestAuthStage_PrincipalCarriedInContext(t *testing.T) {
	authn := stubAuthenticator{auth: authFor(domainauth.RolePastor, "")}
	var seen *domainauth.Principal
	chain := buildChain(t, authn, RouteConfig{
		Method:  http.MethodGet,
		Pattern: "/me",
		Handler: func(rc *RequestContext) (any, error) {
			seen, _ = PrincipalFromContext(rc.Context())
			return nil, nil
		},
	})

	serve(t, chain, http.MethodGet, "/api/v1/me", requestOptions{token: "t"})

	require.NotNil(t, seen)
	assert.Equal(t, domainauth.RolePastor, seen.Role)
}

func authFor(role domainauth.Role, memberID string) *service.Authentication {
	return &service.Authentication{
		Principal: domainauth.Principal{
			ID:       "u-" + string(role),
			Username: string(role),
			Email:    string(role) + "@example.org",
			Role:     role,
			MemberID: memberID,
			Active:   true,
		},
		Session: domainauth.Session{Token: "t", CSRFToken: "csrf-" + string(role)},
	}
}

func buildChain(t *testing.T, authn Authenticator, route RouteConfig) *Chain {
	t.Helper()
	chain, err := newTestComposer(t, authn).Build(route)
	require.NoError(t, err)
	return chain
}
