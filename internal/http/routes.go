package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/congregate-api/config"
	"github.com/target/congregate-api/internal/clock"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/observability/statsd"
	"github.com/target/congregate-api/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth AuthServiceInterface
	// LoginLimiter guards POST /auth/login by client IP.
	LoginLimiter *service.RateLimiter
	// APILimiter guards authenticated read endpoints, one quota per principal.
	APILimiter *service.RateLimiter

	API        config.APIConfig
	Validation config.ValidationConfig
	HTTP       config.HTTPConfig
	// AdminPolicy is the JMESPath expression guarding session administration.
	AdminPolicy string

	Normalizer *apperrors.Normalizer
	Logger     *slog.Logger
	Metrics    statsd.Sink
	Clock      clock.Clock
}

// NewRouter creates the HTTP router with every API route mounted.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	composer, err := NewComposer(ComposerOptions{
		Authenticator: services.Auth,
		API:           services.API,
		Validation:    services.Validation,
		HTTP:          services.HTTP,
		Normalizer:    services.Normalizer,
		Logger:        services.Logger,
		Metrics:       services.Metrics,
		Clock:         services.Clock,
	})
	if err != nil {
		return nil, err
	}

	adminPolicy, err := PolicyPredicate(services.AdminPolicy)
	if err != nil {
		return nil, fmt.Errorf("admin policy: %w", err)
	}

	h := &AuthHandlers{Svc: services.Auth, LoginLimiter: services.LoginLimiter, Logger: services.Logger}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler(services.LoginLimiter, services.APILimiter))

	if err := composer.Register(mux, apiRoutes(h, services, adminPolicy)...); err != nil {
		return nil, err
	}
	return mux, nil
}

func apiRoutes(h *AuthHandlers, services RouterServices, adminPolicy Predicate) []RouteConfig {
	var loginLimit *RateLimitRule
	if services.LoginLimiter != nil {
		loginLimit = &RateLimitRule{Limiter: services.LoginLimiter, Identifier: ByIP}
	}
	var apiLimit []Stage
	if services.APILimiter != nil {
		apiLimit = []Stage{PrincipalRateLimit(services.APILimiter)}
	}

	return []RouteConfig{
		{
			Method:    http.MethodPost,
			Pattern:   "/auth/login",
			Schema:    &loginSchema,
			RateLimit: loginLimit,
			Auth:      NoAuth(),
			Handler:   h.Login,
		},
		{
			Method:  http.MethodPost,
			Pattern: "/auth/logout",
			Auth:    RequireAuth(),
			Handler: h.Logout,
		},
		{
			Method:    http.MethodGet,
			Pattern: "/auth/me",
			Auth:    RequireAuth(),
			Stages:  apiLimit,
			Handler: h.Me,
		},
		{
			Method:  http.MethodGet,
			Pattern: "/auth/csrf",
			Auth:    RequireAuth(),
			Handler: h.CSRFToken,
		},
		{
			Method:   http.MethodPost,
			Pattern:  "/admin/sessions/sweep",
			Versions: []string{"v2"},
			Auth:     RequireCustom("admin-policy", adminPolicy),
			Handler:  h.SweepSessions,
		},
		{
			Method:  http.MethodDelete,
			Pattern: "/admin/rate-limits/{identifier}",
			Auth:    RequireRole(domainauth.RoleAdmin),
			Handler: h.ClearRateLimit,
		},
		{
			Method:        http.MethodGet,
			Pattern:       "/members/{memberID}/profile",
			Auth:          RequireAuth(),
			Authorization: &AuthzRule{MinRole: domainauth.RolePastor, OwnerField: "memberID"},
			Handler:       h.MemberProfile,
		},
	}
}
