package httpx

import (
	"strings"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/http/validation"
	"github.com/target/congregate-api/internal/service"
)

// RouteConfig declares one endpoint and the stages guarding it.
type RouteConfig struct {
	Method string
	// Pattern is the path below the API prefix, e.g. "/auth/me".
	Pattern string
	// Versions restricts the route to some API versions. Empty serves all.
	Versions []string

	// Schema enables the validation stage.
	Schema *validation.Schema
	// ValidateQuery validates the query string instead of the body.
	ValidateQuery bool

	RateLimit     *RateLimitRule
	Auth          AuthRequirement
	Authorization *AuthzRule
	SkipCSRF      bool

	// Stages run after the built-in stages, in order.
	Stages  []Stage
	Handler HandlerFunc
}

// Name identifies the route in logs and metrics.
func (rc RouteConfig) Name() string {
	return strings.TrimSpace(rc.Method + " " + rc.Pattern)
}

type authKind int

const (
	authRequired authKind = iota
	authNone
	authOptional
	authRole
	authCustom
)

// Predicate decides whether an authenticated principal may proceed.
type Predicate func(p *domainauth.Principal, rc *RequestContext) bool

// AuthRequirement states what a route needs from the caller's identity.
// The zero value requires authentication.
type AuthRequirement struct {
	kind      authKind
	role      domainauth.Role
	name      string
	predicate Predicate
}

// NoAuth marks a public route.
func NoAuth() AuthRequirement { return AuthRequirement{kind: authNone} }

// OptionalAuth resolves a principal when a valid token is present and never rejects.
func OptionalAuth() AuthRequirement { return AuthRequirement{kind: authOptional} }

// RequireAuth requires any authenticated principal.
func RequireAuth() AuthRequirement { return AuthRequirement{kind: authRequired} }

// RequireRole requires a principal whose role ranks at least role.
func RequireRole(role domainauth.Role) AuthRequirement {
	return AuthRequirement{kind: authRole, role: role}
}

// RequireCustom requires an authenticated principal accepted by pred.
func RequireCustom(name string, pred Predicate) AuthRequirement {
	return AuthRequirement{kind: authCustom, name: name, predicate: pred}
}

// String describes the requirement.
func (a AuthRequirement) String() string {
	switch a.kind {
	case authNone:
		return "none"
	case authOptional:
		return "optional"
	case authRole:
		return "role:" + string(a.role)
	case authCustom:
		return "custom:" + a.name
	default:
		return "required"
	}
}

// IsNone reports whether the route is public.
func (a AuthRequirement) IsNone() bool { return a.kind == authNone }

// IsOptional reports whether authentication is attempted but not enforced.
func (a AuthRequirement) IsOptional() bool { return a.kind == authOptional }

// AuthzRule grants access by role level or by ownership of a member record.
type AuthzRule struct {
	MinRole domainauth.Role
	// OwnerField names the path value, data field or value holding the member id.
	OwnerField string
}

// IdentifierFunc derives the rate-limit key for a request. An empty result
// skips limiting.
type IdentifierFunc func(rc *RequestContext) string

// RateLimitRule attaches a limiter to a route.
type RateLimitRule struct {
	Limiter    *service.RateLimiter
	Identifier IdentifierFunc
}

// ByIP keys on the client IP.
func ByIP(rc *RequestContext) string { return rc.ClientIP() }

// ByPrincipal keys on the authenticated principal. It is empty before the
// authentication stage runs, so the built-in rate-limit stage cannot use it;
// see PrincipalRateLimit.
func ByPrincipal(rc *RequestContext) string {
	if rc.Principal == nil {
		return ""
	}
	return "user:" + rc.Principal.ID
}

// Composite joins the non-empty keys of fns.
func Composite(fns ...IdentifierFunc) IdentifierFunc {
	return func(rc *RequestContext) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if id := fn(rc); id != "" {
				parts = append(parts, id)
			}
		}
		return strings.Join(parts, "|")
	}
}
