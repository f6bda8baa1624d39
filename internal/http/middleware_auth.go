package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/service"
)

// Authenticator resolves bearer tokens. *service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Authentication, error)
}

var _ Authenticator = (*service.AuthService)(nil)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authStage(req AuthRequirement, authn Authenticator, logger *slog.Logger) Stage {
	return StageFunc("auth", func(rc *RequestContext) Result {
		token := bearerToken(rc.Header("Authorization"))

		if req.kind == authOptional {
			if token == "" {
				return Continue()
			}
			res, err := authn.Authenticate(rc.Context(), token)
			if err != nil {
				logger.DebugContext(rc.Context(), "optional authentication skipped",
					"code", apperrors.GetCode(err), "error", err)
				return Continue()
			}
			attach(rc, res)
			return Continue()
		}

		if token == "" {
			return Fail(apperrors.Unauthenticated(apperrors.ErrCodeAuthRequired, "Authentication required"))
		}
		res, err := authn.Authenticate(rc.Context(), token)
		if err != nil {
			return Fail(err)
		}
		attach(rc, res)

		switch req.kind {
		case authRole:
			if !rc.Principal.HasPermission(req.role) {
				return Fail(apperrors.InsufficientPermissions(
					fmt.Sprintf("This action requires the %s role", req.role)))
			}
		case authCustom:
			if req.predicate == nil || !req.predicate(rc.Principal, rc) {
				return Fail(apperrors.InsufficientPermissions("You do not have permission to perform this action"))
			}
		}
		return Continue()
	})
}

func attach(rc *RequestContext, res *service.Authentication) {
	principal := res.Principal
	session := res.Session
	rc.Principal = &principal
	rc.Session = &session
	rc.withContext(SetPrincipalInContext(rc.Context(), rc.Principal))
}

// PolicyPredicate compiles a JMESPath expression into a Predicate. The
// expression sees {principal, method, path, version, params} and allows the
// request when its result is truthy.
func PolicyPredicate(expr string) (Predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("policy expression is empty")
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile policy %q: %w", expr, err)
	}
	return func(p *domainauth.Principal, rc *RequestContext) bool {
		if p == nil {
			return false
		}
		out, err := jmespath.Search(expr, policyInput(p, rc))
		if err != nil {
			slog.Default().WarnContext(rc.Context(), "policy evaluation failed", "expr", expr, "error", err)
			return false
		}
		return truthy(out)
	}, nil
}

func policyInput(p *domainauth.Principal, rc *RequestContext) map[string]any {
	params := make(map[string]any, len(rc.Data))
	for k, v := range rc.Data {
		params[k] = v
	}
	return map[string]any{
		"principal": map[string]any{
			"id":        p.ID,
			"username":  p.Username,
			"email":     p.Email,
			"role":      string(p.Role),
			"member_id": p.MemberID,
			"active":    p.Active,
		},
		"method":  rc.Method(),
		"path":    rc.Path(),
		"version": rc.Version.Name,
		"params":  params,
	}
}

// truthy applies JMESPath truthiness: false, null, "" and empty collections are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
