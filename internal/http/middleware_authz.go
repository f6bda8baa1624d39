package httpx

import (
	"fmt"
	"log/slog"

	apperrors "github.com/target/congregate-api/internal/errors"
)

// authzStage allows principals at or above rule.MinRole, or principals linked
// to the member record named by rule.OwnerField.
func authzStage(rule AuthzRule, logger *slog.Logger) Stage {
	return StageFunc("authz", func(rc *RequestContext) Result {
		p := rc.Principal
		if p == nil {
			logger.ErrorContext(rc.Context(), "authorization reached without a principal",
				"path", rc.Path(), "request_id", rc.RequestID)
			return Fail(apperrors.Internal("authorization requires an authenticated principal"))
		}
		if p.HasPermission(rule.MinRole) {
			return Continue()
		}
		if rule.OwnerField != "" {
			if owner := ownerID(rc, rule.OwnerField); owner != "" && p.OwnsMember(owner) {
				return Continue()
			}
		}
		return Fail(apperrors.InsufficientPermissions(
			fmt.Sprintf("This action requires the %s role or ownership of the record", rule.MinRole)))
	})
}

// ownerID looks up field in the path, then validated data, then free-form values.
func ownerID(rc *RequestContext, field string) string {
	if v := rc.Request.PathValue(field); v != "" {
		return v
	}
	for _, m := range []map[string]any{rc.Data, rc.Values} {
		if v, ok := m[field]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}
