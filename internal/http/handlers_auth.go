package httpx

import (
	"context"
	"log/slog"
	"time"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/http/validation"
	"github.com/target/congregate-api/internal/service"
)

// AuthServiceInterface defines the auth service operations the handlers use.
type AuthServiceInterface interface {
	Authenticator
	Login(ctx context.Context, in service.LoginInput) (*service.Authentication, error)
	Logout(ctx context.Context, token string) error
	SweepExpired(ctx context.Context) (int, error)
}

var _ AuthServiceInterface = (*service.AuthService)(nil)

// AuthHandlers provides terminal handlers for the identity lifecycle.
type AuthHandlers struct {
	Svc AuthServiceInterface
	// LoginLimiter is cleared for the caller after a successful login and by
	// the admin clear endpoint.
	LoginLimiter *service.RateLimiter
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// loginSchema validates POST /auth/login.
var loginSchema = validation.Schema{
	Fields: map[string]validation.Rule{
		"email": {
			Required: true,
			Type:     validation.TypeString,
			Length:   validation.MaxLen(254),
			Pattern:  validation.PatternEmail,
		},
		"password": {
			Required: true,
			Type:     validation.TypeString,
			Length:   validation.Len(1, 1024),
		},
	},
}

type loginResponse struct {
	Token     string               `json:"token"`
	CSRFToken string               `json:"csrf_token"`
	ExpiresAt time.Time            `json:"expires_at"`
	Principal domainauth.Principal `json:"principal"`
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(rc *RequestContext) (any, error) {
	email, _ := rc.Data["email"].(string)
	password, _ := rc.Data["password"].(string)

	res, err := h.Svc.Login(rc.Context(), service.LoginInput{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if h.LoginLimiter != nil {
		if err := h.LoginLimiter.Clear(rc.Context(), ByIP(rc)); err != nil {
			h.logger().WarnContext(rc.Context(), "failed to clear login attempts", "error", err)
		}
	}

	return loginResponse{
		Token:     res.Session.Token,
		CSRFToken: res.Session.CSRFToken,
		ExpiresAt: res.Session.ExpiresAt,
		Principal: res.Principal,
	}, nil
}

// Logout handles POST /auth/logout.
func (h *AuthHandlers) Logout(rc *RequestContext) (any, error) {
	if err := h.Svc.Logout(rc.Context(), rc.Session.Token); err != nil {
		return nil, err
	}
	return NoContent(), nil
}

// Me handles GET /auth/me.
func (h *AuthHandlers) Me(rc *RequestContext) (any, error) {
	return rc.Principal, nil
}

// CSRFToken handles GET /auth/csrf.
func (h *AuthHandlers) CSRFToken(rc *RequestContext) (any, error) {
	return map[string]string{"csrf_token": rc.Session.CSRFToken}, nil
}

// SweepSessions handles POST /admin/sessions/sweep.
func (h *AuthHandlers) SweepSessions(rc *RequestContext) (any, error) {
	n, err := h.Svc.SweepExpired(rc.Context())
	if err != nil {
		return nil, err
	}
	h.logger().InfoContext(rc.Context(), "sessions swept on demand", "removed", n, "by", rc.Principal.ID)
	return map[string]int{"removed": n}, nil
}

// ClearRateLimit handles DELETE /admin/rate-limits/{identifier}.
func (h *AuthHandlers) ClearRateLimit(rc *RequestContext) (any, error) {
	id := rc.Request.PathValue("identifier")
	if id == "" {
		return nil, apperrors.ValidationField("identifier", "identifier is required")
	}
	if h.LoginLimiter == nil {
		return nil, apperrors.Unavailable("login rate limiter is not configured")
	}
	if err := h.LoginLimiter.Clear(rc.Context(), id); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, apperrors.CategoryInfrastructure, "clear rate limit")
	}
	h.logger().InfoContext(rc.Context(), "rate limit cleared",
		"scope", h.LoginLimiter.Scope(), "identifier", id, "by", rc.Principal.ID)
	return map[string]string{"scope": h.LoginLimiter.Scope(), "identifier": id}, nil
}

type memberProfileResponse struct {
	MemberID    string `json:"member_id"`
	PrincipalID string `json:"principal_id"`
	Access      string `json:"access"`
}

// MemberProfile handles GET /members/{memberID}/profile. Access is granted by
// the authorization stage; the handler reports which rule applied.
func (h *AuthHandlers) MemberProfile(rc *RequestContext) (any, error) {
	memberID := rc.Request.PathValue("memberID")
	access := "role"
	if rc.Principal.OwnsMember(memberID) {
		access = "owner"
	}
	return memberProfileResponse{
		MemberID:    memberID,
		PrincipalID: rc.Principal.ID,
		Access:      access,
	}, nil
}
