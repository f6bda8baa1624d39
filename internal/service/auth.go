package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/target/congregate-api/config"
	"github.com/target/congregate-api/internal/clock"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/ports"
)

// tokenBytes is the entropy of session and CSRF tokens.
const tokenBytes = 32

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Sessions ports.SessionStore   // Required
	Users    ports.UserDirectory  // Required
	Config   config.SessionConfig // Required: timeouts
	Clock    clock.Clock          // Optional: defaults to the system clock
	Logger   *slog.Logger         // Optional
}

// AuthService owns the session lifecycle: login creates a session, every
// authenticated request resolves and slides it, logout invalidates it, and a
// periodic sweep reclaims what is left.
type AuthService struct {
	sessions ports.SessionStore
	users    ports.UserDirectory
	cfg      config.SessionConfig
	clock    clock.Clock
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserDirectory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		sessions: opts.Sessions,
		users:    opts.Users,
		cfg:      opts.Config,
		clock:    clock.OrReal(opts.Clock),
		logger:   logger.With("component", "auth_service"),
	}, nil
}

// LoginInput carries credentials for Login.
type LoginInput struct {
	Email    string
	Password string
}

// Authentication is the outcome of a successful login or token resolution.
type Authentication struct {
	Principal domainauth.Principal
	Session   domainauth.Session
}

// Login verifies credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Authentication, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ports.ErrUserNotFound):
		// Burn a comparison so unknown accounts cost the same as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(in.Password))
		return nil, invalidCredentials()
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, apperrors.CategoryInfrastructure, "lookup user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, invalidCredentials()
	}
	if !user.Active {
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeAccountInactive, "Account is inactive")
	}

	sess, err := s.newSession(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "session created", "user_id", user.ID, "expires_at", sess.ExpiresAt)
	return &Authentication{Principal: user.Principal, Session: sess}, nil
}

// Authenticate resolves a bearer token into a principal and slides the
// session's expiry. Failures are AppErrors carrying the 401 code that
// describes them.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Authentication, error) {
	if token == "" {
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeAuthRequired, "Authentication required")
	}

	sess, err := s.sessions.Get(ctx, token)
	switch {
	case errors.Is(err, ports.ErrSessionNotFound):
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeInvalidToken, "Invalid session token")
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, apperrors.CategoryInfrastructure, "load session")
	}

	now := s.clock.Now()
	if sess.Invalidated {
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeSessionRevoked, "Session has been revoked")
	}
	if sess.Expired(now) {
		s.invalidate(ctx, token, "expired")
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeSessionExpired, "Session expired")
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	switch {
	case errors.Is(err, ports.ErrUserNotFound):
		s.invalidate(ctx, token, "user_missing")
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeInvalidToken, "Invalid session token")
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, apperrors.CategoryInfrastructure, "load user")
	}
	if !user.Active {
		s.invalidate(ctx, token, "inactive")
		return nil, apperrors.Unauthenticated(apperrors.ErrCodeAccountInactive, "Account is inactive")
	}

	if now.Sub(sess.LastSeenAt) >= s.cfg.RefreshInterval {
		sess, err = s.refresh(ctx, sess, now)
		if err != nil {
			return nil, err
		}
	}

	return &Authentication{Principal: user.Principal, Session: sess}, nil
}

func (s *AuthService) refresh(ctx context.Context, sess domainauth.Session, now time.Time) (domainauth.Session, error) {
	expires := s.expiry(sess.CreatedAt, now)
	err := s.sessions.Refresh(ctx, sess.Token, now, expires)
	switch {
	case errors.Is(err, ports.ErrSessionNotFound):
		// Invalidated between Get and Refresh.
		return sess, apperrors.Unauthenticated(apperrors.ErrCodeSessionRevoked, "Session has been revoked")
	case err != nil:
		s.logger.WarnContext(ctx, "session refresh failed", "error", err)
		return sess, nil
	}
	sess.LastSeenAt = now
	sess.ExpiresAt = expires
	return sess, nil
}

// Logout invalidates the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Invalidate(ctx, token); err != nil && !errors.Is(err, ports.ErrSessionNotFound) {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// SweepExpired removes expired and invalidated sessions.
func (s *AuthService) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return n, fmt.Errorf("sweep sessions: %w", err)
	}
	return n, nil
}

func (s *AuthService) invalidate(ctx context.Context, token, reason string) {
	if err := s.sessions.Invalidate(ctx, token); err != nil && !errors.Is(err, ports.ErrSessionNotFound) {
		s.logger.WarnContext(ctx, "session invalidation failed", "reason", reason, "error", err)
	}
}

func (s *AuthService) newSession(userID string) (domainauth.Session, error) {
	token, err := NewToken()
	if err != nil {
		return domainauth.Session{}, err
	}
	csrf, err := NewToken()
	if err != nil {
		return domainauth.Session{}, err
	}
	now := s.clock.Now()
	return domainauth.Session{
		Token:      token,
		UserID:     userID,
		CSRFToken:  csrf,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  s.expiry(now, now),
	}, nil
}

// expiry slides from lastSeen but never past the absolute lifetime.
func (s *AuthService) expiry(created, lastSeen time.Time) time.Time {
	exp := lastSeen.Add(s.cfg.Timeout)
	if s.cfg.MaxLifetime > 0 {
		if limit := created.Add(s.cfg.MaxLifetime); exp.After(limit) {
			return limit
		}
	}
	return exp
}

// NewToken returns a random URL-safe token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func invalidCredentials() error {
	return apperrors.Unauthenticated(apperrors.ErrCodeInvalidCredentials, "Invalid credentials")
}

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("congregate-timing-equalizer"), bcrypt.DefaultCost)
	return h
})
