package auth

// Package auth contains domain-level types for identities, roles and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents a user's position in the congregation's permission hierarchy.
// Keep string form for easy persistence.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePastor Role = "pastor"
	RoleMember Role = "member"
)

// Level returns the numeric rank of the role. Unknown roles rank 0 and
// therefore satisfy no requirement.
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RolePastor:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(minRole Role) bool {
	level := r.Level()
	return level > 0 && level >= minRole.Level()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Level() > 0 }

// ParseRole converts a case-insensitive role name. ok is false for unknown names.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Principal is the caller identity attached to a request after authentication.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	// MemberID links the account to a membership record. It may be empty.
	MemberID string `json:"member_id,omitempty"`
	Active   bool   `json:"active"`
}

// HasPermission reports whether the principal's role satisfies level.
func (p *Principal) HasPermission(level Role) bool {
	return p != nil && p.Role.AtLeast(level)
}

// OwnsMember reports whether the principal is linked to memberID.
func (p *Principal) OwnsMember(memberID string) bool {
	return p != nil && p.MemberID != "" && p.MemberID == memberID
}

// User is the stored account behind a Principal.
type User struct {
	Principal
	PasswordHash string `json:"-"`
}

// Session is the server-side record persisted for an authenticated user.
// Token is an opaque random URL-safe string.
type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	CSRFToken   string    `json:"csrf_token"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Invalidated bool      `json:"invalidated,omitempty"`
}

// Expired reports whether the session has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Usable reports whether the session may still authenticate requests at now.
func (s Session) Usable(now time.Time) bool {
	return !s.Invalidated && !s.Expired(now)
}
