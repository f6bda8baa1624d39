package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRole_HierarchyIsMonotonic(t *testing.T) {
	roles := []Role{RoleMember, RolePastor, RoleAdmin}

	for i, have := range roles {
		for j, need := range roles {
			p := &Principal{Role: have}
			assert.Equal(t, j <= i, p.HasPermission(need), "%s vs %s", have, need)
		}
	}
}

func TestRole_UnknownRoleSatisfiesNothing(t *testing.T) {
	r := Role("deacon")

	assert.Equal(t, 0, r.Level())
	assert.False(t, r.AtLeast(RoleMember))
	assert.False(t, r.Valid())
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"Admin", RoleAdmin, true},
		{" pastor ", RolePastor, true},
		{"MEMBER", RoleMember, true},
		{"guest", Role("guest"), false},
		{"", Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestPrincipal_OwnsMember(t *testing.T) {
	p := &Principal{MemberID: "m-1"}

	assert.True(t, p.OwnsMember("m-1"))
	assert.False(t, p.OwnsMember("m-2"))
	assert.False(t, (&Principal{}).OwnsMember(""))

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.OwnsMember("m-1"))
}

func TestSession_Usable(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now.Add(time.Minute)}

	assert.True(t, s.Usable(now))
	assert.False(t, s.Usable(now.Add(time.Minute)))

	s.Invalidated = true
	assert.False(t, s.Usable(now))
}
