package devauth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/ports"
)

func TestNewDirectory_Lookup(t *testing.T) {
	dir, err := NewDirectory(Config{
		Entries: []string{
			"Pastor@Example.org|pastor|shepherd",
			"member@example.org|member|sheep|m-42",
		},
		Cost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("NewDirectory error: %v", err)
	}
	if dir.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", dir.Len())
	}

	u, err := dir.GetByEmail(context.Background(), " PASTOR@example.org ")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if u.Role != domainauth.RolePastor || u.Username != "pastor" || !u.Active {
		t.Fatalf("unexpected user: %+v", u.Principal)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("shepherd")) != nil {
		t.Fatal("password hash does not match")
	}

	byID, err := dir.GetByID(context.Background(), u.ID)
	if err != nil || byID.Email != "pastor@example.org" {
		t.Fatalf("GetByID = %+v, %v", byID.Principal, err)
	}

	m, _ := dir.GetByEmail(context.Background(), "member@example.org")
	if m.MemberID != "m-42" {
		t.Fatalf("MemberID = %q, want m-42", m.MemberID)
	}
}

func TestNewDirectory_StableIDs(t *testing.T) {
	cfg := Config{Entries: []string{"a@example.org|admin|pw"}, Cost: bcrypt.MinCost}
	d1, err := NewDirectory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := NewDirectory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	u1, _ := d1.GetByEmail(context.Background(), "a@example.org")
	u2, _ := d2.GetByEmail(context.Background(), "a@example.org")
	if u1.ID != u2.ID {
		t.Fatalf("IDs differ across builds: %s vs %s", u1.ID, u2.ID)
	}
}

func TestNewDirectory_NotFound(t *testing.T) {
	dir, err := NewDirectory(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dir.GetByEmail(context.Background(), "nobody@example.org"); !errors.Is(err, ports.ErrUserNotFound) {
		t.Fatalf("GetByEmail err = %v, want ErrUserNotFound", err)
	}
	if _, err := dir.GetByID(context.Background(), "nope"); !errors.Is(err, ports.ErrUserNotFound) {
		t.Fatalf("GetByID err = %v, want ErrUserNotFound", err)
	}
}

func TestNewDirectory_InvalidEntries(t *testing.T) {
	tests := map[string]string{
		"too few fields": "a@example.org|admin",
		"bad email":      "not-an-email|admin|pw",
		"unknown role":   "a@example.org|deacon|pw",
		"empty password": "a@example.org|admin|",
		"too many":       "a@example.org|admin|pw|m|extra",
	}
	for name, entry := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewDirectory(Config{Entries: []string{entry}, Cost: bcrypt.MinCost}); err == nil {
				t.Fatalf("expected error for %q", entry)
			}
		})
	}

	_, err := NewDirectory(Config{
		Entries: []string{"a@example.org|admin|pw", "A@example.org|member|pw"},
		Cost:    bcrypt.MinCost,
	})
	if err == nil {
		t.Fatal("expected duplicate email error")
	}
}
