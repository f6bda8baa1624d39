// Package devauth provides a config-driven user directory for local development.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
	"github.com/target/congregate-api/internal/ports"
)

// userNamespace derives stable account IDs from email addresses so sessions
// survive restarts of a dev server backed by Redis.
var userNamespace = uuid.MustParse("6f1c9a0e-3b0b-4c1e-9a55-0d6c1c7e2f10")

// Config controls how the directory is built.
type Config struct {
	// Entries are "email|role|password[|member_id]" declarations.
	Entries []string
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

// Directory implements ports.UserDirectory over a fixed set of accounts
// hashed once at startup.
type Directory struct {
	byID    map[string]domainauth.User
	byEmail map[string]domainauth.User
}

// NewDirectory parses and hashes the configured accounts.
func NewDirectory(cfg Config) (*Directory, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	d := &Directory{
		byID:    make(map[string]domainauth.User, len(cfg.Entries)),
		byEmail: make(map[string]domainauth.User, len(cfg.Entries)),
	}
	for i, entry := range cfg.Entries {
		user, err := parseEntry(entry, cost)
		if err != nil {
			return nil, fmt.Errorf("dev auth: entry %d: %w", i, err)
		}
		if _, dup := d.byEmail[user.Email]; dup {
			return nil, fmt.Errorf("dev auth: duplicate email %q", user.Email)
		}
		d.byID[user.ID] = user
		d.byEmail[user.Email] = user
	}
	return d, nil
}

func parseEntry(entry string, cost int) (domainauth.User, error) {
	parts := strings.Split(entry, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return domainauth.User{}, errors.New(`expected "email|role|password[|member_id]"`)
	}
	email := strings.ToLower(strings.TrimSpace(parts[0]))
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return domainauth.User{}, fmt.Errorf("invalid email %q", parts[0])
	}
	role, ok := domainauth.ParseRole(parts[1])
	if !ok {
		return domainauth.User{}, fmt.Errorf("unknown role %q", parts[1])
	}
	if parts[2] == "" {
		return domainauth.User{}, errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(parts[2]), cost)
	if err != nil {
		return domainauth.User{}, fmt.Errorf("hash password: %w", err)
	}
	var memberID string
	if len(parts) == 4 {
		memberID = strings.TrimSpace(parts[3])
	}
	return domainauth.User{
		Principal: domainauth.Principal{
			ID:       uuid.NewSHA1(userNamespace, []byte(email)).String(),
			Username: local,
			Email:    email,
			Role:     role,
			MemberID: memberID,
			Active:   true,
		},
		PasswordHash: string(hash),
	}, nil
}

func (d *Directory) GetByID(_ context.Context, id string) (domainauth.User, error) {
	if u, ok := d.byID[id]; ok {
		return u, nil
	}
	return domainauth.User{}, ports.ErrUserNotFound
}

func (d *Directory) GetByEmail(_ context.Context, email string) (domainauth.User, error) {
	if u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return u, nil
	}
	return domainauth.User{}, ports.ErrUserNotFound
}

// Len reports how many accounts are configured.
func (d *Directory) Len() int { return len(d.byID) }
