package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/congregate-api/internal/clock"
	"github.com/target/congregate-api/internal/data/pgxutil"
	domainauth "github.com/target/congregate-api/internal/domain/auth"
	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/ports"
)

const userColumns = `id, username, email, password_hash, role, member_id, active`

// userRow mirrors the users table for pgx.RowToStructByName.
type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Role         string         `db:"role"`
	MemberID     sql.NullString `db:"member_id"`
	Active       bool           `db:"active"`
}

func (r userRow) toDomain() domainauth.User {
	return domainauth.User{
		Principal: domainauth.Principal{
			ID:       r.ID,
			Username: r.Username,
			Email:    r.Email,
			Role:     domainauth.Role(r.Role),
			MemberID: r.MemberID.String,
			Active:   r.Active,
		},
		PasswordHash: r.PasswordHash,
	}
}

// UserRepo provides database operations for accounts.
type UserRepo struct {
	DB    *sql.DB
	clock clock.Clock
}

// NewUserRepo creates a new UserRepo instance with the given database connection.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, clock: clock.Real{}}
}

// NewUserRepoWithClock creates a UserRepo with a custom clock (useful for testing).
func NewUserRepoWithClock(db *sql.DB, c clock.Clock) *UserRepo {
	return &UserRepo{DB: db, clock: clock.OrReal(c)}
}

// CreateUserRequest describes a new account. PasswordHash must already be a bcrypt hash.
type CreateUserRequest struct {
	Username     string
	Email        string
	PasswordHash string
	Role         domainauth.Role
	MemberID     string
}

// Create inserts a new account and returns it.
func (r *UserRepo) Create(ctx context.Context, req CreateUserRequest) (domainauth.User, error) {
	if !req.Role.Valid() {
		return domainauth.User{}, apperrors.ValidationField("role", fmt.Sprintf("role %q is not recognized", req.Role))
	}
	if req.PasswordHash == "" {
		return domainauth.User{}, apperrors.ValidationField("password", "password is required")
	}

	now := r.clock.Now()
	row, err := pgxutil.QueryOne[userRow](ctx, r.DB, `
		INSERT INTO users (id, username, email, password_hash, role, member_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), TRUE, $7, $7)
		RETURNING `+userColumns,
		uuid.NewString(),
		strings.TrimSpace(req.Username),
		strings.ToLower(strings.TrimSpace(req.Email)),
		req.PasswordHash,
		string(req.Role),
		strings.TrimSpace(req.MemberID),
		now,
	)
	if err != nil {
		return domainauth.User{}, fmt.Errorf("create user: %w", apperrors.MapDBError(err))
	}
	return row.toDomain(), nil
}

// GetByID implements ports.UserDirectory.
func (r *UserRepo) GetByID(ctx context.Context, id string) (domainauth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domainauth.User{}, ports.ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail implements ports.UserDirectory. Emails are matched case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domainauth.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
}

// SetActive enables or disables an account.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET active = $2, updated_at = $3 WHERE id = $1`, id, active, r.clock.Now())
	if err != nil {
		return fmt.Errorf("update user: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ports.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (domainauth.User, error) {
	row, err := pgxutil.QueryOne[userRow](ctx, r.DB, q, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.User{}, ports.ErrUserNotFound
		}
		return domainauth.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}
