package errors

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// reKeyField extracts the column list from "Key (email)=(a@b.co) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reReferencedFrom detects parent deletion: "... is still referenced from table ...".
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// reNotPresent detects a missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// tableLabels maps table names to the nouns shown to users.
var tableLabels = map[string]string{
	"users":      "User",
	"members":    "Member",
	"events":     "Event",
	"donations":  "Donation",
	"tithes":     "Tithe",
	"volunteers": "Volunteer",
}

// MapDBError translates database and context errors into AppErrors so the
// normalizer can classify them:
//   - context deadline/cancel → Timeout/Canceled (503)
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{
			Code:     ErrCodeTimeout,
			Category: CategoryInfrastructure,
			Status:   http.StatusServiceUnavailable,
			Message:  "Request timed out. Please try again.",
			Cause:    err,
		}
	case errors.Is(err, context.Canceled):
		return &AppError{
			Code:     ErrCodeCanceled,
			Category: CategoryInfrastructure,
			Status:   http.StatusServiceUnavailable,
			Message:  "Request was canceled.",
			Cause:    err,
		}
	case errors.Is(err, pgx.ErrNoRows):
		return NotFound("Resource not found").WithCause(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		e := Conflict("This value already exists. Please choose a different one.").WithCause(pgErr)
		e.Field = uniqueViolationField(pgErr)
		return e
	case pgerrcode.ForeignKeyViolation:
		return ForeignKey(foreignKeyMessage(pgErr)).WithCause(pgErr)
	case pgerrcode.CheckViolation:
		if pgErr.ColumnName != "" {
			return ValidationField(pgErr.ColumnName, "This field has an invalid value.").WithCause(pgErr)
		}
		return Validation("Invalid data. Please check your input.").WithCause(pgErr)
	case pgerrcode.NotNullViolation:
		if pgErr.ColumnName != "" {
			return ValidationField(pgErr.ColumnName, "This field is required.").WithCause(pgErr)
		}
		return Validation("Required field is missing. Please check your input.").WithCause(pgErr)
	default:
		return Internal("A database error occurred. Please try again.").WithCause(pgErr)
	}
}

// uniqueViolationField prefers column metadata, then the Detail text, then
// the "<table>_<column>_key" constraint naming convention.
func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	parts := strings.Split(pgErr.ConstraintName, "_")
	if len(parts) == 3 && !isSQLFunction(parts[1]) {
		return parts[1]
	}
	return ""
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot delete because this item is in use by " + tableLabel(m[1]) + "."
	}
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot complete operation because the referenced " + tableLabel(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "Cannot complete operation because this item is in use by " + tableLabel(pgErr.TableName) + "."
	}
	return "Cannot complete operation because this item is in use."
}

func tableLabel(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if label, ok := tableLabels[table]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(table, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// isSQLFunction catches expression-index names such as users_lower_key.
func isSQLFunction(s string) bool {
	switch strings.ToLower(s) {
	case "lower", "upper", "trim", "ltrim", "rtrim", "md5", "coalesce":
		return true
	}
	return false
}
