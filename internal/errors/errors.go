package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable, client-visible identifier of an error.
type ErrorCode string

const (
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON            ErrorCode = "INVALID_JSON"
	ErrCodeUnsupportedVersion     ErrorCode = "UNSUPPORTED_VERSION"
	ErrCodeVersionNotImplemented  ErrorCode = "VERSION_NOT_IMPLEMENTED"
	ErrCodeAuthRequired           ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	ErrCodeSessionExpired         ErrorCode = "SESSION_EXPIRED"
	ErrCodeSessionRevoked         ErrorCode = "SESSION_REVOKED"
	ErrCodeAccountInactive        ErrorCode = "ACCOUNT_INACTIVE"
	ErrCodeInvalidCredentials     ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInsufficientPermission ErrorCode = "INSUFFICIENT_PERMISSIONS"
	ErrCodeCSRFMissing            ErrorCode = "CSRF_TOKEN_MISSING"
	ErrCodeCSRFInvalid            ErrorCode = "CSRF_TOKEN_INVALID"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeConflict               ErrorCode = "CONFLICT"
	ErrCodeForeignKey             ErrorCode = "REFERENCE_CONFLICT"
	ErrCodeBusinessRule           ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeRateLimited            ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnavailable            ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout                ErrorCode = "TIMEOUT"
	ErrCodeCanceled               ErrorCode = "REQUEST_CANCELED"
	ErrCodeExternal               ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Category groups error codes into the taxonomy used for status mapping and logging.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryResource       Category = "resource"
	CategoryBusinessLogic  Category = "business_logic"
	CategoryInfrastructure Category = "infrastructure"
	CategoryExternal       Category = "external"
)

// DefaultStatus returns the HTTP status implied by the category.
func (c Category) DefaultStatus() int {
	switch c {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryResource:
		return http.StatusNotFound
	case CategoryBusinessLogic:
		return http.StatusUnprocessableEntity
	case CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CategoryForStatus infers a category from an HTTP status.
func CategoryForStatus(status int) Category {
	switch {
	case status >= http.StatusInternalServerError:
		return CategoryInfrastructure
	case status == http.StatusBadRequest:
		return CategoryValidation
	case status == http.StatusUnauthorized:
		return CategoryAuthentication
	case status == http.StatusForbidden:
		return CategoryAuthorization
	case status == http.StatusNotFound, status == http.StatusConflict:
		return CategoryResource
	default:
		return CategoryBusinessLogic
	}
}

// AppError represents a structured application error with a code, category and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code identifies the error for clients.
	Code ErrorCode
	// Category drives the default status when Status is zero.
	Category Category
	// Status overrides the category's default HTTP status.
	Status int
	// Message is a human-readable error message, safe for clients when Status < 500.
	Message string
	// Details carries structured context (field errors, supported versions, ...).
	Details any
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the explicit status or the category default.
func (e *AppError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if e.Category != "" {
		return e.Category.DefaultStatus()
	}
	return http.StatusUnprocessableEntity
}

// WithDetails attaches structured details and returns e.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause records the underlying error and returns e.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newError(code ErrorCode, category Category, status int, message string) *AppError {
	return &AppError{Code: code, Category: category, Status: status, Message: message}
}

// New creates an error with an explicit code and category.
func New(code ErrorCode, category Category, message string) *AppError {
	return newError(code, category, 0, message)
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return newError(ErrCodeValidation, CategoryValidation, 0, message)
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	e := Validation(message)
	e.Field = field
	return e
}

// BadRequest creates a validation-category error with a specific code.
func BadRequest(code ErrorCode, message string) *AppError {
	return newError(code, CategoryValidation, 0, message)
}

// Unauthenticated creates a 401 error with the given code.
func Unauthenticated(code ErrorCode, message string) *AppError {
	return newError(code, CategoryAuthentication, 0, message)
}

// Forbidden creates a 403 error with the given code.
func Forbidden(code ErrorCode, message string) *AppError {
	return newError(code, CategoryAuthorization, 0, message)
}

// InsufficientPermissions creates the standard 403 role/ownership failure.
func InsufficientPermissions(message string) *AppError {
	return Forbidden(ErrCodeInsufficientPermission, message)
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return newError(ErrCodeNotFound, CategoryResource, 0, message)
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return NotFound(fmt.Sprintf(format, args...))
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return newError(ErrCodeConflict, CategoryResource, http.StatusConflict, message)
}

// Conflictf creates a new Conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return Conflict(fmt.Sprintf(format, args...))
}

// ForeignKey creates a new ForeignKey error.
func ForeignKey(message string) *AppError {
	return newError(ErrCodeForeignKey, CategoryResource, http.StatusConflict, message)
}

// BusinessRule creates a 422 error.
func BusinessRule(message string) *AppError {
	return newError(ErrCodeBusinessRule, CategoryBusinessLogic, 0, message)
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return newError(ErrCodeRateLimited, CategoryBusinessLogic, http.StatusTooManyRequests, message)
}

// NotImplemented creates a 501 error for a version a route does not serve.
func NotImplemented(message string) *AppError {
	return newError(ErrCodeVersionNotImplemented, CategoryInfrastructure, http.StatusNotImplemented, message)
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return newError(ErrCodeInternal, CategoryInfrastructure, 0, message)
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return Internal(fmt.Sprintf(format, args...))
}

// Unavailable creates a 503 error for an unreachable dependency.
func Unavailable(message string) *AppError {
	return newError(ErrCodeUnavailable, CategoryInfrastructure, http.StatusServiceUnavailable, message)
}

// Wrap wraps an existing error with an AppError of the given code and category, preserving the cause.
func Wrap(err error, code ErrorCode, category Category, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:     code,
		Category: category,
		Message:  message,
		Cause:    err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, category Category, format string, args ...any) *AppError {
	return Wrap(err, code, category, fmt.Sprintf(format, args...))
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError checks if an error is an AppError with a specific code.
func IsAppError(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return IsAppError(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return IsAppError(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return IsAppError(err, ErrCodeValidation)
}

// IsForeignKey checks if an error is a ForeignKey error.
func IsForeignKey(err error) bool {
	return IsAppError(err, ErrCodeForeignKey)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return IsAppError(err, ErrCodeInternal)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return IsAppError(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return IsAppError(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Field
	}
	return ""
}
