package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/target/congregate-api/internal/clock"
	obserrors "github.com/target/congregate-api/internal/observability/errors"
	"github.com/target/congregate-api/internal/observability/statsd"
)

// NormalizedError is the canonical form every error takes before it reaches a client.
type NormalizedError struct {
	Code     ErrorCode
	Category Category
	Status   int
	// Message is the raw internal text. It is logged, never rendered for 5xx.
	Message string
	// SuggestedMessage is the client-safe text.
	SuggestedMessage string
	Details          any
	Timestamp        time.Time
}

// ClientMessage returns the text a caller may see.
func (n NormalizedError) ClientMessage() string {
	return n.SuggestedMessage
}

// patternRule maps message substrings to a classification.
type patternRule struct {
	substrings []string
	status     int
	code       ErrorCode
	category   Category
}

// patternTable is evaluated top to bottom; the first matching row wins.
// Credential and session rows sit above "not found" so that messages such as
// "invalid credentials: user not found" stay authentication failures.
var patternTable = []patternRule{
	{[]string{"invalid credentials"}, http.StatusUnauthorized, ErrCodeInvalidCredentials, CategoryAuthentication},
	{[]string{"session expired", "token expired"}, http.StatusUnauthorized, ErrCodeSessionExpired, CategoryAuthentication},
	{[]string{"unauthorized", "authentication required"}, http.StatusUnauthorized, ErrCodeAuthRequired, CategoryAuthentication},
	{[]string{"insufficient permissions", "forbidden", "access denied"}, http.StatusForbidden, ErrCodeInsufficientPermission, CategoryAuthorization},
	{[]string{"constraint violation", "duplicate key", "already exists", "unique constraint"}, http.StatusConflict, ErrCodeConflict, CategoryResource},
	{[]string{"foreign key"}, http.StatusConflict, ErrCodeForeignKey, CategoryResource},
	{[]string{"not found", "does not exist", "no rows"}, http.StatusNotFound, ErrCodeNotFound, CategoryResource},
	{[]string{"too many requests", "rate limit"}, http.StatusTooManyRequests, ErrCodeRateLimited, CategoryBusinessLogic},
	{[]string{"connection refused", "timeout", "timed out"}, http.StatusServiceUnavailable, ErrCodeUnavailable, CategoryInfrastructure},
	{[]string{"invalid input", "validation failed"}, http.StatusBadRequest, ErrCodeValidation, CategoryValidation},
}

func (r patternRule) matches(msg string) bool {
	for _, s := range r.substrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// suggestedMessages holds the generic client text per category.
var suggestedMessages = map[Category]string{
	CategoryValidation:     "The request contains invalid data.",
	CategoryAuthentication: "Please sign in to continue.",
	CategoryAuthorization:  "You do not have permission to perform this action.",
	CategoryResource:       "The requested resource could not be found.",
	CategoryBusinessLogic:  "The request could not be completed.",
	CategoryInfrastructure: "An unexpected error occurred. Please try again later.",
	CategoryExternal:       "A dependent service is unavailable. Please try again later.",
}

func suggestedMessage(c Category) string {
	if msg, ok := suggestedMessages[c]; ok {
		return msg
	}
	return suggestedMessages[CategoryInfrastructure]
}

// fieldErrorer is implemented by aggregated validation errors.
type fieldErrorer interface {
	HasFieldErrors() bool
}

// statusCoder is implemented by errors that carry an HTTP status hint.
type statusCoder interface {
	StatusCode() int
}

// Resolve classifies err without side effects.
func Resolve(err error) NormalizedError {
	if err == nil {
		err = errors.New("unknown error")
	}
	err = MapDBError(err)

	appErr, isApp := As(err)
	if isApp && (appErr.Code != "" || appErr.Status != 0) {
		return fromAppError(appErr, err)
	}

	raw := err.Error()
	lower := strings.ToLower(raw)
	for _, rule := range patternTable {
		if rule.matches(lower) {
			// Plain error text stays in the log; only an AppError message is
			// written to the client.
			var clientText string
			if appErr != nil {
				clientText = appErr.Message
			}
			return finish(NormalizedError{
				Code:     rule.code,
				Category: rule.category,
				Status:   rule.status,
				Message:  raw,
			}, clientText, detailsOf(appErr))
		}
	}

	return fromHints(err, appErr)
}

func fromAppError(appErr *AppError, err error) NormalizedError {
	status := appErr.HTTPStatus()
	category := appErr.Category
	if category == "" {
		category = CategoryForStatus(status)
	}
	code := appErr.Code
	if code == "" {
		code = defaultCode(category, status)
	}
	return finish(NormalizedError{
		Code:     code,
		Category: category,
		Status:   status,
		Message:  err.Error(),
	}, appErr.Message, appErr.Details)
}

func fromHints(err error, appErr *AppError) NormalizedError {
	n := NormalizedError{Message: err.Error()}

	var fe fieldErrorer
	var sc statusCoder
	switch {
	case errors.As(err, &fe) && fe.HasFieldErrors(), appErr != nil && appErr.Field != "":
		n.Category = CategoryValidation
		n.Status = http.StatusBadRequest
	case errors.As(err, &sc) && sc.StatusCode() >= http.StatusBadRequest:
		n.Status = sc.StatusCode()
		n.Category = CategoryForStatus(n.Status)
	case appErr != nil:
		n.Category = CategoryBusinessLogic
		n.Status = http.StatusUnprocessableEntity
	default:
		// Anything unstructured at this point is an uncaught failure.
		n.Category = CategoryInfrastructure
		n.Status = http.StatusInternalServerError
	}
	n.Code = defaultCode(n.Category, n.Status)

	clientText := ""
	if appErr != nil {
		clientText = appErr.Message
	} else if n.Status < http.StatusInternalServerError {
		clientText = err.Error()
	}
	return finish(n, clientText, detailsOf(appErr))
}

// finish applies the client-message rule: 5xx always gets the generic text.
func finish(n NormalizedError, clientText string, details any) NormalizedError {
	n.Details = details
	if n.Status >= http.StatusInternalServerError || strings.TrimSpace(clientText) == "" {
		n.SuggestedMessage = suggestedMessage(n.Category)
	} else {
		n.SuggestedMessage = clientText
	}
	return n
}

func detailsOf(appErr *AppError) any {
	if appErr == nil {
		return nil
	}
	return appErr.Details
}

func defaultCode(c Category, status int) ErrorCode {
	switch c {
	case CategoryValidation:
		return ErrCodeValidation
	case CategoryAuthentication:
		return ErrCodeAuthRequired
	case CategoryAuthorization:
		return ErrCodeInsufficientPermission
	case CategoryResource:
		if status == http.StatusConflict {
			return ErrCodeConflict
		}
		return ErrCodeNotFound
	case CategoryBusinessLogic:
		if status == http.StatusTooManyRequests {
			return ErrCodeRateLimited
		}
		return ErrCodeBusinessRule
	case CategoryExternal:
		return ErrCodeExternal
	default:
		if status == http.StatusServiceUnavailable {
			return ErrCodeUnavailable
		}
		return ErrCodeInternal
	}
}

// RequestInfo identifies the request an error belongs to.
type RequestInfo struct {
	RequestID string
	Method    string
	Path      string
}

// NormalizerOptions groups dependencies for NewNormalizer.
type NormalizerOptions struct {
	Logger  *slog.Logger
	Metrics statsd.Sink
	Clock   clock.Clock
}

// Normalizer classifies errors, logs them at a severity proportional to the
// resulting status, and emits a metric per classification.
type Normalizer struct {
	logger  *slog.Logger
	metrics statsd.Sink
	clock   clock.Clock
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		logger:  logger.With("component", "error_normalizer"),
		metrics: opts.Metrics,
		clock:   clock.OrReal(opts.Clock),
	}
}

// Normalize classifies err and records it.
func (n *Normalizer) Normalize(ctx context.Context, err error, info RequestInfo) NormalizedError {
	out := Resolve(err)
	out.Timestamp = n.clock.Now().UTC()

	n.logger.Log(ctx, LogLevel(out.Status), "request failed",
		"code", out.Code,
		"category", out.Category,
		"status", out.Status,
		"request_id", info.RequestID,
		"method", info.Method,
		"path", info.Path,
		"error", out.Message,
		"error_type", obserrors.Classify(err),
	)

	if n.metrics != nil {
		n.metrics.Count("pipeline.error", 1, map[string]string{
			"code":         string(out.Code),
			"category":     string(out.Category),
			"status_class": strconv.Itoa(out.Status/100) + "xx",
		})
	}
	return out
}

// LogLevel maps a status to the log severity used for it.
func LogLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
