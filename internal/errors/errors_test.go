package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  NotFound("member not found"),
			want: "member not found",
		},
		{
			name: "error with cause",
			err:  Internal("failed to load session").WithCause(errors.New("dial tcp: refused")),
			want: "failed to load session: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeUnavailable, CategoryInfrastructure, "session store unavailable")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false, want true")
	}
	if Wrap(nil, ErrCodeInternal, CategoryInfrastructure, "x") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"authentication", Unauthenticated(ErrCodeInvalidToken, "bad token"), http.StatusUnauthorized},
		{"authorization", InsufficientPermissions("no"), http.StatusForbidden},
		{"resource", NotFound("gone"), http.StatusNotFound},
		{"conflict override", Conflict("dup"), http.StatusConflict},
		{"business", BusinessRule("nope"), http.StatusUnprocessableEntity},
		{"rate limit", RateLimited("slow down"), http.StatusTooManyRequests},
		{"internal", Internal("boom"), http.StatusInternalServerError},
		{"not implemented", NotImplemented("v2 only"), http.StatusNotImplemented},
		{"no category", &AppError{Message: "bare"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCategory_DefaultStatus(t *testing.T) {
	want := map[Category]int{
		CategoryValidation:     400,
		CategoryAuthentication: 401,
		CategoryAuthorization:  403,
		CategoryResource:       404,
		CategoryBusinessLogic:  422,
		CategoryInfrastructure: 500,
		CategoryExternal:       502,
	}
	for c, status := range want {
		if got := c.DefaultStatus(); got != status {
			t.Errorf("%s.DefaultStatus() = %d, want %d", c, got, status)
		}
	}
}

func TestPredicatesFollowWrapping(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("member not found"))

	if !IsNotFound(err) {
		t.Errorf("IsNotFound through fmt wrapping = false")
	}
	if IsConflict(err) {
		t.Errorf("IsConflict = true, want false")
	}
	if GetCode(err) != ErrCodeNotFound {
		t.Errorf("GetCode = %q", GetCode(err))
	}
	if GetCode(errors.New("plain")) != "" {
		t.Errorf("GetCode(plain) should be empty")
	}
	if GetField(ValidationField("email", "bad email")) != "email" {
		t.Errorf("GetField lost the field")
	}
}
