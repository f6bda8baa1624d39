package httpx

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/target/congregate-api/internal/errors"
)

// CSRFHeaderName carries the session-bound CSRF token (canonical form).
const CSRFHeaderName = "X-Csrf-Token"

// csrfStage checks mutating requests for the CSRF token bound to the
// authenticated session. GET, HEAD, OPTIONS and TRACE are exempt. When
// optional is set, requests without a session pass unchecked.
func csrfStage(optional bool) Stage {
	return StageFunc("csrf", func(rc *RequestContext) Result {
		if !requiresCSRFValidation(rc.Method()) {
			return Continue()
		}
		if rc.Session == nil {
			if optional {
				return Continue()
			}
			return Fail(apperrors.Internal("csrf check reached without a session"))
		}

		token := rc.Header(CSRFHeaderName)
		if token == "" {
			return Fail(apperrors.Forbidden(apperrors.ErrCodeCSRFMissing, "CSRF token missing"))
		}
		if !csrfTokensMatch(token, rc.Session.CSRFToken) {
			return Fail(apperrors.Forbidden(apperrors.ErrCodeCSRFInvalid, "CSRF token invalid"))
		}
		return Continue()
	})
}

// requiresCSRFValidation checks if the HTTP method requires CSRF validation.
func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// csrfTokensMatch compares in constant time.
func csrfTokensMatch(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
