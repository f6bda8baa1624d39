package httpx

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"

	domainauth "github.com/target/congregate-api/internal/domain/auth"
)

// RequestContext is the per-request state shared by every stage of a chain
// and its terminal handler.
type RequestContext struct {
	Request *http.Request
	Writer  http.ResponseWriter

	// Version is set by the version stage.
	Version APIVersion
	// Principal and Session are set by the authentication stage.
	Principal *domainauth.Principal
	Session   *domainauth.Session
	// Data holds validated, sanitized input.
	Data map[string]any
	// Values is free-form per-request state.
	Values map[string]any

	RequestID string

	trustProxy  bool
	status      int
	deprecation *Deprecation
}

func newRequestContext(w http.ResponseWriter, r *http.Request, trustProxy bool) *RequestContext {
	id := RequestIDFromContext(r.Context())
	if id == "" {
		id = r.Header.Get(RequestIDHeader)
	}
	return &RequestContext{
		Request:    r,
		Writer:     w,
		Data:       map[string]any{},
		Values:     map[string]any{},
		RequestID:  id,
		trustProxy: trustProxy,
	}
}

// Context returns the request's context.
func (rc *RequestContext) Context() context.Context { return rc.Request.Context() }

// Method returns the HTTP method.
func (rc *RequestContext) Method() string { return rc.Request.Method }

// Path returns the URL path.
func (rc *RequestContext) Path() string { return rc.Request.URL.Path }

// Header returns the first value of the named request header.
func (rc *RequestContext) Header(name string) string { return rc.Request.Header.Get(name) }

// Body returns the request body.
func (rc *RequestContext) Body() io.ReadCloser { return rc.Request.Body }

// RemoteAddr returns the peer address of the connection.
func (rc *RequestContext) RemoteAddr() string { return rc.Request.RemoteAddr }

// ClientIP returns the caller's IP. X-Forwarded-For is honored only when the
// server is configured to trust its proxy.
func (rc *RequestContext) ClientIP() string {
	return clientIP(rc.Request, rc.trustProxy)
}

// SetStatus overrides the status written for a successful handler result.
func (rc *RequestContext) SetStatus(status int) { rc.status = status }

// withContext replaces the request's context.
func (rc *RequestContext) withContext(ctx context.Context) {
	rc.Request = rc.Request.WithContext(ctx)
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
