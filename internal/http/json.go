package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/target/congregate-api/internal/errors"
)

// Envelope is the body of every JSON API response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

// ErrorBody is the error half of an Envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta carries per-response bookkeeping.
type Meta struct {
	Timestamp   time.Time    `json:"timestamp"`
	RequestID   string       `json:"request_id,omitempty"`
	Version     string       `json:"version,omitempty"`
	Deprecation *Deprecation `json:"deprecation,omitempty"`
}

// Deprecation describes a deprecated API version in response metadata.
type Deprecation struct {
	Version string `json:"version"`
	Sunset  string `json:"sunset,omitempty"`
	Message string `json:"message"`
}

// Response is written verbatim by the chain. A nil Body writes headers only.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// NoContent returns a 204 response.
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent}
}

// WriteJSON writes a JSON response with the given status code and data.
// The body is encoded into a buffer first so encoding failures never leave a
// half-written response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// writeResponse writes resp, merging its headers into w.
func writeResponse(w http.ResponseWriter, resp Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Body == nil {
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, resp.Body)
}

// decodeObject reads a JSON object from body, reading at most limit bytes.
// An empty body decodes to an empty map.
func decodeObject(w http.ResponseWriter, r *http.Request, limit int64) (map[string]any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return map[string]any{}, nil
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var out map[string]any
	err := dec.Decode(&out)
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return map[string]any{}, nil
	case errors.As(err, &maxErr):
		return nil, apperrors.BadRequest(apperrors.ErrCodeInvalidJSON,
			fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
	case err != nil:
		return nil, apperrors.BadRequest(apperrors.ErrCodeInvalidJSON, "Request body must be a valid JSON object")
	}
	if out == nil {
		return nil, apperrors.BadRequest(apperrors.ErrCodeInvalidJSON, "Request body must be a valid JSON object")
	}
	if dec.More() {
		return nil, apperrors.BadRequest(apperrors.ErrCodeInvalidJSON, "Request body must contain a single JSON object")
	}
	return out, nil
}
