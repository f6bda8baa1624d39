package httpx

import (
	"net/http"

	"github.com/target/congregate-api/internal/service"
)

type healthResponse struct {
	Status           string `json:"status"`
	RateLimitBackend string `json:"rate_limit_backend"`
}

// healthHandler returns 200 for readiness/liveness checks and reports whether
// every rate limiter currently reaches its backend.
func healthHandler(limiters ...*service.RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backend := "connected"
		for _, l := range limiters {
			if l != nil && !l.Connected() {
				backend = "degraded"
				break
			}
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", RateLimitBackend: backend})
	}
}
