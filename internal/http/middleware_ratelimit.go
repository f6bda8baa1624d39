package httpx

import (
	"math"
	"strconv"

	"github.com/target/congregate-api/internal/service"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

func rateLimitStage(rule RateLimitRule) Stage {
	return namedRateLimitStage("ratelimit", rule)
}

// PrincipalRateLimit limits each authenticated principal separately. It is a
// custom stage so it runs after authentication has attached the principal;
// callers sharing one address do not share a quota.
func PrincipalRateLimit(limiter *service.RateLimiter) Stage {
	return namedRateLimitStage("ratelimit_principal", RateLimitRule{Limiter: limiter, Identifier: ByPrincipal})
}

func namedRateLimitStage(name string, rule RateLimitRule) Stage {
	identify := rule.Identifier
	if identify == nil {
		identify = ByIP
	}
	return StageFunc(name, func(rc *RequestContext) Result {
		id := identify(rc)
		if id == "" {
			return Continue()
		}
		dec, err := rule.Limiter.Check(rc.Context(), id)
		setRateLimitHeaders(rc, dec)
		if err != nil {
			return Fail(err)
		}
		return Continue()
	})
}

func setRateLimitHeaders(rc *RequestContext, dec service.Decision) {
	if dec.Limit == 0 {
		return
	}
	h := rc.Writer.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(dec.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(dec.Remaining))
	if !dec.ResetAt.IsZero() {
		h.Set(HeaderRateLimitReset, strconv.FormatInt(dec.ResetAt.Unix(), 10))
	}
	if !dec.Allowed && dec.RetryAfter > 0 {
		h.Set(HeaderRetryAfter, strconv.Itoa(int(math.Ceil(dec.RetryAfter.Seconds()))))
	}
}
