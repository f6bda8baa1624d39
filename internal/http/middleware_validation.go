package httpx

import (
	"net/http"
	"net/url"

	apperrors "github.com/target/congregate-api/internal/errors"
	"github.com/target/congregate-api/internal/http/validation"
)

const defaultMaxBodyBytes int64 = 1 << 20

// validationStage validates the request body (or query string) against schema
// and merges the sanitized values into rc.Data.
func validationStage(schema validation.Schema, fromQuery bool, maxBody int64) Stage {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return StageFunc("validation", func(rc *RequestContext) Result {
		input, err := validationInput(rc, fromQuery, maxBody)
		if err != nil {
			return Fail(err)
		}
		sanitized, errs := validation.Validate(input, schema)
		if len(errs) > 0 {
			return Fail(apperrors.Validation("Validation failed").WithDetails(errs))
		}
		for k, v := range sanitized {
			rc.Data[k] = v
		}
		return Continue()
	})
}

func validationInput(rc *RequestContext, fromQuery bool, maxBody int64) (map[string]any, error) {
	switch {
	case fromQuery, rc.Method() == http.MethodGet, rc.Method() == http.MethodHead:
		return queryInput(rc.Request.URL.Query()), nil
	default:
		return decodeObject(rc.Writer, rc.Request, maxBody)
	}
}

// queryInput flattens single-valued parameters to strings and keeps repeated
// ones as arrays.
func queryInput(q url.Values) map[string]any {
	out := make(map[string]any, len(q))
	for k, vs := range q {
		switch len(vs) {
		case 0:
		case 1:
			out[k] = vs[0]
		default:
			arr := make([]any, len(vs))
			for i, v := range vs {
				arr[i] = v
			}
			out[k] = arr
		}
	}
	return out
}
