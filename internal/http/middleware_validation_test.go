package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/congregate-api/internal/http/validation"
)

var memberSchema = validation.Schema{
	Fields: map[string]validation.Rule{
		"email": {Required: true, Type: validation.TypeString, Pattern: validation.PatternEmail},
		"age":   {Type: validation.TypeInteger, Range: validation.Between(0, 130)},
	},
}

func validatingChain(schema validation.Schema, fromQuery bool, maxBody int64) *Chain {
	return Compose(ChainConfig{}, func(rc *RequestContext) (any, error) {
		return rc.Data, nil
	}, validationStage(schema, fromQuery, maxBody))
}

func TestValidationStage_BodyScenarios(t *testing.T) {
	chain := validatingChain(memberSchema, false, 4096)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantErrors []validation.FieldError
	}{
		{
			name:       "empty object",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantErrors: []validation.FieldError{{Field: "email", Rule: "required", Message: "email is required"}},
		},
		{
			name:       "bad format",
			body:       `{"email":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantErrors: []validation.FieldError{{Field: "email", Rule: "pattern", Message: "email must be a valid email"}},
		},
		{
			name:       "every violation reported",
			body:       `{"email":"x","age":200}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "malformed json",
			body:       `{"email":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "array body",
			body:       `[1,2]`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, chain, http.MethodPost, "/api/v1/members", requestOptions{body: tt.body})
			env := requireError(t, rec, tt.wantStatus, tt.wantCode)
			if tt.wantCode != "VALIDATION_ERROR" {
				return
			}
			var got []validation.FieldError
			require.NoError(t, json.Unmarshal(env.Error.Details, &got))
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors[0].Field, got[0].Field)
				assert.Equal(t, tt.wantErrors[0].Rule, got[0].Rule)
				assert.Len(t, got, len(tt.wantErrors))
			} else {
				assert.Len(t, got, 2)
			}
		})
	}
}

func TestValidationStage_MergesSanitizedData(t *testing.T) {
	chain := validatingChain(memberSchema, false, 4096)

	rec := serve(t, chain, http.MethodPost, "/api/v1/members", requestOptions{body: `{"email":" a@b.co ","age":"42"}`})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data map[string]any
	decodeData(t, rec, &data)
	assert.Equal(t, "a@b.co", data["email"])
	assert.EqualValues(t, 42, data["age"])
}

func TestValidationStage_QuerySource(t *testing.T) {
	schema := validation.Schema{Fields: map[string]validation.Rule{
		"page": {Type: validation.TypeInteger, Range: validation.AtLeast(1)},
	}}

	t.Run("GET reads the query string", func(t *testing.T) {
		chain := validatingChain(schema, false, 4096)
		rec := serve(t, chain, http.MethodGet, "/api/v1/members?page=0", requestOptions{})
		requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("validate query on POST ignores the body", func(t *testing.T) {
		chain := validatingChain(schema, true, 4096)
		rec := serve(t, chain, http.MethodPost, "/api/v1/members?page=3", requestOptions{body: `not json`})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestValidationStage_BodyLimit(t *testing.T) {
	chain := validatingChain(memberSchema, false, 32)
	body := `{"email":"` + strings.Repeat("a", 64) + `@b.co"}`

	rec := serve(t, chain, http.MethodPost, "/api/v1/members", requestOptions{body: body})

	requireError(t, rec, http.StatusBadRequest, "INVALID_JSON")
}
