package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator checks a string value and returns an error message if invalid.
type Validator func(v string) string

// Check adapts string validators for use as Rule.Custom. Non-string values
// pass; declare Type: TypeString to reject them earlier. The first failing
// validator's message is returned.
func Check(validators ...Validator) func(any) string {
	return func(v any) string {
		s, ok := v.(string)
		if !ok {
			return ""
		}
		for _, validate := range validators {
			if msg := validate(s); msg != "" {
				return msg
			}
		}
		return ""
	}
}

// HTTPSURL validates that a field is an absolute http(s) URL of at most maxLen characters.
func HTTPSURL(fieldName string, maxLen int) Validator {
	return func(v string) string {
		if utf8.RuneCountInString(v) > maxLen {
			return fmt.Sprintf("%s cannot exceed %d characters", fieldName, maxLen)
		}
		p, err := url.Parse(v)
		if err != nil || (p.Scheme != "http" && p.Scheme != "https") || p.Host == "" {
			return fieldName + " must be a valid http(s) URL"
		}
		return ""
	}
}

// OneOf validates that a field matches one of the options, ignoring case.
func OneOf(fieldName string, options []string) Validator {
	return func(v string) string {
		for _, opt := range options {
			if strings.EqualFold(strings.TrimSpace(v), opt) {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", fieldName, strings.Join(options, ", "))
	}
}

// PrintableText rejects control characters other than tab and newline.
func PrintableText(fieldName string) Validator {
	return func(v string) string {
		for _, r := range v {
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				return fieldName + " contains invalid characters"
			}
		}
		return ""
	}
}
