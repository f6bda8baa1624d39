package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldError is one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Errors aggregates every violation found in one validation pass.
type Errors []FieldError

// Error implements the error interface.
func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// HasFieldErrors reports whether any violation was recorded.
func (e Errors) HasFieldErrors() bool { return len(e) > 0 }

// Validate sanitizes input against schema. Every declared field is checked and
// every violation is reported; sanitized holds the coerced values of fields
// that passed.
func Validate(input map[string]any, schema Schema) (map[string]any, Errors) {
	sanitized := make(map[string]any, len(schema.Fields))
	var errs Errors

	for _, name := range schema.fieldNames() {
		rule := schema.Fields[name]
		raw, present := input[name]
		if present && isBlank(raw) {
			present = false
		}
		if !present {
			if rule.Required {
				errs = append(errs, FieldError{name, RuleRequired, name + " is required"})
			}
			continue
		}

		value, ok := coerce(raw, rule.Type)
		if !ok {
			errs = append(errs, FieldError{name, RuleType, fmt.Sprintf("%s must be %s", name, typeNoun(rule.Type))})
			continue
		}

		fieldErrs := checkRules(name, value, rule)
		if len(fieldErrs) == 0 {
			sanitized[name] = value
		}
		errs = append(errs, fieldErrs...)
	}

	if schema.Strict {
		var unexpected []string
		for name := range input {
			if _, declared := schema.Fields[name]; !declared {
				unexpected = append(unexpected, name)
			}
		}
		sort.Strings(unexpected)
		for _, name := range unexpected {
			errs = append(errs, FieldError{name, RuleUnexpected, name + " is not an allowed field"})
		}
	}

	return sanitized, errs
}

func checkRules(name string, value any, rule Rule) Errors {
	var errs Errors
	if msg := checkLength(name, value, rule.Length); msg != "" {
		errs = append(errs, FieldError{name, RuleLength, msg})
	}
	if msg := checkRange(name, value, rule.Range); msg != "" {
		errs = append(errs, FieldError{name, RuleRange, msg})
	}
	if s, isString := value.(string); isString && rule.Pattern != nil && !rule.Pattern.Match(s) {
		errs = append(errs, FieldError{name, RulePattern, patternMessage(name, rule.Pattern)})
	}
	if len(rule.Enum) > 0 && !inEnum(value, rule.Enum) {
		errs = append(errs, FieldError{name, RuleEnum, fmt.Sprintf("%s must be one of: %s", name, joinEnum(rule.Enum))})
	}
	if rule.Custom != nil {
		if msg := rule.Custom(value); msg != "" {
			errs = append(errs, FieldError{name, RuleCustom, msg})
		}
	}
	return errs
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// coerce converts raw into the declared type where the type permits it.
func coerce(raw any, ft FieldType) (any, bool) {
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	switch ft {
	case TypeString:
		s, ok := raw.(string)
		return s, ok
	case TypeNumber:
		f, ok := toFloat(raw)
		return f, ok
	case TypeInteger:
		f, ok := toFloat(raw)
		if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return nil, false
		}
		return int64(f), true
	case TypeBoolean:
		return toBool(raw)
	case TypeArray:
		a, ok := raw.([]any)
		if !ok {
			if ss, isStrings := raw.([]string); isStrings {
				a = make([]any, len(ss))
				for i, s := range ss {
					a[i] = s
				}
				ok = true
			}
		}
		return a, ok
	case TypeObject:
		m, ok := raw.(map[string]any)
		return m, ok
	default:
		return raw, true
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toBool(v any) (any, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(t) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	default:
		if f, ok := toFloat(v); ok && (f == 0 || f == 1) {
			return f == 1, true
		}
	}
	return nil, false
}

func checkLength(name string, value any, b *Bounds) string {
	if b == nil {
		return ""
	}
	var n int
	unit := "characters"
	switch t := value.(type) {
	case string:
		n = utf8.RuneCountInString(t)
	case []any:
		n = len(t)
		unit = "items"
	default:
		return ""
	}
	switch {
	case b.Min != nil && b.Max != nil && (n < *b.Min || n > *b.Max):
		return fmt.Sprintf("%s must be between %d and %d %s", name, *b.Min, *b.Max, unit)
	case b.Min != nil && n < *b.Min:
		return fmt.Sprintf("%s must be at least %d %s", name, *b.Min, unit)
	case b.Max != nil && n > *b.Max:
		return fmt.Sprintf("%s cannot exceed %d %s", name, *b.Max, unit)
	}
	return ""
}

func checkRange(name string, value any, r *Range) string {
	if r == nil {
		return ""
	}
	f, ok := toFloat(value)
	if !ok {
		return ""
	}
	switch {
	case r.Min != nil && r.Max != nil && (f < *r.Min || f > *r.Max):
		return fmt.Sprintf("%s must be between %s and %s", name, formatNum(*r.Min), formatNum(*r.Max))
	case r.Min != nil && f < *r.Min:
		return fmt.Sprintf("%s must be at least %s", name, formatNum(*r.Min))
	case r.Max != nil && f > *r.Max:
		return fmt.Sprintf("%s cannot exceed %s", name, formatNum(*r.Max))
	}
	return ""
}

func patternMessage(name string, p *Pattern) string {
	if _, builtin := namedPatterns[p.Name]; builtin {
		return fmt.Sprintf("%s must be a valid %s", name, p.Name)
	}
	return name + " has an invalid format"
}

func inEnum(value any, enum []any) bool {
	for _, candidate := range enum {
		if equalValues(value, candidate) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if _, isString := a.(string); !isString {
			fb, ok := toFloat(b)
			_, bIsString := b.(string)
			return ok && !bIsString && fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func joinEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, v := range enum {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func typeNoun(ft FieldType) string {
	switch ft {
	case TypeInteger:
		return "an integer"
	case TypeArray, TypeObject:
		return "an " + string(ft)
	default:
		return "a " + string(ft)
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
