package validation

import (
	"regexp"
	"sort"
)

// FieldType is the declared type of a schema field. The zero value accepts any type.
type FieldType string

const (
	TypeAny     FieldType = ""
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Rule names reported in FieldError.Rule.
const (
	RuleRequired   = "required"
	RuleType       = "type"
	RuleLength     = "length"
	RuleRange      = "range"
	RulePattern    = "pattern"
	RuleEnum       = "enum"
	RuleCustom     = "custom"
	RuleUnexpected = "unexpected"
)

// Bounds limits string length (in runes) or array length. A nil pointer is unbounded.
type Bounds struct {
	Min *int
	Max *int
}

// Range limits numeric values. A nil pointer is unbounded.
type Range struct {
	Min *float64
	Max *float64
}

// Len returns Bounds for min..max characters or elements.
func Len(minLen, maxLen int) *Bounds { return &Bounds{Min: &minLen, Max: &maxLen} }

// MaxLen returns Bounds with only an upper limit.
func MaxLen(maxLen int) *Bounds { return &Bounds{Max: &maxLen} }

// MinLen returns Bounds with only a lower limit.
func MinLen(minLen int) *Bounds { return &Bounds{Min: &minLen} }

// Between returns a numeric Range.
func Between(minVal, maxVal float64) *Range { return &Range{Min: &minVal, Max: &maxVal} }

// AtLeast returns a numeric Range with only a lower limit.
func AtLeast(minVal float64) *Range { return &Range{Min: &minVal} }

// Pattern is a named regular expression applied to string values.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// NewPattern compiles expr; it panics on an invalid expression.
func NewPattern(name, expr string) *Pattern {
	return &Pattern{Name: name, re: regexp.MustCompile(expr)}
}

// Match reports whether s satisfies the pattern.
func (p *Pattern) Match(s string) bool { return p.re.MatchString(s) }

// Built-in named formats.
var (
	PatternEmail = NewPattern("email", `^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	PatternPhone = NewPattern("phone", `^\+?[0-9 ().-]{7,20}$`)
	PatternUUID  = NewPattern("uuid", `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	PatternDate  = NewPattern("date", `^\d{4}-\d{2}-\d{2}$`)
)

var namedPatterns = map[string]*Pattern{
	PatternEmail.Name: PatternEmail,
	PatternPhone.Name: PatternPhone,
	PatternUUID.Name:  PatternUUID,
	PatternDate.Name:  PatternDate,
}

// PatternByName returns a built-in format.
func PatternByName(name string) (*Pattern, bool) {
	p, ok := namedPatterns[name]
	return p, ok
}

// Rule is the rule set for one field. Rules are evaluated in a fixed order:
// required, type/coercion, length, range, pattern, enum, custom.
type Rule struct {
	Required bool
	Type     FieldType
	Length   *Bounds
	Range    *Range
	Pattern  *Pattern
	Enum     []any
	// Custom returns a non-empty message when the coerced value is invalid.
	Custom func(v any) string
}

// Schema maps field names to rules. A strict schema reports input fields it
// does not declare.
type Schema struct {
	Fields map[string]Rule
	Strict bool
}

// fieldNames returns the declared fields in a stable order.
func (s Schema) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
