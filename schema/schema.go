// Package schema provides JSON Schema validation for collection records.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Violation is one failed constraint.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string { return v.Path + ": " + v.Message }

// Error lists every violation found in a document.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// Validate checks a document against a JSON Schema (draft-07 subset).
// Returns nil if validation passes or the schema is nil, otherwise an *Error.
//
// Supported JSON Schema keywords:
//   - type (a name or a list of names)
//   - properties, required, additionalProperties (bool or schema)
//   - items (for arrays), minItems, maxItems
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength, pattern
//   - enum
//   - format: "date-time" (RFC 3339) and "decimal" (a base-10 number string)
func Validate(schema map[string]any, doc any) error {
	if schema == nil {
		return nil
	}
	v := &validator{}
	v.value(schema, doc, "$")
	if len(v.violations) == 0 {
		return nil
	}
	return &Error{Violations: v.violations}
}

type validator struct {
	violations []Violation
}

func (v *validator) fail(path, format string, args ...any) {
	v.violations = append(v.violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) value(schema map[string]any, value any, path string) {
	if t, ok := schema["type"]; ok && !typeMatches(t, value) {
		v.fail(path, "expected type %v, got %q", t, jsonType(value))
		return
	}

	if enumList, ok := schema["enum"].([]any); ok && !inEnum(enumList, value) {
		v.fail(path, "value not in enum %v", enumList)
	}

	switch val := value.(type) {
	case map[string]any:
		v.object(schema, val, path)
	case []any:
		v.array(schema, val, path)
	case string:
		v.str(schema, val, path)
	case float64:
		v.number(schema, val, path)
	case json.Number:
		f, _ := val.Float64()
		v.number(schema, f, path)
	}
}

func typeMatches(t any, value any) bool {
	switch ts := t.(type) {
	case string:
		return checkType(ts, value)
	case []any:
		for _, one := range ts {
			if s, ok := one.(string); ok && checkType(s, value) {
				return true
			}
		}
		return false
	}
	return true
}

func checkType(expected string, value any) bool {
	actual := jsonType(value)
	switch expected {
	case actual:
		return true
	case "integer":
		if f, ok := value.(float64); ok {
			return f == float64(int64(f))
		}
	case "number":
		return actual == "integer"
	}
	return false
}

func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case int, int64:
		return "integer"
	default:
		return reflect.TypeOf(v).String()
	}
}

func inEnum(allowed []any, value any) bool {
	for _, a := range allowed {
		if reflect.DeepEqual(a, value) {
			return true
		}
	}
	return false
}

func (v *validator) object(schema map[string]any, obj map[string]any, path string) {
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if field, ok := r.(string); ok {
				if _, exists := obj[field]; !exists {
					v.fail(path, "missing required field %q", field)
				}
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	fields := make([]string, 0, len(obj))
	for field := range obj {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var extra []string
	for _, field := range fields {
		if ps, ok := props[field].(map[string]any); ok {
			v.value(ps, obj[field], path+"."+field)
			continue
		}
		if _, defined := props[field]; defined {
			continue
		}
		switch ap := schema["additionalProperties"].(type) {
		case bool:
			if !ap {
				extra = append(extra, field)
			}
		case map[string]any:
			v.value(ap, obj[field], path+"."+field)
		}
	}
	if len(extra) > 0 {
		v.fail(path, "additional properties not allowed: %s", strings.Join(extra, ", "))
	}
}

func (v *validator) array(schema map[string]any, arr []any, path string) {
	if n, ok := toFloat(schema["minItems"]); ok && float64(len(arr)) < n {
		v.fail(path, "array length %d is less than minItems %v", len(arr), n)
	}
	if n, ok := toFloat(schema["maxItems"]); ok && float64(len(arr)) > n {
		v.fail(path, "array length %d is greater than maxItems %v", len(arr), n)
	}
	if itemSchema, ok := schema["items"].(map[string]any); ok {
		for i, elem := range arr {
			v.value(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i))
		}
	}
}

func (v *validator) str(schema map[string]any, s string, path string) {
	length := utf8.RuneCountInString(s)
	if n, ok := toFloat(schema["minLength"]); ok && float64(length) < n {
		v.fail(path, "string length %d is less than minLength %v", length, n)
	}
	if n, ok := toFloat(schema["maxLength"]); ok && float64(length) > n {
		v.fail(path, "string length %d is greater than maxLength %v", length, n)
	}
	if p, ok := schema["pattern"].(string); ok {
		re, err := regexp.Compile(p)
		if err != nil {
			v.fail(path, "invalid pattern %q: %v", p, err)
		} else if !re.MatchString(s) {
			v.fail(path, "%q does not match pattern %q", s, p)
		}
	}
	switch schema["format"] {
	case "date-time":
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			v.fail(path, "%q is not an RFC 3339 date-time", s)
		}
	case "decimal":
		if _, err := decimal.NewFromString(s); err != nil {
			v.fail(path, "%q is not a decimal number", s)
		}
	}
}

func (v *validator) number(schema map[string]any, n float64, path string) {
	if m, ok := toFloat(schema["minimum"]); ok && n < m {
		v.fail(path, "%v is less than minimum %v", n, m)
	}
	if m, ok := toFloat(schema["maximum"]); ok && n > m {
		v.fail(path, "%v is greater than maximum %v", n, m)
	}
	if m, ok := toFloat(schema["exclusiveMinimum"]); ok && n <= m {
		v.fail(path, "%v is not greater than exclusiveMinimum %v", n, m)
	}
	if m, ok := toFloat(schema["exclusiveMaximum"]); ok && n >= m {
		v.fail(path, "%v is not less than exclusiveMaximum %v", n, m)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
