package schema

import (
	"fmt"
	"math"
)

// Validator validates a mapping against a Schema tree. Errors accumulate:
// validation never stops at the first problem, the full error set is
// always returned.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns whether data conforms to schema and every error found.
func (v *Validator) Validate(data map[string]any, schema *Schema) (bool, []string) {
	var errors []string

	for _, field := range schema.Required {
		if _, ok := data[field]; !ok {
			errors = append(errors, fmt.Sprintf("missing required field: %s", field))
		}
	}

	for field, fieldSchema := range schema.Properties {
		if value, ok := data[field]; ok {
			errors = append(errors, v.validateField(field, value, fieldSchema)...)
		}
	}

	return len(errors) == 0, errors
}

func (v *Validator) validateField(name string, value any, schema *Schema) []string {
	var errors []string

	// type, enum and range checks are independent: all violations are
	// reported, none short-circuits another
	if schema.Type != "" && !checkType(value, schema.Type) {
		errors = append(errors, fmt.Sprintf(
			"field '%s' has wrong type: expected %s, got %s", name, schema.Type, kindOf(value)))
	}

	if len(schema.Enum) > 0 && !enumContains(schema.Enum, value) {
		errors = append(errors, fmt.Sprintf(
			"field '%s' value %v not in allowed values %v", name, value, schema.Enum))
	}

	if num, ok := numericValue(value); ok {
		if schema.Minimum != nil && num < *schema.Minimum {
			errors = append(errors, fmt.Sprintf(
				"field '%s' below minimum %v", name, *schema.Minimum))
		}
		if schema.Maximum != nil && num > *schema.Maximum {
			errors = append(errors, fmt.Sprintf(
				"field '%s' above maximum %v", name, *schema.Maximum))
		}
	}

	if schema.Items != nil {
		for i, item := range listValue(value) {
			errors = append(errors, v.validateField(
				fmt.Sprintf("%s[%d]", name, i), item, schema.Items)...)
		}
	}

	if obj, ok := value.(map[string]any); ok && schema.Properties != nil {
		// nested required lists apply at their own level only
		for _, field := range schema.Required {
			if _, present := obj[field]; !present {
				errors = append(errors, fmt.Sprintf(
					"missing required field: %s.%s", name, field))
			}
		}
		for prop, propSchema := range schema.Properties {
			if propValue, present := obj[prop]; present {
				errors = append(errors, v.validateField(
					fmt.Sprintf("%s.%s", name, prop), propValue, propSchema)...)
			}
		}
	}

	return errors
}

// checkType maps the schema type names to value kinds. Unrecognized type
// names pass unconstrained: a newer schema must not break an older engine.
func checkType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := numericValue(value)
		return ok
	case "integer":
		switch n := value.(type) {
		case int, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []any, []map[string]any:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float32, float64:
		return "number"
	case []any, []map[string]any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func listValue(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

func enumContains(allowed []any, value any) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
		// numeric enum entries may differ in Go type after decoding
		if an, ok := numericValue(a); ok {
			if vn, vok := numericValue(value); vok && an == vn {
				return true
			}
		}
	}
	return false
}
