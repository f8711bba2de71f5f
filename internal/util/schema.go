package util

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ValidationError reports a tool parameter that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema builds a JSON schema for a tool's parameters from a Go struct
// via reflection. Field names honor json tags, "description" tags become
// schema descriptions, and non-pointer fields without omitempty are required.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]any{}
	var required []string

	if t.Kind() == reflect.Struct {
		for i := range t.NumField() {
			name, prop, req, ok := structField(t.Field(i))
			if !ok {
				continue
			}
			properties[name] = prop
			if req {
				required = append(required, name)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// structField maps one struct field to its schema property. ok is false for
// unexported fields and fields tagged json:"-".
func structField(f reflect.StructField) (name string, prop map[string]any, required bool, ok bool) {
	tag := f.Tag.Get("json")
	if !f.IsExported() || tag == "-" {
		return "", nil, false, false
	}

	name = f.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}

	prop = map[string]any{"type": jsonSchemaType(f.Type)}
	if d := f.Tag.Get("description"); d != "" {
		prop["description"] = d
	}

	required = f.Type.Kind() != reflect.Ptr
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "omitempty" {
			required = false
		}
	}
	return name, prop, required, true
}

// ValidateParameters checks tool arguments against a parameter schema:
// required fields must be present and known properties must match their
// declared type. Unknown extra fields pass through unchecked.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, fieldName := range requiredFields(schema) {
		if _, exists := params[fieldName]; !exists {
			return &ValidationError{
				Field:   fieldName,
				Message: "required field is missing",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propMap, ok := properties[fieldName].(map[string]any)
		if !ok {
			continue
		}
		declared, _ := propMap["type"].(string)
		check, known := typeCheckers[declared]
		if !known || value == nil || check(value) {
			continue
		}
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: fmt.Sprintf("expected type %s, got %T", declared, value),
		}
	}

	return nil
}

// requiredFields tolerates both []string (schemas authored in Go) and []any
// (schemas decoded from JSON).
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				fields = append(fields, name)
			}
		}
		return fields
	default:
		return nil
	}
}

var schemaTypes = map[reflect.Kind]string{
	reflect.String:  "string",
	reflect.Bool:    "boolean",
	reflect.Int:     "integer",
	reflect.Int8:    "integer",
	reflect.Int16:   "integer",
	reflect.Int32:   "integer",
	reflect.Int64:   "integer",
	reflect.Uint:    "integer",
	reflect.Uint8:   "integer",
	reflect.Uint16:  "integer",
	reflect.Uint32:  "integer",
	reflect.Uint64:  "integer",
	reflect.Float32: "number",
	reflect.Float64: "number",
	reflect.Slice:   "array",
	reflect.Array:   "array",
	reflect.Map:     "object",
	reflect.Struct:  "object",
}

// jsonSchemaType maps a Go type to its JSON schema type name, defaulting to
// string for kinds with no natural JSON counterpart.
func jsonSchemaType(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return jsonSchemaType(t.Elem())
	}
	if name, ok := schemaTypes[t.Kind()]; ok {
		return name
	}
	return "string"
}

func hasType[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

var typeCheckers = map[string]func(any) bool{
	"string":  hasType[string],
	"boolean": hasType[bool],
	"array":   hasType[[]any],
	"object":  hasType[map[string]any],
	"integer": isIntegral,
	"number":  isNumeric,
}

// isIntegral accepts Go integer kinds plus JSON numbers with no fraction.
// JSON decoding yields float64 for all numbers, so whole floats count.
func isIntegral(v any) bool {
	switch n := v.(type) {
	case float64:
		return !math.IsInf(n, 0) && n == math.Trunc(n)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	rv := reflect.ValueOf(v)
	return rv.CanInt() || rv.CanUint()
}

func isNumeric(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.CanInt() || rv.CanUint() || rv.CanFloat()
}
