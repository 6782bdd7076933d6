package schema

import (
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Type describes a single response field.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "[int]").
	Name() string
	// JSONSchema returns the JSON Schema fragment for values of this type.
	JSONSchema() *jsonschema.Schema
}

// --- Built-in Type Implementations ---

// StringType describes string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) JSONSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }

// IntType describes integer values.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) JSONSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "integer"} }

// FloatType describes floating-point values.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) JSONSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} }

// BoolType describes boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) JSONSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "boolean"} }

// SliceType describes arrays of a specific element type.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *SliceType) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: t.elemType.JSONSchema()}
}

// EnumType describes a string restricted to a fixed set of values.
type EnumType struct {
	values []string
}

func (t *EnumType) Name() string { return "enum(" + strings.Join(t.values, "|") + ")" }

func (t *EnumType) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(t.values))
	for i, v := range t.values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// --- Factory Functions ---

// String creates a string type.
func String() Type { return &StringType{} }

// Int creates an integer type.
func Int() Type { return &IntType{} }

// Float creates a float type.
func Float() Type { return &FloatType{} }

// Bool creates a boolean type.
func Bool() Type { return &BoolType{} }

// Slice creates an array type for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Enum creates a string type limited to values.
func Enum(values ...string) Type {
	return &EnumType{values: append([]string(nil), values...)}
}

// ParseType converts a string type name to a Type.
// Supports basic types: "string", "int", "float", "bool", "[string]", "[int]", etc.
// Enums are written as "enum(low|medium|high)".
func ParseType(typeStr string) (Type, error) {
	if inner, ok := strings.CutPrefix(typeStr, "enum("); ok && strings.HasSuffix(inner, ")") {
		inner = strings.TrimSuffix(inner, ")")
		if inner == "" {
			return nil, fmt.Errorf("enum without values: %s", typeStr)
		}
		return Enum(strings.Split(inner, "|")...), nil
	}

	// Handle slice types: [string], [int], etc.
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elemType), nil
	}

	switch typeStr {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// ParseTypeMap converts a map of field names to type strings into a Schema.
// Example: {"content": "string", "user_name": "string", "age": "int"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
