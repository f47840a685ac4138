package render

import (
	"encoding/json"
	"fmt"
	"math"
)

// Field describes one property of a JSON object
type Field struct {
	Name     string
	Aliases  []string
	Type     string // string, integer, number, boolean, object, array
	Required bool
	// Object validates the value (for "object") or every element (for "array").
	Object *Schema
}

// Schema is an ordered list of object fields a payload must satisfy
type Schema struct {
	Name   string
	Fields []Field
}

// Validate checks obj against the schema. Unknown properties are allowed.
func (s *Schema) Validate(obj map[string]any) error {
	for _, field := range s.Fields {
		value, ok := lookup(obj, field)
		if !ok {
			if field.Required {
				return fmt.Errorf("%s: missing required field: %s", s.Name, field.Name)
			}
			continue
		}

		if err := validateType(value, field.Type); err != nil {
			return fmt.Errorf("%s: invalid value for %s: %w", s.Name, field.Name, err)
		}

		if field.Object == nil {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			if err := field.Object.Validate(v); err != nil {
				return fmt.Errorf("%s.%w", s.Name, err)
			}
		case []any:
			for i, item := range v {
				itemObj, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("%s: %s[%d]: expected object, got %T", s.Name, field.Name, i, item)
				}
				if err := field.Object.Validate(itemObj); err != nil {
					return fmt.Errorf("%s: %s[%d]: %w", s.Name, field.Name, i, err)
				}
			}
		}
	}

	return nil
}

// lookup finds a field by name or alias; JSON null counts as absent
func lookup(obj map[string]any, field Field) (any, bool) {
	for _, key := range append([]string{field.Name}, field.Aliases...) {
		if v, ok := obj[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// validateType validates a value against a JSON Schema type
func validateType(value any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Errorf("expected integer, got %v", value)
		}
	case "number":
		switch value.(type) {
		case float64, json.Number:
			// Valid numeric types
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported type: %s", expectedType)
	}

	return nil
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case json.Number:
		_, err := v.Int64()
		return err == nil
	case float64:
		return v == math.Trunc(v)
	}
	return false
}

// ChatCompletionSchema is the success shape of the chat completions endpoint
var ChatCompletionSchema = &Schema{
	Name: "ChatCompletionResponse",
	Fields: []Field{
		{Name: "id", Type: "string", Required: true},
		{Name: "object", Type: "string", Required: true},
		{Name: "created", Type: "integer", Required: true},
		{Name: "model", Type: "string", Required: true},
		{Name: "choices", Type: "array", Required: true, Object: choiceSchema},
		{Name: "usage", Type: "object", Required: true, Object: usageSchema},
	},
}

var choiceSchema = &Schema{
	Name: "Choice",
	Fields: []Field{
		{Name: "index", Type: "integer", Required: true},
		{Name: "message", Type: "object", Required: true, Object: messageSchema},
		{Name: "finish_reason", Aliases: []string{"finishReason"}, Type: "string"},
	},
}

var messageSchema = &Schema{
	Name: "Message",
	Fields: []Field{
		{Name: "role", Type: "string", Required: true},
		{Name: "content", Type: "string", Required: true},
	},
}

var usageSchema = &Schema{
	Name: "Usage",
	Fields: []Field{
		{Name: "prompt_tokens", Aliases: []string{"promptTokens"}, Type: "integer", Required: true},
		{Name: "completion_tokens", Aliases: []string{"completionTokens"}, Type: "integer", Required: true},
		{Name: "total_tokens", Aliases: []string{"totalTokens"}, Type: "integer", Required: true},
	},
}
