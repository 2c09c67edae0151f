package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildRecordJSONSchema returns the JSON-Schema (draft 2020-12 subset) the
// analyzer response must satisfy on the strict path. The model is asked for
// exactly this shape; anything else goes through lenient recovery.
func BuildRecordJSONSchema() map[string]any {
	amountProp := map[string]any{
		// Models emit amounts either as a JSON number or as a decimal string.
		"anyOf": []any{
			map[string]any{"type": "number"},
			map[string]any{"type": "string", "minLength": 1},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"type":        map[string]any{"type": "string", "minLength": 1},
			"amount":      amountProp,
			"vendor":      map[string]any{"type": "string", "minLength": 1},
			"date":        map[string]any{"type": "string", "minLength": 1},
			"category":    map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"confidence":  map[string]any{"type": "number"},
		},
		"required": []string{"type", "amount", "vendor", "date"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
