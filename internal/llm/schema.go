package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildItemsJSONSchema returns the JSON-Schema (draft 2020-12 subset) for
// the oracle's item array, as a generic map. It is embedded in the prompt
// and used locally to validate the parsed response shape before the items
// enter a job. Data-quality rules live in the validation engine, not here;
// this only pins types and the confidence enum.
func BuildItemsJSONSchema() map[string]any {
	nullableNumber := map[string]any{"type": []string{"number", "null"}}

	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"name":          map[string]any{"type": "string", "minLength": 1},
				"category":      map[string]any{"type": "string"},
				"servingSize":   map[string]any{"type": []string{"string", "null"}},
				"calories":      map[string]any{"type": []string{"integer", "null"}},
				"totalFatG":     nullableNumber,
				"saturatedFatG": nullableNumber,
				"transFatG":     nullableNumber,
				"cholesterolMg": nullableNumber,
				"sodiumMg":      nullableNumber,
				"totalCarbsG":   nullableNumber,
				"dietaryFiberG": nullableNumber,
				"sugarsG":       nullableNumber,
				"proteinG":      nullableNumber,
				"confidence":    map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
				"notes":         map[string]any{"type": []string{"string", "null"}},
			},
			"required": []string{"name", "category", "confidence"},
		},
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
