package docai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"docextract/internal/schema/models"
)

// BuildJSONSchema converts a schema definition into a JSON Schema document
// (draft 2020-12 subset). It is sent to the model as a structured-output
// constraint and used locally to validate what comes back.
func BuildJSONSchema(def models.Definition) map[string]any {
	props := make(map[string]any, len(def))
	var required []string
	for name, spec := range def {
		prop := map[string]any{"type": string(spec.Type)}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if spec.Type == models.FieldTypeString && spec.Pattern != "" {
			prop["pattern"] = spec.Pattern
		}
		props[name] = prop
		if spec.Required {
			required = append(required, name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// ValidateAgainstDefinition checks extracted values against the definition's
// JSON Schema form. Extraction output that does not conform is a collaborator
// failure, not data to be silently repaired.
func ValidateAgainstDefinition(def models.Definition, values map[string]any) error {
	doc, err := json.Marshal(BuildJSONSchema(def))
	if err != nil {
		return fmt.Errorf("marshal json schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", strings.NewReader(string(doc))); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("extraction.json")
	if err != nil {
		return fmt.Errorf("compile json schema: %w", err)
	}

	// jsonschema validates decoded JSON values; round-trip to normalize
	// numbers and nested types.
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal extracted values: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("normalize extracted values: %w", err)
	}
	if err := compiled.Validate(normalized); err != nil {
		return fmt.Errorf("extracted values do not match schema: %w", err)
	}
	return nil
}
