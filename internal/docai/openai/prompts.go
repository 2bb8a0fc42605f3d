package openai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"docextract/internal/schema/models"
)

const classificationPrompt = `Analyze the attached document(s) and classify them.

Identify:
1. "document_type": the specific document type in snake_case (e.g. "passport", "drivers_license", "utility_bill", "bank_statement", "invoice").
2. "country": the ISO 3166-1 alpha-2 code of the issuing country (e.g. "US", "DE"). Use visual cues such as language, layout, logos and legal references.
3. "confidence": your confidence in the classification from 0.0 to 1.0.
4. "alternative_types": up to 3 other plausible document types, each as {"type": "...", "score": 0.0-1.0}, ordered by score descending. Empty array if none.

If multiple documents are attached they are pages of the same document; classify them as one.

Respond with a single JSON object only, no prose:
{"document_type": "...", "country": "...", "confidence": 0.0, "alternative_types": []}`

func generationPrompt(documentType, country string) string {
	return fmt.Sprintf(`Analyze the attached document(s) of type %q issued in %q and design an extraction schema for this document class.

For every field of interest visible in the document, emit an entry keyed by a snake_case field name with:
- "type": one of "string", "integer", "number", "boolean". Dates are strings with a "pattern". Decimals are "number".
- "description": a short description of the field.
- "required": true if the field appears on every instance of this document class.
- "example": a realistic example value as a string (do NOT copy personal data from the document; invent a plausible value).
- "pattern": (optional, strings only) a regular expression the value must match, e.g. "^\\d{4}-\\d{2}-\\d{2}$" for ISO dates.

Cover the document class generally, not just this specimen. Prefer 5 to 25 fields.

Respond with a single JSON object only, no prose:
{"document_type": %q, "country": %q, "document_schema": {"field_name": {"type": "string", "description": "...", "required": true, "example": "...", "pattern": "..."}}, "confidence": 0.0}`,
		documentType, country, documentType, country)
}

func extractionPrompt(def models.Definition) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from the attached document(s).\n\nFields:\n")
	for _, name := range sortedFieldNames(def) {
		spec := def[name]
		fmt.Fprintf(&b, "- %q (%s", name, spec.Type)
		if spec.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if spec.Description != "" {
			b.WriteString(": " + spec.Description)
		}
		if spec.Pattern != "" {
			fmt.Fprintf(&b, " [must match %s]", spec.Pattern)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Rules:
- Return values with the exact JSON types stated above.
- Omit optional fields that are not present in the document. Never invent values.
- Transcribe values exactly as printed, normalizing only whitespace.

Respond with a single JSON object mapping field names to values, no prose.
Example shape: `)
	b.WriteString(exampleShape(def))
	return b.String()
}

// exampleShape renders a skeleton response so the model mirrors the keys.
func exampleShape(def models.Definition) string {
	shape := make(map[string]any, len(def))
	for name, spec := range def {
		switch spec.Type {
		case models.FieldTypeInteger:
			shape[name] = 0
		case models.FieldTypeNumber:
			shape[name] = 0.0
		case models.FieldTypeBoolean:
			shape[name] = false
		default:
			shape[name] = "..."
		}
	}
	b, _ := json.Marshal(shape)
	return string(b)
}

func sortedFieldNames(def models.Definition) []string {
	names := make([]string, 0, len(def))
	for name := range def {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
