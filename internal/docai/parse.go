package docai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	// Single backslashes in front of regex shorthand classes (\d, \w, \s)
	// are invalid JSON escapes; models emit them constantly inside pattern
	// strings. Doubling them makes the payload parseable without touching
	// already-escaped sequences.
	badEscapeRe = regexp.MustCompile(`([^\\])\\([dswDSW])`)
)

// ExtractJSONObject recovers a JSON object from raw model output: it strips
// surrounding prose and markdown fences, then parses, repairing common
// regex-escape damage on a second attempt.
func ExtractJSONObject(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	match := jsonObjectRe.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(match), &out); err == nil {
		return out, nil
	}

	repaired := badEscapeRe.ReplaceAllString(match, `$1\\$2`)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("parse model output as JSON: %w", err)
	}
	return out, nil
}

// DecodeInto re-marshals a parsed JSON object into a typed value. Used to map
// recovered model output onto response structs without a second string pass.
func DecodeInto(obj map[string]any, target any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}
