// Package diff compares two schema definitions and produces a structured
// change list. It is a pure function of its inputs; the lifecycle service
// runs it between the current and mutated definitions before persisting
// anything.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"docextract/internal/schema/models"
)

// Compare returns the changes that turn original into modified.
//
// Emission order is deterministic: removals first, then updates, then
// additions, each group sorted by field name. The order carries no meaning,
// but stable output keeps re-runs idempotent and tests reproducible.
func Compare(original, modified models.Definition) []models.Change {
	var changes []models.Change

	for _, name := range sortedKeys(original) {
		if _, ok := modified[name]; !ok {
			old := original[name]
			changes = append(changes, models.Change{
				ChangeType: models.ChangeFieldRemoved,
				FieldName:  name,
				OldValue:   &old,
			})
		}
	}

	for _, name := range sortedKeys(original) {
		after, ok := modified[name]
		if !ok {
			continue
		}
		before := original[name]
		if !before.Equal(after) {
			changes = append(changes, models.Change{
				ChangeType: models.ChangeFieldUpdated,
				FieldName:  name,
				OldValue:   &before,
				NewValue:   &after,
			})
		}
	}

	for _, name := range sortedKeys(modified) {
		if _, ok := original[name]; !ok {
			added := modified[name]
			changes = append(changes, models.Change{
				ChangeType: models.ChangeFieldAdded,
				FieldName:  name,
				NewValue:   &added,
			})
		}
	}

	return changes
}

// Summary renders a human-readable one-liner for a change list, e.g.
// "Added 2 field(s): dob, ssn; Removed 1 field(s): fax".
func Summary(changes []models.Change) string {
	if len(changes) == 0 {
		return "No changes detected"
	}

	var parts []string
	if fields := fieldsOfType(changes, models.ChangeFieldAdded); len(fields) > 0 {
		parts = append(parts, fmt.Sprintf("Added %d field(s): %s", len(fields), strings.Join(fields, ", ")))
	}
	if fields := fieldsOfType(changes, models.ChangeFieldUpdated); len(fields) > 0 {
		parts = append(parts, fmt.Sprintf("Updated %d field(s): %s", len(fields), strings.Join(fields, ", ")))
	}
	if fields := fieldsOfType(changes, models.ChangeFieldRemoved); len(fields) > 0 {
		parts = append(parts, fmt.Sprintf("Removed %d field(s): %s", len(fields), strings.Join(fields, ", ")))
	}
	return strings.Join(parts, "; ")
}

func fieldsOfType(changes []models.Change, ct models.ChangeType) []string {
	var fields []string
	for _, c := range changes {
		if c.ChangeType == ct {
			fields = append(fields, c.FieldName)
		}
	}
	return fields
}

func sortedKeys(def models.Definition) []string {
	keys := make([]string, 0, len(def))
	for name := range def {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}
