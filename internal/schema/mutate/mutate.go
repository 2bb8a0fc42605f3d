// Package mutate validates and applies modification requests against schema
// definitions. Validation fails closed: one structurally invalid entry rejects
// the whole batch, so a modification is either applied in full or not at all.
package mutate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"docextract/internal/schema/models"
)

var validate = validator.New()

// Validate checks a modification request against the structural rules before
// anything is applied. Removals (nil spec) are always structurally valid; a
// removal for a field that does not exist is a no-op, caught later by the
// empty-diff short circuit rather than rejected here.
func Validate(mods models.ModificationRequest) error {
	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("field names must be non-empty")
		}
		spec := mods[name]
		if spec == nil {
			continue
		}
		if err := validate.Struct(spec); err != nil {
			if !spec.Type.Valid() {
				return fmt.Errorf("field %q has invalid type %q; valid types: string, integer, number, boolean", name, spec.Type)
			}
			return fmt.Errorf("field %q is invalid: %w", name, err)
		}
		if spec.Pattern != "" && spec.Type != models.FieldTypeString {
			return fmt.Errorf("field %q has type %q; pattern is only allowed on string fields", name, spec.Type)
		}
	}
	return nil
}

// ValidateDefinition checks a full definition against the same structural
// rules as Validate. Used once at the boundary for generated definitions so
// downstream code never re-checks field specs ad hoc.
func ValidateDefinition(def models.Definition) error {
	mods := make(models.ModificationRequest, len(def))
	for name := range def {
		spec := def[name]
		mods[name] = &spec
	}
	return Validate(mods)
}

// Apply returns a new definition with the modifications applied: nil removes
// the field if present, anything else inserts or overwrites it. The original
// is never mutated. Callers must run Validate first; Apply trusts its input.
func Apply(original models.Definition, mods models.ModificationRequest) models.Definition {
	out := original.Clone()
	for name, spec := range mods {
		if spec == nil {
			delete(out, name)
			continue
		}
		out[name] = *spec
	}
	return out
}
