package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldType is the closed set of types an extraction field may carry.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeInteger, FieldTypeNumber, FieldTypeBoolean:
		return true
	}
	return false
}

// FieldSpec describes a single extractable field in a schema definition.
// Pattern is only meaningful for string fields; the modification validator
// rejects it on any other type.
type FieldSpec struct {
	Type        FieldType `json:"type" validate:"required,oneof=string integer number boolean"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Example     string    `json:"example,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
}

// Equal performs a structural comparison across all attributes.
func (f FieldSpec) Equal(other FieldSpec) bool {
	return f == other
}

// Definition maps field name to its spec. Field names are unique by
// construction (map key); iteration order is not significant.
type Definition map[string]FieldSpec

// Clone returns an independent copy of the definition.
func (d Definition) Clone() Definition {
	out := make(Definition, len(d))
	for name, spec := range d {
		out[name] = spec
	}
	return out
}

// Status is the lifecycle state of a schema record.
type Status string

const (
	StatusActive     Status = "active"
	StatusInReview   Status = "in_review"
	StatusDeprecated Status = "deprecated"
)

// Record is one versioned schema for a (document type, country) lineage.
//
// Invariants (enforced by the lifecycle service under a per-lineage lock,
// backed by partial unique indexes in the Postgres store):
//   - at most one ACTIVE record per lineage
//   - at most one IN_REVIEW record per lineage
//   - versions within a lineage are strictly increasing and never reused
//   - only the record with the highest version may be modified
type Record struct {
	ID           uuid.UUID  `json:"id"`
	DocumentType string     `json:"document_type"`
	Country      string     `json:"country"`
	Schema       Definition `json:"schema"`
	Status       Status     `json:"status"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Lineage identifies all records sharing a (document type, country) pair.
type Lineage struct {
	DocumentType string
	Country      string
}

func (l Lineage) String() string {
	return l.DocumentType + "/" + l.Country
}

// LineageOf returns the lineage key for a record.
func LineageOf(r *Record) Lineage {
	return Lineage{DocumentType: r.DocumentType, Country: r.Country}
}

// NewRecord builds an IN_REVIEW record for a lineage at the given version.
// Records always enter the world awaiting review; approval is a separate step.
func NewRecord(lineage Lineage, def Definition, version int, now time.Time) *Record {
	return &Record{
		ID:           uuid.New(),
		DocumentType: lineage.DocumentType,
		Country:      lineage.Country,
		Schema:       def.Clone(),
		Status:       StatusInReview,
		Version:      version,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Deprecate transitions the record to DEPRECATED and refreshes UpdatedAt.
// Deprecated records are immutable history; nothing transitions out of it.
func (r *Record) Deprecate(now time.Time) {
	r.Status = StatusDeprecated
	r.UpdatedAt = now
}

// ChangeType classifies a single entry in a schema diff.
type ChangeType string

const (
	ChangeFieldAdded   ChangeType = "field_added"
	ChangeFieldUpdated ChangeType = "field_updated"
	ChangeFieldRemoved ChangeType = "field_removed"
)

// Change is one entry in a diff between two definitions. OldValue is set for
// updates and removals, NewValue for additions and updates. Changes are never
// persisted; they ride along in modification responses for audit.
type Change struct {
	ChangeType ChangeType `json:"change_type"`
	FieldName  string     `json:"field_name"`
	OldValue   *FieldSpec `json:"old_value,omitempty"`
	NewValue   *FieldSpec `json:"new_value,omitempty"`
}

// ModificationRequest maps field name to a new spec, or nil to remove the
// field. Unmentioned fields pass through unchanged.
type ModificationRequest map[string]*FieldSpec

// ModificationMetadata captures who/when/why details for a modification, plus
// per-direction change counts for audit consumers.
type ModificationMetadata struct {
	ModifiedAt        time.Time      `json:"modified_at"`
	TotalChanges      int            `json:"total_changes"`
	ChangeTypeCounts  map[string]int `json:"change_type_counts"`
	ChangeDescription string         `json:"change_description"`
	AffectedFields    []string       `json:"affected_fields"`
}
