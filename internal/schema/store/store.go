// Package store persists schema records. Implementations are pure I/O:
// lineage invariants live in the lifecycle service, which runs its
// read-decide-write sequences under a per-lineage lock. The Postgres
// implementation additionally carries partial unique indexes so a racing
// writer on another instance surfaces sentinel.ErrConflict instead of
// silently creating a duplicate ACTIVE or IN_REVIEW row.
package store

import (
	"context"

	"github.com/google/uuid"

	"docextract/internal/schema/models"
)

// Store is the persistence contract for schema records.
//
// Lookup methods return sentinel.ErrNotFound when no record matches.
// Insert and Save are atomic per record; Insert returns sentinel.ErrConflict
// when a uniqueness slot (lineage+version, or a one-per-lineage status slot)
// is already taken.
type Store interface {
	// FindActive returns the lineage's ACTIVE record.
	FindActive(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	// FindInReview returns the lineage's IN_REVIEW record.
	FindInReview(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	// FindLatestVersion returns the record with the highest version in the
	// lineage, regardless of status.
	FindLatestVersion(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	// FindAll returns every record across all lineages.
	FindAll(ctx context.Context) ([]*models.Record, error)
	// Get returns the record with the given id.
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	// Insert persists a new record.
	Insert(ctx context.Context, record *models.Record) error
	// Save overwrites an existing record in full, keyed by id.
	Save(ctx context.Context, record *models.Record) error
}
