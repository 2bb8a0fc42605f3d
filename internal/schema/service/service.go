// Package service implements the schema lifecycle controller: it is the only
// writer of schema records and the enforcer of the lineage invariants
// (at most one ACTIVE, at most one IN_REVIEW, strictly increasing versions,
// only the latest version modifiable).
//
// All write paths run under a per-lineage lock. The lock serializes
// read-decide-write sequences within one process; the store's conditional
// writes catch races across instances, and a write-time conflict retries the
// whole sequence once before surfacing a Conflict to the caller.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docextract/internal/schema/diff"
	schemametrics "docextract/internal/schema/metrics"
	"docextract/internal/schema/models"
	"docextract/internal/schema/mutate"
	"docextract/pkg/domerr"
	"docextract/pkg/sentinel"
)

// Store is the persistence contract the controller depends on.
type Store interface {
	FindActive(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	FindInReview(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	FindLatestVersion(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	FindAll(ctx context.Context) ([]*models.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	Insert(ctx context.Context, record *models.Record) error
	Save(ctx context.Context, record *models.Record) error
}

// RoutingCache is notified whenever a lineage's resolvable schema changes so
// cached routing lookups don't serve a demoted record. A nil cache is fine.
type RoutingCache interface {
	Invalidate(ctx context.Context, lineage models.Lineage)
}

// Service orchestrates schema lifecycle transitions.
type Service struct {
	store   Store
	locks   *lineageLocks
	logger  *slog.Logger
	metrics *schemametrics.Metrics
	cache   RoutingCache
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *schemametrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRoutingCache(cache RoutingCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source. Tests use this for deterministic
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the lifecycle controller.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locks:  newLineageLocks(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate creates a brand-new IN_REVIEW record for a lineage from a generated
// definition. Fails with Conflict if the lineage already has a record awaiting
// review; callers are expected to have routed through the extraction decision
// tree first, so hitting the conflict here means a concurrent upload won the
// race.
func (s *Service) Generate(ctx context.Context, lineage models.Lineage, def models.Definition) (*models.Record, error) {
	if err := mutate.ValidateDefinition(def); err != nil {
		return nil, domerr.Wrap(err, domerr.CodeValidation, "generated definition is invalid")
	}

	var record *models.Record
	err := s.withLineage(ctx, lineage, func() error {
		pending, err := s.store.FindInReview(ctx, lineage)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return domerr.Wrap(err, domerr.CodeInternal, "lookup pending schema")
		}
		if pending != nil {
			return domerr.Newf(domerr.CodeConflict, "a schema for %s is already awaiting approval", lineage)
		}

		version, err := s.nextVersion(ctx, lineage)
		if err != nil {
			return err
		}
		record = models.NewRecord(lineage, def, version, s.now())
		if err := s.store.Insert(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return err // retried once by withLineage
			}
			return domerr.Wrap(err, domerr.CodeInternal, "persist generated schema")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "schema generated",
		"schema_id", record.ID,
		"document_type", lineage.DocumentType,
		"country", lineage.Country,
		"version", record.Version,
	)
	if s.metrics != nil {
		s.metrics.IncrementGenerated()
	}
	return record, nil
}

// ApproveResult reports the promoted record and, when a prior ACTIVE record
// existed, the record that was demoted to make room.
type ApproveResult struct {
	Record     *models.Record
	Deprecated *models.Record
}

// Approve promotes an IN_REVIEW record to ACTIVE. Any prior ACTIVE record in
// the lineage is demoted to DEPRECATED first. The approved record's version is
// set to max(its own, prior.Version+1) so ACTIVE versions stay strictly
// increasing even when generation and approval interleave out of order.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*ApproveResult, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	lineage := models.LineageOf(record)

	var result *ApproveResult
	err = s.withLineage(ctx, lineage, func() error {
		// Re-read under the lock; the pre-lock read only resolved the lineage.
		record, err := s.getRecord(ctx, id)
		if err != nil {
			return err
		}
		if record.Status != models.StatusInReview {
			return domerr.Newf(domerr.CodeInvalidState, "schema must be in review to approve, got %s", record.Status)
		}

		now := s.now()
		var deprecated *models.Record
		prior, err := s.store.FindActive(ctx, lineage)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return domerr.Wrap(err, domerr.CodeInternal, "lookup active schema")
		}
		if prior != nil {
			prior.Deprecate(now)
			if err := s.store.Save(ctx, prior); err != nil {
				return domerr.Wrap(err, domerr.CodeInternal, "deprecate active schema")
			}
			deprecated = prior
			if prior.Version+1 > record.Version {
				record.Version = prior.Version + 1
			}
		}

		record.Status = models.StatusActive
		record.UpdatedAt = now
		if err := s.store.Save(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return err
			}
			return domerr.Wrap(err, domerr.CodeInternal, "activate schema")
		}
		result = &ApproveResult{Record: record, Deprecated: deprecated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, lineage)
	s.logger.InfoContext(ctx, "schema approved",
		"schema_id", result.Record.ID,
		"document_type", lineage.DocumentType,
		"country", lineage.Country,
		"version", result.Record.Version,
	)
	if s.metrics != nil {
		s.metrics.IncrementApproved()
	}
	return result, nil
}

// ModifyResult carries everything a reviewer needs to audit a modification:
// the demoted predecessor, the new IN_REVIEW record, the change list, its
// summary, and the who/when/why metadata. NoChanges is set (and the rest left
// empty except Previous) when the modifications net out to nothing.
type ModifyResult struct {
	NoChanges bool
	Previous  *models.Record
	Record    *models.Record
	Changes   []models.Change
	Summary   string
	Metadata  models.ModificationMetadata
}

// Modify applies a reviewer's modification request to the lineage's latest
// record, producing a new IN_REVIEW version and demoting the predecessor.
// Older versions are immutable history and cannot be modified.
func (s *Service) Modify(ctx context.Context, id uuid.UUID, mods models.ModificationRequest, changeDescription string) (*ModifyResult, error) {
	if err := mutate.Validate(mods); err != nil {
		return nil, domerr.Wrap(err, domerr.CodeValidation, "invalid modifications")
	}

	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	lineage := models.LineageOf(record)

	var result *ModifyResult
	err = s.withLineage(ctx, lineage, func() error {
		record, err := s.getRecord(ctx, id)
		if err != nil {
			return err
		}
		latest, err := s.store.FindLatestVersion(ctx, lineage)
		if err != nil {
			return domerr.Wrap(err, domerr.CodeInternal, "lookup latest version")
		}
		if latest.ID != record.ID {
			return domerr.Newf(domerr.CodeInvalidState,
				"only the latest version may be modified; latest is version %d (%s)", latest.Version, latest.ID)
		}

		modified := mutate.Apply(record.Schema, mods)
		changes := diff.Compare(record.Schema, modified)
		if len(changes) == 0 {
			result = &ModifyResult{NoChanges: true, Previous: record, Summary: diff.Summary(nil)}
			return nil
		}

		version, err := s.nextVersion(ctx, lineage)
		if err != nil {
			return err
		}

		now := s.now()
		record.Deprecate(now)
		if err := s.store.Save(ctx, record); err != nil {
			return domerr.Wrap(err, domerr.CodeInternal, "deprecate modified schema")
		}

		next := models.NewRecord(lineage, modified, version, now)
		if err := s.store.Insert(ctx, next); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return err
			}
			return domerr.Wrap(err, domerr.CodeInternal, "persist modified schema")
		}

		result = &ModifyResult{
			Previous: record,
			Record:   next,
			Changes:  changes,
			Summary:  diff.Summary(changes),
			Metadata: buildMetadata(changes, changeDescription, next.UpdatedAt),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.NoChanges {
		s.invalidate(ctx, lineage)
		s.logger.InfoContext(ctx, "schema modified",
			"schema_id", result.Record.ID,
			"previous_id", result.Previous.ID,
			"document_type", lineage.DocumentType,
			"country", lineage.Country,
			"version", result.Record.Version,
			"changes", len(result.Changes),
		)
		if s.metrics != nil {
			s.metrics.IncrementModified()
		}
	}
	return result, nil
}

// List returns every schema record across all lineages.
func (s *Service) List(ctx context.Context) ([]*models.Record, error) {
	records, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, domerr.Wrap(err, domerr.CodeInternal, "list schema records")
	}
	return records, nil
}

// Get returns a single record by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	return s.getRecord(ctx, id)
}

func (s *Service) getRecord(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domerr.Newf(domerr.CodeNotFound, "schema %s not found", id)
		}
		return nil, domerr.Wrap(err, domerr.CodeInternal, "get schema record")
	}
	return record, nil
}

// withLineage runs fn under the lineage lock, retrying the whole
// read-decide-write sequence once if a store-level conflict slips through
// (e.g. a writer on another instance). A second conflict surfaces as a
// Conflict domain error; the caller retries the whole request.
func (s *Service) withLineage(ctx context.Context, lineage models.Lineage, fn func() error) error {
	unlock := s.locks.lock(lineage)
	defer unlock()

	err := fn()
	if errors.Is(err, sentinel.ErrConflict) {
		err = fn()
	}
	if errors.Is(err, sentinel.ErrConflict) {
		if s.metrics != nil {
			s.metrics.IncrementConflicts()
		}
		return domerr.Newf(domerr.CodeConflict, "concurrent update on lineage %s", lineage)
	}
	return err
}

func (s *Service) invalidate(ctx context.Context, lineage models.Lineage) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, lineage)
	}
}

func buildMetadata(changes []models.Change, description string, modifiedAt time.Time) models.ModificationMetadata {
	if description == "" {
		description = "No description provided"
	}
	counts := map[string]int{"added": 0, "updated": 0, "removed": 0}
	affected := make([]string, 0, len(changes))
	for _, c := range changes {
		switch c.ChangeType {
		case models.ChangeFieldAdded:
			counts["added"]++
		case models.ChangeFieldUpdated:
			counts["updated"]++
		case models.ChangeFieldRemoved:
			counts["removed"]++
		}
		affected = append(affected, c.FieldName)
	}
	return models.ModificationMetadata{
		ModifiedAt:        modifiedAt,
		TotalChanges:      len(changes),
		ChangeTypeCounts:  counts,
		ChangeDescription: description,
		AffectedFields:    affected,
	}
}
