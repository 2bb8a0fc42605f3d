package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docextract/internal/schema/models"
	"docextract/pkg/sentinel"
)

// InMemory keeps schema records in a map guarded by a RWMutex. Suitable for
// tests and single-instance deployments; production uses Postgres.
type InMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.Record
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uuid.UUID]models.Record)}
}

func (s *InMemory) FindActive(_ context.Context, lineage models.Lineage) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByStatusLocked(lineage, models.StatusActive)
}

func (s *InMemory) FindInReview(_ context.Context, lineage models.Lineage) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByStatusLocked(lineage, models.StatusInReview)
}

func (s *InMemory) FindLatestVersion(_ context.Context, lineage models.Lineage) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Record
	for _, record := range s.records {
		if models.LineageOf(&record) != lineage {
			continue
		}
		if latest == nil || record.Version > latest.Version {
			latest = copyRecord(record)
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}

func (s *InMemory) FindAll(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, copyRecord(record))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentType != out[j].DocumentType {
			return out[i].DocumentType < out[j].DocumentType
		}
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(record), nil
}

// Insert stores a new record. Mirrors the Postgres partial unique indexes:
// inserting a second ACTIVE or IN_REVIEW record for a lineage, or reusing a
// (lineage, version) slot, returns sentinel.ErrConflict.
func (s *InMemory) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	lineage := models.LineageOf(record)
	for _, existing := range s.records {
		if models.LineageOf(&existing) != lineage {
			continue
		}
		if existing.Version == record.Version {
			return sentinel.ErrConflict
		}
		if existing.Status == record.Status && record.Status != models.StatusDeprecated {
			return sentinel.ErrConflict
		}
	}

	s.records[record.ID] = *copyRecord(*record)
	return nil
}

func (s *InMemory) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[record.ID] = *copyRecord(*record)
	return nil
}

func (s *InMemory) findByStatusLocked(lineage models.Lineage, status models.Status) (*models.Record, error) {
	for _, record := range s.records {
		if models.LineageOf(&record) == lineage && record.Status == status {
			return copyRecord(record), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// copyRecord detaches the record (and its definition map) from store-owned
// memory so callers cannot mutate persisted state.
func copyRecord(record models.Record) *models.Record {
	record.Schema = record.Schema.Clone()
	return &record
}
