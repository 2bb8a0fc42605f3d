package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"docextract/internal/schema/models"
	"docextract/pkg/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newRecord(docType, country string, version int, status models.Status) *models.Record {
	record := models.NewRecord(
		models.Lineage{DocumentType: docType, Country: country},
		models.Definition{"name": {Type: models.FieldTypeString, Required: true}},
		version,
		time.Now().UTC(),
	)
	record.Status = status
	return record
}

func (s *MemoryStoreSuite) TestInsertAndLookups() {
	s.Run("inserts and gets by id", func() {
		record := s.newRecord("passport", "US", 1, models.StatusInReview)
		s.Require().NoError(s.store.Insert(s.ctx, record))

		found, err := s.store.Get(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(record.ID, found.ID)
		s.Equal(models.StatusInReview, found.Status)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.Get(s.ctx, uuid.New())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("finds by status within the lineage", func() {
		lineage := models.Lineage{DocumentType: "invoice", Country: "DE"}
		active := s.newRecord("invoice", "DE", 1, models.StatusActive)
		inReview := s.newRecord("invoice", "DE", 2, models.StatusInReview)
		s.Require().NoError(s.store.Insert(s.ctx, active))
		s.Require().NoError(s.store.Insert(s.ctx, inReview))

		found, err := s.store.FindActive(s.ctx, lineage)
		s.Require().NoError(err)
		s.Equal(active.ID, found.ID)

		found, err = s.store.FindInReview(s.ctx, lineage)
		s.Require().NoError(err)
		s.Equal(inReview.ID, found.ID)

		_, err = s.store.FindActive(s.ctx, models.Lineage{DocumentType: "invoice", Country: "FR"})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestFindLatestVersion() {
	lineage := models.Lineage{DocumentType: "passport", Country: "US"}

	s.Run("empty lineage returns ErrNotFound", func() {
		_, err := s.store.FindLatestVersion(s.ctx, lineage)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns the highest version regardless of status", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 1, models.StatusDeprecated)))
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 2, models.StatusDeprecated)))
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 4, models.StatusActive)))

		latest, err := s.store.FindLatestVersion(s.ctx, lineage)
		s.Require().NoError(err)
		s.Equal(4, latest.Version)
	})
}

// Conflicts mirror the Postgres partial unique indexes.
func (s *MemoryStoreSuite) TestInsertConflicts() {
	s.Run("rejects a second IN_REVIEW record in the lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 1, models.StatusInReview)))
		err := s.store.Insert(s.ctx, s.newRecord("passport", "US", 2, models.StatusInReview))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejects a second ACTIVE record in the lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("visa", "US", 1, models.StatusActive)))
		err := s.store.Insert(s.ctx, s.newRecord("visa", "US", 2, models.StatusActive))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejects version reuse in the lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("invoice", "DE", 3, models.StatusDeprecated)))
		err := s.store.Insert(s.ctx, s.newRecord("invoice", "DE", 3, models.StatusDeprecated))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows many DEPRECATED records in the lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("receipt", "FR", 1, models.StatusDeprecated)))
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("receipt", "FR", 2, models.StatusDeprecated)))
	})

	s.Run("same document type in another country is a distinct lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("id_card", "US", 1, models.StatusInReview)))
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("id_card", "CA", 1, models.StatusInReview)))
	})
}

func (s *MemoryStoreSuite) TestSave() {
	s.Run("persists status transitions", func() {
		record := s.newRecord("passport", "US", 1, models.StatusInReview)
		s.Require().NoError(s.store.Insert(s.ctx, record))

		record.Status = models.StatusActive
		record.UpdatedAt = time.Now().UTC()
		s.Require().NoError(s.store.Save(s.ctx, record))

		found, err := s.store.Get(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, found.Status)
	})

	s.Run("rejects saving an unknown record", func() {
		err := s.store.Save(s.ctx, s.newRecord("passport", "US", 9, models.StatusActive))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// Returned records are detached copies; mutating them must not leak back.
func (s *MemoryStoreSuite) TestIsolation() {
	record := s.newRecord("passport", "US", 1, models.StatusInReview)
	s.Require().NoError(s.store.Insert(s.ctx, record))

	found, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	found.Schema["injected"] = models.FieldSpec{Type: models.FieldTypeString}
	found.Status = models.StatusActive

	again, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.NotContains(again.Schema, "injected")
	s.Equal(models.StatusInReview, again.Status)
}

func (s *MemoryStoreSuite) TestFindAllOrdering() {
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("visa", "US", 1, models.StatusActive)))
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 2, models.StatusInReview)))
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 1, models.StatusDeprecated)))
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "DE", 1, models.StatusActive)))

	all, err := s.store.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 4)

	s.Equal("passport", all[0].DocumentType)
	s.Equal("DE", all[0].Country)
	s.Equal(1, all[1].Version)
	s.Equal(2, all[2].Version)
	s.Equal("visa", all[3].DocumentType)
}
