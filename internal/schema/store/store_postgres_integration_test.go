//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docextract/internal/schema/models"
	"docextract/internal/schema/store"
	"docextract/pkg/sentinel"
	"docextract/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(s.ctx)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "schema_records"))
}

func (s *PostgresStoreSuite) newRecord(docType, country string, version int, status models.Status) *models.Record {
	record := models.NewRecord(
		models.Lineage{DocumentType: docType, Country: country},
		models.Definition{
			"full_name": {Type: models.FieldTypeString, Required: true, Description: "Holder's full name"},
			"dob":       {Type: models.FieldTypeString, Pattern: `^\d{4}-\d{2}-\d{2}$`},
		},
		version,
		time.Now().UTC().Truncate(time.Microsecond),
	)
	record.Status = status
	return record
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	record := s.newRecord("passport", "US", 1, models.StatusInReview)
	s.Require().NoError(s.store.Insert(s.ctx, record))

	found, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(record.ID, found.ID)
	s.Equal(record.DocumentType, found.DocumentType)
	s.Equal(record.Country, found.Country)
	s.Equal(models.StatusInReview, found.Status)
	s.Equal(1, found.Version)
	s.Equal(record.Schema, found.Schema)
	s.WithinDuration(record.CreatedAt, found.CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestLookups() {
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

	latest, err := s.store.FindLatestVersion(s.ctx, lineage)
	s.Require().NoError(err)
	s.Equal(2, latest.Version)

	_, err = s.store.FindActive(s.ctx, models.Lineage{DocumentType: "invoice", Country: "FR"})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// The partial unique indexes must reject duplicate ACTIVE or IN_REVIEW rows
// for a lineage at the SQL level.
func (s *PostgresStoreSuite) TestLineageConstraints() {
	s.Run("one in_review per lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 1, models.StatusInReview)))
		err := s.store.Insert(s.ctx, s.newRecord("passport", "US", 2, models.StatusInReview))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("one active per lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("visa", "US", 1, models.StatusActive)))
		err := s.store.Insert(s.ctx, s.newRecord("visa", "US", 2, models.StatusActive))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("no version reuse within a lineage", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("receipt", "FR", 1, models.StatusDeprecated)))
		err := s.store.Insert(s.ctx, s.newRecord("receipt", "FR", 1, models.StatusDeprecated))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("deprecated rows are unbounded", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("id_card", "CA", 1, models.StatusDeprecated)))
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("id_card", "CA", 2, models.StatusDeprecated)))
	})

	s.Run("save into an occupied active slot conflicts", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("deed", "US", 1, models.StatusActive)))
		second := s.newRecord("deed", "US", 2, models.StatusInReview)
		s.Require().NoError(s.store.Insert(s.ctx, second))

		second.Status = models.StatusActive
		err := s.store.Save(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *PostgresStoreSuite) TestSave() {
	record := s.newRecord("passport", "US", 1, models.StatusInReview)
	s.Require().NoError(s.store.Insert(s.ctx, record))

	record.Status = models.StatusActive
	record.Schema["mrz"] = models.FieldSpec{Type: models.FieldTypeString}
	record.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Save(s.ctx, record))

	found, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, found.Status)
	s.Contains(found.Schema, "mrz")

	s.Run("unknown record returns ErrNotFound", func() {
		ghost := s.newRecord("passport", "GB", 1, models.StatusInReview)
		s.Require().ErrorIs(s.store.Save(s.ctx, ghost), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestFindAll() {
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("visa", "US", 1, models.StatusActive)))
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 1, models.StatusDeprecated)))
	s.Require().NoError(s.store.Insert(s.ctx, s.newRecord("passport", "US", 2, models.StatusActive)))

	all, err := s.store.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("passport", all[0].DocumentType)
	s.Equal(1, all[0].Version)
	s.Equal(2, all[1].Version)
	s.Equal("visa", all[2].DocumentType)
}
