package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docextract/internal/schema/models"
	"docextract/pkg/sentinel"
)

// DDL creates the schema_records table. The partial unique indexes are the
// cross-instance backstop for the one-ACTIVE / one-IN_REVIEW lineage
// invariants; a racing insert on another instance hits unique_violation and
// surfaces as sentinel.ErrConflict.
const DDL = `
CREATE TABLE IF NOT EXISTS schema_records (
	id            UUID PRIMARY KEY,
	document_type TEXT        NOT NULL,
	country       TEXT        NOT NULL,
	schema        JSONB       NOT NULL,
	status        TEXT        NOT NULL,
	version       INTEGER     NOT NULL CHECK (version > 0),
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (document_type, country, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS schema_records_one_active
	ON schema_records (document_type, country) WHERE status = 'active';
CREATE UNIQUE INDEX IF NOT EXISTS schema_records_one_in_review
	ON schema_records (document_type, country) WHERE status = 'in_review';
`

// Postgres persists schema records in PostgreSQL. Pure I/O: lineage logic
// belongs to the lifecycle service.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the table DDL. Idempotent; main runs it at startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, DDL); err != nil {
		return fmt.Errorf("migrate schema_records: %w", err)
	}
	return nil
}

const selectColumns = `id, document_type, country, schema, status, version, created_at, updated_at`

func (s *Postgres) FindActive(ctx context.Context, lineage models.Lineage) (*models.Record, error) {
	return s.findByStatus(ctx, lineage, models.StatusActive)
}

func (s *Postgres) FindInReview(ctx context.Context, lineage models.Lineage) (*models.Record, error) {
	return s.findByStatus(ctx, lineage, models.StatusInReview)
}

func (s *Postgres) findByStatus(ctx context.Context, lineage models.Lineage, status models.Status) (*models.Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM schema_records
		WHERE document_type = $1 AND country = $2 AND status = $3
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, lineage.DocumentType, lineage.Country, string(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find %s record: %w", status, err)
	}
	return record, nil
}

func (s *Postgres) FindLatestVersion(ctx context.Context, lineage models.Lineage) (*models.Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM schema_records
		WHERE document_type = $1 AND country = $2
		ORDER BY version DESC
		LIMIT 1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, lineage.DocumentType, lineage.Country))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest version: %w", err)
	}
	return record, nil
}

func (s *Postgres) FindAll(ctx context.Context) ([]*models.Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM schema_records
		ORDER BY document_type, country, version
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schema records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema records: %w", err)
	}
	return records, nil
}

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM schema_records
		WHERE id = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get schema record: %w", err)
	}
	return record, nil
}

func (s *Postgres) Insert(ctx context.Context, record *models.Record) error {
	schemaJSON, err := json.Marshal(record.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema definition: %w", err)
	}
	query := `
		INSERT INTO schema_records (id, document_type, country, schema, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.DocumentType,
		record.Country,
		schemaJSON,
		string(record.Status),
		record.Version,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert schema record: %w", err)
	}
	return nil
}

func (s *Postgres) Save(ctx context.Context, record *models.Record) error {
	schemaJSON, err := json.Marshal(record.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema definition: %w", err)
	}
	query := `
		UPDATE schema_records
		SET document_type = $2, country = $3, schema = $4, status = $5, version = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.DocumentType,
		record.Country,
		schemaJSON,
		string(record.Status),
		record.Version,
		record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save schema record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save schema record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record     models.Record
		status     string
		schemaJSON []byte
	)
	err := row.Scan(
		&record.ID,
		&record.DocumentType,
		&record.Country,
		&schemaJSON,
		&status,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.Status = models.Status(status)
	if err := json.Unmarshal(schemaJSON, &record.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema definition: %w", err)
	}
	return &record, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
