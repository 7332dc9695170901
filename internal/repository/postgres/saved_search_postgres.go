package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// SavedSearchPostgres is a PostgreSQL implementation of repository.SavedSearchRepository.
type SavedSearchPostgres struct {
	db *sql.DB
}

// NewSavedSearchPostgres creates a new SavedSearchPostgres repository.
func NewSavedSearchPostgres(db *sql.DB) *SavedSearchPostgres {
	return &SavedSearchPostgres{db: db}
}

var _ repository.SavedSearchRepository = (*SavedSearchPostgres)(nil)

const savedSearchColumns = `id, org_id, name, criteria, frequency, auto_import, source, last_run_at, is_enabled, created_at, updated_at`

func scanSavedSearch(row rowScanner) (*model.SavedSearch, error) {
	var (
		s        model.SavedSearch
		criteria []byte
		freq     string
		source   string
		lastRun  sql.NullTime
	)
	if err := row.Scan(
		&s.ID,
		&s.OrgID,
		&s.Name,
		&criteria,
		&freq,
		&s.AutoImport,
		&source,
		&lastRun,
		&s.IsEnabled,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &s.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria for saved search %s: %w", s.ID, err)
		}
	}
	s.Frequency = model.Frequency(freq)
	s.Source = model.Source(source)
	if lastRun.Valid {
		t := lastRun.Time
		s.LastRunAt = &t
	}
	return &s, nil
}

// Create inserts a saved search and returns the stored record.
func (r *SavedSearchPostgres) Create(ctx context.Context, s *model.SavedSearch) (*model.SavedSearch, error) {
	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	q := `
		INSERT INTO saved_searches (id, org_id, name, criteria, frequency, auto_import, source, last_run_at,
			is_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + savedSearchColumns
	row := r.db.QueryRowContext(ctx, q,
		s.ID,
		s.OrgID,
		s.Name,
		criteria,
		string(s.Frequency),
		s.AutoImport,
		string(s.Source),
		s.LastRunAt,
		s.IsEnabled,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return scanSavedSearch(row)
}

// ListEnabled returns the org's enabled searches, oldest first.
func (r *SavedSearchPostgres) ListEnabled(ctx context.Context, orgID string) ([]model.SavedSearch, error) {
	q := `SELECT ` + savedSearchColumns + ` FROM saved_searches
		WHERE org_id = $1 AND is_enabled
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SavedSearch, 0)
	for rows.Next() {
		s, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// AdvanceLastRun moves last_run_at forward only. A missing row or an equal
// or later stored value yields repository.ErrStaleWrite.
func (r *SavedSearchPostgres) AdvanceLastRun(ctx context.Context, orgID, id string, runAt time.Time) error {
	const q = `
		UPDATE saved_searches
		SET last_run_at = $3, updated_at = now()
		WHERE org_id = $1 AND id = $2 AND (last_run_at IS NULL OR last_run_at < $3)`
	res, err := r.db.ExecContext(ctx, q, orgID, id, runAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStaleWrite
	}
	return nil
}
