package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// TenantPostgres resolves organizations, default projects and provider
// credentials.
type TenantPostgres struct {
	db *sql.DB
}

// NewTenantPostgres creates a new TenantPostgres repository.
func NewTenantPostgres(db *sql.DB) *TenantPostgres {
	return &TenantPostgres{db: db}
}

var (
	_ repository.TenantRepository     = (*TenantPostgres)(nil)
	_ repository.CredentialRepository = (*TenantPostgres)(nil)
)

// ListOrgIDs returns every organization id in a stable order.
func (r *TenantPostgres) ListOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM orgs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DefaultProject returns the project flagged as the org's import target.
func (r *TenantPostgres) DefaultProject(ctx context.Context, orgID string) (*model.Project, error) {
	const q = `SELECT id, org_id, name, is_default FROM projects WHERE org_id = $1 AND is_default LIMIT 1`
	var p model.Project
	err := r.db.QueryRowContext(ctx, q, orgID).Scan(&p.ID, &p.OrgID, &p.Name, &p.IsDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// APIKey returns the stored provider key for the org and source.
func (r *TenantPostgres) APIKey(ctx context.Context, orgID string, source model.Source) (string, error) {
	const q = `SELECT api_key FROM provider_credentials WHERE org_id = $1 AND source = $2`
	var key string
	err := r.db.QueryRowContext(ctx, q, orgID, string(source)).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return key, nil
}
