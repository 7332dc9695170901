package postgres

import (
	"context"
	"database/sql"
	"errors"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// OpportunityPostgres is a PostgreSQL implementation of repository.OpportunityRepository.
type OpportunityPostgres struct {
	db *sql.DB
}

// NewOpportunityPostgres creates a new OpportunityPostgres repository.
func NewOpportunityPostgres(db *sql.DB) *OpportunityPostgres {
	return &OpportunityPostgres{db: db}
}

var _ repository.OpportunityRepository = (*OpportunityPostgres)(nil)

const opportunityColumns = `id, org_id, project_id, source, source_system_id, notice_id, solicitation_number, title, type,
		agency, posted_date, response_deadline, naics_code, psc_code, set_aside, description, estimated_value, active,
		url, created_at, updated_at`

func scanOpportunity(row rowScanner) (*model.Opportunity, error) {
	var (
		o        model.Opportunity
		source   string
		posted   sql.NullTime
		deadline sql.NullTime
		value    sql.NullFloat64
	)
	if err := row.Scan(
		&o.ID,
		&o.OrgID,
		&o.ProjectID,
		&source,
		&o.SourceSystemID,
		&o.NoticeID,
		&o.SolicitationNumber,
		&o.Title,
		&o.Type,
		&o.Agency,
		&posted,
		&deadline,
		&o.NaicsCode,
		&o.PscCode,
		&o.SetAside,
		&o.Description,
		&value,
		&o.Active,
		&o.URL,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Source = model.Source(source)
	if posted.Valid {
		t := posted.Time
		o.PostedDate = &t
	}
	if deadline.Valid {
		t := deadline.Time
		o.ResponseDeadline = &t
	}
	if value.Valid {
		v := value.Float64
		o.EstimatedValue = &v
	}
	return &o, nil
}

// Upsert inserts the opportunity or refreshes the row that shares its
// (org_id, project_id, source_system_id) key. The stored ID and created_at
// of an existing row are preserved.
func (r *OpportunityPostgres) Upsert(ctx context.Context, o *model.Opportunity) (*model.Opportunity, error) {
	q := `
		INSERT INTO opportunities (id, org_id, project_id, source, source_system_id, notice_id, solicitation_number,
			title, type, agency, posted_date, response_deadline, naics_code, psc_code, set_aside, description,
			estimated_value, active, url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (org_id, project_id, source_system_id) DO UPDATE SET
			source = EXCLUDED.source,
			notice_id = EXCLUDED.notice_id,
			solicitation_number = EXCLUDED.solicitation_number,
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			agency = EXCLUDED.agency,
			posted_date = EXCLUDED.posted_date,
			response_deadline = EXCLUDED.response_deadline,
			naics_code = EXCLUDED.naics_code,
			psc_code = EXCLUDED.psc_code,
			set_aside = EXCLUDED.set_aside,
			description = EXCLUDED.description,
			estimated_value = EXCLUDED.estimated_value,
			active = EXCLUDED.active,
			url = EXCLUDED.url,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + opportunityColumns
	row := r.db.QueryRowContext(ctx, q,
		o.ID,
		o.OrgID,
		o.ProjectID,
		string(o.Source),
		o.SourceSystemID,
		o.NoticeID,
		o.SolicitationNumber,
		o.Title,
		o.Type,
		o.Agency,
		o.PostedDate,
		o.ResponseDeadline,
		o.NaicsCode,
		o.PscCode,
		o.SetAside,
		o.Description,
		o.EstimatedValue,
		o.Active,
		o.URL,
		o.CreatedAt,
		o.UpdatedAt,
	)
	return scanOpportunity(row)
}

// FindByID fetches a single opportunity.
func (r *OpportunityPostgres) FindByID(ctx context.Context, id string) (*model.Opportunity, error) {
	q := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	o, err := scanOpportunity(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}
