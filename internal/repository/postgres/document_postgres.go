package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, org_id, project_id, opportunity_id, storage_key, original_file_name, mime_type, size,
		source_document_id, status, resume_token, execution_ref, ocr_job_id, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.IngestionDocument, error) {
	var (
		d      model.IngestionDocument
		status string
		token  sql.NullString
	)
	if err := row.Scan(
		&d.ID,
		&d.OrgID,
		&d.ProjectID,
		&d.OpportunityID,
		&d.StorageKey,
		&d.OriginalFileName,
		&d.MimeType,
		&d.Size,
		&d.SourceDocumentID,
		&status,
		&token,
		&d.ExecutionRef,
		&d.OcrJobID,
		&d.ErrorMessage,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.ResumeToken = token.String
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.IngestionDocument) (*model.IngestionDocument, error) {
	const q = `
		INSERT INTO ingestion_documents (id, org_id, project_id, opportunity_id, storage_key, original_file_name,
			mime_type, size, source_document_id, status, resume_token, execution_ref, ocr_job_id, error_message,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15, $16)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OrgID,
		doc.ProjectID,
		doc.OpportunityID,
		doc.StorageKey,
		doc.OriginalFileName,
		doc.MimeType,
		doc.Size,
		doc.SourceDocumentID,
		string(doc.Status),
		doc.ResumeToken,
		doc.ExecutionRef,
		doc.OcrJobID,
		doc.ErrorMessage,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its primary key.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.IngestionDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM ingestion_documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// FindLiveByStorageKey returns the newest non-failed, non-cancelled document
// tracking key for the opportunity.
func (r *DocumentPostgres) FindLiveByStorageKey(ctx context.Context, opportunityID, storageKey string) (*model.IngestionDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM ingestion_documents
		WHERE opportunity_id = $1 AND storage_key = $2 AND status NOT IN ('FAILED', 'CANCELLED')
		ORDER BY created_at DESC
		LIMIT 1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, opportunityID, storageKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
// An empty ProjectID lists across projects.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.IngestionDocument], error) {
	const qCount = `SELECT COUNT(*) FROM ingestion_documents WHERE ($1 = '' OR project_id::text = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, pq.ProjectID).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + documentColumns + ` FROM ingestion_documents
		WHERE ($1 = '' OR project_id::text = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, qList, pq.ProjectID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.IngestionDocument, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.IngestionDocument]{
		Items: items,
		Total: total,
	}, nil
}

// Transition performs a compare-and-set on status (and optionally the
// resume token) in a single UPDATE.
func (r *DocumentPostgres) Transition(ctx context.Context, id string, tr model.Transition) (bool, error) {
	if !tr.Valid() {
		return false, fmt.Errorf("invalid transition to %s", tr.To)
	}
	at := tr.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	errMsg := ""
	if tr.To == model.StatusFailed {
		errMsg = tr.ErrorMessage
	}

	args := []any{id, string(tr.To), tr.ResumeToken, errMsg, tr.OcrJobID, tr.To == model.StatusUploaded, at}
	placeholders := make([]string, 0, len(tr.From))
	for _, s := range tr.From {
		args = append(args, string(s))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	q := `UPDATE ingestion_documents
		SET status = $2,
			resume_token = NULLIF($3, ''),
			error_message = $4,
			ocr_job_id = CASE WHEN $6 THEN '' WHEN $5 <> '' THEN $5 ELSE ocr_job_id END,
			execution_ref = CASE WHEN $6 THEN '' ELSE execution_ref END,
			updated_at = $7
		WHERE id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)`
	if tr.ExpectToken != "" {
		args = append(args, tr.ExpectToken)
		q += fmt.Sprintf(" AND resume_token = $%d", len(args))
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetExecutionRef stores the workflow handle for id.
func (r *DocumentPostgres) SetExecutionRef(ctx context.Context, id, ref string) error {
	const q = `UPDATE ingestion_documents SET execution_ref = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, ref)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM ingestion_documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
