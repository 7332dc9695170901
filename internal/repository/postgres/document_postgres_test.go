package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

var documentCols = []string{"id", "org_id", "project_id", "opportunity_id", "storage_key", "original_file_name",
	"mime_type", "size", "source_document_id", "status", "resume_token", "execution_ref", "ocr_job_id",
	"error_message", "created_at", "updated_at"}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &model.IngestionDocument{
		ID:               "doc-1",
		OrgID:            "org-1",
		ProjectID:        "proj-1",
		OpportunityID:    "opp-1",
		StorageKey:       "org_org-1/projects/proj-1/opportunities/opp-1/attachments/sow.pdf",
		OriginalFileName: "sow.pdf",
		MimeType:         "application/pdf",
		Size:             123,
		Status:           model.StatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	rows := sqlmock.NewRows(documentCols).
		AddRow(doc.ID, doc.OrgID, doc.ProjectID, doc.OpportunityID, doc.StorageKey, doc.OriginalFileName,
			doc.MimeType, doc.Size, "", "UPLOADED", nil, "", "", "", now, now)

	mock.ExpectQuery("INSERT INTO ingestion_documents").
		WithArgs(doc.ID, doc.OrgID, doc.ProjectID, doc.OpportunityID, doc.StorageKey, doc.OriginalFileName,
			doc.MimeType, doc.Size, "", "UPLOADED", "", "", "", "", now, now).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, doc)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, doc.ID, result.ID)
	assert.Equal(t, model.StatusUploaded, result.Status)
	assert.Empty(t, result.ResumeToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(documentCols).
			AddRow("doc-1", "org-1", "proj-1", "opp-1", "key", "a.pdf", "application/pdf", 10, "",
				"AWAITING_OCR", "tok-1", "wf/run", "job-1", "", time.Now(), time.Now())

		mock.ExpectQuery("SELECT (.+) FROM ingestion_documents WHERE id = ?").
			WithArgs("doc-1").
			WillReturnRows(rows)

		doc, err := repo.FindByID(ctx, "doc-1")

		assert.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, model.StatusAwaitingOCR, doc.Status)
		assert.Equal(t, "tok-1", doc.ResumeToken)
		assert.Equal(t, "job-1", doc.OcrJobID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM ingestion_documents WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})
}

func TestDocumentPostgres_FindLiveByStorageKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)

	mock.ExpectQuery("SELECT (.+) FROM ingestion_documents (.+) status NOT IN").
		WithArgs("opp-1", "key").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindLiveByStorageKey(context.Background(), "opp-1", "key")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM ingestion_documents").
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(documentCols).
		AddRow("doc-1", "org-1", "proj-1", "opp-1", "key", "a.pdf", "application/pdf", 10, "",
			"PROCESSED", nil, "", "", "", time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM ingestion_documents (.+) ORDER BY").
		WithArgs("proj-1", 10, 0).
		WillReturnRows(rows)

	res, err := repo.List(ctx, repository.PageQuery{ProjectID: "proj-1", Limit: 10, Offset: 0})

	assert.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Transition(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		tr       model.Transition
		args     []any
		affected int64
		want     bool
		wantErr  bool
	}{
		{
			name: "suspend with token",
			tr: model.Transition{
				From:        []model.DocumentStatus{model.StatusProcessing},
				To:          model.StatusAwaitingOCR,
				ResumeToken: "tok-1",
				At:          at,
			},
			args:     []any{"doc-1", "AWAITING_OCR", "tok-1", "", "", false, at, "PROCESSING"},
			affected: 1,
			want:     true,
		},
		{
			name: "resume requires the stored token",
			tr: model.Transition{
				From:        []model.DocumentStatus{model.StatusAwaitingOCR},
				To:          model.StatusTextReady,
				ExpectToken: "tok-1",
				At:          at,
			},
			args:     []any{"doc-1", "TEXT_READY", "", "", "", false, at, "AWAITING_OCR", "tok-1"},
			affected: 0,
			want:     false,
		},
		{
			name: "failure keeps message",
			tr: model.Transition{
				From:         model.NonTerminalStatuses,
				To:           model.StatusFailed,
				ErrorMessage: "ocr job job-1 ended with status FAILED",
				At:           at,
			},
			args: []any{"doc-1", "FAILED", "", "ocr job job-1 ended with status FAILED", "", false, at,
				"UPLOADED", "PROCESSING", "AWAITING_OCR", "TEXT_READY"},
			affected: 1,
			want:     true,
		},
		{
			name: "invalid transition rejected before SQL",
			tr: model.Transition{
				From: []model.DocumentStatus{model.StatusProcessing},
				To:   model.StatusAwaitingOCR,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			repo := NewDocumentPostgres(db)

			if !tt.wantErr {
				mock.ExpectExec("UPDATE ingestion_documents").
					WithArgs(toDriverValues(tt.args)...).
					WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			got, err := repo.Transition(context.Background(), "doc-1", tt.tr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDocumentPostgres_SetExecutionRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)

	mock.ExpectExec("UPDATE ingestion_documents SET execution_ref").
		WithArgs("doc-1", "wf/run").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE ingestion_documents SET execution_ref").
		WithArgs("gone", "wf/run").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.SetExecutionRef(context.Background(), "doc-1", "wf/run"))
	assert.ErrorIs(t, repo.SetExecutionRef(context.Background(), "gone", "wf/run"), repository.ErrNotFound)
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM ingestion_documents WHERE id = ?").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(ctx, "doc-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func toDriverValues(args []any) []driver.Value {
	out := make([]driver.Value, 0, len(args))
	for _, a := range args {
		out = append(out, equalArg{want: a})
	}
	return out
}

type equalArg struct {
	want any
}

func (e equalArg) Match(v driver.Value) bool {
	if t, ok := e.want.(time.Time); ok {
		got, ok := v.(time.Time)
		return ok && got.Equal(t)
	}
	return v == e.want
}
