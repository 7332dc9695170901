package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

var opportunityCols = []string{"id", "org_id", "project_id", "source", "source_system_id", "notice_id",
	"solicitation_number", "title", "type", "agency", "posted_date", "response_deadline", "naics_code", "psc_code",
	"set_aside", "description", "estimated_value", "active", "url", "created_at", "updated_at"}

func TestOpportunityPostgres_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOpportunityPostgres(db)
	posted := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	opp := &model.Opportunity{
		ID:             "new-id",
		OrgID:          "org-1",
		ProjectID:      "proj-1",
		Source:         model.SourceSamGov,
		SourceSystemID: "notice-1",
		Title:          "Radar spares",
		PostedDate:     &posted,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// An existing row keeps its original id.
	rows := sqlmock.NewRows(opportunityCols).
		AddRow("existing-id", "org-1", "proj-1", "SAM_GOV", "notice-1", "", "", "Radar spares", "", "",
			posted, nil, "", "", "", "", 125000.5, true, "", now, now)

	mock.ExpectQuery("INSERT INTO opportunities (.+) ON CONFLICT").WillReturnRows(rows)

	got, err := repo.Upsert(context.Background(), opp)

	require.NoError(t, err)
	assert.Equal(t, "existing-id", got.ID)
	require.NotNil(t, got.PostedDate)
	assert.True(t, got.PostedDate.Equal(posted))
	assert.Nil(t, got.ResponseDeadline)
	require.NotNil(t, got.EstimatedValue)
	assert.InDelta(t, 125000.5, *got.EstimatedValue, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunityPostgres_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE id").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err = NewOpportunityPostgres(db).FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
