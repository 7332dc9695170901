//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"bidflow/internal/database/migration"
	"bidflow/internal/model"
	"bidflow/internal/repository"
)

var testDB *sql.DB

// TestMain starts a throwaway PostgreSQL and migrates it once for the package.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "bidflow",
				"POSTGRES_PASSWORD": "bidflow",
				"POSTGRES_DB":       "bidflow",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://bidflow:bidflow@%s:%s/bidflow?sslmode=disable", host, port.Port())
	testDB, err = sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := migration.EnsureMigrated(ctx, testDB, slog.Default(), host); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	code := m.Run()

	_ = testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func seedTenant(t *testing.T, orgID string) string {
	t.Helper()
	_, err := testDB.Exec(`INSERT INTO orgs (id, name) VALUES ($1, $1)`, orgID)
	require.NoError(t, err)
	var projectID string
	err = testDB.QueryRow(`INSERT INTO projects (org_id, name, is_default) VALUES ($1, 'default', true) RETURNING id`,
		orgID).Scan(&projectID)
	require.NoError(t, err)
	return projectID
}

func TestIntegration_DocumentTransitions(t *testing.T) {
	ctx := context.Background()
	projectID := seedTenant(t, "org-int-docs")
	repo := NewDocumentPostgres(testDB)

	now := time.Now().UTC().Truncate(time.Microsecond)
	doc, err := repo.Create(ctx, &model.IngestionDocument{
		ID:               uuid.NewString(),
		OrgID:            "org-int-docs",
		ProjectID:        projectID,
		OpportunityID:    "opp-1",
		StorageKey:       "k/a.pdf",
		OriginalFileName: "a.pdf",
		MimeType:         "application/pdf",
		Status:           model.StatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)

	ok, err := repo.Transition(ctx, doc.ID, model.Transition{
		From: []model.DocumentStatus{model.StatusUploaded}, To: model.StatusProcessing, At: now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Transition(ctx, doc.ID, model.Transition{
		From: []model.DocumentStatus{model.StatusProcessing}, To: model.StatusAwaitingOCR, ResumeToken: "tok", At: now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	// Wrong token does not resume.
	ok, err = repo.Transition(ctx, doc.ID, model.Transition{
		From: []model.DocumentStatus{model.StatusAwaitingOCR}, To: model.StatusTextReady, ExpectToken: "other", At: now,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, doc.ID, model.Transition{
		From: []model.DocumentStatus{model.StatusAwaitingOCR}, To: model.StatusTextReady, ExpectToken: "tok", At: now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTextReady, got.Status)
	assert.Empty(t, got.ResumeToken)

	// The table rejects a waiting row without a token.
	_, err = testDB.ExecContext(ctx, `UPDATE ingestion_documents SET status = 'AWAITING_OCR' WHERE id = $1`, doc.ID)
	assert.Error(t, err)
}

func TestIntegration_AdvanceLastRunMonotonic(t *testing.T) {
	ctx := context.Background()
	seedTenant(t, "org-int-search")
	repo := NewSavedSearchPostgres(testDB)

	s, err := repo.Create(ctx, &model.SavedSearch{
		ID:        uuid.NewString(),
		OrgID:     "org-int-search",
		Name:      "radar",
		Frequency: model.FrequencyDaily,
		Source:    model.SourceSamGov,
		IsEnabled: true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	later := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, repo.AdvanceLastRun(ctx, s.OrgID, s.ID, later))
	assert.ErrorIs(t, repo.AdvanceLastRun(ctx, s.OrgID, s.ID, earlier), repository.ErrStaleWrite)

	list, err := repo.ListEnabled(ctx, s.OrgID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].LastRunAt.Equal(later))
}
