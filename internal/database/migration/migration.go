package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_orgs",
		SQL: `CREATE TABLE IF NOT EXISTS orgs (
  id         TEXT        PRIMARY KEY,
  name       TEXT        NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_projects",
		SQL: `CREATE TABLE IF NOT EXISTS projects (
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  org_id     TEXT        NOT NULL REFERENCES orgs (id) ON DELETE CASCADE,
  name       TEXT        NOT NULL,
  is_default BOOLEAN     NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_projects_default",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_one_default ON projects (org_id) WHERE is_default;`,
	},
	{
		Name: "create_table_provider_credentials",
		SQL: `CREATE TABLE IF NOT EXISTS provider_credentials (
  org_id     TEXT        NOT NULL REFERENCES orgs (id) ON DELETE CASCADE,
  source     TEXT        NOT NULL,
  api_key    TEXT        NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (org_id, source)
);`,
	},
	{
		Name: "create_table_saved_searches",
		SQL: `CREATE TABLE IF NOT EXISTS saved_searches (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  org_id      TEXT        NOT NULL REFERENCES orgs (id) ON DELETE CASCADE,
  name        TEXT        NOT NULL DEFAULT '',
  criteria    JSONB       NOT NULL DEFAULT '{}'::jsonb,
  frequency   TEXT        NOT NULL DEFAULT 'DAILY',
  auto_import BOOLEAN     NOT NULL DEFAULT false,
  source      TEXT        NOT NULL,
  last_run_at TIMESTAMPTZ,
  is_enabled  BOOLEAN     NOT NULL DEFAULT true,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_saved_searches_org",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_saved_searches_org ON saved_searches (org_id) WHERE is_enabled;`,
	},
	{
		Name: "create_table_opportunities",
		SQL: `CREATE TABLE IF NOT EXISTS opportunities (
  id                  UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  org_id              TEXT        NOT NULL,
  project_id          UUID        NOT NULL,
  source              TEXT        NOT NULL,
  source_system_id    TEXT        NOT NULL,
  notice_id           TEXT        NOT NULL DEFAULT '',
  solicitation_number TEXT        NOT NULL DEFAULT '',
  title               TEXT        NOT NULL DEFAULT '',
  type                TEXT        NOT NULL DEFAULT '',
  agency              TEXT        NOT NULL DEFAULT '',
  posted_date         TIMESTAMPTZ,
  response_deadline   TIMESTAMPTZ,
  naics_code          TEXT        NOT NULL DEFAULT '',
  psc_code            TEXT        NOT NULL DEFAULT '',
  set_aside           TEXT        NOT NULL DEFAULT '',
  description         TEXT        NOT NULL DEFAULT '',
  estimated_value     NUMERIC,
  active              BOOLEAN     NOT NULL DEFAULT true,
  url                 TEXT        NOT NULL DEFAULT '',
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (org_id, project_id, source_system_id)
);`,
	},
	{
		Name: "create_table_ingestion_documents",
		SQL: `CREATE TABLE IF NOT EXISTS ingestion_documents (
  id                 UUID        PRIMARY KEY,
  org_id             TEXT        NOT NULL,
  project_id         UUID        NOT NULL,
  opportunity_id     TEXT        NOT NULL,
  storage_key        TEXT        NOT NULL,
  original_file_name TEXT        NOT NULL,
  mime_type          TEXT        NOT NULL,
  size               BIGINT      NOT NULL DEFAULT 0 CHECK (size >= 0),
  source_document_id TEXT        NOT NULL DEFAULT '',
  status             TEXT        NOT NULL,
  resume_token       TEXT,
  execution_ref      TEXT        NOT NULL DEFAULT '',
  ocr_job_id         TEXT        NOT NULL DEFAULT '',
  error_message      TEXT        NOT NULL DEFAULT '',
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  CHECK ((status = 'AWAITING_OCR') = (resume_token IS NOT NULL))
);`,
	},
	{
		Name: "create_index_documents_opportunity_key",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_opportunity_key ON ingestion_documents (opportunity_id, storage_key);`,
	},
	{
		Name: "create_index_documents_project_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_project_created_at ON ingestion_documents (project_id, created_at);`,
	},
}

// EnsureMigrated checks if the 'ingestion_documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With("component", "database", "db_host", dbHost)

	log.Info("db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.ingestion_documents') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}
