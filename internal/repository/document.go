package repository

import (
	"context"
	"time"

	"bidflow/internal/model"
)

// DocumentRepository persists ingestion documents. Status changes go through
// Transition only, so every mutation carries its precondition.
type DocumentRepository interface {
	// Create inserts a new document record.
	Create(ctx context.Context, doc *model.IngestionDocument) (*model.IngestionDocument, error)

	// FindByID returns a document by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.IngestionDocument, error)

	// FindLiveByStorageKey returns the newest document for the opportunity
	// and key that is neither FAILED nor CANCELLED, or ErrNotFound.
	FindLiveByStorageKey(ctx context.Context, opportunityID, storageKey string) (*model.IngestionDocument, error)

	// List returns a paginated list of documents and total rows count for the given filter.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.IngestionDocument], error)

	// Transition applies tr if its precondition holds and reports whether a
	// row changed.
	Transition(ctx context.Context, id string, tr model.Transition) (bool, error)

	// SetExecutionRef records the workflow handle used for cancellation.
	SetExecutionRef(ctx context.Context, id, ref string) error

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// SavedSearchRepository reads saved searches and advances their run marker.
type SavedSearchRepository interface {
	Create(ctx context.Context, s *model.SavedSearch) (*model.SavedSearch, error)

	// ListEnabled returns the enabled searches of one organization.
	ListEnabled(ctx context.Context, orgID string) ([]model.SavedSearch, error)

	// AdvanceLastRun moves last_run_at forward to runAt. It returns
	// ErrStaleWrite when the search is gone or already has a later run.
	AdvanceLastRun(ctx context.Context, orgID, id string, runAt time.Time) error
}

// OpportunityRepository stores canonical solicitation records.
type OpportunityRepository interface {
	// Upsert inserts opp or updates the row sharing its dedup key, returning
	// the stored record with its stable ID.
	Upsert(ctx context.Context, opp *model.Opportunity) (*model.Opportunity, error)

	FindByID(ctx context.Context, id string) (*model.Opportunity, error)
}

// TenantRepository resolves organizations and their import targets.
type TenantRepository interface {
	ListOrgIDs(ctx context.Context) ([]string, error)

	// DefaultProject returns the org's default project, or ErrNotFound.
	DefaultProject(ctx context.Context, orgID string) (*model.Project, error)
}

// CredentialRepository looks up per-tenant provider API keys.
type CredentialRepository interface {
	// APIKey returns the key for (orgID, source), or ErrNotFound.
	APIKey(ctx context.Context, orgID string, source model.Source) (string, error)
}
