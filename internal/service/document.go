package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"bidflow/internal/importer"
	"bidflow/internal/ingestion"
	"bidflow/internal/model"
	"bidflow/internal/repository"
	"bidflow/internal/storage"
)

var (
	ErrIDRequired   = errors.New("id is required")
	ErrNotFound     = errors.New("document not found")
	ErrReaderNil    = errors.New("reader is nil")
	ErrInvalidInput = errors.New("org_id, project_id and opportunity_id are required")
	ErrInvalidState = errors.New("document is not in a status that allows this operation")
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.IngestionDocument `json:"data"`
	Total int                       `json:"total"`
}

// UploadInput is a manually uploaded file and the opportunity it belongs to.
type UploadInput struct {
	OrgID         string
	ProjectID     string
	OpportunityID string
	Filename      string
	ContentType   string
	Size          int64
	Body          io.Reader
}

// Ingester stores a file and starts its ingestion.
type Ingester interface {
	Ingest(ctx context.Context, t importer.Target, f importer.File) (*importer.Imported, error)
}

// Lifecycle is the part of the ingestion state machine a user can drive.
type Lifecycle interface {
	Cancel(ctx context.Context, documentID string) error
	Retry(ctx context.Context, documentID string) error
}

var (
	_ Ingester  = (*importer.Pipeline)(nil)
	_ Lifecycle = (*ingestion.Machine)(nil)
)

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload stores the file under the opportunity's attachment key and
	// starts ingestion. Re-uploading a file whose live document still
	// tracks the key returns that document.
	Upload(ctx context.Context, in UploadInput) (*model.IngestionDocument, error)

	// List returns documents using limit/offset and a total count. An empty
	// projectID lists across projects.
	List(ctx context.Context, projectID string, limit, offset int) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.IngestionDocument, error)

	// Delete removes a terminal document and, unless another live document
	// tracks the same key, its stored object.
	Delete(ctx context.Context, id string) error

	// Cancel stops an in-flight ingestion.
	Cancel(ctx context.Context, id string) (*model.IngestionDocument, error)

	// Retry restarts a cancelled document.
	Retry(ctx context.Context, id string) (*model.IngestionDocument, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	ingester  Ingester
	lifecycle Lifecycle
	store     storage.Storage
	repo      repository.DocumentRepository
	logger    *slog.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(ingester Ingester, lifecycle Lifecycle, store storage.Storage, repo repository.DocumentRepository, logger *slog.Logger) DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		ingester:  ingester,
		lifecycle: lifecycle,
		store:     store,
		repo:      repo,
		logger:    logger.With("component", "documents"),
	}
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (*model.IngestionDocument, error) {
	if in.Body == nil {
		return nil, ErrReaderNil
	}
	if in.OrgID == "" || in.ProjectID == "" || in.OpportunityID == "" {
		return nil, ErrInvalidInput
	}

	got, err := s.ingester.Ingest(ctx, importer.Target{
		OrgID:         in.OrgID,
		ProjectID:     in.ProjectID,
		OpportunityID: in.OpportunityID,
	}, importer.File{
		Name:        in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
		Body:        in.Body,
	})
	if err != nil {
		// The document exists but did not start; it is already FAILED.
		if got != nil && got.Document != nil {
			s.logger.Warn("upload_start_failed", "document_id", got.Document.ID, "error", err)
			return s.reload(ctx, got.Document)
		}
		return nil, err
	}
	return got.Document, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, projectID string, limit, offset int) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{ProjectID: projectID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.IngestionDocument, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return doc, nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Status.IsTerminal() {
		return fmt.Errorf("%w: delete document %s in %s", ErrInvalidState, id, doc.Status)
	}

	shared := false
	live, err := s.repo.FindLiveByStorageKey(ctx, doc.OpportunityID, doc.StorageKey)
	switch {
	case err == nil:
		shared = live.ID != doc.ID
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("look up documents sharing %s: %w", doc.StorageKey, err)
	}

	// Delete from storage first so a failure keeps the row that references it.
	if !shared {
		if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document_deleted", "document_id", id, "storage_key", doc.StorageKey, "object_kept", shared)
	return nil
}

func (s *documentService) Cancel(ctx context.Context, id string) (*model.IngestionDocument, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if err := s.lifecycle.Cancel(ctx, id); err != nil {
		return nil, mapErr(err)
	}
	return s.Get(ctx, id)
}

func (s *documentService) Retry(ctx context.Context, id string) (*model.IngestionDocument, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if err := s.lifecycle.Retry(ctx, id); err != nil {
		err = mapErr(err)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) {
			return nil, err
		}
		// Restart failures leave the document FAILED with a message.
		s.logger.Warn("retry_start_failed", "document_id", id, "error", err)
	}
	return s.Get(ctx, id)
}

func (s *documentService) reload(ctx context.Context, doc *model.IngestionDocument) (*model.IngestionDocument, error) {
	current, err := s.repo.FindByID(ctx, doc.ID)
	if err != nil {
		return doc, nil
	}
	return current, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ingestion.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return err
}
