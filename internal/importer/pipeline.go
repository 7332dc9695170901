package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bidflow/internal/fetcher"
	"bidflow/internal/model"
	"bidflow/internal/repository"
	"bidflow/internal/storage"
)

// Fetcher downloads one attachment.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// Starter hands a stored document to the ingestion state machine.
type Starter interface {
	StartIngestion(ctx context.Context, documentID string) error
}

// Target is the opportunity an attachment belongs to.
type Target struct {
	OrgID         string
	ProjectID     string
	OpportunityID string
}

// File is content to store under a Target.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	SourceID    string
}

// Imported is a stored attachment. Reused is set when a live document
// already tracked the key and no new ingestion was started.
type Imported struct {
	Document *model.IngestionDocument
	Reused   bool
}

// AttachmentOutcome records one attachment of a batch.
type AttachmentOutcome struct {
	URL        string `json:"url"`
	DocumentID string `json:"document_id,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	Reused     bool   `json:"reused,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Pipeline turns attachments into UPLOADED documents and starts their
// ingestion. It is shared by manual upload, manual import and the
// scheduler.
type Pipeline struct {
	fetcher Fetcher
	store   storage.Storage
	docs    repository.DocumentRepository
	starter Starter
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewPipeline(f Fetcher, store storage.Storage, docs repository.DocumentRepository, starter Starter, metrics *Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher: f,
		store:   store,
		docs:    docs,
		starter: starter,
		metrics: metrics,
		logger:  logger.With("component", "importer"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ImportAttachment fetches ref once, names it and ingests it.
func (p *Pipeline) ImportAttachment(ctx context.Context, t Target, ref model.AttachmentRef) (*Imported, error) {
	res, err := p.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	name := fetcher.ResolveFilename(res.FileName, ref.Name, ref.URL)
	contentType := fetcher.ResolveContentType(ref.MimeType, res.ContentType, name)
	return p.Ingest(ctx, t, File{
		Name:        fetcher.EnsureExtension(name, contentType),
		ContentType: contentType,
		Size:        int64(len(res.Body)),
		Body:        bytes.NewReader(res.Body),
		SourceID:    ref.SourceID,
	})
}

// ImportAll imports refs one after another. A failed attachment is
// recorded and does not stop the rest; the count covers successes.
func (p *Pipeline) ImportAll(ctx context.Context, t Target, refs []model.AttachmentRef) (int, []AttachmentOutcome) {
	imported := 0
	outcomes := make([]AttachmentOutcome, 0, len(refs))
	for _, ref := range refs {
		out := AttachmentOutcome{URL: ref.URL}
		got, err := p.importGuarded(ctx, t, ref)
		if got != nil && got.Document != nil {
			out.DocumentID = got.Document.ID
			out.StorageKey = got.Document.StorageKey
			out.Reused = got.Reused
		}
		if err != nil {
			p.metrics.attachment("failed")
			p.logger.Warn("attachment_import_failed",
				"org_id", t.OrgID,
				"opportunity_id", t.OpportunityID,
				"url", ref.URL,
				"error", err,
			)
			out.Error = err.Error()
		} else {
			imported++
		}
		outcomes = append(outcomes, out)
	}
	return imported, outcomes
}

// importGuarded turns a panic while importing one attachment into that
// attachment's error.
func (p *Pipeline) importGuarded(ctx context.Context, t Target, ref model.AttachmentRef) (got *Imported, err error) {
	defer func() {
		if r := recover(); r != nil {
			got, err = nil, fmt.Errorf("import %s: panic: %v", ref.URL, r)
		}
	}()
	return p.ImportAttachment(ctx, t, ref)
}

// Ingest stores f and starts ingestion. The object is always written; a
// live document already tracking the key is returned instead of a new one.
// A start failure returns the created document with the error.
func (p *Pipeline) Ingest(ctx context.Context, t Target, f File) (*Imported, error) {
	if f.Body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidRequest)
	}
	name := fetcher.SanitizeFilename(fetcher.EnsureExtension(f.Name, f.ContentType))
	key := fetcher.StorageKey(t.OrgID, t.ProjectID, t.OpportunityID, name)

	info, err := p.store.Put(ctx, key, f.Body, storage.PutObjectOptions{
		Size:        f.Size,
		ContentType: f.ContentType,
		Metadata: map[string]string{
			"original-filename": f.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	live, err := p.docs.FindLiveByStorageKey(ctx, t.OpportunityID, key)
	if err == nil {
		p.metrics.attachment("reused")
		p.logger.Info("attachment_reused", "document_id", live.ID, "storage_key", key)
		return &Imported{Document: live, Reused: true}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up document for %s: %w", key, err)
	}

	now := p.now()
	doc := &model.IngestionDocument{
		ID:               uuid.NewString(),
		OrgID:            t.OrgID,
		ProjectID:        t.ProjectID,
		OpportunityID:    t.OpportunityID,
		StorageKey:       info.Key,
		OriginalFileName: f.Name,
		MimeType:         f.ContentType,
		Size:             info.Size,
		SourceDocumentID: f.SourceID,
		Status:           model.StatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	stored, err := p.docs.Create(ctx, doc)
	if err != nil {
		if delErr := p.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if err := p.starter.StartIngestion(ctx, stored.ID); err != nil {
		return &Imported{Document: stored}, fmt.Errorf("start ingestion: %w", err)
	}
	if current, err := p.docs.FindByID(ctx, stored.ID); err == nil {
		stored = current
	}
	p.metrics.attachment("imported")
	p.logger.Info("attachment_imported",
		"document_id", stored.ID,
		"org_id", t.OrgID,
		"opportunity_id", t.OpportunityID,
		"storage_key", key,
		"size", info.Size,
	)
	return &Imported{Document: stored}, nil
}
