package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bidflow/internal/model"
	"bidflow/internal/provider"
	"bidflow/internal/repository"
)

// ManualImportRequest imports one opportunity by its source id. An empty
// ProjectID targets the organization's default project.
type ManualImportRequest struct {
	OrgID          string       `json:"org_id"`
	ProjectID      string       `json:"project_id,omitempty"`
	Source         model.Source `json:"source"`
	SourceSystemID string       `json:"source_system_id"`
}

// Result summarizes one imported opportunity.
type Result struct {
	OpportunityID     string              `json:"opportunity_id"`
	ImportedFileCount int                 `json:"imported_file_count"`
	Attachments       []AttachmentOutcome `json:"attachments,omitempty"`
}

// Service imports opportunities with their attachments.
type Service struct {
	registry *provider.Registry
	creds    *Credentials
	tenants  repository.TenantRepository
	opps     repository.OpportunityRepository
	pipeline *Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	registry *provider.Registry,
	creds *Credentials,
	tenants repository.TenantRepository,
	opps repository.OpportunityRepository,
	pipeline *Pipeline,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		creds:    creds,
		tenants:  tenants,
		opps:     opps,
		pipeline: pipeline,
		logger:   logger.With("component", "import_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Pipeline exposes the attachment pipeline for manual uploads.
func (s *Service) Pipeline() *Pipeline { return s.pipeline }

// Credentials exposes the key resolver shared with the scheduler.
func (s *Service) Credentials() *Credentials { return s.creds }

// ImportManual resolves the target project, the adapter and the tenant's
// key, then imports the opportunity.
func (s *Service) ImportManual(ctx context.Context, req ManualImportRequest) (*Result, error) {
	req.OrgID = strings.TrimSpace(req.OrgID)
	req.SourceSystemID = strings.TrimSpace(req.SourceSystemID)
	if req.OrgID == "" || req.SourceSystemID == "" || req.Source == "" {
		return nil, fmt.Errorf("%w: org_id, source and source_system_id are required", ErrInvalidRequest)
	}
	adapter, err := s.registry.Get(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	projectID := req.ProjectID
	if projectID == "" {
		p, err := s.tenants.DefaultProject(ctx, req.OrgID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoDefaultProject
			}
			return nil, fmt.Errorf("resolve default project: %w", err)
		}
		projectID = p.ID
	}

	apiKey, err := s.creds.Resolve(ctx, req.OrgID, req.Source)
	if err != nil {
		return nil, err
	}
	return s.ImportOpportunity(ctx, adapter, apiKey, req.OrgID, projectID, req.SourceSystemID)
}

// ImportOpportunity fetches the detail, upserts the opportunity and
// imports its attachments. Attachment failures are reported in the result,
// not as an error.
func (s *Service) ImportOpportunity(ctx context.Context, adapter provider.Adapter, apiKey, orgID, projectID, sourceSystemID string) (*Result, error) {
	detail, err := adapter.FetchDetail(ctx, apiKey, sourceSystemID)
	if err != nil {
		return nil, fmt.Errorf("fetch detail %s: %w", sourceSystemID, err)
	}
	if detail.SourceSystemID == "" {
		detail.SourceSystemID = sourceSystemID
	}

	opp := detail.Opportunity(orgID, projectID, adapter.Source(), s.now())
	opp.ID = uuid.NewString()
	stored, err := s.opps.Upsert(ctx, opp)
	if err != nil {
		return nil, fmt.Errorf("upsert opportunity %s: %w", sourceSystemID, err)
	}

	count, outcomes := s.pipeline.ImportAll(ctx, Target{
		OrgID:         orgID,
		ProjectID:     projectID,
		OpportunityID: stored.ID,
	}, detail.Attachments)

	s.logger.Info("opportunity_imported",
		"org_id", orgID,
		"project_id", projectID,
		"opportunity_id", stored.ID,
		"source", string(adapter.Source()),
		"source_system_id", sourceSystemID,
		"attachments", len(detail.Attachments),
		"imported", count,
	)
	return &Result{OpportunityID: stored.ID, ImportedFileCount: count, Attachments: outcomes}, nil
}
