package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"bidflow/internal/importer"
	"bidflow/internal/model"
	"bidflow/internal/provider"
	"bidflow/internal/repository"
)

// SkipReason explains why a due search imported nothing.
type SkipReason string

const (
	SkipNoDefaultProject SkipReason = "NO_DEFAULT_PROJECT"
	SkipNoCredentials    SkipReason = "NO_CREDENTIALS"
)

// RunOptions select the tenants of a pass. An empty OrgID runs every
// tenant. A dry run searches but neither imports nor advances last runs.
type RunOptions struct {
	OrgID  string `json:"org_id,omitempty"`
	DryRun bool   `json:"dry_run"`
}

// ImportRunResult is the outcome of one due saved search.
type ImportRunResult struct {
	SavedSearchID   string       `json:"saved_search_id"`
	Name            string       `json:"name,omitempty"`
	Source          model.Source `json:"source"`
	Found           int          `json:"found"`
	Imported        int          `json:"imported"`
	SkipReason      SkipReason   `json:"skip_reason,omitempty"`
	Error           string       `json:"error,omitempty"`
	LastRunAdvanced bool         `json:"last_run_advanced"`
}

// TenantResult groups the due searches of one organization. Error is set
// when the tenant could not be processed at all.
type TenantResult struct {
	OrgID    string            `json:"org_id"`
	Searches []ImportRunResult `json:"searches"`
	Error    string            `json:"error,omitempty"`
}

// RunResult is the outcome of one pass.
type RunResult struct {
	StartedAt        time.Time      `json:"started_at"`
	DryRun           bool           `json:"dry_run"`
	TenantsProcessed int            `json:"tenants_processed"`
	Tenants          []TenantResult `json:"tenants"`
}

// OpportunityImporter imports one search hit with its attachments.
type OpportunityImporter interface {
	ImportOpportunity(ctx context.Context, adapter provider.Adapter, apiKey, orgID, projectID, sourceSystemID string) (*importer.Result, error)
}

// KeyResolver returns a provider key or a *importer.ConfigurationError.
type KeyResolver interface {
	Resolve(ctx context.Context, orgID string, source model.Source) (string, error)
}

// Options tune a Scheduler. Zero values select defaults.
type Options struct {
	ImportCap    int
	LookbackDays int
	Metrics      *Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// Scheduler runs due saved searches tenant by tenant. Tenants, searches
// and imports are processed sequentially so a rate-limited provider sees
// at most one request at a time.
type Scheduler struct {
	tenants   repository.TenantRepository
	searches  repository.SavedSearchRepository
	registry  *provider.Registry
	keys      KeyResolver
	importer  OpportunityImporter
	importCap int
	lookback  time.Duration
	group     singleflight.Group
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

func New(
	tenants repository.TenantRepository,
	searches repository.SavedSearchRepository,
	registry *provider.Registry,
	keys KeyResolver,
	imp OpportunityImporter,
	opts Options,
) *Scheduler {
	s := &Scheduler{
		tenants:   tenants,
		searches:  searches,
		registry:  registry,
		keys:      keys,
		importer:  imp,
		importCap: 25,
		lookback:  30 * 24 * time.Hour,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("bidflow/scheduler"),
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if opts.ImportCap > 0 {
		s.importCap = opts.ImportCap
	}
	if opts.LookbackDays > 0 {
		s.lookback = time.Duration(opts.LookbackDays) * 24 * time.Hour
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "scheduler")
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Run performs one pass. Concurrent calls with the same options share a
// single pass and its result. Only a failure to list tenants is returned
// as an error; everything else is recorded in the result.
func (s *Scheduler) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	key := fmt.Sprintf("org=%s dry=%t", opts.OrgID, opts.DryRun)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.run(ctx, opts)
	})
	if shared {
		s.logger.Info("scheduler_run_shared", "org_id", opts.OrgID, "dry_run", opts.DryRun)
	}
	if err != nil {
		return nil, err
	}
	return v.(*RunResult), nil
}

// Loop runs a pass immediately and then every interval until ctx ends.
func (s *Scheduler) Loop(ctx context.Context, interval time.Duration, opts RunOptions) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Run(ctx, opts); err != nil {
			s.logger.Error("scheduler_run_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "scheduler.Run", trace.WithAttributes(
		attribute.String("org.id", opts.OrgID),
		attribute.Bool("dry_run", opts.DryRun),
	))
	defer span.End()

	orgIDs := []string{opts.OrgID}
	if opts.OrgID == "" {
		ids, err := s.tenants.ListOrgIDs(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list tenants failed")
			return nil, fmt.Errorf("list tenants: %w", err)
		}
		orgIDs = ids
	}

	res := &RunResult{StartedAt: start, DryRun: opts.DryRun, Tenants: make([]TenantResult, 0, len(orgIDs))}
	for _, orgID := range orgIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Tenants = append(res.Tenants, s.runTenant(ctx, orgID, start, opts.DryRun))
		res.TenantsProcessed++
	}

	elapsed := s.now().Sub(start)
	s.metrics.observeRun(elapsed.Seconds())
	s.logger.Info("scheduler_run_completed",
		"tenants", res.TenantsProcessed,
		"dry_run", opts.DryRun,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (s *Scheduler) runTenant(ctx context.Context, orgID string, start time.Time, dryRun bool) TenantResult {
	log := s.logger.With("org_id", orgID)
	tr := TenantResult{OrgID: orgID, Searches: []ImportRunResult{}}

	searches, err := s.searches.ListEnabled(ctx, orgID)
	if err != nil {
		log.Error("scheduler_tenant_failed", "error", err)
		tr.Error = fmt.Sprintf("load saved searches: %v", err)
		return tr
	}

	var projectID string
	project, err := s.tenants.DefaultProject(ctx, orgID)
	switch {
	case err == nil:
		projectID = project.ID
	case !errors.Is(err, repository.ErrNotFound):
		log.Error("scheduler_tenant_failed", "error", err)
		tr.Error = fmt.Sprintf("resolve default project: %v", err)
		return tr
	}

	for _, search := range searches {
		if !IsDue(search, start) {
			s.metrics.search("not_due")
			continue
		}
		tr.Searches = append(tr.Searches, s.runSearch(ctx, search, projectID, start, dryRun))
	}
	return tr
}

func (s *Scheduler) runSearch(ctx context.Context, search model.SavedSearch, projectID string, start time.Time, dryRun bool) ImportRunResult {
	ctx, span := s.tracer.Start(ctx, "scheduler.Search", trace.WithAttributes(
		attribute.String("org.id", search.OrgID),
		attribute.String("saved_search.id", search.ID),
		attribute.String("source", string(search.Source)),
	))
	defer span.End()

	log := s.logger.With("org_id", search.OrgID, "saved_search_id", search.ID, "source", string(search.Source))
	res := ImportRunResult{SavedSearchID: search.ID, Name: search.Name, Source: search.Source}

	adapter, err := s.registry.Get(search.Source)
	if err != nil {
		return s.failed(span, log, res, err)
	}
	apiKey, err := s.keys.Resolve(ctx, search.OrgID, search.Source)
	if err != nil {
		var ce *importer.ConfigurationError
		if errors.As(err, &ce) {
			log.Warn("saved_search_skipped", "skip_reason", string(SkipNoCredentials), "error", err)
			s.metrics.search("skipped")
			res.SkipReason = SkipNoCredentials
			res.Error = err.Error()
			return res
		}
		return s.failed(span, log, res, err)
	}

	autoImport := search.AutoImport && !dryRun
	if search.AutoImport && projectID == "" {
		res.SkipReason = SkipNoDefaultProject
		autoImport = false
	}

	from, to := Window(search, start, s.lookback)
	hits, err := adapter.Search(ctx, apiKey, provider.Query{Criteria: search.Criteria, PostedFrom: from, PostedTo: to})
	if err != nil {
		return s.failed(span, log, res, fmt.Errorf("search: %w", err))
	}
	hits = withSourceIDs(log, hits)
	hits = provider.RankNewestFirst(hits)
	res.Found = len(hits)

	var importErrs []string
	if autoImport {
		for _, hit := range hits[:min(len(hits), s.importCap)] {
			if _, err := s.importer.ImportOpportunity(ctx, adapter, apiKey, search.OrgID, projectID, hit.SourceSystemID); err != nil {
				log.Warn("scheduled_import_failed", "source_system_id", hit.SourceSystemID, "error", err)
				importErrs = append(importErrs, fmt.Sprintf("%s: %v", hit.SourceSystemID, err))
				continue
			}
			res.Imported++
			s.metrics.importedOpportunity()
		}
		if len(importErrs) > 0 {
			res.Error = strings.Join(importErrs, "; ")
		}
	}

	// A search whose imports were skipped for a missing project keeps its
	// window so the hits are picked up once a default project exists.
	if !dryRun && res.SkipReason == "" {
		switch err := s.searches.AdvanceLastRun(ctx, search.OrgID, search.ID, start); {
		case err == nil:
			res.LastRunAdvanced = true
		case errors.Is(err, repository.ErrStaleWrite):
			log.Info("last_run_not_advanced", "reason", err)
		default:
			log.Error("last_run_advance_failed", "error", err)
			res.Error = joinMessages(res.Error, fmt.Sprintf("advance last run: %v", err))
		}
	}

	outcome := "completed"
	if res.SkipReason != "" {
		outcome = "skipped"
	} else if res.Error != "" {
		outcome = "partial"
	}
	s.metrics.search(outcome)
	log.Info("saved_search_completed",
		"found", res.Found,
		"imported", res.Imported,
		"skip_reason", string(res.SkipReason),
		"last_run_advanced", res.LastRunAdvanced,
		"window_from", from.Format(time.RFC3339),
		"window_to", to.Format(time.RFC3339),
	)
	return res
}

func (s *Scheduler) failed(span trace.Span, log *slog.Logger, res ImportRunResult, err error) ImportRunResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, "saved search failed")
	log.Error("saved_search_failed", "error", err)
	s.metrics.search("failed")
	res.Error = err.Error()
	return res
}

func joinMessages(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// withSourceIDs drops hits that carry no source system id. They cannot be
// fetched and would otherwise use up the import cap.
func withSourceIDs(log *slog.Logger, hits []provider.Result) []provider.Result {
	kept := hits[:0:0]
	for _, h := range hits {
		if strings.TrimSpace(h.SourceSystemID) == "" {
			log.Warn("search_hit_without_source_id", "title", h.Title)
			continue
		}
		kept = append(kept, h)
	}
	return kept
}
