// Package bootstrap assembles the process from configuration: record
// stores, object storage, the workflow backend, providers and services.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"bidflow/internal/config"
	"bidflow/internal/database"
	"bidflow/internal/database/migration"
	"bidflow/internal/extract"
	"bidflow/internal/fetcher"
	"bidflow/internal/importer"
	"bidflow/internal/ingestion"
	"bidflow/internal/model"
	"bidflow/internal/ocr"
	"bidflow/internal/orchestrator"
	"bidflow/internal/orchestrator/temporal"
	"bidflow/internal/provider"
	"bidflow/internal/repository"
	"bidflow/internal/repository/memory"
	"bidflow/internal/repository/postgres"
	"bidflow/internal/scheduler"
	"bidflow/internal/service"
	"bidflow/internal/storage"
)

// Stores groups the record stores of one backend.
type Stores struct {
	Documents   repository.DocumentRepository
	Searches    repository.SavedSearchRepository
	Opps        repository.OpportunityRepository
	Tenants     repository.TenantRepository
	Credentials repository.CredentialRepository
}

// App is the wired process.
type App struct {
	Config   *config.AppConfig
	Logger   *slog.Logger
	Registry *prometheus.Registry
	DB       *sql.DB
	Stores   Stores
	Store    storage.Storage

	Machine    *ingestion.Machine
	Correlator *ingestion.Correlator
	Importer   *importer.Service
	Scheduler  *scheduler.Scheduler
	Documents  service.DocumentService

	local    *orchestrator.Local
	temporal client.Client
	worker   worker.Worker
}

// New builds every component. Nothing runs until StartWorkers.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	if err := a.Registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := a.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	if err := a.openStores(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// NewHTTPClient is the outbound client shared by the fetcher, providers,
// the OCR client and the extractor.
func NewHTTPClient(cfg config.FetcherConfig) *http.Client {
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StoreBackend {
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		if err := migration.EnsureMigrated(ctx, db, a.Logger, cfg.Database.Host); err != nil {
			return err
		}
		tenants := postgres.NewTenantPostgres(db)
		a.Stores = Stores{
			Documents:   postgres.NewDocumentPostgres(db),
			Searches:    postgres.NewSavedSearchPostgres(db),
			Opps:        postgres.NewOpportunityPostgres(db),
			Tenants:     tenants,
			Credentials: tenants,
		}
	case "memory":
		tenants := memory.NewTenants()
		a.Stores = Stores{
			Documents:   memory.NewDocuments(),
			Searches:    memory.NewSavedSearches(),
			Opps:        memory.NewOpportunities(),
			Tenants:     tenants,
			Credentials: tenants,
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND value %q", cfg.StoreBackend)
	}

	if cfg.MinIO.Endpoint == "" {
		a.Logger.Warn("object_storage_in_memory", "bucket", cfg.MinIO.Bucket)
		a.Store = storage.NewMemory(cfg.MinIO.Bucket)
		return nil
	}
	store, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) wire() error {
	cfg := a.Config
	httpClient := NewHTTPClient(cfg.Fetcher)

	ingestMetrics, err := ingestion.NewMetrics(a.Registry)
	if err != nil {
		return err
	}
	importMetrics, err := importer.NewMetrics(a.Registry)
	if err != nil {
		return err
	}
	schedMetrics, err := scheduler.NewMetrics(a.Registry)
	if err != nil {
		return err
	}

	var extractor extract.QuestionExtractor = extract.Nop{}
	if cfg.Extractor.Endpoint != "" {
		extractor = extract.NewClient(cfg.Extractor.Endpoint, cfg.Extractor.APIKey, httpClient)
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	a.Machine = ingestion.NewMachine(
		a.Stores.Documents,
		orch,
		ocr.NewClient(cfg.OCR.Endpoint, cfg.OCR.APIKey, httpClient),
		extractor,
		ingestion.Options{
			Bucket:            a.Store.Bucket(),
			MaxSubmitAttempts: cfg.OCR.MaxAttempts,
			Metrics:           ingestMetrics,
			Logger:            a.Logger,
		},
	)
	if a.local != nil {
		a.local.Bind(a.Machine)
	} else {
		a.worker = temporal.NewWorker(a.temporal, cfg.Temporal.TaskQueue, a.Machine)
	}
	a.Correlator = ingestion.NewCorrelator(a.Machine, ingestMetrics, a.Logger)

	registry := provider.NewRegistry(
		provider.NewSamGov(cfg.Providers.SamGovBaseURL, httpClient),
		provider.NewDibbs(cfg.Providers.DibbsBaseURL, httpClient),
	)
	creds := importer.NewCredentials(a.Stores.Credentials, map[model.Source]string{
		model.SourceSamGov: cfg.Providers.SamGovAPIKey,
		model.SourceDibbs:  cfg.Providers.DibbsAPIKey,
	})
	pipeline := importer.NewPipeline(
		fetcher.New(httpClient, cfg.Fetcher.MaxBytes, a.Logger),
		a.Store,
		a.Stores.Documents,
		a.Machine,
		importMetrics,
		a.Logger,
	)
	a.Importer = importer.NewService(registry, creds, a.Stores.Tenants, a.Stores.Opps, pipeline, a.Logger)
	a.Scheduler = scheduler.New(a.Stores.Tenants, a.Stores.Searches, registry, creds, a.Importer, scheduler.Options{
		ImportCap:    cfg.Scheduler.ImportCap,
		LookbackDays: cfg.Scheduler.LookbackDay,
		Metrics:      schedMetrics,
		Logger:       a.Logger,
	})
	a.Documents = service.NewDocumentService(pipeline, a.Machine, a.Store, a.Stores.Documents, a.Logger)
	return nil
}

// orchestrator selects Temporal when a host is configured and the
// in-process backend otherwise.
func (a *App) orchestrator() (orchestrator.Orchestrator, error) {
	cfg := a.Config.Temporal
	if cfg.HostPort == "" {
		a.local = orchestrator.NewLocal(a.Logger)
		return a.local, nil
	}
	c, err := temporal.Dial(cfg)
	if err != nil {
		return nil, err
	}
	a.temporal = c
	a.Logger.Info("orchestrator_configured", "backend", "temporal",
		"host_port", cfg.HostPort, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	return temporal.NewClient(c, cfg), nil
}

// StartWorkers starts the Temporal worker, if any.
func (a *App) StartWorkers() error {
	if a.worker == nil {
		return nil
	}
	if err := a.worker.Start(); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	return nil
}

// Close stops executions and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.local != nil {
		if err := a.local.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("local orchestrator shutdown: %w", err))
		}
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
