package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"bidflow/internal/bootstrap"
	"bidflow/internal/config"
	"bidflow/internal/database"
	"bidflow/internal/database/migration"
	"bidflow/internal/logging"
	"bidflow/internal/otel"
	"bidflow/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bidflow",
		Short:         "Solicitation ingestion service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSchedulerCmd(), newMigrateCmd())
	return root
}

// runtime is what every command needs before doing its work.
type runtime struct {
	cfg    *config.AppConfig
	logger *slog.Logger
	close  func()
}

func setup(ctx context.Context) (*runtime, error) {
	cfg := config.Load()
	logger, closeLog := logging.Setup(cfg.Log)

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &runtime{
		cfg:    cfg,
		logger: logger,
		close: func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				logger.Warn("tracing_shutdown_failed", "error", err)
			}
			_ = closeLog()
		},
	}, nil
}

// --- serve ---

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the workflow worker and, when SCHEDULER_INTERVAL is set, the scheduler loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := bootstrap.New(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := app.Close(sctx); err != nil {
					rt.logger.Error("shutdown_failed", "error", err)
				}
			}()

			if err := app.StartWorkers(); err != nil {
				return err
			}
			if interval := rt.cfg.Scheduler.Interval; interval > 0 {
				go func() {
					if err := app.Scheduler.Loop(ctx, interval, scheduler.RunOptions{}); err != nil && !errors.Is(err, context.Canceled) {
						rt.logger.Error("scheduler_loop_stopped", "error", err)
					}
				}()
			}

			srv, err := app.HTTPApp()
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				if err := srv.ShutdownWithTimeout(shutdownTimeout); err != nil {
					rt.logger.Error("http_shutdown_failed", "error", err)
				}
			}()

			addr := ":" + rt.cfg.Port
			rt.logger.Info("http_listening", "addr", addr, "store_backend", rt.cfg.StoreBackend)
			if err := srv.Listen(addr); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		},
	}
}

// --- scheduler ---

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run saved-search imports",
	}
	cmd.AddCommand(newSchedulerRunCmd(), newSchedulerLoopCmd())
	return cmd
}

func schedulerFlags(cmd *cobra.Command) {
	cmd.Flags().String("org", "", "restrict the pass to one organization")
	cmd.Flags().Bool("dry-run", false, "search without importing or advancing last run times")
}

func runOptions(cmd *cobra.Command) scheduler.RunOptions {
	org, _ := cmd.Flags().GetString("org")
	dry, _ := cmd.Flags().GetBool("dry-run")
	return scheduler.RunOptions{OrgID: org, DryRun: dry}
}

func newSchedulerRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pass over due saved searches and print the result as JSON",
		Long: `Run one pass over due saved searches and print the result as JSON.

Examples:
  bidflow scheduler run
  bidflow scheduler run --org 7f1c0a52 --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := bootstrap.New(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())
			if err := app.StartWorkers(); err != nil {
				return err
			}

			res, err := app.Scheduler.Run(ctx, runOptions(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	schedulerFlags(cmd)
	return cmd
}

func newSchedulerLoopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Run passes every --interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = rt.cfg.Scheduler.Interval
			}

			app, err := bootstrap.New(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())
			if err := app.StartWorkers(); err != nil {
				return err
			}

			err = app.Scheduler.Loop(ctx, interval, runOptions(cmd))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	schedulerFlags(cmd)
	cmd.Flags().Duration("interval", 0, "time between passes (defaults to SCHEDULER_INTERVAL)")
	return cmd
}

// --- migrate ---

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			db, err := database.NewPostgres(ctx, rt.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := migration.EnsureMigrated(ctx, db, rt.logger, rt.cfg.Database.Host); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
