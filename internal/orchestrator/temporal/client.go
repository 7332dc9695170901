package temporal

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"bidflow/internal/config"
	"bidflow/internal/orchestrator"
)

// Client implements orchestrator.Orchestrator on a Temporal cluster.
type Client struct {
	client          client.Client
	taskQueue       string
	ocrWaitTimeout  time.Duration
	activityTimeout time.Duration
}

// NewClient wraps an existing Temporal client.
func NewClient(c client.Client, cfg config.TemporalConfig) *Client {
	return &Client{
		client:          c,
		taskQueue:       cfg.TaskQueue,
		ocrWaitTimeout:  cfg.OcrWaitTimeout,
		activityTimeout: cfg.ActivityTimeout,
	}
}

// Dial connects to the cluster named by cfg.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

var _ orchestrator.Orchestrator = (*Client)(nil)

// WorkflowID names one ingestion attempt of a document. A retry is a new
// attempt, so it never attaches to a run that is still being cancelled.
func WorkflowID(documentID, attempt string) string {
	return "ingest-" + documentID + "-" + attempt
}

// startOptions fails the start instead of returning an existing run when
// the id is already in use.
func (c *Client) startOptions(in orchestrator.WorkflowInput) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                                       WorkflowID(in.DocumentID, uuid.NewString()),
		TaskQueue:                                c.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
}

func (c *Client) Start(ctx context.Context, in orchestrator.WorkflowInput) (orchestrator.ExecutionRef, error) {
	run, err := c.client.ExecuteWorkflow(ctx, c.startOptions(in), WorkflowName, Params{
		Input:           in,
		OcrWaitTimeout:  c.ocrWaitTimeout,
		ActivityTimeout: c.activityTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("start workflow for %s: %w", in.DocumentID, err)
	}
	return orchestrator.ExecutionRef(run.GetID() + "/" + run.GetRunID()), nil
}

func (c *Client) Resume(ctx context.Context, token string, out orchestrator.Outcome) error {
	raw, err := decodeToken(token)
	if err != nil {
		return err
	}
	return c.client.CompleteActivity(ctx, raw, out, nil)
}

func (c *Client) Fail(ctx context.Context, token, kind, cause string) error {
	raw, err := decodeToken(token)
	if err != nil {
		return err
	}
	return c.client.CompleteActivity(ctx, raw, nil, temporal.NewNonRetryableApplicationError(cause, kind, nil))
}

func (c *Client) Cancel(ctx context.Context, ref orchestrator.ExecutionRef) error {
	workflowID, runID, ok := strings.Cut(string(ref), "/")
	if !ok || workflowID == "" {
		return fmt.Errorf("malformed execution ref %q", ref)
	}
	return c.client.CancelWorkflow(ctx, workflowID, runID)
}

func decodeToken(token string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: malformed token", orchestrator.ErrUnknownToken)
	}
	return raw, nil
}

// NewWorker registers the workflow and activities on the task queue. The
// caller starts and stops it.
func NewWorker(c client.Client, taskQueue string, steps orchestrator.Steps) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(IngestionWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(&Activities{Steps: steps})
	return w
}
