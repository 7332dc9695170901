package temporal

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"bidflow/internal/orchestrator"
)

// WorkflowName is the registered name of the ingestion workflow.
const WorkflowName = "DocumentIngestion"

// Params is the workflow argument. Timeouts travel with the execution so a
// replay sees the values it started with.
type Params struct {
	Input           orchestrator.WorkflowInput
	OcrWaitTimeout  time.Duration
	ActivityTimeout time.Duration
}

// Activities adapts orchestrator.Steps to Temporal activities.
type Activities struct {
	Steps orchestrator.Steps
}

// BeginOcr hands the activity's task token to the steps as the resume
// token and completes asynchronously through Client.Resume or Client.Fail.
func (a *Activities) BeginOcr(ctx context.Context, in orchestrator.WorkflowInput) (orchestrator.Outcome, error) {
	token := base64.StdEncoding.EncodeToString(activity.GetInfo(ctx).TaskToken)
	if err := a.Steps.BeginOcr(ctx, in, token); err != nil {
		return orchestrator.Outcome{}, temporal.NewNonRetryableApplicationError(err.Error(), "BeginOcrFailed", err)
	}
	return orchestrator.Outcome{}, activity.ErrResultPending
}

func (a *Activities) CompleteExtraction(ctx context.Context, in orchestrator.WorkflowInput, out orchestrator.Outcome) error {
	return a.Steps.CompleteExtraction(ctx, in, out)
}

func (a *Activities) MarkFailed(ctx context.Context, in orchestrator.WorkflowInput, cause string) error {
	return a.Steps.MarkFailed(ctx, in, cause)
}

// IngestionWorkflow waits on the OCR activity, then extracts questions or
// records the failure. Cancellation ends it without further activities.
func IngestionWorkflow(ctx workflow.Context, p Params) error {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	ocrCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: p.OcrWaitTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	stepCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: p.ActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var outcome orchestrator.Outcome
	err := workflow.ExecuteActivity(ocrCtx, a.BeginOcr, p.Input).Get(ctx, &outcome)
	if err != nil {
		var canceled *temporal.CanceledError
		if errors.As(err, &canceled) || ctx.Err() != nil {
			logger.Info("ingestion cancelled while waiting for OCR", "document_id", p.Input.DocumentID)
			return err
		}
		return markFailed(stepCtx, p.Input, failureCause(err))
	}

	err = workflow.ExecuteActivity(stepCtx, a.CompleteExtraction, p.Input, outcome).Get(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("question extraction failed", "document_id", p.Input.DocumentID, "error", err)
		return markFailed(stepCtx, p.Input, failureCause(err))
	}
	return nil
}

func markFailed(ctx workflow.Context, in orchestrator.WorkflowInput, cause string) error {
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.MarkFailed, in, cause).Get(ctx, nil)
}

// failureCause unwraps Temporal's activity and application error layers to
// the message the failing side reported.
func failureCause(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "timed out waiting for OCR completion"
	}
	return err.Error()
}
