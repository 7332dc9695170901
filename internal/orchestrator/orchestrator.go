package orchestrator

import (
	"context"
	"errors"
)

// Package orchestrator runs the per-document ingestion workflow:
//
//	BeginOcr (suspends until Resume or Fail)
//	  success -> CompleteExtraction
//	  failure -> MarkFailed
//
// A cancelled execution runs no further steps.

// ErrUnknownToken is returned by Resume and Fail when no execution is
// parked on the token.
var ErrUnknownToken = errors.New("no execution waiting on resume token")

// WorkflowInput identifies the document an execution works on.
type WorkflowInput struct {
	DocumentID string `json:"documentId"`
	OrgID      string `json:"orgId"`
	ProjectID  string `json:"projectId"`
}

// ExecutionRef is an opaque handle used to cancel an execution.
type ExecutionRef string

// Outcome is delivered to a suspended execution when OCR succeeds.
type Outcome struct {
	OcrJobID string `json:"ocrJobId"`
}

// Orchestrator starts executions and delivers external events to them.
type Orchestrator interface {
	Start(ctx context.Context, in WorkflowInput) (ExecutionRef, error)
	// Resume continues the execution parked on token with a success outcome.
	Resume(ctx context.Context, token string, out Outcome) error
	// Fail continues the execution parked on token with a typed failure.
	Fail(ctx context.Context, token, kind, cause string) error
	// Cancel stops an execution. Unknown or finished executions are not an
	// error.
	Cancel(ctx context.Context, ref ExecutionRef) error
}

// Steps are the workflow's side effects, implemented by the ingestion
// state machine.
type Steps interface {
	// BeginOcr persists resumeToken on the document and submits the OCR
	// job. The execution then waits for Resume or Fail on that token.
	BeginOcr(ctx context.Context, in WorkflowInput, resumeToken string) error
	CompleteExtraction(ctx context.Context, in WorkflowInput, out Outcome) error
	MarkFailed(ctx context.Context, in WorkflowInput, cause string) error
}
