package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bidflow/internal/extract"
	"bidflow/internal/model"
	"bidflow/internal/ocr"
	"bidflow/internal/orchestrator"
	"bidflow/internal/repository"
)

// Outcome is the result of an OCR job as seen by Resume. A nil Err means
// the text is ready.
type Outcome struct {
	JobID string
	Err   error
}

// Options configure a Machine. Zero values select defaults.
type Options struct {
	// Bucket is where document objects live; OCR jobs reference it.
	Bucket string
	// MaxSubmitAttempts bounds OCR submission tries. Default 5.
	MaxSubmitAttempts int
	// NewBackOff builds the retry schedule for one submission. Default is
	// capped exponential backoff.
	NewBackOff func() backoff.BackOff
	Metrics    *Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Machine owns the document lifecycle. Every status change is a
// conditional write, so concurrent Resume, Cancel and workflow steps
// settle on whichever commits first.
type Machine struct {
	docs       repository.DocumentRepository
	orch       orchestrator.Orchestrator
	ocr        ocr.Provider
	extractor  extract.QuestionExtractor
	bucket     string
	maxTries   uint
	newBackOff func() backoff.BackOff
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// NewMachine wires a Machine. It also implements orchestrator.Steps and is
// bound to orch by the caller.
func NewMachine(
	docs repository.DocumentRepository,
	orch orchestrator.Orchestrator,
	ocrProvider ocr.Provider,
	extractor extract.QuestionExtractor,
	opts Options,
) *Machine {
	m := &Machine{
		docs:       docs,
		orch:       orch,
		ocr:        ocrProvider,
		extractor:  extractor,
		bucket:     opts.Bucket,
		maxTries:   5,
		newBackOff: opts.NewBackOff,
		metrics:    opts.Metrics,
		tracer:     otel.Tracer("bidflow/ingestion"),
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if opts.MaxSubmitAttempts > 0 {
		m.maxTries = uint(opts.MaxSubmitAttempts)
	}
	if m.newBackOff == nil {
		m.newBackOff = defaultBackOff
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "ingestion")
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	return m
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	return b
}

var _ orchestrator.Steps = (*Machine)(nil)

func (m *Machine) transition(ctx context.Context, id string, tr model.Transition) (bool, error) {
	tr.At = m.now()
	ok, err := m.docs.Transition(ctx, id, tr)
	if err != nil {
		return false, fmt.Errorf("transition %s to %s: %w", id, tr.To, err)
	}
	if ok {
		m.metrics.transition(string(tr.To))
	}
	return ok, nil
}

func (m *Machine) fail(ctx context.Context, id string, from []model.DocumentStatus, msg string) {
	ok, err := m.transition(ctx, id, model.Transition{From: from, To: model.StatusFailed, ErrorMessage: msg})
	if err != nil {
		m.logger.Error("document_fail_transition_error", "document_id", id, "error", err)
		return
	}
	if ok {
		m.logger.Warn("document_failed", "document_id", id, "error_message", msg)
	}
}

func (m *Machine) find(ctx context.Context, id string) (*model.IngestionDocument, error) {
	doc, err := m.docs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

func inputOf(doc *model.IngestionDocument) orchestrator.WorkflowInput {
	return orchestrator.WorkflowInput{DocumentID: doc.ID, OrgID: doc.OrgID, ProjectID: doc.ProjectID}
}

// StartIngestion moves an UPLOADED document to PROCESSING and starts its
// workflow. A start failure leaves the document FAILED.
func (m *Machine) StartIngestion(ctx context.Context, documentID string) error {
	ctx, span := m.tracer.Start(ctx, "ingestion.StartIngestion",
		trace.WithAttributes(attribute.String("document.id", documentID)))
	defer span.End()

	doc, err := m.find(ctx, documentID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	ok, err := m.transition(ctx, documentID, model.Transition{
		From: []model.DocumentStatus{model.StatusUploaded},
		To:   model.StatusProcessing,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return fmt.Errorf("%w: start document %s from %s", ErrInvalidTransition, documentID, doc.Status)
	}

	ref, err := m.orch.Start(ctx, inputOf(doc))
	if err != nil {
		m.fail(ctx, documentID, model.NonTerminalStatuses, fmt.Sprintf("start workflow: %v", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow start failed")
		return fmt.Errorf("start workflow for %s: %w", documentID, err)
	}
	if err := m.docs.SetExecutionRef(ctx, documentID, string(ref)); err != nil {
		m.logger.Error("execution_ref_not_saved", "document_id", documentID, "execution_ref", string(ref), "error", err)
	}

	// A Cancel that committed before the ref was saved could not stop this
	// execution, so stop it here.
	if current, err := m.find(ctx, documentID); err == nil && current.Status == model.StatusCancelled {
		if err := m.orch.Cancel(ctx, ref); err != nil {
			m.logger.Warn("workflow_cancel_failed", "document_id", documentID,
				"execution_ref", string(ref), "error", err)
		}
		m.logger.Info("ingestion_cancelled_during_start", "document_id", documentID, "execution_ref", string(ref))
		return nil
	}
	m.logger.Info("ingestion_started", "document_id", documentID, "execution_ref", string(ref))
	return nil
}

// BeginOcr persists resumeToken with the move to AWAITING_OCR before the
// job is submitted, so a fast completion always finds it.
func (m *Machine) BeginOcr(ctx context.Context, in orchestrator.WorkflowInput, resumeToken string) error {
	doc, err := m.find(ctx, in.DocumentID)
	if err != nil {
		return err
	}
	ok, err := m.transition(ctx, in.DocumentID, model.Transition{
		From:        []model.DocumentStatus{model.StatusProcessing},
		To:          model.StatusAwaitingOCR,
		ResumeToken: resumeToken,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: begin OCR for %s", ErrInvalidTransition, in.DocumentID)
	}

	job := ocr.Job{
		Bucket:         m.bucket,
		Key:            doc.StorageKey,
		ContentType:    doc.MimeType,
		CorrelationTag: doc.ID,
	}
	submit := func() (string, error) {
		id, err := m.ocr.SubmitJob(ctx, job)
		if err != nil && !ocr.IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return id, err
	}
	jobID, err := backoff.Retry(ctx, submit,
		backoff.WithBackOff(m.newBackOff()),
		backoff.WithMaxTries(m.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.metrics.submitRetry()
			m.logger.Warn("ocr_submit_retry", "document_id", doc.ID, "error", err, "next_attempt_in", next.String())
		}),
	)
	if err != nil {
		m.fail(ctx, doc.ID, []model.DocumentStatus{model.StatusAwaitingOCR}, fmt.Sprintf("submit OCR job: %v", err))
		return fmt.Errorf("submit OCR job for %s: %w", doc.ID, err)
	}

	// Record the job id unless the completion already arrived.
	recorded, err := m.transition(ctx, doc.ID, model.Transition{
		From:        []model.DocumentStatus{model.StatusAwaitingOCR},
		To:          model.StatusAwaitingOCR,
		ExpectToken: resumeToken,
		ResumeToken: resumeToken,
		OcrJobID:    jobID,
	})
	if err != nil {
		m.logger.Warn("ocr_job_id_not_saved", "document_id", doc.ID, "ocr_job_id", jobID, "error", err)
	}
	m.logger.Info("ocr_submitted", "document_id", doc.ID, "ocr_job_id", jobID, "recorded", recorded)
	return nil
}

// Resume applies an OCR outcome to a suspended document and continues its
// workflow. A document that is no longer suspended is left untouched.
func (m *Machine) Resume(ctx context.Context, documentID string, out Outcome) error {
	_, err := m.resume(ctx, documentID, out)
	return err
}

func (m *Machine) resume(ctx context.Context, documentID string, out Outcome) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "ingestion.Resume", trace.WithAttributes(
		attribute.String("document.id", documentID),
		attribute.String("ocr.job_id", out.JobID),
	))
	defer span.End()

	doc, err := m.docs.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", ErrCorrelationNotFound, documentID)
		}
		return false, fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc.Status == model.StatusCancelled {
		m.logger.Warn("resume_rejected", "document_id", documentID, "ocr_job_id", out.JobID)
		return false, fmt.Errorf("%w: %s", ErrResumeRejected, documentID)
	}
	if doc.ResumeToken == "" {
		m.logger.Info("resume_duplicate", "document_id", documentID, "status", string(doc.Status))
		return false, nil
	}
	token := doc.ResumeToken

	tr := model.Transition{
		From:        []model.DocumentStatus{model.StatusAwaitingOCR},
		To:          model.StatusTextReady,
		ExpectToken: token,
		OcrJobID:    out.JobID,
	}
	if out.Err != nil {
		tr.To = model.StatusFailed
		tr.ErrorMessage = out.Err.Error()
	}
	ok, err := m.transition(ctx, documentID, tr)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if !ok {
		// Another delivery or a cancellation committed first.
		return false, nil
	}

	if out.Err != nil {
		err = m.orch.Fail(ctx, token, failureKindOcr, out.Err.Error())
	} else {
		err = m.orch.Resume(ctx, token, orchestrator.Outcome{OcrJobID: out.JobID})
	}
	if err != nil {
		m.fail(ctx, documentID, model.NonTerminalStatuses, fmt.Sprintf("resume workflow: %v", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow resume failed")
		return true, fmt.Errorf("resume workflow for %s: %w", documentID, err)
	}
	m.logger.Info("ocr_resumed", "document_id", documentID, "ocr_job_id", out.JobID, "status", string(tr.To))
	return true, nil
}

// Cancel stops a document's ingestion. Terminal documents are left alone.
func (m *Machine) Cancel(ctx context.Context, documentID string) error {
	ctx, span := m.tracer.Start(ctx, "ingestion.Cancel",
		trace.WithAttributes(attribute.String("document.id", documentID)))
	defer span.End()

	doc, err := m.find(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status.IsTerminal() {
		return nil
	}
	if doc.Status == model.StatusUploaded {
		return fmt.Errorf("%w: cancel document %s from %s", ErrInvalidTransition, documentID, doc.Status)
	}

	ok, err := m.transition(ctx, documentID, model.Transition{
		From: model.CancellableStatuses,
		To:   model.StatusCancelled,
	})
	if err != nil {
		return err
	}
	current, err := m.find(ctx, documentID)
	if err != nil {
		return err
	}
	if !ok {
		if current.Status.IsTerminal() {
			return nil
		}
		return fmt.Errorf("%w: cancel document %s from %s", ErrInvalidTransition, documentID, current.Status)
	}

	if current.ExecutionRef != "" {
		if err := m.orch.Cancel(ctx, orchestrator.ExecutionRef(current.ExecutionRef)); err != nil {
			m.logger.Warn("workflow_cancel_failed", "document_id", documentID,
				"execution_ref", current.ExecutionRef, "error", err)
		}
	}
	m.logger.Info("ingestion_cancelled", "document_id", documentID)
	return nil
}

// Retry restarts a cancelled document from UPLOADED.
func (m *Machine) Retry(ctx context.Context, documentID string) error {
	ok, err := m.transition(ctx, documentID, model.Transition{
		From: []model.DocumentStatus{model.StatusCancelled},
		To:   model.StatusUploaded,
	})
	if err != nil {
		return err
	}
	if !ok {
		if _, err := m.find(ctx, documentID); err != nil {
			return err
		}
		return fmt.Errorf("%w: retry document %s", ErrInvalidTransition, documentID)
	}
	return m.StartIngestion(ctx, documentID)
}

// CompleteExtraction runs question extraction on a TEXT_READY document.
// Documents in any other status are skipped.
func (m *Machine) CompleteExtraction(ctx context.Context, in orchestrator.WorkflowInput, _ orchestrator.Outcome) error {
	doc, err := m.find(ctx, in.DocumentID)
	if err != nil {
		return err
	}
	if doc.Status != model.StatusTextReady {
		m.logger.Info("extraction_skipped", "document_id", doc.ID, "status", string(doc.Status))
		return nil
	}

	count, err := m.extractor.Extract(ctx, *doc)
	if err != nil {
		return fmt.Errorf("extract questions for %s: %w", doc.ID, err)
	}

	ok, err := m.transition(ctx, doc.ID, model.Transition{
		From: []model.DocumentStatus{model.StatusTextReady},
		To:   model.StatusProcessed,
	})
	if err != nil {
		return err
	}
	m.logger.Info("document_processed", "document_id", doc.ID, "question_count", count, "applied", ok)
	return nil
}

// MarkFailed moves a non-terminal document to FAILED.
func (m *Machine) MarkFailed(ctx context.Context, in orchestrator.WorkflowInput, cause string) error {
	_, err := m.transition(ctx, in.DocumentID, model.Transition{
		From:         model.NonTerminalStatuses,
		To:           model.StatusFailed,
		ErrorMessage: cause,
	})
	return err
}
