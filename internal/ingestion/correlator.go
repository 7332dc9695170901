package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bidflow/internal/ocr"
)

// NotifyResult counts what happened to each notification of a batch.
type NotifyResult struct {
	Resumed    int `json:"resumed"`
	Duplicates int `json:"duplicates"`
	Dropped    int `json:"dropped"`
	Rejected   int `json:"rejected"`
	Failed     int `json:"failed"`
}

// Correlator routes OCR completion notifications to suspended documents.
// The correlation tag is the document id, so lookup is by primary key.
type Correlator struct {
	machine *Machine
	metrics *Metrics
	logger  *slog.Logger
}

func NewCorrelator(machine *Machine, metrics *Metrics, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{machine: machine, metrics: metrics, logger: logger.With("component", "ocr_correlator")}
}

// NotifyOcrCompletion handles a batch. Unknown tags and cancelled documents
// are logged and counted; the returned error joins only unexpected
// failures, which are safe to redeliver.
func (c *Correlator) NotifyOcrCompletion(ctx context.Context, batch []ocr.Notification) (NotifyResult, error) {
	var (
		res  NotifyResult
		errs []error
	)
	for _, n := range batch {
		outcome := c.handle(ctx, n)
		c.metrics.notification(outcome.label)
		switch outcome.label {
		case "resumed":
			res.Resumed++
		case "duplicate":
			res.Duplicates++
		case "dropped":
			res.Dropped++
		case "rejected":
			res.Rejected++
		default:
			res.Failed++
			errs = append(errs, outcome.err)
		}
	}
	return res, errors.Join(errs...)
}

type notifyOutcome struct {
	label string
	err   error
}

func (c *Correlator) handle(ctx context.Context, n ocr.Notification) notifyOutcome {
	log := c.logger.With("ocr_job_id", n.JobID, "correlation_tag", n.CorrelationTag, "ocr_status", n.Status)

	if _, err := uuid.Parse(n.CorrelationTag); err != nil {
		log.Warn("ocr_notification_dropped", "error", ErrCorrelationNotFound)
		return notifyOutcome{label: "dropped"}
	}

	out := Outcome{JobID: n.JobID}
	if !n.Succeeded() {
		out.Err = &OcrFailedError{JobID: n.JobID, Status: n.Status}
	}

	applied, err := c.machine.resume(ctx, n.CorrelationTag, out)
	switch {
	case errors.Is(err, ErrCorrelationNotFound):
		log.Warn("ocr_notification_dropped", "error", err)
		return notifyOutcome{label: "dropped"}
	case errors.Is(err, ErrResumeRejected):
		return notifyOutcome{label: "rejected"}
	case err != nil:
		log.Error("ocr_notification_failed", "error", err)
		return notifyOutcome{label: "error", err: fmt.Errorf("notification for job %s: %w", n.JobID, err)}
	case !applied:
		return notifyOutcome{label: "duplicate"}
	}
	return notifyOutcome{label: "resumed"}
}
