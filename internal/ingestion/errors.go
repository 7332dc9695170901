package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a document is not in a status
	// the requested operation accepts.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrResumeRejected is returned when an OCR completion arrives for a
	// cancelled document.
	ErrResumeRejected = errors.New("resume rejected: document cancelled")
	// ErrCorrelationNotFound is returned when a completion's correlation
	// tag matches no document.
	ErrCorrelationNotFound = errors.New("no document for correlation tag")
)

// OcrFailedError is the failure outcome of an OCR job.
type OcrFailedError struct {
	JobID  string
	Status string
}

func (e *OcrFailedError) Error() string {
	return fmt.Sprintf("OCR job %s failed with status %s", e.JobID, e.Status)
}

// failureKindOcr is the orchestrator failure kind for OcrFailedError.
const failureKindOcr = "OcrFailed"
