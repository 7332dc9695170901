package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Job asks the OCR service to extract text from a stored object. The
// correlation tag comes back verbatim on the completion notification.
type Job struct {
	Bucket         string
	Key            string
	ContentType    string
	CorrelationTag string
}

// Provider submits asynchronous OCR jobs.
type Provider interface {
	SubmitJob(ctx context.Context, job Job) (string, error)
}

// Job statuses reported by completion notifications. Anything other than
// StatusSucceeded is treated as a failure.
const (
	StatusSucceeded      = "SUCCEEDED"
	StatusFailed         = "FAILED"
	StatusPartialSuccess = "PARTIAL_SUCCESS"
	StatusError          = "ERROR"
)

// ErrNotConfigured is returned by providers that have no endpoint.
var ErrNotConfigured = errors.New("ocr endpoint not configured")

// SubmitError reports a rejected submission.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("ocr submit: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether resubmitting may succeed: throttling and server
// errors are, other client errors are not.
func (e *SubmitError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable classifies a SubmitJob error. Transport errors are retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
