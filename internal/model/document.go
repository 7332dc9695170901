package model

import "time"

// DocumentStatus is a step of the ingestion lifecycle.
type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "UPLOADED"
	StatusProcessing  DocumentStatus = "PROCESSING"
	StatusAwaitingOCR DocumentStatus = "AWAITING_OCR"
	StatusTextReady   DocumentStatus = "TEXT_READY"
	StatusProcessed   DocumentStatus = "PROCESSED"
	StatusFailed      DocumentStatus = "FAILED"
	StatusCancelled   DocumentStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is expected without an
// explicit retry.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case StatusProcessed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// NonTerminalStatuses lists every status from which FAILED is reachable.
var NonTerminalStatuses = []DocumentStatus{
	StatusUploaded,
	StatusProcessing,
	StatusAwaitingOCR,
	StatusTextReady,
}

// CancellableStatuses lists the statuses from which CANCELLED is reachable.
var CancellableStatuses = []DocumentStatus{
	StatusProcessing,
	StatusAwaitingOCR,
	StatusTextReady,
}

// IngestionDocument tracks one uploaded or imported file through OCR and
// question extraction.
//
// ResumeToken is non-empty if and only if Status is AWAITING_OCR.
type IngestionDocument struct {
	ID               string         `json:"id"`
	OrgID            string         `json:"org_id"`
	ProjectID        string         `json:"project_id"`
	OpportunityID    string         `json:"opportunity_id"`
	StorageKey       string         `json:"storage_key"`
	OriginalFileName string         `json:"original_file_name"`
	MimeType         string         `json:"mime_type"`
	Size             int64          `json:"size"`
	SourceDocumentID string         `json:"source_document_id,omitempty"`
	Status           DocumentStatus `json:"status"`
	ResumeToken      string         `json:"-"`
	ExecutionRef     string         `json:"execution_ref,omitempty"`
	OcrJobID         string         `json:"ocr_job_id,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Transition is a conditional status change: it applies only while the
// stored status is one of From (and, when ExpectToken is set, the stored
// resume token equals it).
type Transition struct {
	From         []DocumentStatus
	To           DocumentStatus
	ExpectToken  string
	ResumeToken  string
	ErrorMessage string
	OcrJobID     string
	At           time.Time
}

// Valid reports whether the transition keeps the token/status invariant.
func (t Transition) Valid() bool {
	if len(t.From) == 0 || t.To == "" {
		return false
	}
	if t.To == StatusAwaitingOCR {
		return t.ResumeToken != ""
	}
	return t.ResumeToken == ""
}

// Allows reports whether status satisfies the From precondition.
func (t Transition) Allows(status DocumentStatus) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// Apply returns doc with the transition's effects. Preconditions are not
// checked here.
func (t Transition) Apply(doc IngestionDocument) IngestionDocument {
	doc.Status = t.To
	doc.ResumeToken = t.ResumeToken
	if t.To == StatusFailed {
		doc.ErrorMessage = t.ErrorMessage
	} else {
		doc.ErrorMessage = ""
	}
	if t.OcrJobID != "" {
		doc.OcrJobID = t.OcrJobID
	}
	if t.To == StatusUploaded {
		doc.ExecutionRef = ""
		doc.OcrJobID = ""
	}
	doc.UpdatedAt = t.At
	return doc
}
