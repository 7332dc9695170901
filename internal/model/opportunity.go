package model

import "time"

// Opportunity is the canonical solicitation record. (OrgID, ProjectID,
// SourceSystemID) identifies it; re-imports update in place.
type Opportunity struct {
	ID                 string     `json:"id"`
	OrgID              string     `json:"org_id"`
	ProjectID          string     `json:"project_id"`
	Source             Source     `json:"source"`
	SourceSystemID     string     `json:"source_system_id"`
	NoticeID           string     `json:"notice_id,omitempty"`
	SolicitationNumber string     `json:"solicitation_number,omitempty"`
	Title              string     `json:"title"`
	Type               string     `json:"type,omitempty"`
	Agency             string     `json:"agency,omitempty"`
	PostedDate         *time.Time `json:"posted_date,omitempty"`
	ResponseDeadline   *time.Time `json:"response_deadline,omitempty"`
	NaicsCode          string     `json:"naics_code,omitempty"`
	PscCode            string     `json:"psc_code,omitempty"`
	SetAside           string     `json:"set_aside,omitempty"`
	Description        string     `json:"description,omitempty"`
	EstimatedValue     *float64   `json:"estimated_value,omitempty"`
	Active             bool       `json:"active"`
	URL                string     `json:"url,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// AttachmentRef points at a remote file belonging to an opportunity.
type AttachmentRef struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}
