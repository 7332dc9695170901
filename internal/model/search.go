package model

import "time"

// Source discriminates the external solicitation catalog.
type Source string

const (
	SourceSamGov Source = "SAM_GOV"
	SourceDibbs  Source = "DIBBS"
)

// Frequency is the cadence of a saved search.
type Frequency string

const (
	FrequencyHourly Frequency = "HOURLY"
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

// Cadence returns the minimum interval between two runs. Unknown values
// fall back to daily.
func (f Frequency) Cadence() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// SearchCriteria is the saved query definition.
type SearchCriteria struct {
	Keywords     string     `json:"keywords,omitempty"`
	NaicsCodes   []string   `json:"naics_codes,omitempty"`
	PscCodes     []string   `json:"psc_codes,omitempty"`
	SetAsideCode string     `json:"set_aside_code,omitempty"`
	PostedFrom   *time.Time `json:"posted_from,omitempty"`
	PostedTo     *time.Time `json:"posted_to,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

// SavedSearch is a tenant's recurring query.
type SavedSearch struct {
	ID         string         `json:"id"`
	OrgID      string         `json:"org_id"`
	Name       string         `json:"name"`
	Criteria   SearchCriteria `json:"criteria"`
	Frequency  Frequency      `json:"frequency"`
	AutoImport bool           `json:"auto_import"`
	Source     Source         `json:"source"`
	LastRunAt  *time.Time     `json:"last_run_at,omitempty"`
	IsEnabled  bool           `json:"is_enabled"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
