package scheduler

import (
	"time"

	"bidflow/internal/model"
)

// IsDue reports whether s should run at now. A search that never ran is
// due; otherwise a full cadence must have passed since its last run.
func IsDue(s model.SavedSearch, now time.Time) bool {
	if !s.IsEnabled {
		return false
	}
	if s.LastRunAt == nil {
		return true
	}
	return now.Sub(*s.LastRunAt) >= s.Frequency.Cadence()
}

// Window returns the posted-date range of an incremental search run at
// now. It starts at the last run, or lookback before now for a first run,
// and is narrowed by the criteria's own lower bound when that is later.
func Window(s model.SavedSearch, now time.Time, lookback time.Duration) (from, to time.Time) {
	to = now
	if s.LastRunAt != nil {
		from = *s.LastRunAt
	} else {
		from = now.Add(-lookback)
	}
	if pf := s.Criteria.PostedFrom; pf != nil && pf.After(from) {
		from = *pf
	}
	return from, to
}
