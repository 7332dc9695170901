package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// SavedSearches is an in-process repository.SavedSearchRepository.
type SavedSearches struct {
	mu       sync.Mutex
	searches map[string]model.SavedSearch
}

func NewSavedSearches() *SavedSearches {
	return &SavedSearches{searches: make(map[string]model.SavedSearch)}
}

var _ repository.SavedSearchRepository = (*SavedSearches)(nil)

func (m *SavedSearches) Create(_ context.Context, s *model.SavedSearch) (*model.SavedSearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	m.searches[c.ID] = c
	return &c, nil
}

func (m *SavedSearches) ListEnabled(_ context.Context, orgID string) ([]model.SavedSearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SavedSearch, 0)
	for _, s := range m.searches {
		if s.OrgID == orgID && s.IsEnabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *SavedSearches) AdvanceLastRun(_ context.Context, orgID, id string, runAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.searches[id]
	if !ok || s.OrgID != orgID {
		return repository.ErrStaleWrite
	}
	if s.LastRunAt != nil && !s.LastRunAt.Before(runAt) {
		return repository.ErrStaleWrite
	}
	t := runAt
	s.LastRunAt = &t
	s.UpdatedAt = time.Now().UTC()
	m.searches[id] = s
	return nil
}

// Get returns a copy of the stored search.
func (m *SavedSearches) Get(id string) (model.SavedSearch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.searches[id]
	return s, ok
}
