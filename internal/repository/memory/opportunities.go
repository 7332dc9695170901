package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// Opportunities is an in-process repository.OpportunityRepository keyed
// like the opportunities table.
type Opportunities struct {
	mu    sync.Mutex
	byID  map[string]model.Opportunity
	byKey map[opportunityKey]string
}

type opportunityKey struct {
	orgID          string
	projectID      string
	sourceSystemID string
}

func NewOpportunities() *Opportunities {
	return &Opportunities{
		byID:  make(map[string]model.Opportunity),
		byKey: make(map[opportunityKey]string),
	}
}

var _ repository.OpportunityRepository = (*Opportunities)(nil)

func (m *Opportunities) Upsert(_ context.Context, opp *model.Opportunity) (*model.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	c := *opp
	key := opportunityKey{orgID: c.OrgID, projectID: c.ProjectID, sourceSystemID: c.SourceSystemID}
	if id, ok := m.byKey[key]; ok {
		c.ID = id
		c.CreatedAt = m.byID[id].CreatedAt
	} else {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		m.byKey[key] = c.ID
	}
	c.UpdatedAt = now
	m.byID[c.ID] = c
	return &c, nil
}

func (m *Opportunities) FindByID(_ context.Context, id string) (*model.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

// Len reports the number of stored opportunities.
func (m *Opportunities) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
