package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// Documents is an in-process repository.DocumentRepository. Transition is
// atomic under the store mutex, matching the single-statement conditional
// UPDATE of the PostgreSQL implementation.
type Documents struct {
	mu   sync.Mutex
	docs map[string]model.IngestionDocument
}

func NewDocuments() *Documents {
	return &Documents{docs: make(map[string]model.IngestionDocument)}
}

var _ repository.DocumentRepository = (*Documents)(nil)

func (m *Documents) Create(_ context.Context, doc *model.IngestionDocument) (*model.IngestionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return nil, fmt.Errorf("document %s already exists", doc.ID)
	}
	if (doc.Status == model.StatusAwaitingOCR) != (doc.ResumeToken != "") {
		return nil, fmt.Errorf("document %s: resume token must be set exactly while awaiting OCR", doc.ID)
	}
	d := *doc
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	m.docs[d.ID] = d
	return &d, nil
}

func (m *Documents) FindByID(_ context.Context, id string) (*model.IngestionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (m *Documents) FindLiveByStorageKey(_ context.Context, opportunityID, storageKey string) (*model.IngestionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.IngestionDocument
	for _, d := range m.docs {
		if d.OpportunityID != opportunityID || d.StorageKey != storageKey {
			continue
		}
		if d.Status == model.StatusFailed || d.Status == model.StatusCancelled {
			continue
		}
		if found == nil || d.CreatedAt.After(found.CreatedAt) {
			c := d
			found = &c
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (m *Documents) List(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.IngestionDocument], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.IngestionDocument, 0, len(m.docs))
	for _, d := range m.docs {
		if pq.ProjectID != "" && d.ProjectID != pq.ProjectID {
			continue
		}
		items = append(items, d)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	total := len(items)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	return &repository.PageResult[model.IngestionDocument]{Items: items[start:end], Total: total}, nil
}

func (m *Documents) Transition(_ context.Context, id string, tr model.Transition) (bool, error) {
	if !tr.Valid() {
		return false, fmt.Errorf("invalid transition to %s", tr.To)
	}
	if tr.At.IsZero() {
		tr.At = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || !tr.Allows(d.Status) {
		return false, nil
	}
	if tr.ExpectToken != "" && d.ResumeToken != tr.ExpectToken {
		return false, nil
	}
	m.docs[id] = tr.Apply(d)
	return true, nil
}

func (m *Documents) SetExecutionRef(_ context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.ExecutionRef = ref
	d.UpdatedAt = time.Now().UTC()
	m.docs[id] = d
	return nil
}

func (m *Documents) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}
