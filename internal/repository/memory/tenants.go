package memory

import (
	"context"
	"sort"
	"sync"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// Tenants holds organizations, their projects and provider keys.
type Tenants struct {
	mu          sync.Mutex
	orgs        map[string]struct{}
	projects    map[string]model.Project
	credentials map[credentialKey]string
}

type credentialKey struct {
	orgID  string
	source model.Source
}

func NewTenants() *Tenants {
	return &Tenants{
		orgs:        make(map[string]struct{}),
		projects:    make(map[string]model.Project),
		credentials: make(map[credentialKey]string),
	}
}

var (
	_ repository.TenantRepository     = (*Tenants)(nil)
	_ repository.CredentialRepository = (*Tenants)(nil)
)

// AddOrg registers an organization.
func (m *Tenants) AddOrg(orgID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[orgID] = struct{}{}
}

// AddProject registers a project and its org. A new default project
// replaces the previous default of the same org.
func (m *Tenants) AddProject(p model.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[p.OrgID] = struct{}{}
	if p.IsDefault {
		for id, existing := range m.projects {
			if existing.OrgID == p.OrgID && existing.IsDefault {
				existing.IsDefault = false
				m.projects[id] = existing
			}
		}
	}
	m.projects[p.ID] = p
}

// SetAPIKey stores a provider key for the org.
func (m *Tenants) SetAPIKey(orgID string, source model.Source, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[credentialKey{orgID: orgID, source: source}] = key
}

func (m *Tenants) ListOrgIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.orgs))
	for id := range m.orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Tenants) DefaultProject(_ context.Context, orgID string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.OrgID == orgID && p.IsDefault {
			c := p
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Tenants) APIKey(_ context.Context, orgID string, source model.Source) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.credentials[credentialKey{orgID: orgID, source: source}]
	if !ok {
		return "", repository.ErrNotFound
	}
	return key, nil
}
