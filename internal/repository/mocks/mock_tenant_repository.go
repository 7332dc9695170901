package mocks

import (
	"context"

	"bidflow/internal/model"
	"github.com/stretchr/testify/mock"
)

// MockTenantRepository mocks both repository.TenantRepository and
// repository.CredentialRepository.
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) ListOrgIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTenantRepository) DefaultProject(ctx context.Context, orgID string) (*model.Project, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockTenantRepository) APIKey(ctx context.Context, orgID string, source model.Source) (string, error) {
	args := m.Called(ctx, orgID, source)
	return args.String(0), args.Error(1)
}
