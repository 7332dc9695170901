package mocks

import (
	"context"
	"time"

	"bidflow/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockSavedSearchRepository struct {
	mock.Mock
}

func (m *MockSavedSearchRepository) Create(ctx context.Context, s *model.SavedSearch) (*model.SavedSearch, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchRepository) ListEnabled(ctx context.Context, orgID string) ([]model.SavedSearch, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchRepository) AdvanceLastRun(ctx context.Context, orgID, id string, runAt time.Time) error {
	args := m.Called(ctx, orgID, id, runAt)
	return args.Error(0)
}
