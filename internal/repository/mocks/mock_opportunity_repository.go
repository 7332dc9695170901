package mocks

import (
	"context"

	"bidflow/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockOpportunityRepository struct {
	mock.Mock
}

func (m *MockOpportunityRepository) Upsert(ctx context.Context, opp *model.Opportunity) (*model.Opportunity, error) {
	args := m.Called(ctx, opp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Opportunity), args.Error(1)
}

func (m *MockOpportunityRepository) FindByID(ctx context.Context, id string) (*model.Opportunity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Opportunity), args.Error(1)
}
