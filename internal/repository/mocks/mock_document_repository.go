package mocks

import (
	"context"

	"bidflow/internal/model"
	"bidflow/internal/repository"
	"github.com/stretchr/testify/mock"
)

var _ repository.DocumentRepository = (*MockDocumentRepository)(nil)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.IngestionDocument) (*model.IngestionDocument, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IngestionDocument), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.IngestionDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IngestionDocument), args.Error(1)
}

func (m *MockDocumentRepository) FindLiveByStorageKey(ctx context.Context, opportunityID, storageKey string) (*model.IngestionDocument, error) {
	args := m.Called(ctx, opportunityID, storageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IngestionDocument), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.IngestionDocument], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.IngestionDocument]), args.Error(1)
}

func (m *MockDocumentRepository) Transition(ctx context.Context, id string, tr model.Transition) (bool, error) {
	args := m.Called(ctx, id, tr)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) SetExecutionRef(ctx context.Context, id, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
