package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/store"
)

var _ store.RunStore = (*TestifyMockRunStore)(nil)

// TestifyMockRunStore is a mock of store.RunStore for use with testify/mock
type TestifyMockRunStore struct {
	mock.Mock
}

// Create is a mock implementation of store.RunStore.Create
func (m *TestifyMockRunStore) Create(ctx context.Context, run *domain.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// Start is a mock implementation of store.RunStore.Start
func (m *TestifyMockRunStore) Start(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Complete is a mock implementation of store.RunStore.Complete
func (m *TestifyMockRunStore) Complete(ctx context.Context, id uuid.UUID, counts domain.RunCounts) error {
	args := m.Called(ctx, id, counts)
	return args.Error(0)
}

// Fail is a mock implementation of store.RunStore.Fail
func (m *TestifyMockRunStore) Fail(ctx context.Context, id uuid.UUID, counts domain.RunCounts, reason string) error {
	args := m.Called(ctx, id, counts, reason)
	return args.Error(0)
}

// Get is a mock implementation of store.RunStore.Get
func (m *TestifyMockRunStore) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	args := m.Called(ctx, id)
	if run, ok := args.Get(0).(*domain.Run); ok {
		return run, args.Error(1)
	}
	return nil, args.Error(1)
}

// ListRecent is a mock implementation of store.RunStore.ListRecent
func (m *TestifyMockRunStore) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	args := m.Called(ctx, limit)
	if runs, ok := args.Get(0).([]domain.Run); ok {
		return runs, args.Error(1)
	}
	return nil, args.Error(1)
}
