package mocks

import (
	"context"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) OrderRepository() persistence.OrderRepository {
	args := m.Called()

	return args.Get(0).(persistence.OrderRepository)
}

func (m *MockPersistence) ApprovalRepository() persistence.ApprovalRepository {
	args := m.Called()

	return args.Get(0).(persistence.ApprovalRepository)
}

func (m *MockPersistence) Commit(ctx context.Context, transition persistence.Transition) error {
	args := m.Called(ctx, transition)

	return args.Error(0)
}

// MockOrderRepository is a mock implementation of persistence.OrderRepository interface.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Order), args.Error(1)
}
