package mocks

import (
	"context"
	"io"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockDocumentGenerator is a mock implementation of collaborators.DocumentGenerator interface.
type MockDocumentGenerator struct {
	mock.Mock
}

func (m *MockDocumentGenerator) Generate(ctx context.Context, request collaborators.DocumentRequest) (*models.DocumentRef, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DocumentRef), args.Error(1)
}

// MockDependentOrderFactory is a mock implementation of collaborators.DependentOrderFactory interface.
type MockDependentOrderFactory struct {
	mock.Mock
}

func (m *MockDependentOrderFactory) Create(ctx context.Context, parent *models.Order, osType models.OSType, seed map[string]any) (string, error) {
	args := m.Called(ctx, parent, osType, seed)

	return args.String(0), args.Error(1)
}

// MockAttachmentStore is a mock implementation of collaborators.AttachmentStore interface.
type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) Put(ctx context.Context, orderID, name, contentType string, content io.Reader) (*models.AttachmentRef, error) {
	args := m.Called(ctx, orderID, name, contentType, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AttachmentRef), args.Error(1)
}

func (m *MockAttachmentStore) Stat(ctx context.Context, orderID, attachmentID string) (*models.AttachmentRef, error) {
	args := m.Called(ctx, orderID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AttachmentRef), args.Error(1)
}

// MockClientDirectory is a mock implementation of collaborators.ClientDirectory interface.
type MockClientDirectory struct {
	mock.Mock
}

func (m *MockClientDirectory) Lookup(ctx context.Context, clientID string) (*models.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Client), args.Error(1)
}
