// Package persistence defines the storage contract of the workflow engine.
package persistence

import (
	"context"

	"github.com/minerva-erp/osflow/pkg/models"
)

// Persistence is implemented by every storage backend.
type Persistence interface {
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error

	OrderRepository() OrderRepository
	ApprovalRepository() ApprovalRepository

	// Commit atomically writes a transition. Every write is compare-and-swap on
	// its expected version; a mismatch fails the whole transition with
	// ErrVersionConflict and nothing is written.
	Commit(ctx context.Context, transition Transition) error
}

// OrderRepository reads orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
}

// ApprovalRepository reads approval items.
type ApprovalRepository interface {
	GetByID(ctx context.Context, id string) (*models.ApprovalItem, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]*models.ApprovalItem, error)
}

// Transition is the unit of atomic change: at most one order plus any number of
// approval items. An expected version of 0 means the record is created.
// The new records already carry their next version.
type Transition struct {
	Order           *models.Order
	ExpectedVersion int64
	Items           []ItemWrite
}

// ItemWrite is one approval item write within a transition.
type ItemWrite struct {
	Item            *models.ApprovalItem
	ExpectedVersion int64
}

// Validate checks the transition is well formed before a backend touches storage.
func (t Transition) Validate() error {
	if t.Order == nil && len(t.Items) == 0 {
		return ErrEmptyTransition
	}

	if t.Order != nil && (t.Order.ID == "" || t.Order.Version != t.ExpectedVersion+1) {
		return ErrInvalidTransition
	}

	for _, write := range t.Items {
		if write.Item == nil || write.Item.ID == "" || write.Item.Version != write.ExpectedVersion+1 {
			return ErrInvalidTransition
		}
	}

	return nil
}
