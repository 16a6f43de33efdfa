// Package file provides file-based persistence for orders and approval items.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Commits are serialized within the process and a failed write rolls back the
// records the commit already replaced. The layout is not safe for several
// processes sharing one root, and a crash between writes is not recovered.
type Persistence struct {
	root      string
	mu        sync.Mutex
	orders    jsonDir[models.Order]
	approvals jsonDir[models.ApprovalItem]
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		orders:    jsonDir[models.Order]{dir: filepath.Join(cleanRoot, "orders")},
		approvals: jsonDir[models.ApprovalItem]{dir: filepath.Join(cleanRoot, "approvals")},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) OrderRepository() persistence.OrderRepository {
	return &orderRepository{persistence: fp}
}

func (fp *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return &approvalRepository{persistence: fp}
}

// Commit checks every expected version against disk and only then writes.
func (fp *Persistence) Commit(_ context.Context, transition persistence.Transition) error {
	err := transition.Validate()
	if err != nil {
		return err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	var previousOrder *models.Order

	if transition.Order != nil {
		current, err := fp.orders.read(transition.Order.ID)
		if err != nil {
			return persistence.NewOrderError("Commit", transition.Order.ID, transition.ExpectedVersion, err)
		}

		err = checkVersion(current != nil, versionOf(current), transition.ExpectedVersion,
			persistence.ErrOrderNotFound, persistence.ErrOrderAlreadyExists)
		if err != nil {
			return persistence.NewOrderError("Commit", transition.Order.ID, transition.ExpectedVersion, err)
		}

		previousOrder = current
	}

	previousItems := make([]*models.ApprovalItem, len(transition.Items))

	for i, write := range transition.Items {
		current, err := fp.approvals.read(write.Item.ID)
		if err != nil {
			return persistence.NewApprovalItemError("Commit", write.Item.ID, write.ExpectedVersion, err)
		}

		var stored int64
		if current != nil {
			stored = current.Version
		}

		err = checkVersion(current != nil, stored, write.ExpectedVersion,
			persistence.ErrApprovalItemNotFound, persistence.ErrVersionConflict)
		if err != nil {
			return persistence.NewApprovalItemError("Commit", write.Item.ID, write.ExpectedVersion, err)
		}

		previousItems[i] = current
	}

	if transition.Order != nil {
		err := fp.orders.write(transition.Order.ID, transition.Order)
		if err != nil {
			return persistence.NewOrderError("Commit", transition.Order.ID, transition.ExpectedVersion, err)
		}
	}

	for i, write := range transition.Items {
		err := fp.approvals.write(write.Item.ID, write.Item)
		if err == nil {
			continue
		}

		// Undo the writes this commit already made.
		for j := i - 1; j >= 0; j-- {
			_ = fp.approvals.restore(transition.Items[j].Item.ID, previousItems[j])
		}

		if transition.Order != nil {
			_ = fp.orders.restore(transition.Order.ID, previousOrder)
		}

		return persistence.NewApprovalItemError("Commit", write.Item.ID, write.ExpectedVersion, err)
	}

	return nil
}

func versionOf(order *models.Order) int64 {
	if order == nil {
		return 0
	}

	return order.Version
}

func checkVersion(exists bool, stored, expected int64, notFound, alreadyExists error) error {
	switch {
	case expected == 0 && exists:
		return alreadyExists
	case expected > 0 && !exists:
		return notFound
	case expected > 0 && stored != expected:
		return persistence.ErrVersionConflict
	default:
		return nil
	}
}

type orderRepository struct {
	persistence *Persistence
}

func (r *orderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	order, err := r.persistence.orders.read(id)
	if err != nil {
		return nil, persistence.NewOrderError("GetByID", id, 0, err)
	}

	if order == nil {
		return nil, persistence.NewOrderError("GetByID", id, 0, persistence.ErrOrderNotFound)
	}

	return order, nil
}

func (r *orderRepository) List(_ context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	all, err := r.persistence.orders.all()
	if err != nil {
		return nil, err
	}

	orders := make([]*models.Order, 0, len(all))

	for _, order := range all {
		if filter.Matches(order) {
			orders = append(orders, order)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}

		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}

	return orders, nil
}

type approvalRepository struct {
	persistence *Persistence
}

func (r *approvalRepository) GetByID(_ context.Context, id string) (*models.ApprovalItem, error) {
	item, err := r.persistence.approvals.read(id)
	if err != nil {
		return nil, persistence.NewApprovalItemError("GetByID", id, 0, err)
	}

	if item == nil {
		return nil, persistence.NewApprovalItemError("GetByID", id, 0, persistence.ErrApprovalItemNotFound)
	}

	return item, nil
}

func (r *approvalRepository) List(_ context.Context, filter models.ApprovalFilter) ([]*models.ApprovalItem, error) {
	all, err := r.persistence.approvals.all()
	if err != nil {
		return nil, err
	}

	items := make([]*models.ApprovalItem, 0, len(all))

	for _, item := range all {
		if filter.Matches(item) {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].ID < items[j].ID
		}

		return items[i].SubmittedAt.Before(items[j].SubmittedAt)
	})

	return items, nil
}
