// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty backend for a single test.
type Factory func(t *testing.T) persistence.Persistence

// NewOrder builds a fresh order at version 1.
func NewOrder(id string, osType models.OSType) *models.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return &models.Order{
		ID:        id,
		OSType:    osType,
		Status:    models.OrderStatusTriagem,
		ClientRef: "client-1",
		Steps: []*models.StepRecord{
			{StepOrder: 1, Status: models.StepStatusActive, ActivatedAt: &now},
		},
		Version:   1,
		CreatedBy: "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewItem builds a fresh approval item at version 1.
func NewItem(id, orderID string, kind models.ApprovalKind) *models.ApprovalItem {
	return &models.ApprovalItem{
		ID:           id,
		OwnerOrderID: orderID,
		StepOrder:    6,
		Kind:         kind,
		Payload:      map[string]any{"conclusaoTecnica": "estrutura íntegra"},
		Status:       models.ApprovalStatusPendenteRevisao,
		SubmittedBy:  "user-1",
		SubmittedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Version:      1,
	}
}

// Run executes the shared backend behaviour against factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("create and read order", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		order := NewOrder("order-1", models.OS12)
		order.Steps[0].Data = map[string]any{"clienteId": "c-1"}
		require.NoError(t, p.Commit(ctx, persistence.Transition{Order: order}))

		stored, err := p.OrderRepository().GetByID(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
		assert.Equal(t, models.OS12, stored.OSType)
		require.Len(t, stored.Steps, 1)
		assert.Equal(t, "c-1", stored.Steps[0].Data["clienteId"])

		err = p.Commit(ctx, persistence.Transition{Order: NewOrder("order-1", models.OS12)})
		assert.True(t, persistence.IsOrderAlreadyExists(err), "got %v", err)
	})

	t.Run("missing records", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		_, err := p.OrderRepository().GetByID(ctx, "nope")
		assert.True(t, persistence.IsOrderNotFound(err), "got %v", err)

		_, err = p.ApprovalRepository().GetByID(ctx, "nope")
		assert.True(t, persistence.IsApprovalItemNotFound(err), "got %v", err)

		update := NewOrder("ghost", models.OS01)
		update.Version = 3
		err = p.Commit(ctx, persistence.Transition{Order: update, ExpectedVersion: 2})
		assert.True(t, persistence.IsOrderNotFound(err), "got %v", err)
	})

	t.Run("stale version writes nothing", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		require.NoError(t, p.Commit(ctx, persistence.Transition{Order: NewOrder("order-2", models.OS08)}))

		first := NewOrder("order-2", models.OS08)
		first.Status = models.OrderStatusEmAndamento
		first.Version = 2
		require.NoError(t, p.Commit(ctx, persistence.Transition{Order: first, ExpectedVersion: 1}))

		stale := NewOrder("order-2", models.OS08)
		stale.Status = models.OrderStatusEmValidacao
		stale.Version = 2
		err := p.Commit(ctx, persistence.Transition{
			Order:           stale,
			ExpectedVersion: 1,
			Items:           []persistence.ItemWrite{{Item: NewItem("item-stale", "order-2", models.ApprovalKindLaudo)}},
		})
		assert.True(t, persistence.IsVersionConflict(err), "got %v", err)

		stored, err := p.OrderRepository().GetByID(ctx, "order-2")
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusEmAndamento, stored.Status)
		assert.Equal(t, int64(2), stored.Version)

		_, err = p.ApprovalRepository().GetByID(ctx, "item-stale")
		assert.True(t, persistence.IsApprovalItemNotFound(err), "got %v", err)
	})

	t.Run("order and items commit together", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		require.NoError(t, p.Commit(ctx, persistence.Transition{Order: NewOrder("order-3", models.OS08)}))

		order := NewOrder("order-3", models.OS08)
		order.Status = models.OrderStatusEmValidacao
		order.Version = 2
		item := NewItem("item-1", "order-3", models.ApprovalKindLaudo)
		require.NoError(t, p.Commit(ctx, persistence.Transition{
			Order:           order,
			ExpectedVersion: 1,
			Items:           []persistence.ItemWrite{{Item: item}},
		}))

		decided := item.Clone()
		decided.Status = models.ApprovalStatusRejeitado
		decided.Justification = "faltam fotos"
		decided.Version = 2
		require.NoError(t, p.Commit(ctx, persistence.Transition{
			Items: []persistence.ItemWrite{{Item: decided, ExpectedVersion: 1}},
		}))

		stored, err := p.ApprovalRepository().GetByID(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalStatusRejeitado, stored.Status)
		assert.Equal(t, "faltam fotos", stored.Justification)
		assert.Equal(t, int64(2), stored.Version)

		err = p.Commit(ctx, persistence.Transition{
			Items: []persistence.ItemWrite{{Item: decided, ExpectedVersion: 1}},
		})
		assert.True(t, persistence.IsVersionConflict(err), "got %v", err)
	})

	t.Run("list with filters", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		parent := NewOrder("parent", models.OS01)
		parent.Status = models.OrderStatusConcluida
		child := NewOrder("child", models.OS13)
		child.ParentOrderID = "parent"
		other := NewOrder("other", models.OS13)
		other.ClientRef = "client-2"

		for _, order := range []*models.Order{parent, child, other} {
			require.NoError(t, p.Commit(ctx, persistence.Transition{Order: order}))
		}

		all, err := p.OrderRepository().List(ctx, models.OrderFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		works, err := p.OrderRepository().List(ctx, models.OrderFilter{OSType: models.OS13})
		require.NoError(t, err)
		assert.Len(t, works, 2)

		children, err := p.OrderRepository().List(ctx, models.OrderFilter{ParentOrderID: "parent"})
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "child", children[0].ID)

		done, err := p.OrderRepository().List(ctx, models.OrderFilter{Status: models.OrderStatusConcluida})
		require.NoError(t, err)
		require.Len(t, done, 1)
		assert.Equal(t, "parent", done[0].ID)

		client2, err := p.OrderRepository().List(ctx, models.OrderFilter{ClientRef: "client-2"})
		require.NoError(t, err)
		assert.Len(t, client2, 1)

		limited, err := p.OrderRepository().List(ctx, models.OrderFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		laudo := NewItem("laudo-1", "child", models.ApprovalKindLaudo)
		medicao := NewItem("medicao-1", "other", models.ApprovalKindMedicao)
		medicao.Status = models.ApprovalStatusEmAnalise
		require.NoError(t, p.Commit(ctx, persistence.Transition{Items: []persistence.ItemWrite{{Item: laudo}, {Item: medicao}}}))

		items, err := p.ApprovalRepository().List(ctx, models.ApprovalFilter{})
		require.NoError(t, err)
		assert.Len(t, items, 2)

		pending, err := p.ApprovalRepository().List(ctx, models.ApprovalFilter{Status: models.ApprovalStatusPendenteRevisao})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "laudo-1", pending[0].ID)

		byOrder, err := p.ApprovalRepository().List(ctx, models.ApprovalFilter{OwnerOrderID: "other", Kind: models.ApprovalKindMedicao})
		require.NoError(t, err)
		require.Len(t, byOrder, 1)
		assert.Equal(t, "medicao-1", byOrder[0].ID)
	})

	t.Run("concurrent writers on one version", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		require.NoError(t, p.Commit(ctx, persistence.Transition{Order: NewOrder("order-race", models.OS09)}))

		const writers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)

		for range writers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				update := NewOrder("order-race", models.OS09)
				update.Version = 2

				err := p.Commit(ctx, persistence.Transition{Order: update, ExpectedVersion: 1})

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					succeeded++
				case persistence.IsVersionConflict(err):
					conflicts++
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, writers-1, conflicts)
	})

	t.Run("malformed transitions", func(t *testing.T) {
		p := factory(t)
		ctx := context.Background()

		require.ErrorIs(t, p.Commit(ctx, persistence.Transition{}), persistence.ErrEmptyTransition)

		skipped := NewOrder("order-4", models.OS10)
		skipped.Version = 5
		require.ErrorIs(t, p.Commit(ctx, persistence.Transition{Order: skipped}), persistence.ErrInvalidTransition)
	})

	t.Run("health check", func(t *testing.T) {
		p := factory(t)
		require.NoError(t, p.HealthCheck(context.Background()))
	})
}
