package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/persistence/file"
	"github.com/minerva-erp/osflow/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersistence(t *testing.T) {
	t.Parallel()

	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return file.NewPersistence("file://" + t.TempDir())
	})
}

func TestFilePersistence_Layout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := file.NewPersistence(root)
	ctx := context.Background()

	order := persistencetest.NewOrder("order-1", models.OS07)
	item := persistencetest.NewItem("item-1", "order-1", models.ApprovalKindReforma)
	require.NoError(t, p.Commit(ctx, persistence.Transition{Order: order, Items: []persistence.ItemWrite{{Item: item}}}))

	info, err := os.Stat(filepath.Join(root, "orders", "order-1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(filepath.Join(root, "approvals", "item-1.json"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "orders", "order-1.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFilePersistence_CommitRollsBackOnItemWriteFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing bool
	}{
		{"new order", false},
		{"existing order", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			p := file.NewPersistence(root)
			ctx := context.Background()

			order := persistencetest.NewOrder("order-1", models.OS08)
			expected := int64(0)

			if tt.existing {
				require.NoError(t, p.Commit(ctx, persistence.Transition{Order: order}))

				order = persistencetest.NewOrder("order-1", models.OS08)
				order.Version = 2
				order.Status = models.OrderStatusEmValidacao
				expected = 1
			}

			written := persistencetest.NewItem("item-1", "order-1", models.ApprovalKindLaudo)
			failing := persistencetest.NewItem("item-2", "order-1", models.ApprovalKindLaudo)

			// A directory in place of the temporary file makes the second item write fail.
			require.NoError(t, os.MkdirAll(filepath.Join(root, "approvals", "item-2.json.tmp"), 0750))

			err := p.Commit(ctx, persistence.Transition{
				Order:           order,
				ExpectedVersion: expected,
				Items:           []persistence.ItemWrite{{Item: written}, {Item: failing}},
			})
			require.Error(t, err)

			stored, err := p.OrderRepository().GetByID(ctx, "order-1")
			if tt.existing {
				require.NoError(t, err)
				assert.Equal(t, int64(1), stored.Version)
				assert.Equal(t, models.OrderStatusTriagem, stored.Status)
			} else {
				assert.True(t, persistence.IsOrderNotFound(err))
			}

			_, err = os.Stat(filepath.Join(root, "approvals", "item-1.json"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFilePersistence_RejectsPathIDs(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())

	_, err := p.OrderRepository().GetByID(context.Background(), "../escape")
	require.Error(t, err)
	assert.False(t, persistence.IsOrderNotFound(err))
}

func TestFilePersistence_HealthCheckMissingRoot(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, p.HealthCheck(context.Background()))
}
