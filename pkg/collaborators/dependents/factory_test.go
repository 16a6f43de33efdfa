package dependents

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/minerva-erp/osflow/pkg/mocks"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDependentID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DependentID("parent-1", models.OS13), DependentID("parent-1", models.OS13))
	assert.NotEqual(t, DependentID("parent-1", models.OS13), DependentID("parent-1", models.OS09))
	assert.NotEqual(t, DependentID("parent-1", models.OS13), DependentID("parent-2", models.OS13))
}

func TestFactory_CreateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	factory := NewFactory(store, slog.Default())
	ctx := context.Background()

	parent := &models.Order{ID: "parent-1", OSType: models.OS01, ClientRef: "client-9", Code: "OS-01-PARENT01"}
	seed := map[string]any{"clienteId": "client-9", "origemId": "parent-1"}

	first, err := factory.Create(ctx, parent, models.OS13, seed)
	require.NoError(t, err)

	second, err := factory.Create(ctx, parent, models.OS13, seed)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	children, err := store.OrderRepository().List(ctx, models.OrderFilter{ParentOrderID: "parent-1"})
	require.NoError(t, err)
	require.Len(t, children, 1)

	child := children[0]
	assert.Equal(t, models.OS13, child.OSType)
	assert.Equal(t, "client-9", child.ClientRef)
	assert.Equal(t, SystemActor, child.CreatedBy)
	assert.Equal(t, models.OrderStatusTriagem, child.Status)
	assert.Equal(t, "parent-1", child.ActiveStep().Data["origemId"])
}

func TestFactory_PersistenceFailure(t *testing.T) {
	t.Parallel()

	store := &mocks.MockPersistence{}
	store.On("Commit", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := NewFactory(store, slog.Default()).Create(context.Background(), &models.Order{ID: "p"}, models.OS08, nil)
	require.ErrorContains(t, err, "disk full")
}
