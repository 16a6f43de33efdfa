package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/minerva-erp/osflow/pkg/channels/gochannel"
	"github.com/minerva-erp/osflow/pkg/eventbus"
	"github.com/minerva-erp/osflow/pkg/events"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	received := make(chan *events.StepCompleted, 1)

	require.NoError(t, bus.Handle(events.StepCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.StepCompleted)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	order := &models.Order{ID: "order-1", OSType: models.OS08}
	sent := events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, order, "user-1"),
		StepOrder: 2,
		NextStep:  3,
	}

	require.NoError(t, bus.Publish(ctx, order.ID, sent))

	select {
	case got := <-received:
		assert.Equal(t, "order-1", got.OrderID)
		assert.Equal(t, models.OS08, got.OSType)
		assert.Equal(t, "user-1", got.ActorID)
		assert.Equal(t, 2, got.StepOrder)
		assert.Equal(t, 3, got.NextStep)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_SkipsUnhandledTypes(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	decided := make(chan *events.ApprovalDecided, 1)

	require.NoError(t, bus.Handle(events.ApprovalDecidedEvent, func(_ context.Context, event any) error {
		decided <- event.(*events.ApprovalDecided)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	order := &models.Order{ID: "order-2", OSType: models.OS11}

	require.NoError(t, bus.Publish(ctx, order.ID, events.StepDelegated{
		BaseEvent:   events.NewBaseEvent(events.StepDelegatedEvent, order, "gestor-1"),
		StepOrder:   1,
		DelegatedTo: "user-9",
	}))
	require.NoError(t, bus.Publish(ctx, order.ID, events.ApprovalDecided{
		BaseEvent: events.NewBaseEvent(events.ApprovalDecidedEvent, order, "diretor-1"),
		ItemID:    "laudo-1",
		Kind:      models.ApprovalKindLaudo,
		StepOrder: 6,
		Status:    models.ApprovalStatusAprovado,
	}))

	select {
	case got := <-decided:
		assert.Equal(t, "laudo-1", got.ItemID)
		assert.Equal(t, models.ApprovalStatusAprovado, got.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("approval decision was not delivered")
	}
}
