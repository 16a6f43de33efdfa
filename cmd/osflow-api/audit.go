package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/minerva-erp/osflow/pkg/eventbus"
	"github.com/minerva-erp/osflow/pkg/events"
)

// subscribeAudit logs every workflow event the bus delivers.
func subscribeAudit(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	for _, eventType := range events.AllEventTypes {
		err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.DebugContext(ctx, "Workflow event", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	return bus.Subscribe(ctx)
}
