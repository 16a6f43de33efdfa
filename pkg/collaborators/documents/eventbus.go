package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/eventbus"
	"github.com/minerva-erp/osflow/pkg/events"
	"github.com/minerva-erp/osflow/pkg/models"
)

// EventGenerator requests documents asynchronously by publishing a
// document.requested event. A successful publish counts as the generator's
// acknowledgement; the returned reference has no URL yet.
type EventGenerator struct {
	publisher eventbus.EventPublisher
	newID     func() string
}

func NewEventGenerator(bus eventbus.EventBus) *EventGenerator {
	return &EventGenerator{publisher: bus, newID: bus.GenerateID}
}

func (g *EventGenerator) Generate(ctx context.Context, request collaborators.DocumentRequest) (*models.DocumentRef, error) {
	id := g.newID()

	event := events.DocumentRequested{
		BaseEvent:    events.NewBaseEvent(events.DocumentRequestedEvent, &models.Order{ID: request.OrderID, OSType: request.OSType}, ""),
		StepOrder:    request.StepOrder,
		DocumentID:   id,
		TemplateKind: request.TemplateKind,
	}
	event.Metadata["data"] = request.Data

	err := g.publisher.Publish(ctx, request.OrderID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to publish document request: %w", err)
	}

	return &models.DocumentRef{
		ID:           id,
		TemplateKind: request.TemplateKind,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
