package services

import (
	"context"
	"fmt"
	"time"

	"github.com/minerva-erp/osflow/pkg/eventbus"
	"github.com/minerva-erp/osflow/pkg/events"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/otelhelper"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
)

// anyVersion skips the caller version check; the commit still compares
// against the version loaded under the order lock.
const anyVersion int64 = -1

// TransitionResult is the committed order and, for approval transitions, the
// approval item written with it.
type TransitionResult struct {
	Order *models.Order        `json:"order"`
	Item  *models.ApprovalItem `json:"item,omitempty"`
}

// change is the in-flight mutation of one order.
type change struct {
	order  *models.Order
	from   models.OrderStatus
	items  []persistence.ItemWrite
	events []eventbus.Event
	item   *models.ApprovalItem
}

func (c *change) emit(event eventbus.Event) {
	c.events = append(c.events, event)
}

func (c *change) writeItem(item *models.ApprovalItem, expected int64) {
	c.items = append(c.items, persistence.ItemWrite{Item: item, ExpectedVersion: expected})
	c.item = item
}

type applyFunc func(ctx context.Context, c *change) error

// transition applies fn to a copy of the order under its lock and commits the
// result with the order and approval item writes in one persistence transition.
func (w *Workflow) transition(
	ctx context.Context,
	op, operation string,
	rc models.RoleContext,
	orderID string,
	expected int64,
	fn applyFunc,
) (*TransitionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow."+operation,
		attribute.String(otelhelper.OrderIDKey, orderID),
		attribute.String(otelhelper.UserIDKey, rc.UserID),
		attribute.String(otelhelper.RoleLevelKey, string(rc.RoleLevel)),
	)
	defer span.End()

	started := w.now()

	result, osType, err := w.runTransition(ctx, op, rc, orderID, expected, fn)

	w.metrics.Transition(osType, operation, outcomeOf(err), w.now().Sub(started))

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.OSTypeKey, string(osType)),
		attribute.String(otelhelper.OrderStatusKey, string(result.Order.Status)),
	)

	return result, nil
}

func (w *Workflow) runTransition(
	ctx context.Context,
	op string,
	rc models.RoleContext,
	orderID string,
	expected int64,
	fn applyFunc,
) (*TransitionResult, models.OSType, error) {
	err := w.checkActor(op, rc)
	if err != nil {
		return nil, "", w.denied(ctx, err)
	}

	unlock := w.locks.Lock(orderID)
	defer unlock()

	current, err := w.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	if expected != anyVersion && current.Version != expected {
		return nil, current.OSType, &ConcurrencyConflictError{
			Op:       op,
			OrderID:  orderID,
			Expected: expected,
			Actual:   current.Version,
		}
	}

	c := &change{order: current.Clone(), from: current.Status}

	err = fn(ctx, c)
	if err != nil {
		if IsAuthorizationError(err) || IsPreconditionError(err) {
			err = w.denied(ctx, err)
		}

		return nil, current.OSType, err
	}

	c.order.Version = current.Version + 1
	c.order.UpdatedAt = w.now()

	err = w.persistence.Commit(ctx, persistence.Transition{
		Order:           c.order,
		ExpectedVersion: current.Version,
		Items:           c.items,
	})
	if err != nil {
		if persistence.IsVersionConflict(err) {
			return nil, current.OSType, &ConcurrencyConflictError{
				Op:       op,
				OrderID:  orderID,
				Expected: current.Version,
				Err:      err,
			}
		}

		return nil, current.OSType, fmt.Errorf("%s: failed to commit order %s: %w", op, orderID, err)
	}

	if c.order.Status != c.from {
		c.emit(events.OrderStatusChanged{
			BaseEvent: events.NewBaseEvent(events.OrderStatusChangedEvent, c.order, rc.UserID),
			From:      c.from,
			To:        c.order.Status,
		})
	}

	w.logger.InfoContext(ctx, "Transition committed",
		"op", op,
		"order_id", orderID,
		"version", c.order.Version,
		"status", c.order.Status,
		"user_id", rc.UserID,
	)

	w.publish(ctx, orderID, c.events...)

	return &TransitionResult{Order: c.order, Item: c.item}, current.OSType, nil
}

// activateNext activates the first later step that is not completed. Optional
// steps whose unlock condition does not hold are passed over; a locked
// required step still becomes active and waits for its condition.
func activateNext(order *models.Order, definitions []*registry.Definition, after int, now time.Time) (int, []int) {
	progress := registry.ProgressOf(order)

	var skipped []int

	for _, definition := range definitions {
		if definition.Order <= after {
			continue
		}

		record := order.Step(definition.Order)
		if record != nil && record.Status == models.StepStatusCompleted {
			continue
		}

		if definition.Optional && !definition.Unlocked(progress) {
			skipped = append(skipped, definition.Order)

			continue
		}

		if record == nil {
			record = &models.StepRecord{StepOrder: definition.Order}
			order.Steps = append(order.Steps, record)
		}

		activated := now
		record.Status = models.StepStatusActive
		record.ActivatedAt = &activated
		order.CurrentStepIndex = definition.Order - 1

		return definition.Order, skipped
	}

	return 0, skipped
}

// projectStatus derives the order status from its step records.
func projectStatus(order *models.Order, definitions []*registry.Definition) models.OrderStatus {
	if order.Status == models.OrderStatusRejeitada {
		return order.Status
	}

	active := order.ActiveStep()

	switch {
	case active == nil && requiredCompleted(order, definitions):
		return models.OrderStatusConcluida
	case active != nil && active.AwaitingApproval:
		return models.OrderStatusEmValidacao
	case len(order.CompletedSteps()) == 0:
		return models.OrderStatusTriagem
	default:
		return models.OrderStatusEmAndamento
	}
}

func requiredCompleted(order *models.Order, definitions []*registry.Definition) bool {
	completed := order.CompletedSteps()

	for _, definition := range definitions {
		if !definition.Optional && !completed[definition.Order] {
			return false
		}
	}

	return true
}
