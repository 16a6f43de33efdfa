package services

import (
	"context"
	"fmt"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/otelhelper"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// ApprovalGate is the review queue of checkpoint steps. Decisions are written
// together with the owning order.
type ApprovalGate struct {
	workflow *Workflow
}

// Submit submits the active checkpoint step of the order with payload as its data.
func (g *ApprovalGate) Submit(
	ctx context.Context,
	rc models.RoleContext,
	orderID string,
	expected int64,
	payload map[string]any,
) (*models.ApprovalItem, error) {
	const op = "Submit"

	w := g.workflow

	result, err := w.transition(ctx, op, "submit", rc, orderID, expected, func(ctx context.Context, c *change) error {
		if c.order.Status.Terminal() {
			return unauthorized(op, rc, fmt.Sprintf("may not change order %s in status %s", c.order.ID, c.order.Status))
		}

		active := c.order.ActiveStep()
		if active == nil {
			return preconditionFailed(op, "order %s has no active step", c.order.ID)
		}

		definition, err := w.registry.Step(c.order.OSType, active.StepOrder)
		if err != nil || !definition.IsCheckpoint() {
			return preconditionFailed(op, "step %d of order %s is not an approval checkpoint", active.StepOrder, c.order.ID)
		}

		return w.advance(ctx, op, rc, c, active.StepOrder, payload)
	})
	if err != nil {
		return nil, err
	}

	return result.Item, nil
}

// Claim marks a pending item as under review by the actor.
func (g *ApprovalGate) Claim(ctx context.Context, rc models.RoleContext, itemID string) (*models.ApprovalItem, error) {
	const op = "Claim"

	w := g.workflow

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "approval.claim",
		attribute.String(otelhelper.ApprovalItemIDKey, itemID),
		attribute.String(otelhelper.UserIDKey, rc.UserID),
	)
	defer span.End()

	item, err := g.claim(ctx, op, rc, itemID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return item, nil
}

func (g *ApprovalGate) claim(ctx context.Context, op string, rc models.RoleContext, itemID string) (*models.ApprovalItem, error) {
	w := g.workflow

	err := w.checkActor(op, rc)
	if err != nil {
		return nil, w.denied(ctx, err)
	}

	if !rc.HasLevel(w.approvers) {
		return nil, w.denied(ctx, unauthorized(op, rc, "may not review approval items"))
	}

	owner, err := g.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	unlock := w.locks.Lock(owner.OwnerOrderID)
	defer unlock()

	stored, err := g.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if stored.Status != models.ApprovalStatusPendenteRevisao {
		return nil, w.denied(ctx, preconditionFailed(op, "item %s is %s, only pending items can be claimed", itemID, stored.Status))
	}

	item := stored.Clone()
	item.Status = models.ApprovalStatusEmAnalise
	item.ClaimedBy = rc.UserID
	item.Version = stored.Version + 1

	err = w.persistence.Commit(ctx, persistence.Transition{
		Items: []persistence.ItemWrite{{Item: item, ExpectedVersion: stored.Version}},
	})
	if err != nil {
		if persistence.IsVersionConflict(err) {
			return nil, &ConcurrencyConflictError{Op: op, OrderID: item.OwnerOrderID, Expected: stored.Version, Err: err}
		}

		return nil, fmt.Errorf("%s: failed to commit item %s: %w", op, itemID, err)
	}

	w.logger.InfoContext(ctx, "Approval item claimed", "item_id", itemID, "order_id", item.OwnerOrderID, "user_id", rc.UserID)

	return item, nil
}

// Approve approves the item and completes the owning checkpoint step.
func (g *ApprovalGate) Approve(ctx context.Context, rc models.RoleContext, itemID, observations string) (*TransitionResult, error) {
	return g.decide(ctx, "Approve", "approve", rc, itemID, models.ApprovalStatusAprovado, observations)
}

// Reject rejects the item and returns the owning step to its editors with the
// justification as observations.
func (g *ApprovalGate) Reject(ctx context.Context, rc models.RoleContext, itemID, justification string) (*TransitionResult, error) {
	return g.decide(ctx, "RejectItem", "reject_item", rc, itemID, models.ApprovalStatusRejeitado, justification)
}

func (g *ApprovalGate) decide(
	ctx context.Context,
	op, operation string,
	rc models.RoleContext,
	itemID string,
	status models.ApprovalStatus,
	note string,
) (*TransitionResult, error) {
	w := g.workflow

	owner, err := g.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	result, err := w.transition(ctx, op, operation, rc, owner.OwnerOrderID, anyVersion, func(ctx context.Context, c *change) error {
		return w.decide(ctx, op, rc, c, itemID, status, note)
	})
	if err != nil {
		return nil, err
	}

	w.metrics.ApprovalDecision(result.Item.Kind, result.Item.Status)

	return result, nil
}

// Get returns an approval item by id.
func (g *ApprovalGate) Get(ctx context.Context, itemID string) (*models.ApprovalItem, error) {
	item, err := g.workflow.persistence.ApprovalRepository().GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval item: %w", err)
	}

	return item, nil
}

// List returns the items matching filter. Items are never deleted.
func (g *ApprovalGate) List(ctx context.Context, filter models.ApprovalFilter) ([]*models.ApprovalItem, error) {
	items, err := g.workflow.persistence.ApprovalRepository().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval items: %w", err)
	}

	return items, nil
}
