package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/events"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
	"github.com/minerva-erp/osflow/pkg/steps"
	"github.com/minerva-erp/osflow/pkg/visibility"
)

// Advance merges data into the active step and completes it. Checkpoint steps
// are submitted to the approval gate instead and complete once approved.
func (w *Workflow) Advance(
	ctx context.Context,
	rc models.RoleContext,
	orderID string,
	stepOrder int,
	expected int64,
	data map[string]any,
) (*TransitionResult, error) {
	const op = "Advance"

	return w.transition(ctx, op, "advance", rc, orderID, expected, func(ctx context.Context, c *change) error {
		return w.advance(ctx, op, rc, c, stepOrder, data)
	})
}

func (w *Workflow) advance(ctx context.Context, op string, rc models.RoleContext, c *change, stepOrder int, data map[string]any) error {
	order := c.order

	definition, err := w.registry.Step(order.OSType, stepOrder)
	if err != nil {
		return preconditionFailed(op, "order %s has no step %d", order.ID, stepOrder)
	}

	if order.Status.Terminal() {
		return unauthorized(op, rc, fmt.Sprintf("may not change order %s in status %s", order.ID, order.Status))
	}

	record := order.Step(stepOrder)
	if record == nil || record.Status != models.StepStatusActive {
		return preconditionFailed(op, "step %d of order %s is not active", stepOrder, order.ID)
	}

	if record.AwaitingApproval {
		return preconditionFailed(op, "step %d of order %s awaits a decision on item %s", stepOrder, order.ID, record.ApprovalItemID)
	}

	if !definition.CanEdit(rc, record.DelegatedTo) {
		return unauthorized(op, rc, fmt.Sprintf("may not edit step %d owned by %s", stepOrder, definition.Responsible))
	}

	if !definition.Unlocked(registry.ProgressOf(order)) {
		return preconditionFailed(op, "step %d of order %s is locked", stepOrder, order.ID)
	}

	merged := make(map[string]any, len(record.Data)+len(data))
	maps.Copy(merged, record.Data)
	maps.Copy(merged, data)

	result := definition.Validate(merged)
	if !result.Valid() {
		return validationFailed(op, fmt.Sprintf("step %d is incomplete", stepOrder), result.Errors...)
	}

	err = w.checkAttachments(ctx, op, order.ID, definition, merged)
	if err != nil {
		return err
	}

	record.Data = merged

	if definition.IsCheckpoint() {
		w.submit(c, rc, definition, record)

		return nil
	}

	return w.completeStep(ctx, op, rc, c, definition, record)
}

func (w *Workflow) checkAttachments(ctx context.Context, op, orderID string, definition *registry.Definition, data map[string]any) error {
	if w.attachments == nil {
		return nil
	}

	var unknown []steps.FieldError

	for _, id := range definition.AttachmentIDs(data) {
		_, err := w.attachments.Stat(ctx, orderID, id)

		switch {
		case err == nil:
		case errors.Is(err, collaborators.ErrAttachmentNotFound):
			unknown = append(unknown, fieldError("attachments", fmt.Sprintf("unknown attachment %q", id)))
		default:
			return collaboratorFailed(op, "attachment store", err)
		}
	}

	if len(unknown) > 0 {
		return validationFailed(op, "unknown attachments", unknown...)
	}

	return nil
}

// submit opens a new approval item for the checkpoint step. A previous item
// of the step is referenced as superseded.
func (w *Workflow) submit(c *change, rc models.RoleContext, definition *registry.Definition, record *models.StepRecord) {
	now := w.now()

	item := &models.ApprovalItem{
		ID:           w.newID(),
		OwnerOrderID: c.order.ID,
		OSType:       c.order.OSType,
		StepOrder:    definition.Order,
		Kind:         definition.Checkpoint.Kind,
		Payload:      maps.Clone(record.Data),
		Status:       models.ApprovalStatusPendenteRevisao,
		SubmittedBy:  rc.UserID,
		SubmittedAt:  now,
		Supersedes:   record.ApprovalItemID,
		DueAt:        definition.Due(now),
		Version:      1,
	}

	c.writeItem(item, 0)

	record.ApprovalItemID = item.ID
	record.AwaitingApproval = true
	record.Observations = ""
	c.order.Status = models.OrderStatusEmValidacao

	c.emit(events.ApprovalSubmitted{
		BaseEvent:  events.NewBaseEvent(events.ApprovalSubmittedEvent, c.order, rc.UserID),
		ItemID:     item.ID,
		Kind:       item.Kind,
		StepOrder:  item.StepOrder,
		Supersedes: item.Supersedes,
		DueAt:      item.DueAt,
	})
}

// completeStep marks record completed, runs its document and spawn side
// effects and activates the next step. Collaborator failures abort the change.
func (w *Workflow) completeStep(
	ctx context.Context,
	op string,
	rc models.RoleContext,
	c *change,
	definition *registry.Definition,
	record *models.StepRecord,
) error {
	order := c.order
	now := w.now()

	record.Status = models.StepStatusCompleted
	record.CompletedBy = rc.UserID
	record.CompletedAt = &now
	record.AwaitingApproval = false

	if definition.Document != "" && w.documents != nil {
		document, err := w.documents.Generate(ctx, collaborators.DocumentRequest{
			OrderID:      order.ID,
			OrderCode:    order.Code,
			OSType:       order.OSType,
			StepOrder:    definition.Order,
			TemplateKind: definition.Document,
			Data:         record.Data,
		})
		if err != nil {
			return collaboratorFailed(op, "document generator", err)
		}

		if document != nil {
			record.Document = document

			c.emit(events.DocumentGenerated{
				BaseEvent: events.NewBaseEvent(events.DocumentGeneratedEvent, order, rc.UserID),
				StepOrder: definition.Order,
				Document:  *document,
			})
		}
	}

	if definition.Spawn != nil && w.dependents != nil {
		err := w.spawn(ctx, op, rc, c, definition)
		if err != nil {
			return err
		}
	}

	definitions, err := w.registry.Steps(order.OSType)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	next, skipped := activateNext(order, definitions, definition.Order, now)
	order.Status = projectStatus(order, definitions)

	c.emit(events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, order, rc.UserID),
		StepOrder: definition.Order,
		NextStep:  next,
		Skipped:   skipped,
	})

	return nil
}

// spawn creates the dependent order of the step once per OS type.
func (w *Workflow) spawn(ctx context.Context, op string, rc models.RoleContext, c *change, definition *registry.Definition) error {
	order := c.order
	rule := definition.Spawn

	if _, ok := order.Dependents[rule.OSType]; ok {
		return nil
	}

	var seed map[string]any

	if rule.Seed != nil {
		var err error

		seed, err = rule.Seed(order)
		if err != nil {
			return validationFailed(op, "cannot seed the dependent order", fieldError("", err.Error()))
		}
	}

	childID, err := w.dependents.Create(ctx, order, rule.OSType, seed)
	if err != nil {
		return collaboratorFailed(op, "dependent order factory", err)
	}

	if order.Dependents == nil {
		order.Dependents = make(map[models.OSType]string)
	}

	order.Dependents[rule.OSType] = childID

	c.emit(events.OrderDependentCreated{
		BaseEvent:    events.NewBaseEvent(events.OrderDependentCreatedEvent, order, rc.UserID),
		StepOrder:    definition.Order,
		ChildOrderID: childID,
		ChildOSType:  rule.OSType,
	})

	w.logger.InfoContext(ctx, "Dependent order created",
		"order_id", order.ID,
		"step", definition.Order,
		"child_order_id", childID,
		"child_os_type", rule.OSType,
	)

	return nil
}

// Reject rejects the pending approval item of a checkpoint step.
func (w *Workflow) Reject(
	ctx context.Context,
	rc models.RoleContext,
	orderID string,
	stepOrder int,
	expected int64,
	justification string,
) (*TransitionResult, error) {
	const op = "Reject"

	result, err := w.transition(ctx, op, "reject", rc, orderID, expected, func(ctx context.Context, c *change) error {
		if c.order.Status.Terminal() {
			return unauthorized(op, rc, fmt.Sprintf("may not change order %s in status %s", c.order.ID, c.order.Status))
		}

		record := c.order.Step(stepOrder)
		if record == nil || !record.AwaitingApproval || record.ApprovalItemID == "" {
			return preconditionFailed(op, "step %d of order %s has no pending approval item", stepOrder, c.order.ID)
		}

		return w.decide(ctx, op, rc, c, record.ApprovalItemID, models.ApprovalStatusRejeitado, justification)
	})
	if err != nil {
		return nil, err
	}

	w.metrics.ApprovalDecision(result.Item.Kind, result.Item.Status)

	return result, nil
}

// decide records an approval decision on itemID and applies it to the owning step.
func (w *Workflow) decide(
	ctx context.Context,
	op string,
	rc models.RoleContext,
	c *change,
	itemID string,
	status models.ApprovalStatus,
	note string,
) error {
	if !rc.HasLevel(w.approvers) {
		return unauthorized(op, rc, "may not decide approval items")
	}

	note = strings.TrimSpace(note)
	if status == models.ApprovalStatusRejeitado && note == "" {
		return validationFailed(op, "a rejection needs a justification", fieldError("justification", "is required"))
	}

	stored, err := w.persistence.ApprovalRepository().GetByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if stored.OwnerOrderID != c.order.ID {
		return preconditionFailed(op, "item %s does not belong to order %s", itemID, c.order.ID)
	}

	if stored.Status.Decided() {
		return preconditionFailed(op, "item %s is already %s", itemID, stored.Status)
	}

	record := c.order.Step(stored.StepOrder)
	if record == nil || record.ApprovalItemID != stored.ID || !record.AwaitingApproval {
		return preconditionFailed(op, "item %s is no longer pending on step %d", itemID, stored.StepOrder)
	}

	definition, err := w.registry.Step(c.order.OSType, stored.StepOrder)
	if err != nil || !definition.IsCheckpoint() {
		return preconditionFailed(op, "step %d of order %s is not an approval checkpoint", stored.StepOrder, c.order.ID)
	}

	now := w.now()
	item := stored.Clone()
	item.Status = status
	item.ReviewedBy = rc.UserID
	item.ReviewedAt = &now
	item.Version = stored.Version + 1

	if status == models.ApprovalStatusAprovado {
		item.Observations = note
	} else {
		item.Justification = note
	}

	c.writeItem(item, stored.Version)

	c.emit(events.ApprovalDecided{
		BaseEvent:     events.NewBaseEvent(events.ApprovalDecidedEvent, c.order, rc.UserID),
		ItemID:        item.ID,
		Kind:          item.Kind,
		StepOrder:     item.StepOrder,
		Status:        item.Status,
		Justification: item.Justification,
	})

	if status == models.ApprovalStatusAprovado {
		return w.completeStep(ctx, op, rc, c, definition, record)
	}

	record.AwaitingApproval = false
	record.Observations = note

	if definition.Checkpoint.FinalRejection {
		record.Status = models.StepStatusBlocked
		c.order.Status = models.OrderStatusRejeitada

		return nil
	}

	c.order.Status = models.OrderStatusEmAndamento

	return nil
}

// Reopen returns the completed step right before the active one to active,
// moving its data to the archive. The active step becomes blocked until the
// reopened one completes again.
func (w *Workflow) Reopen(
	ctx context.Context,
	rc models.RoleContext,
	orderID string,
	stepOrder int,
	expected int64,
	reason string,
) (*TransitionResult, error) {
	const op = "Reopen"

	return w.transition(ctx, op, "reopen", rc, orderID, expected, func(_ context.Context, c *change) error {
		order := c.order

		if order.Status.Terminal() {
			return unauthorized(op, rc, fmt.Sprintf("may not reopen order %s in status %s", order.ID, order.Status))
		}

		definition, err := w.registry.Step(order.OSType, stepOrder)
		if err != nil {
			return preconditionFailed(op, "order %s has no step %d", order.ID, stepOrder)
		}

		if !visibility.CanManage(rc, definition) {
			return unauthorized(op, rc, fmt.Sprintf("may not reopen step %d owned by %s", stepOrder, definition.Responsible))
		}

		active := order.ActiveStep()
		if active == nil {
			return preconditionFailed(op, "order %s has no active step", order.ID)
		}

		if active.AwaitingApproval {
			return preconditionFailed(op, "step %d of order %s awaits a decision on item %s", active.StepOrder, order.ID, active.ApprovalItemID)
		}

		target := order.PreviousCompleted(active.StepOrder)
		if target == nil || target.StepOrder != stepOrder {
			return preconditionFailed(op, "only the completed step right before step %d can be reopened", active.StepOrder)
		}

		now := w.now()

		target.Archive = append(target.Archive, models.ArchivedStepData{
			Data:        maps.Clone(target.Data),
			CompletedBy: target.CompletedBy,
			CompletedAt: target.CompletedAt,
			ReopenedBy:  rc.UserID,
			ReopenedAt:  now,
			Reason:      strings.TrimSpace(reason),
		})

		target.Data = nil
		target.Status = models.StepStatusActive
		target.CompletedBy = ""
		target.CompletedAt = nil
		target.Document = nil
		target.ActivatedAt = &now
		active.Status = models.StepStatusBlocked
		order.CurrentStepIndex = target.StepOrder - 1

		definitions, err := w.registry.Steps(order.OSType)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		order.Status = projectStatus(order, definitions)

		c.emit(events.StepReopened{
			BaseEvent:   events.NewBaseEvent(events.StepReopenedEvent, order, rc.UserID),
			StepOrder:   target.StepOrder,
			BlockedStep: active.StepOrder,
			Reason:      strings.TrimSpace(reason),
		})

		return nil
	})
}

// Delegate lets userID edit a reached, not completed step.
func (w *Workflow) Delegate(
	ctx context.Context,
	rc models.RoleContext,
	orderID string,
	stepOrder int,
	expected int64,
	userID string,
) (*TransitionResult, error) {
	const op = "Delegate"

	return w.transition(ctx, op, "delegate", rc, orderID, expected, func(_ context.Context, c *change) error {
		order := c.order

		if order.Status.Terminal() {
			return unauthorized(op, rc, fmt.Sprintf("may not change order %s in status %s", order.ID, order.Status))
		}

		userID = strings.TrimSpace(userID)
		if userID == "" {
			return validationFailed(op, "invalid delegation", fieldError("user_id", "is required"))
		}

		definition, err := w.registry.Step(order.OSType, stepOrder)
		if err != nil {
			return preconditionFailed(op, "order %s has no step %d", order.ID, stepOrder)
		}

		if !visibility.CanManage(rc, definition) {
			return unauthorized(op, rc, fmt.Sprintf("may not delegate step %d owned by %s", stepOrder, definition.Responsible))
		}

		record := order.Step(stepOrder)
		if record == nil || record.Status == models.StepStatusCompleted {
			return preconditionFailed(op, "step %d of order %s cannot be delegated", stepOrder, order.ID)
		}

		record.DelegatedTo = userID

		c.emit(events.StepDelegated{
			BaseEvent:   events.NewBaseEvent(events.StepDelegatedEvent, order, rc.UserID),
			StepOrder:   stepOrder,
			DelegatedTo: userID,
		})

		return nil
	})
}
