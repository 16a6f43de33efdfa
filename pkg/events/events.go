// Package events defines the notifications published when orders change.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/minerva-erp/osflow/pkg/models"
)

type EventType string

const Topic = "osflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Order lifecycle events.
	OrderCreatedEvent          EventType = "order.created"
	OrderStatusChangedEvent    EventType = "order.status_changed"
	OrderDependentCreatedEvent EventType = "order.dependent_created"

	// Step events.
	StepCompletedEvent EventType = "step.completed"
	StepReopenedEvent  EventType = "step.reopened"
	StepDelegatedEvent EventType = "step.delegated"

	// Document events.
	DocumentRequestedEvent EventType = "document.requested"
	DocumentGeneratedEvent EventType = "document.generated"

	// Approval events.
	ApprovalSubmittedEvent EventType = "approval.submitted"
	ApprovalDecidedEvent   EventType = "approval.decided"
)

// AllEventTypes lists every event type published on Topic.
var AllEventTypes = []EventType{
	OrderCreatedEvent, OrderStatusChangedEvent, OrderDependentCreatedEvent,
	StepCompletedEvent, StepReopenedEvent, StepDelegatedEvent,
	DocumentRequestedEvent, DocumentGeneratedEvent,
	ApprovalSubmittedEvent, ApprovalDecidedEvent,
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	OrderID   string         `json:"order_id"`
	OSType    models.OSType  `json:"os_type,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type OrderCreated struct {
	BaseEvent

	Code          string `json:"code,omitempty"`
	ClientRef     string `json:"client_ref"`
	ParentOrderID string `json:"parent_order_id,omitempty"`
}

func (e OrderCreated) GetType() EventType {
	return OrderCreatedEvent
}

type OrderStatusChanged struct {
	BaseEvent

	From models.OrderStatus `json:"from"`
	To   models.OrderStatus `json:"to"`
}

func (e OrderStatusChanged) GetType() EventType {
	return OrderStatusChangedEvent
}

type OrderDependentCreated struct {
	BaseEvent

	StepOrder    int           `json:"step_order"`
	ChildOrderID string        `json:"child_order_id"`
	ChildOSType  models.OSType `json:"child_os_type"`
}

func (e OrderDependentCreated) GetType() EventType {
	return OrderDependentCreatedEvent
}

type StepCompleted struct {
	BaseEvent

	StepOrder int `json:"step_order"`
	// NextStep is 0 when no step was activated.
	NextStep int   `json:"next_step"`
	Skipped  []int `json:"skipped,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepReopened struct {
	BaseEvent

	StepOrder   int    `json:"step_order"`
	BlockedStep int    `json:"blocked_step"`
	Reason      string `json:"reason,omitempty"`
}

func (e StepReopened) GetType() EventType {
	return StepReopenedEvent
}

type StepDelegated struct {
	BaseEvent

	StepOrder   int    `json:"step_order"`
	DelegatedTo string `json:"delegated_to"`
}

func (e StepDelegated) GetType() EventType {
	return StepDelegatedEvent
}

type DocumentRequested struct {
	BaseEvent

	StepOrder    int    `json:"step_order"`
	DocumentID   string `json:"document_id"`
	TemplateKind string `json:"template_kind"`
}

func (e DocumentRequested) GetType() EventType {
	return DocumentRequestedEvent
}

type DocumentGenerated struct {
	BaseEvent

	StepOrder int                `json:"step_order"`
	Document  models.DocumentRef `json:"document"`
}

func (e DocumentGenerated) GetType() EventType {
	return DocumentGeneratedEvent
}

type ApprovalSubmitted struct {
	BaseEvent

	ItemID     string              `json:"item_id"`
	Kind       models.ApprovalKind `json:"kind"`
	StepOrder  int                 `json:"step_order"`
	Supersedes string              `json:"supersedes,omitempty"`
	DueAt      *time.Time          `json:"due_at,omitempty"`
}

func (e ApprovalSubmitted) GetType() EventType {
	return ApprovalSubmittedEvent
}

type ApprovalDecided struct {
	BaseEvent

	ItemID        string                `json:"item_id"`
	Kind          models.ApprovalKind   `json:"kind"`
	StepOrder     int                   `json:"step_order"`
	Status        models.ApprovalStatus `json:"status"`
	Justification string                `json:"justification,omitempty"`
}

func (e ApprovalDecided) GetType() EventType {
	return ApprovalDecidedEvent
}

// NewBaseEvent stamps a new event for order, acted on by actorID.
func NewBaseEvent(eventType EventType, order *models.Order, actorID string) BaseEvent {
	base := BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Metadata:  make(map[string]any),
	}

	if order != nil {
		base.OrderID = order.ID
		base.OSType = order.OSType
	}

	return base
}
