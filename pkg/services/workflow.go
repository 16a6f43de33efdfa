package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/eventbus"
	"github.com/minerva-erp/osflow/pkg/events"
	"github.com/minerva-erp/osflow/pkg/log"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/otelhelper"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/registry"
	"github.com/minerva-erp/osflow/pkg/visibility"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Workflow drives orders through the steps of their OS type.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	documents   collaborators.DocumentGenerator
	dependents  collaborators.DependentOrderFactory
	attachments collaborators.AttachmentStore
	clients     collaborators.ClientDirectory
	metrics     Recorder
	tracer      trace.Tracer
	approvers   []models.RoleLevel
	now         func() time.Time
	newID       func() string
	locks       *keyedMutex
	validate    *validator.Validate
	logger      *slog.Logger
}

type Option func(*Workflow)

func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(w *Workflow) { w.publisher = publisher }
}

func WithDocumentGenerator(generator collaborators.DocumentGenerator) Option {
	return func(w *Workflow) { w.documents = generator }
}

func WithDependentOrders(factory collaborators.DependentOrderFactory) Option {
	return func(w *Workflow) { w.dependents = factory }
}

func WithAttachments(store collaborators.AttachmentStore) Option {
	return func(w *Workflow) { w.attachments = store }
}

func WithClients(directory collaborators.ClientDirectory) Option {
	return func(w *Workflow) { w.clients = directory }
}

func WithMetrics(recorder Recorder) Option {
	return func(w *Workflow) { w.metrics = recorder }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(w *Workflow) { w.tracer = tracer }
}

// WithApprovers replaces the role levels allowed to decide approval items.
func WithApprovers(levels ...models.RoleLevel) Option {
	return func(w *Workflow) {
		if len(levels) > 0 {
			w.approvers = levels
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) { w.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// NewWorkflow creates a new workflow service. Collaborators left unset are
// skipped: no documents are generated, no dependents spawned, attachments and
// clients are not checked.
func NewWorkflow(p persistence.Persistence, reg *registry.Registry, opts ...Option) *Workflow {
	w := &Workflow{
		persistence: p,
		registry:    reg,
		metrics:     nopRecorder{},
		tracer:      otel.Tracer("osflow"),
		approvers:   models.DefaultApprovers,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		locks:       newKeyedMutex(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      log.WithModule("workflow"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Approvals returns the approval gate bound to this workflow.
func (w *Workflow) Approvals() *ApprovalGate {
	return &ApprovalGate{workflow: w}
}

// Registry returns the step registry the workflow runs on.
func (w *Workflow) Registry() *registry.Registry {
	return w.registry
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateOrderRequest opens a new order.
type CreateOrderRequest struct {
	OSType    models.OSType  `validate:"required"`
	ClientRef string         `validate:"required"`
	Seed      map[string]any // draft data for step 1
	Metadata  map[string]any
}

// CreateOrder opens an order in triagem with step 1 active.
func (w *Workflow) CreateOrder(ctx context.Context, rc models.RoleContext, req CreateOrderRequest) (*models.Order, error) {
	const op = "CreateOrder"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.create_order",
		attribute.String(otelhelper.OSTypeKey, string(req.OSType)),
		attribute.String(otelhelper.UserIDKey, rc.UserID),
	)
	defer span.End()

	started := w.now()

	order, err := w.createOrder(ctx, op, rc, req)

	w.metrics.Transition(req.OSType, "create", outcomeOf(err), w.now().Sub(started))

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.OrderIDKey, order.ID))

	return order, nil
}

func (w *Workflow) createOrder(ctx context.Context, op string, rc models.RoleContext, req CreateOrderRequest) (*models.Order, error) {
	err := w.checkActor(op, rc)
	if err != nil {
		return nil, err
	}

	if rc.RoleLevel.Rank() < models.RoleColaborador.Rank() {
		return nil, w.denied(ctx, unauthorized(op, rc, "may not open orders"))
	}

	err = w.validate.Struct(req)
	if err != nil {
		return nil, validationFailed(op, "invalid order request", fieldErrors(err)...)
	}

	if _, err := w.registry.Steps(req.OSType); err != nil {
		return nil, validationFailed(op, "invalid order request",
			fieldError("os_type", fmt.Sprintf("unknown OS type %q", req.OSType)))
	}

	if w.clients != nil {
		_, err := w.clients.Lookup(ctx, req.ClientRef)
		if err != nil {
			if isClientNotFound(err) {
				return nil, validationFailed(op, "invalid order request", fieldError("client_ref", "unknown client"))
			}

			return nil, collaboratorFailed(op, "client directory", err)
		}
	}

	now := w.now()
	order := models.NewOrder(w.newID(), req.OSType, req.ClientRef, rc.UserID, now)
	order.Steps[0].Data = maps.Clone(req.Seed)
	order.Metadata = maps.Clone(req.Metadata)

	err = w.persistence.Commit(ctx, persistence.Transition{Order: order})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	w.logger.InfoContext(ctx, "Order created", "order_id", order.ID, "os_type", order.OSType, "user_id", rc.UserID)

	w.publish(ctx, order.ID, events.OrderCreated{
		BaseEvent: events.NewBaseEvent(events.OrderCreatedEvent, order, rc.UserID),
		Code:      order.Code,
		ClientRef: order.ClientRef,
	})

	return order, nil
}

// ConvertLead opens an order for a lead, recording the lead in the order metadata.
func (w *Workflow) ConvertLead(ctx context.Context, rc models.RoleContext, leadID string, osType models.OSType) (*models.Order, error) {
	const op = "ConvertLead"

	if strings.TrimSpace(leadID) == "" {
		return nil, validationFailed(op, "invalid lead", fieldError("lead_id", "is required"))
	}

	if w.clients != nil {
		lead, err := w.clients.Lookup(ctx, leadID)
		if err != nil {
			if isClientNotFound(err) {
				return nil, validationFailed(op, "invalid lead", fieldError("lead_id", "unknown lead"))
			}

			return nil, collaboratorFailed(op, "client directory", err)
		}

		if !lead.IsLead {
			return nil, preconditionFailed(op, "client %s is not a lead", leadID)
		}
	}

	return w.CreateOrder(ctx, rc, CreateOrderRequest{
		OSType:    osType,
		ClientRef: leadID,
		Seed:      map[string]any{"clienteId": leadID},
		Metadata:  map[string]any{"lead_id": leadID},
	})
}

// GetOrder returns an order by id.
func (w *Workflow) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := w.persistence.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// ListOrders returns the orders matching filter. Mão de obra only gets orders
// holding a step delegated to them.
func (w *Workflow) ListOrders(ctx context.Context, rc models.RoleContext, filter models.OrderFilter) ([]*models.Order, error) {
	err := w.checkActor("ListOrders", rc)
	if err != nil {
		return nil, err
	}

	orders, err := w.persistence.OrderRepository().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	if rc.RoleLevel != models.RoleMaoDeObra {
		return orders, nil
	}

	delegated := make([]*models.Order, 0)

	for _, order := range orders {
		if delegatedAny(order, rc.UserID) {
			delegated = append(delegated, order)
		}
	}

	return delegated, nil
}

// WorkflowState is an order as one user sees it.
type WorkflowState struct {
	Order    *models.Order         `json:"order"`
	Steps    []visibility.StepView `json:"steps"`
	Actions  []visibility.Action   `json:"actions"`
	Client   *models.Client        `json:"client,omitempty"`
	Handoff  *registry.Handoff     `json:"handoff,omitempty"`
	Handoffs []registry.Handoff    `json:"handoffs"`
}

// GetWorkflowState returns the order with the steps and actions visible to rc.
func (w *Workflow) GetWorkflowState(ctx context.Context, rc models.RoleContext, orderID string) (*WorkflowState, error) {
	err := w.checkActor("GetWorkflowState", rc)
	if err != nil {
		return nil, err
	}

	order, err := w.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	definitions, err := w.registry.Steps(order.OSType)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID, err)
	}

	state := &WorkflowState{
		Order:    order,
		Steps:    visibility.VisibleSteps(order, definitions, rc),
		Actions:  visibility.Actions(order, definitions, rc, w.approvers),
		Handoffs: w.registry.Handoffs(order.OSType),
	}

	if active := order.ActiveStep(); active != nil {
		state.Handoff = w.registry.HandoffInto(order.OSType, active.StepOrder)
	}

	if w.clients != nil && order.ClientRef != "" {
		client, err := w.clients.Lookup(ctx, order.ClientRef)
		if err != nil {
			w.logger.WarnContext(ctx, "Client lookup failed", "order_id", order.ID, "client_ref", order.ClientRef, "error", err)
		} else {
			state.Client = client
		}
	}

	return state, nil
}

// checkActor rejects calls without a well-formed role context.
func (w *Workflow) checkActor(op string, rc models.RoleContext) error {
	err := w.validate.Struct(rc)
	if err != nil {
		return unauthorized(op, rc, "is not a valid actor: "+err.Error())
	}

	return nil
}

func (w *Workflow) denied(ctx context.Context, err error) error {
	w.logger.WarnContext(ctx, "Transition refused", "error", err)

	return err
}

func (w *Workflow) publish(ctx context.Context, key string, batch ...eventbus.Event) {
	if w.publisher == nil {
		return
	}

	for _, event := range batch {
		err := w.publisher.Publish(ctx, key, event)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to publish event", "order_id", key, "event_type", event.GetType(), "error", err)
		}
	}
}
