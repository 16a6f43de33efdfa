// Package web provides HTTP handlers and REST API endpoints for order workflows.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/services"
	"github.com/minerva-erp/osflow/pkg/steps"
)

type APIHandlers struct {
	workflow  *services.Workflow
	validator *validator.Validate
}

func NewAPIHandlers(workflow *services.Workflow, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		workflow:  workflow,
		validator: validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflow.HealthCheck(c.Context())
	types := len(h.workflow.Registry().Types())

	status := "unhealthy"
	message := "OSFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && types > 0 {
		status = "healthy"
		message = "OSFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   strconv.Itoa(types) + " OS types registered",
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateOrder(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	var req CreateOrderRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	osType, err := models.ParseOSType(req.OSType)
	if err != nil {
		return unprocessable(c, "invalid order", []steps.FieldError{{Field: "os_type", Message: err.Error()}})
	}

	order, err := h.workflow.CreateOrder(c.Context(), rc, services.CreateOrderRequest{
		OSType:    osType,
		ClientRef: req.ClientRef,
		Seed:      req.Seed,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *APIHandlers) ConvertLead(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	leadID := c.Params("leadId")
	if leadID == "" {
		return badRequest(c, "Lead ID is required")
	}

	var req ConvertLeadRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	osType, err := models.ParseOSType(req.OSType)
	if err != nil {
		return unprocessable(c, "invalid conversion", []steps.FieldError{{Field: "os_type", Message: err.Error()}})
	}

	order, err := h.workflow.ConvertLead(c.Context(), rc, leadID, osType)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *APIHandlers) ListOrders(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	filter, err := parseOrderFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	orders, err := h.workflow.ListOrders(c.Context(), rc, filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"orders":      orders,
		"total_count": len(orders),
	})
}

func parseOrderFilter(c fiber.Ctx) (models.OrderFilter, error) {
	filter := models.OrderFilter{
		ClientRef:     c.Query("client_ref"),
		ParentOrderID: c.Query("parent_order_id"),
	}

	if raw := c.Query("os_type"); raw != "" {
		osType, err := models.ParseOSType(raw)
		if err != nil {
			return filter, err
		}

		filter.OSType = osType
	}

	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.Valid() {
			return filter, errors.New("unknown status " + raw)
		}

		filter.Status = status
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			return filter, errors.New("limit must be between 1 and 500")
		}

		filter.Limit = limit
	}

	return filter, nil
}

func (h *APIHandlers) GetWorkflowState(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Order ID is required")
	}

	state, err := h.workflow.GetWorkflowState(c.Context(), rc, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) AdvanceStep(c fiber.Ctx) error {
	rc, id, step, err := h.stepTarget(c)
	if err != nil {
		return requestFailed(c, err)
	}

	var req AdvanceRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	result, err := h.workflow.Advance(c.Context(), rc, id, step, req.Version, req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) RejectStep(c fiber.Ctx) error {
	rc, id, step, err := h.stepTarget(c)
	if err != nil {
		return requestFailed(c, err)
	}

	var req RejectRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	result, err := h.workflow.Reject(c.Context(), rc, id, step, req.Version, req.Justification)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ReopenStep(c fiber.Ctx) error {
	rc, id, step, err := h.stepTarget(c)
	if err != nil {
		return requestFailed(c, err)
	}

	var req ReopenRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	result, err := h.workflow.Reopen(c.Context(), rc, id, step, req.Version, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) DelegateStep(c fiber.Ctx) error {
	rc, id, step, err := h.stepTarget(c)
	if err != nil {
		return requestFailed(c, err)
	}

	var req DelegateRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	result, err := h.workflow.Delegate(c.Context(), rc, id, step, req.Version, req.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) UploadAttachment(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Multipart field \"file\" is required")
	}

	file, err := header.Open()
	if err != nil {
		return internalError(c, err)
	}
	defer file.Close()

	ref, err := h.workflow.UploadAttachment(c.Context(), rc, c.Params("id"), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ref)
}

func (h *APIHandlers) ListApprovals(c fiber.Ctx) error {
	if _, err := h.roleContext(c); err != nil {
		return requestFailed(c, err)
	}

	filter := models.ApprovalFilter{
		Status:       models.ApprovalStatus(c.Query("status")),
		Kind:         models.ApprovalKind(c.Query("kind")),
		OwnerOrderID: c.Query("order_id"),
	}

	if filter.Kind != "" && !filter.Kind.Valid() {
		return badRequest(c, "Invalid query parameters: unknown kind "+string(filter.Kind))
	}

	items, err := h.workflow.Approvals().List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"items":       items,
		"total_count": len(items),
	})
}

func (h *APIHandlers) SubmitApproval(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	var req SubmitApprovalRequest
	if err := h.bind(c, &req); err != nil {
		return requestFailed(c, err)
	}

	item, err := h.workflow.Approvals().Submit(c.Context(), rc, req.OrderID, req.Version, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *APIHandlers) ClaimApproval(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	item, err := h.workflow.Approvals().Claim(c.Context(), rc, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(item)
}

func (h *APIHandlers) ApproveItem(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	req, err := decodeDecision(c)
	if err != nil {
		return requestFailed(c, err)
	}

	result, err := h.workflow.Approvals().Approve(c.Context(), rc, c.Params("id"), req.Observations)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) RejectItem(c fiber.Ctx) error {
	rc, err := h.roleContext(c)
	if err != nil {
		return requestFailed(c, err)
	}

	req, err := decodeDecision(c)
	if err != nil {
		return requestFailed(c, err)
	}

	result, err := h.workflow.Approvals().Reject(c.Context(), rc, c.Params("id"), req.Justification)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetRegistry(c fiber.Ctx) error {
	osType, err := models.ParseOSType(c.Params("osType"))
	if err != nil {
		return notFound(c, err.Error())
	}

	definitions, err := h.workflow.Registry().Steps(osType)
	if err != nil {
		return notFound(c, err.Error())
	}

	response := make([]StepDefinitionResponse, len(definitions))
	for i, definition := range definitions {
		response[i] = TransformDefinitionResponse(definition)
	}

	return c.JSON(fiber.Map{
		"os_type":  osType,
		"steps":    response,
		"handoffs": h.workflow.Registry().Handoffs(osType),
	})
}

// roleContext reads the acting user from the request headers.
func (h *APIHandlers) roleContext(c fiber.Ctx) (models.RoleContext, error) {
	rc := models.RoleContext{
		UserID:    c.Get(HeaderUserID),
		RoleLevel: models.RoleLevel(c.Get(HeaderRoleLevel)),
		Sector:    models.Sector(c.Get(HeaderSector)),
	}

	if err := h.validator.Struct(rc); err != nil {
		return rc, &requestError{
			status: fiber.StatusUnauthorized,
			detail: "missing or invalid " + HeaderUserID + ", " + HeaderRoleLevel + " or " + HeaderSector + " header",
		}
	}

	return rc, nil
}

// stepTarget resolves the actor, order id and step order of a step route.
func (h *APIHandlers) stepTarget(c fiber.Ctx) (models.RoleContext, string, int, error) {
	rc, err := h.roleContext(c)
	if err != nil {
		return rc, "", 0, err
	}

	id := c.Params("id")
	if id == "" {
		return rc, "", 0, &requestError{status: fiber.StatusBadRequest, detail: "Order ID is required"}
	}

	step, err := strconv.Atoi(c.Params("step"))
	if err != nil || step < 1 {
		return rc, "", 0, &requestError{status: fiber.StatusBadRequest, detail: "Step must be a positive integer"}
	}

	return rc, id, step, nil
}

// bind decodes and validates a JSON body.
func (h *APIHandlers) bind(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return &requestError{status: fiber.StatusBadRequest, detail: "Invalid JSON format"}
	}

	if err := h.validator.Struct(req); err != nil {
		return &requestError{status: fiber.StatusUnprocessableEntity, detail: "invalid request", fields: requestFields(err)}
	}

	return nil
}

// decodeDecision accepts an empty body as a decision without a note.
func decodeDecision(c fiber.Ctx) (DecisionRequest, error) {
	var req DecisionRequest

	if len(c.Body()) == 0 {
		return req, nil
	}

	if err := c.Bind().JSON(&req); err != nil {
		return req, &requestError{status: fiber.StatusBadRequest, detail: "Invalid JSON format"}
	}

	return req, nil
}

func requestFields(err error) []steps.FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []steps.FieldError{{Message: err.Error()}}
	}

	fields := make([]steps.FieldError, len(validationErrors))
	for i, fieldErr := range validationErrors {
		fields[i] = steps.FieldError{Field: fieldErr.Field(), Message: "failed on the '" + fieldErr.Tag() + "' rule"}
	}

	return fields
}
