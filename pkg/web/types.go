// Package web provides HTTP request and response types for the order workflow API.
package web

import (
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
)

// Headers carrying the acting user of a request.
const (
	HeaderUserID    = "X-User-ID"
	HeaderRoleLevel = "X-Role-Level"
	HeaderSector    = "X-Sector"
)

// CreateOrderRequest represents the request body for opening a new order.
type CreateOrderRequest struct {
	OSType    string         `json:"os_type"            validate:"required"`
	ClientRef string         `json:"client_ref"         validate:"required"`
	Seed      map[string]any `json:"seed,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ConvertLeadRequest represents the request body for converting a lead into an order.
type ConvertLeadRequest struct {
	OSType string `json:"os_type" validate:"required"`
}

// AdvanceRequest saves and completes the active step.
type AdvanceRequest struct {
	Version int64          `json:"version" validate:"required,min=1"`
	Data    map[string]any `json:"data"`
}

// RejectRequest rejects the pending approval item of a step.
type RejectRequest struct {
	Version       int64  `json:"version"       validate:"required,min=1"`
	Justification string `json:"justification"`
}

// ReopenRequest returns the workflow to the previously completed step.
type ReopenRequest struct {
	Version int64  `json:"version" validate:"required,min=1"`
	Reason  string `json:"reason"`
}

// DelegateRequest assigns a step to a colleague.
type DelegateRequest struct {
	Version int64  `json:"version" validate:"required,min=1"`
	UserID  string `json:"user_id" validate:"required"`
}

// SubmitApprovalRequest submits the active checkpoint step of an order for review.
type SubmitApprovalRequest struct {
	OrderID string         `json:"order_id" validate:"required"`
	Version int64          `json:"version"  validate:"required,min=1"`
	Payload map[string]any `json:"payload"`
}

// DecisionRequest carries the reviewer's note. Rejections need a justification.
type DecisionRequest struct {
	Observations  string `json:"observations,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// StepDefinitionResponse describes one registered step.
type StepDefinitionResponse struct {
	Order          int                    `json:"order"`
	Short          string                 `json:"short"`
	Label          string                 `json:"label"`
	Responsible    models.ResponsibleRole `json:"responsible"`
	Optional       bool                   `json:"optional,omitempty"`
	Checkpoint     bool                   `json:"checkpoint,omitempty"`
	ApprovalKind   models.ApprovalKind    `json:"approval_kind,omitempty"`
	FinalRejection bool                   `json:"final_rejection,omitempty"`
	SLADays        int                    `json:"sla_days,omitempty"`
	Document       string                 `json:"document,omitempty"`
	Spawns         models.OSType          `json:"spawns,omitempty"`
	Schema         map[string]any         `json:"schema"`
}

// TransformDefinitionResponse flattens a registry definition for the API.
func TransformDefinitionResponse(definition *registry.Definition) StepDefinitionResponse {
	response := StepDefinitionResponse{
		Order:       definition.Order,
		Short:       definition.Short,
		Label:       definition.Label,
		Responsible: definition.Responsible,
		Optional:    definition.Optional,
		SLADays:     definition.SLADays,
		Document:    definition.Document,
		Schema:      definition.Schema(),
	}

	if definition.Checkpoint != nil {
		response.Checkpoint = true
		response.ApprovalKind = definition.Checkpoint.Kind
		response.FinalRejection = definition.Checkpoint.FinalRejection
	}

	if definition.Spawn != nil {
		response.Spawns = definition.Spawn.OSType
	}

	return response
}
