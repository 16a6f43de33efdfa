package models

import (
	"maps"
	"slices"
	"time"
)

// StepStatus is the status of a single step record.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusBlocked   StepStatus = "blocked" // Was active when an earlier step got reopened
)

// StepRecord holds what happened on one step of an order.
type StepRecord struct {
	StepOrder        int                `json:"step_order"`
	Status           StepStatus         `json:"status"`
	Data             map[string]any     `json:"data,omitempty"`
	CompletedBy      string             `json:"completed_by,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	ActivatedAt      *time.Time         `json:"activated_at,omitempty"`
	Observations     string             `json:"observations,omitempty"`
	ApprovalItemID   string             `json:"approval_item_id,omitempty"`
	AwaitingApproval bool               `json:"awaiting_approval,omitempty"`
	DelegatedTo      string             `json:"delegated_to,omitempty"`
	Document         *DocumentRef       `json:"document,omitempty"`
	Archive          []ArchivedStepData `json:"archive,omitempty"`
}

// ArchivedStepData is the data of a completed step that was later reopened.
type ArchivedStepData struct {
	Data        map[string]any `json:"data,omitempty"`
	CompletedBy string         `json:"completed_by,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	ReopenedBy  string         `json:"reopened_by"`
	ReopenedAt  time.Time      `json:"reopened_at"`
	Reason      string         `json:"reason,omitempty"`
}

// DocumentRef points at a document produced by the document generator.
type DocumentRef struct {
	ID           string    `json:"id"`
	TemplateKind string    `json:"template_kind"`
	URL          string    `json:"url,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Clone returns a copy of the record. Nested data values are shared.
func (r *StepRecord) Clone() *StepRecord {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Data = maps.Clone(r.Data)
	clone.Archive = slices.Clone(r.Archive)

	if r.Document != nil {
		document := *r.Document
		clone.Document = &document
	}

	return &clone
}
