// Package models defines the core domain models for service order workflows.
package models

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// OSType identifies an order-of-service template.
type OSType string

const (
	OS01 OSType = "OS-01" // Perícia de fachada
	OS02 OSType = "OS-02" // Revitalização de fachada
	OS03 OSType = "OS-03" // Reforço estrutural
	OS04 OSType = "OS-04" // Outros serviços de obras
	OS05 OSType = "OS-05" // Assessoria mensal (lead)
	OS06 OSType = "OS-06" // Assessoria laudo pontual (lead)
	OS07 OSType = "OS-07" // Solicitação de reforma
	OS08 OSType = "OS-08" // Visita técnica / parecer
	OS09 OSType = "OS-09" // Requisição de compras
	OS10 OSType = "OS-10" // Requisição de mão de obra
	OS11 OSType = "OS-11" // Execução de laudo pontual
	OS12 OSType = "OS-12" // Assessoria técnica recorrente
	OS13 OSType = "OS-13" // Contrato de obra
)

// AllOSTypes lists every known OS type in code order.
var AllOSTypes = []OSType{OS01, OS02, OS03, OS04, OS05, OS06, OS07, OS08, OS09, OS10, OS11, OS12, OS13}

// Valid reports whether t is a known OS type.
func (t OSType) Valid() bool {
	for _, known := range AllOSTypes {
		if t == known {
			return true
		}
	}

	return false
}

// ParseOSType accepts "OS-12", "os-12" and "OS12".
func ParseOSType(raw string) (OSType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.Contains(normalized, "-") && strings.HasPrefix(normalized, "OS") {
		normalized = "OS-" + strings.TrimPrefix(normalized, "OS")
	}

	t := OSType(normalized)
	if !t.Valid() {
		return "", fmt.Errorf("unknown OS type %q", raw)
	}

	return t, nil
}

// OrderStatus is the order-level lifecycle status.
type OrderStatus string

const (
	OrderStatusTriagem     OrderStatus = "triagem"      // Created, nothing completed yet
	OrderStatusEmAndamento OrderStatus = "em_andamento" // Steps in progress
	OrderStatusEmValidacao OrderStatus = "em_validacao" // Active step awaiting an approval decision
	OrderStatusConcluida   OrderStatus = "concluida"    // Terminal
	OrderStatusRejeitada   OrderStatus = "rejeitada"    // Terminal
)

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusConcluida || s == OrderStatusRejeitada
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusTriagem, OrderStatusEmAndamento, OrderStatusEmValidacao, OrderStatusConcluida, OrderStatusRejeitada:
		return true
	default:
		return false
	}
}

// Order is a single service order and its step records.
type Order struct {
	ID               string            `json:"id"`
	Code             string            `json:"code,omitempty"`
	OSType           OSType            `json:"os_type"`
	Status           OrderStatus       `json:"status"`
	ClientRef        string            `json:"client_ref"`
	ParentOrderID    string            `json:"parent_order_id,omitempty"`
	CurrentStepIndex int               `json:"current_step_index"`
	Steps            []*StepRecord     `json:"steps"`
	Dependents       map[OSType]string `json:"dependents,omitempty"`
	Version          int64             `json:"version"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// NewOrder builds a fresh order with step 1 active.
func NewOrder(id string, osType OSType, clientRef, createdBy string, now time.Time) *Order {
	activated := now

	return &Order{
		ID:        id,
		Code:      orderCode(osType, id),
		OSType:    osType,
		Status:    OrderStatusTriagem,
		ClientRef: clientRef,
		Steps: []*StepRecord{
			{StepOrder: 1, Status: StepStatusActive, ActivatedAt: &activated},
		},
		Version:   1,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func orderCode(osType OSType, id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[len(short)-8:]
	}

	return string(osType) + "-" + strings.ToUpper(short)
}

// Step returns the record for the 1-based step order, or nil when the step was never reached.
func (o *Order) Step(stepOrder int) *StepRecord {
	for _, record := range o.Steps {
		if record.StepOrder == stepOrder {
			return record
		}
	}

	return nil
}

// ActiveStep returns the single active record, or nil for terminal orders.
func (o *Order) ActiveStep() *StepRecord {
	for _, record := range o.Steps {
		if record.Status == StepStatusActive {
			return record
		}
	}

	return nil
}

// PreviousCompleted returns the completed record with the highest step order
// below before, or nil.
func (o *Order) PreviousCompleted(before int) *StepRecord {
	var previous *StepRecord

	for _, record := range o.Steps {
		if record.Status != StepStatusCompleted || record.StepOrder >= before {
			continue
		}

		if previous == nil || record.StepOrder > previous.StepOrder {
			previous = record
		}
	}

	return previous
}

// CompletedSteps returns the set of completed step orders.
func (o *Order) CompletedSteps() map[int]bool {
	completed := make(map[int]bool, len(o.Steps))

	for _, record := range o.Steps {
		if record.Status == StepStatusCompleted {
			completed[record.StepOrder] = true
		}
	}

	return completed
}

// StepData returns the data of every reached step keyed by step order.
func (o *Order) StepData() map[int]map[string]any {
	data := make(map[int]map[string]any, len(o.Steps))

	for _, record := range o.Steps {
		data[record.StepOrder] = record.Data
	}

	return data
}

// Clone returns a copy that can be mutated without touching the receiver.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}

	clone := *o
	clone.Dependents = maps.Clone(o.Dependents)
	clone.Metadata = maps.Clone(o.Metadata)
	clone.Steps = make([]*StepRecord, len(o.Steps))

	for i, record := range o.Steps {
		clone.Steps[i] = record.Clone()
	}

	return &clone
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	Status        OrderStatus
	OSType        OSType
	ClientRef     string
	ParentOrderID string
	Limit         int
}

// Matches reports whether the order satisfies the filter.
func (f OrderFilter) Matches(o *Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}

	if f.OSType != "" && o.OSType != f.OSType {
		return false
	}

	if f.ClientRef != "" && o.ClientRef != f.ClientRef {
		return false
	}

	if f.ParentOrderID != "" && o.ParentOrderID != f.ParentOrderID {
		return false
	}

	return true
}
