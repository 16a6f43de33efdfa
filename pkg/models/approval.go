package models

import "time"

// ApprovalKind classifies what an approval item reviews.
type ApprovalKind string

const (
	ApprovalKindLaudo            ApprovalKind = "laudo"
	ApprovalKindMedicao          ApprovalKind = "medicao"
	ApprovalKindReforma          ApprovalKind = "reforma"
	ApprovalKindProposta         ApprovalKind = "proposta"
	ApprovalKindRequisicaoCompra ApprovalKind = "requisicao_compra"
	ApprovalKindGeneric          ApprovalKind = "generic"
)

// Valid reports whether k is a known approval kind.
func (k ApprovalKind) Valid() bool {
	switch k {
	case ApprovalKindLaudo, ApprovalKindMedicao, ApprovalKindReforma, ApprovalKindProposta,
		ApprovalKindRequisicaoCompra, ApprovalKindGeneric:
		return true
	default:
		return false
	}
}

// ApprovalStatus is the review status of an approval item.
type ApprovalStatus string

const (
	ApprovalStatusPendenteRevisao ApprovalStatus = "pendente_revisao"
	ApprovalStatusEmAnalise       ApprovalStatus = "em_analise"
	ApprovalStatusAprovado        ApprovalStatus = "aprovado"
	ApprovalStatusRejeitado       ApprovalStatus = "rejeitado"
)

// Decided reports whether the item reached a final decision.
func (s ApprovalStatus) Decided() bool {
	return s == ApprovalStatusAprovado || s == ApprovalStatusRejeitado
}

// ApprovalItem is one submission of an approval checkpoint. Decided items are immutable.
type ApprovalItem struct {
	ID            string         `json:"id"`
	OwnerOrderID  string         `json:"owner_order_id"`
	OSType        OSType         `json:"os_type"`
	StepOrder     int            `json:"step_order"`
	Kind          ApprovalKind   `json:"kind"`
	Payload       map[string]any `json:"payload,omitempty"`
	Status        ApprovalStatus `json:"status"`
	SubmittedBy   string         `json:"submitted_by"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	ClaimedBy     string         `json:"claimed_by,omitempty"`
	ReviewedBy    string         `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Observations  string         `json:"observations,omitempty"`
	Supersedes    string         `json:"supersedes,omitempty"`
	DueAt         *time.Time     `json:"due_at,omitempty"`
	Version       int64          `json:"version"`
}

// Clone returns a copy of the item.
func (i *ApprovalItem) Clone() *ApprovalItem {
	if i == nil {
		return nil
	}

	clone := *i

	return &clone
}

// ApprovalFilter narrows approval queue listings. Zero values match everything.
type ApprovalFilter struct {
	Status       ApprovalStatus
	Kind         ApprovalKind
	OwnerOrderID string
}

// Matches reports whether the item satisfies the filter.
func (f ApprovalFilter) Matches(item *ApprovalItem) bool {
	if f.Status != "" && item.Status != f.Status {
		return false
	}

	if f.Kind != "" && item.Kind != f.Kind {
		return false
	}

	if f.OwnerOrderID != "" && item.OwnerOrderID != f.OwnerOrderID {
		return false
	}

	return true
}
