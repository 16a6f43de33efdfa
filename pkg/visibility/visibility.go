// Package visibility decides which steps of an order a user sees and may act on.
// It only annotates; the workflow enforces the same rules on every transition.
package visibility

import (
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
)

// Reasons a step is read-only.
const (
	ReasonOrderTerminal    = "order_terminal"
	ReasonCompleted        = "step_completed"
	ReasonAwaitingApproval = "awaiting_approval"
	ReasonNotActive        = "step_not_active"
	ReasonLocked           = "step_locked"
	ReasonOtherSector      = "other_sector"
)

// StepView is one reachable step as the acting user sees it.
type StepView struct {
	Order            int                    `json:"order"`
	Short            string                 `json:"short"`
	Label            string                 `json:"label"`
	Responsible      models.ResponsibleRole `json:"responsible"`
	Status           models.StepStatus      `json:"status"`
	Optional         bool                   `json:"optional,omitempty"`
	Checkpoint       bool                   `json:"checkpoint,omitempty"`
	ApprovalKind     models.ApprovalKind    `json:"approval_kind,omitempty"`
	Data             map[string]any         `json:"data,omitempty"`
	Observations     string                 `json:"observations,omitempty"`
	ApprovalItemID   string                 `json:"approval_item_id,omitempty"`
	AwaitingApproval bool                   `json:"awaiting_approval,omitempty"`
	DelegatedTo      string                 `json:"delegated_to,omitempty"`
	Document         *models.DocumentRef    `json:"document,omitempty"`
	Editable         bool                   `json:"editable"`
	ReadOnly         bool                   `json:"read_only"`
	Reason           string                 `json:"reason,omitempty"`
}

// VisibleSteps returns the reached steps of order the user may see, in step order.
//
// Executives see every reached step. Gestores and colaboradores see the steps
// of their sector plus completed history. Mão de obra sees only the steps
// delegated to them.
func VisibleSteps(order *models.Order, definitions []*registry.Definition, rc models.RoleContext) []StepView {
	progress := registry.ProgressOf(order)
	views := make([]StepView, 0, len(order.Steps))

	for _, definition := range definitions {
		record := order.Step(definition.Order)
		if record == nil || !visible(definition, record, rc) {
			continue
		}

		view := StepView{
			Order:            definition.Order,
			Short:            definition.Short,
			Label:            definition.Label,
			Responsible:      definition.Responsible,
			Status:           record.Status,
			Optional:         definition.Optional,
			Checkpoint:       definition.IsCheckpoint(),
			Data:             record.Data,
			Observations:     record.Observations,
			ApprovalItemID:   record.ApprovalItemID,
			AwaitingApproval: record.AwaitingApproval,
			DelegatedTo:      record.DelegatedTo,
			Document:         record.Document,
		}

		if definition.IsCheckpoint() {
			view.ApprovalKind = definition.Checkpoint.Kind
		}

		view.Reason = readOnlyReason(order, definition, record, progress, rc)
		view.Editable = view.Reason == ""
		view.ReadOnly = !view.Editable

		views = append(views, view)
	}

	return views
}

func visible(definition *registry.Definition, record *models.StepRecord, rc models.RoleContext) bool {
	if rc.IsExecutive() {
		return true
	}

	if record.DelegatedTo != "" && record.DelegatedTo == rc.UserID {
		return true
	}

	if rc.RoleLevel == models.RoleMaoDeObra {
		return false
	}

	return record.Status == models.StepStatusCompleted || definition.Responsible.Sector() == rc.Sector
}

func readOnlyReason(
	order *models.Order,
	definition *registry.Definition,
	record *models.StepRecord,
	progress registry.Progress,
	rc models.RoleContext,
) string {
	switch {
	case order.Status.Terminal():
		return ReasonOrderTerminal
	case record.Status == models.StepStatusCompleted:
		return ReasonCompleted
	case record.Status != models.StepStatusActive:
		return ReasonNotActive
	case record.AwaitingApproval:
		return ReasonAwaitingApproval
	case !definition.CanEdit(rc, record.DelegatedTo):
		return ReasonOtherSector
	case !definition.Unlocked(progress):
		return ReasonLocked
	default:
		return ""
	}
}
