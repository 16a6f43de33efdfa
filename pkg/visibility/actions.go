package visibility

import (
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
)

// Action names.
const (
	ActionAdvance  = "advance"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionReopen   = "reopen"
	ActionDelegate = "delegate"
)

// Action is something the user may do to one step right now.
type Action struct {
	Name      string `json:"name"`
	StepOrder int    `json:"step_order"`
}

// Actions lists what rc may do on order. approvers are the role levels allowed
// to decide approval items.
func Actions(order *models.Order, definitions []*registry.Definition, rc models.RoleContext, approvers []models.RoleLevel) []Action {
	actions := make([]Action, 0)

	active := order.ActiveStep()
	if order.Status.Terminal() || active == nil {
		return actions
	}

	definition := find(definitions, active.StepOrder)
	if definition == nil {
		return actions
	}

	if active.AwaitingApproval {
		if rc.HasLevel(approvers) {
			actions = append(actions,
				Action{Name: ActionApprove, StepOrder: active.StepOrder},
				Action{Name: ActionReject, StepOrder: active.StepOrder},
			)
		}

		return actions
	}

	if definition.CanEdit(rc, active.DelegatedTo) && definition.Unlocked(registry.ProgressOf(order)) {
		actions = append(actions, Action{Name: ActionAdvance, StepOrder: active.StepOrder})
	}

	if CanManage(rc, definition) {
		actions = append(actions, Action{Name: ActionDelegate, StepOrder: active.StepOrder})
	}

	if previous := order.PreviousCompleted(active.StepOrder); previous != nil {
		if CanManage(rc, find(definitions, previous.StepOrder)) {
			actions = append(actions, Action{Name: ActionReopen, StepOrder: previous.StepOrder})
		}
	}

	return actions
}

// CanManage reports whether rc may reopen or delegate the step: executives and
// the gestor of the step's sector.
func CanManage(rc models.RoleContext, definition *registry.Definition) bool {
	if definition == nil {
		return false
	}

	return rc.IsExecutive() || rc.Coordinates(definition.Responsible.Sector())
}

func find(definitions []*registry.Definition, order int) *registry.Definition {
	for _, definition := range definitions {
		if definition.Order == order {
			return definition
		}
	}

	return nil
}
