package registry

import (
	"time"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/steps"
)

// Progress is the part of an order that unlock conditions may look at.
type Progress struct {
	Completed map[int]bool
	Data      map[int]map[string]any
}

// ProgressOf builds the progress view of an order.
func ProgressOf(order *models.Order) Progress {
	return Progress{Completed: order.CompletedSteps(), Data: order.StepData()}
}

// Condition decides whether a step may become active.
type Condition func(p Progress) bool

// After holds once every listed step is completed.
func After(orders ...int) Condition {
	return func(p Progress) bool {
		for _, order := range orders {
			if !p.Completed[order] {
				return false
			}
		}

		return true
	}
}

// WhenTrue holds once step is completed with field set to true.
func WhenTrue(step int, field string) Condition {
	return func(p Progress) bool {
		if !p.Completed[step] {
			return false
		}

		value, ok := p.Data[step][field].(bool)

		return ok && value
	}
}

// WhenAbove holds once step is completed with a numeric field greater than threshold.
func WhenAbove(step int, field string, threshold float64) Condition {
	return func(p Progress) bool {
		if !p.Completed[step] {
			return false
		}

		switch v := p.Data[step][field].(type) {
		case float64:
			return v > threshold
		case int:
			return float64(v) > threshold
		case int64:
			return float64(v) > threshold
		default:
			return false
		}
	}
}

// All holds when every condition holds.
func All(conditions ...Condition) Condition {
	return func(p Progress) bool {
		for _, condition := range conditions {
			if !condition(p) {
				return false
			}
		}

		return true
	}
}

// Checkpoint marks a step whose completion needs an approval decision.
type Checkpoint struct {
	Kind models.ApprovalKind
	// FinalRejection makes a rejection terminate the order instead of returning the step.
	FinalRejection bool
}

// SeedFunc builds the seed data of a dependent order from its parent.
type SeedFunc func(parent *models.Order) (map[string]any, error)

// SpawnRule creates a dependent order when the owning step completes.
type SpawnRule struct {
	OSType models.OSType
	Seed   SeedFunc
}

// Definition is one static step of an OS type.
type Definition struct {
	*steps.Step

	Order      int
	Short      string
	Unlock     Condition
	Checkpoint *Checkpoint
	Optional   bool
	SLADays    int
	Document   string
	Spawn      *SpawnRule
}

// Unlocked reports whether the step may become active.
func (d *Definition) Unlocked(p Progress) bool {
	if d.Unlock == nil {
		return true
	}

	return d.Unlock(p)
}

// IsCheckpoint reports whether completing the step goes through the approval gate.
func (d *Definition) IsCheckpoint() bool {
	return d.Checkpoint != nil
}

// Due returns the approval deadline for an item submitted at submittedAt, or
// nil when the step carries no SLA.
func (d *Definition) Due(submittedAt time.Time) *time.Time {
	if d.SLADays <= 0 {
		return nil
	}

	due := AddBusinessDays(submittedAt, d.SLADays)

	return &due
}

// AddBusinessDays adds n working days, skipping Saturdays and Sundays.
func AddBusinessDays(from time.Time, n int) time.Time {
	current := from

	for added := 0; added < n; {
		current = current.AddDate(0, 0, 1)

		if current.Weekday() != time.Saturday && current.Weekday() != time.Sunday {
			added++
		}
	}

	return current
}

// Handoff is a change of responsible sector between two consecutive steps.
type Handoff struct {
	FromStep int                    `json:"from_step"`
	ToStep   int                    `json:"to_step"`
	From     models.ResponsibleRole `json:"from"`
	To       models.ResponsibleRole `json:"to"`
}
