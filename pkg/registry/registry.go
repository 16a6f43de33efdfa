// Package registry holds the declarative step flow of every OS type.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/minerva-erp/osflow/pkg/models"
)

var (
	ErrUnknownOSType = errors.New("unknown OS type")
	ErrUnknownStep   = errors.New("unknown step")
	ErrInvalidFlow   = errors.New("invalid step flow")
)

// Registry maps each OS type to its ordered step definitions. It is built at
// start-up and only read afterwards.
type Registry struct {
	logger *slog.Logger
	flows  map[models.OSType][]*Definition
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log,
		flows:  make(map[models.OSType][]*Definition),
	}
}

// Register validates and stores the flow of an OS type. Steps without an
// explicit unlock condition unlock once every earlier required step is completed.
func (r *Registry) Register(osType models.OSType, definitions []*Definition) error {
	if !osType.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownOSType, osType)
	}

	if len(definitions) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidFlow, osType)
	}

	required := make([]int, 0, len(definitions))

	for i, definition := range definitions {
		if err := validateDefinition(osType, i, definition); err != nil {
			return err
		}

		if definition.Unlock == nil {
			definition.Unlock = After(slices.Clone(required)...)
		}

		if !definition.Optional {
			if !definition.Unlocked(Progress{Completed: setOf(required)}) {
				return fmt.Errorf("%w: %s step %d cannot unlock after its required predecessors",
					ErrInvalidFlow, osType, definition.Order)
			}

			required = append(required, definition.Order)
		}
	}

	r.flows[osType] = definitions
	r.logger.Debug("Registered step flow", "os_type", osType, "steps", len(definitions))

	return nil
}

// MustRegister is Register for built-in flows; a broken flow is a programming error.
func (r *Registry) MustRegister(osType models.OSType, definitions []*Definition) {
	if err := r.Register(osType, definitions); err != nil {
		panic(err)
	}
}

// Types lists the registered OS types in code order.
func (r *Registry) Types() []models.OSType {
	types := make([]models.OSType, 0, len(r.flows))

	for _, osType := range models.AllOSTypes {
		if _, ok := r.flows[osType]; ok {
			types = append(types, osType)
		}
	}

	return types
}

// Steps returns the ordered definitions of an OS type.
func (r *Registry) Steps(osType models.OSType) ([]*Definition, error) {
	definitions, ok := r.flows[osType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOSType, osType)
	}

	return definitions, nil
}

// Step returns the definition of a 1-based step order.
func (r *Registry) Step(osType models.OSType, order int) (*Definition, error) {
	definitions, err := r.Steps(osType)
	if err != nil {
		return nil, err
	}

	if order < 1 || order > len(definitions) {
		return nil, fmt.Errorf("%w: %s has no step %d", ErrUnknownStep, osType, order)
	}

	return definitions[order-1], nil
}

// Handoffs lists every change of responsible sector along the flow.
func (r *Registry) Handoffs(osType models.OSType) []Handoff {
	definitions := r.flows[osType]
	handoffs := make([]Handoff, 0)

	for i := 1; i < len(definitions); i++ {
		previous, current := definitions[i-1], definitions[i]
		if previous.Responsible != current.Responsible {
			handoffs = append(handoffs, Handoff{
				FromStep: previous.Order,
				ToStep:   current.Order,
				From:     previous.Responsible,
				To:       current.Responsible,
			})
		}
	}

	return handoffs
}

// HandoffInto returns the handoff that leads into step, if any.
func (r *Registry) HandoffInto(osType models.OSType, step int) *Handoff {
	for _, handoff := range r.Handoffs(osType) {
		if handoff.ToStep == step {
			return &handoff
		}
	}

	return nil
}

// Override changes the approval, SLA or ownership settings of a step. Step order is fixed.
type Override struct {
	RequiresApproval *bool
	ApprovalKind     models.ApprovalKind
	FinalRejection   *bool
	SLADays          *int
	Responsible      models.ResponsibleRole
}

// Override applies configuration to one registered step.
func (r *Registry) Override(osType models.OSType, order int, override Override) error {
	definition, err := r.Step(osType, order)
	if err != nil {
		return err
	}

	if override.Responsible != "" {
		if !override.Responsible.Valid() {
			return fmt.Errorf("%w: unknown responsible role %q", ErrInvalidFlow, override.Responsible)
		}

		definition.Responsible = override.Responsible
	}

	if override.SLADays != nil {
		definition.SLADays = *override.SLADays
	}

	if override.RequiresApproval != nil && !*override.RequiresApproval {
		definition.Checkpoint = nil
	}

	if override.RequiresApproval != nil && *override.RequiresApproval && definition.Checkpoint == nil {
		definition.Checkpoint = &Checkpoint{Kind: models.ApprovalKindGeneric}
	}

	if override.ApprovalKind != "" {
		if !override.ApprovalKind.Valid() {
			return fmt.Errorf("%w: unknown approval kind %q", ErrInvalidFlow, override.ApprovalKind)
		}

		if definition.Checkpoint == nil {
			definition.Checkpoint = &Checkpoint{}
		}

		definition.Checkpoint.Kind = override.ApprovalKind
	}

	if override.FinalRejection != nil && definition.Checkpoint != nil {
		definition.Checkpoint.FinalRejection = *override.FinalRejection
	}

	r.logger.Info("Applied step override", "os_type", osType, "step", order)

	return nil
}

func validateDefinition(osType models.OSType, index int, definition *Definition) error {
	if definition == nil || definition.Step == nil {
		return fmt.Errorf("%w: %s step %d has no contract", ErrInvalidFlow, osType, index+1)
	}

	if definition.Order != index+1 {
		return fmt.Errorf("%w: %s step at position %d has order %d", ErrInvalidFlow, osType, index+1, definition.Order)
	}

	if !definition.Responsible.Valid() {
		return fmt.Errorf("%w: %s step %d has no responsible role", ErrInvalidFlow, osType, definition.Order)
	}

	if definition.Checkpoint != nil && !definition.Checkpoint.Kind.Valid() {
		return fmt.Errorf("%w: %s step %d has an unknown approval kind", ErrInvalidFlow, osType, definition.Order)
	}

	return nil
}

func setOf(orders []int) map[int]bool {
	set := make(map[int]bool, len(orders))

	for _, order := range orders {
		set[order] = true
	}

	return set
}
