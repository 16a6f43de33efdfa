// Package config loads workflow overrides from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid workflow config")

// WorkflowConfig is the structure of the workflow overrides file:
//
//	approvers: [admin, diretoria, gestor]
//	os_types:
//	  OS-08:
//	    steps:
//	      6: { requires_approval: true, approval_kind: laudo, sla_days: 3 }
type WorkflowConfig struct {
	Approvers []models.RoleLevel      `yaml:"approvers" validate:"dive,oneof=admin diretoria gestor colaborador mao_de_obra"`
	OSTypes   map[string]OSTypeConfig `yaml:"os_types"  validate:"dive"`
}

type OSTypeConfig struct {
	Steps map[int]StepConfig `yaml:"steps" validate:"dive"`
}

// StepConfig overrides the approval, SLA and ownership settings of one step.
type StepConfig struct {
	RequiresApproval *bool                  `yaml:"requires_approval"`
	ApprovalKind     models.ApprovalKind    `yaml:"approval_kind"     validate:"omitempty,oneof=laudo medicao reforma proposta requisicao_compra generic"`
	SLADays          *int                   `yaml:"sla_days"          validate:"omitempty,min=0"`
	FinalRejection   *bool                  `yaml:"final_rejection"`
	ResponsibleRole  models.ResponsibleRole `yaml:"responsible_role"  validate:"omitempty,oneof=coord_administrativo coord_assessoria coord_obras"`
}

// LoadWorkflowConfig reads and validates an overrides file.
func LoadWorkflowConfig(path string) (*WorkflowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return ParseWorkflowConfig(data)
}

// LoadWorkflowConfigOrDefault returns an empty config when path is empty.
func LoadWorkflowConfigOrDefault(path string) (*WorkflowConfig, error) {
	if path == "" {
		return &WorkflowConfig{}, nil
	}

	return LoadWorkflowConfig(path)
}

func ParseWorkflowConfig(data []byte) (*WorkflowConfig, error) {
	var config WorkflowConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *WorkflowConfig) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for raw, osConfig := range c.OSTypes {
		if _, err := models.ParseOSType(raw); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		for step := range osConfig.Steps {
			if step < 1 {
				return fmt.Errorf("%w: %s step %d: steps start at 1", ErrInvalidConfig, raw, step)
			}
		}
	}

	return nil
}

// Apply writes the step overrides into reg in OS type and step order.
func (c *WorkflowConfig) Apply(reg *registry.Registry) error {
	types := make([]string, 0, len(c.OSTypes))
	for raw := range c.OSTypes {
		types = append(types, raw)
	}

	slices.Sort(types)

	for _, raw := range types {
		osType, err := models.ParseOSType(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		steps := c.OSTypes[raw].Steps

		orders := make([]int, 0, len(steps))
		for order := range steps {
			orders = append(orders, order)
		}

		slices.Sort(orders)

		for _, order := range orders {
			step := steps[order]

			err := reg.Override(osType, order, registry.Override{
				RequiresApproval: step.RequiresApproval,
				ApprovalKind:     step.ApprovalKind,
				FinalRejection:   step.FinalRejection,
				SLADays:          step.SLADays,
				Responsible:      step.ResponsibleRole,
			})
			if err != nil {
				return fmt.Errorf("failed to apply %s step %d: %w", osType, order, err)
			}
		}
	}

	return nil
}

// ApproverLevels returns the configured approvers, or the defaults when none are set.
func (c *WorkflowConfig) ApproverLevels() []models.RoleLevel {
	if len(c.Approvers) == 0 {
		return models.DefaultApprovers
	}

	return c.Approvers
}
