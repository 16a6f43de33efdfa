// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/minerva-erp/osflow/pkg/config"
	"github.com/minerva-erp/osflow/pkg/registry"
)

// NewRegistry builds the built-in step flows and applies the overrides file at
// configPath, if any. It returns the loaded config for the approver settings.
func NewRegistry(log *slog.Logger, configPath string) (*registry.Registry, *config.WorkflowConfig, error) {
	reg := registry.NewDefaultRegistry(log)

	workflowConfig, err := config.LoadWorkflowConfigOrDefault(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := workflowConfig.Apply(reg); err != nil {
		return nil, nil, fmt.Errorf("failed to apply workflow config: %w", err)
	}

	log.Info("Registry ready", "os_types", len(reg.Types()), "config", configPath)

	return reg, workflowConfig, nil
}
