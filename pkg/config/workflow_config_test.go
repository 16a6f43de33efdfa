package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/minerva-erp/osflow/pkg/config"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overrides = `
approvers: [admin, diretoria]
os_types:
  OS-08:
    steps:
      6: { sla_days: 5, final_rejection: true }
  os12:
    steps:
      3: { requires_approval: true, approval_kind: medicao }
      8: { responsible_role: coord_administrativo }
`

func TestLoadWorkflowConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overrides), 0o600))

	cfg, err := config.LoadWorkflowConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []models.RoleLevel{models.RoleAdmin, models.RoleDiretoria}, cfg.ApproverLevels())
	require.Contains(t, cfg.OSTypes, "OS-08")
	require.NotNil(t, cfg.OSTypes["OS-08"].Steps[6].SLADays)
	assert.Equal(t, 5, *cfg.OSTypes["OS-08"].Steps[6].SLADays)
}

func TestWorkflowConfig_Apply(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseWorkflowConfig([]byte(overrides))
	require.NoError(t, err)

	reg := registry.NewDefaultRegistry(slog.New(slog.DiscardHandler))
	require.NoError(t, cfg.Apply(reg))

	laudo, err := reg.Step(models.OS08, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, laudo.SLADays)
	require.NotNil(t, laudo.Checkpoint)
	assert.True(t, laudo.Checkpoint.FinalRejection)
	assert.Equal(t, models.ApprovalKindLaudo, laudo.Checkpoint.Kind)

	upload, err := reg.Step(models.OS12, 3)
	require.NoError(t, err)
	require.NotNil(t, upload.Checkpoint)
	assert.Equal(t, models.ApprovalKindMedicao, upload.Checkpoint.Kind)

	activation, err := reg.Step(models.OS12, 8)
	require.NoError(t, err)
	assert.Equal(t, models.CoordAdministrativo, activation.Responsible)
}

func TestWorkflowConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "approvers: [admin"},
		{"unknown approver", "approvers: [estagiario]"},
		{"unknown os type", "os_types:\n  OS-99:\n    steps:\n      1: { sla_days: 2 }"},
		{"step zero", "os_types:\n  OS-08:\n    steps:\n      0: { sla_days: 2 }"},
		{"negative sla", "os_types:\n  OS-08:\n    steps:\n      1: { sla_days: -1 }"},
		{"unknown approval kind", "os_types:\n  OS-08:\n    steps:\n      6: { approval_kind: carimbo }"},
		{"unknown responsible", "os_types:\n  OS-08:\n    steps:\n      6: { responsible_role: coord_rh }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.ParseWorkflowConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestWorkflowConfig_ApplyUnknownStep(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseWorkflowConfig([]byte("os_types:\n  OS-08:\n    steps:\n      40: { sla_days: 2 }"))
	require.NoError(t, err)

	err = cfg.Apply(registry.NewDefaultRegistry(slog.New(slog.DiscardHandler)))
	assert.ErrorIs(t, err, registry.ErrUnknownStep)
}

func TestLoadWorkflowConfigOrDefault(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadWorkflowConfigOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultApprovers, cfg.ApproverLevels())

	_, err = config.LoadWorkflowConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
