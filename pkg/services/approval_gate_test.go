package services

import (
	"testing"

	"github.com/minerva-erp/osflow/pkg/mocks"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// submittedLaudo returns an OS-08 order whose laudo (step 6) awaits a decision.
func submittedLaudo(t *testing.T, w *Workflow) (*models.Order, *models.ApprovalItem) {
	t.Helper()

	order := drive(t, w, admin, createOrder(t, w, models.OS08), visitFixtures, 5)

	item, err := w.Approvals().Submit(t.Context(), colabAss, order.ID, order.Version, visitFixtures[6])
	require.NoError(t, err)

	stored, err := w.GetOrder(t.Context(), order.ID)
	require.NoError(t, err)

	return stored, item
}

func TestApprovalGate_Submit(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	order, item := submittedLaudo(t, w)

	assert.Equal(t, models.ApprovalStatusPendenteRevisao, item.Status)
	assert.Equal(t, models.ApprovalKindLaudo, item.Kind)
	assert.Equal(t, order.ID, item.OwnerOrderID)
	assert.Equal(t, 6, item.StepOrder)
	assert.Equal(t, colabAss.UserID, item.SubmittedBy)
	assert.Empty(t, item.Supersedes)
	require.NotNil(t, item.DueAt)
	assert.Equal(t, registry.AddBusinessDays(testNow, 3), *item.DueAt)

	assert.Equal(t, models.OrderStatusEmValidacao, order.Status)
	record := order.Step(6)
	assert.Equal(t, models.StepStatusActive, record.Status)
	assert.True(t, record.AwaitingApproval)
	assert.Equal(t, item.ID, record.ApprovalItemID)

	_, err := w.Advance(t.Context(), colabAss, order.ID, 6, order.Version, visitFixtures[6])
	assert.True(t, IsPreconditionError(err), "second submission while pending")
}

func TestApprovalGate_SubmitNeedsCheckpoint(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	order := createOrder(t, w, models.OS08)

	_, err := w.Approvals().Submit(t.Context(), admin, order.ID, order.Version, visitFixtures[1])
	assert.True(t, IsPreconditionError(err))
}

func TestApprovalGate_RejectNeedsJustification(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	order, item := submittedLaudo(t, w)

	_, err := w.Approvals().Reject(t.Context(), gestorAss, item.ID, "  ")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	result, err := w.Approvals().Reject(t.Context(), gestorAss, item.ID, "faltam fotos")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusRejeitado, result.Item.Status)
	assert.Equal(t, "faltam fotos", result.Item.Justification)
	assert.Equal(t, gestorAss.UserID, result.Item.ReviewedBy)

	record := result.Order.Step(6)
	assert.Equal(t, models.StepStatusActive, record.Status)
	assert.False(t, record.AwaitingApproval)
	assert.Equal(t, "faltam fotos", record.Observations)
	assert.Equal(t, models.OrderStatusEmAndamento, result.Order.Status)
	assert.Equal(t, order.Version+1, result.Order.Version)

	stored, err := w.Approvals().Get(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejeitado, stored.Status)
}

func TestApprovalGate_ResubmissionSupersedes(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	_, first := submittedLaudo(t, w)

	rejected, err := w.Approvals().Reject(t.Context(), gestorAss, first.ID, "faltam fotos")
	require.NoError(t, err)

	second, err := w.Approvals().Submit(t.Context(), colabAss, first.OwnerOrderID, rejected.Order.Version,
		map[string]any{"conclusaoTecnica": "Recomenda-se reforço estrutural com fotos anexas"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ID, second.Supersedes)

	_, err = w.Approvals().Approve(t.Context(), gestorAss, first.ID, "")
	assert.True(t, IsPreconditionError(err), "decided items are immutable")

	items, err := w.Approvals().List(t.Context(), models.ApprovalFilter{OwnerOrderID: first.OwnerOrderID})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	pending, err := w.Approvals().List(t.Context(), models.ApprovalFilter{Status: models.ApprovalStatusPendenteRevisao})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestApprovalGate_ApproveCompletesStep(t *testing.T) {
	t.Parallel()

	generator := &mocks.MockDocumentGenerator{}
	generator.On("Generate", mock.Anything, mock.Anything).
		Return(&models.DocumentRef{ID: "doc-laudo", TemplateKind: "parecer_tecnico", GeneratedAt: testNow}, nil)

	metrics := &recordingMetrics{}

	w, _ := newTestWorkflow(t, WithDocumentGenerator(generator), WithMetrics(metrics))
	_, item := submittedLaudo(t, w)

	result, err := w.Approvals().Approve(t.Context(), gestorAdm, item.ID, "ok")
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusAprovado, result.Item.Status)
	assert.Equal(t, "ok", result.Item.Observations)

	record := result.Order.Step(6)
	assert.Equal(t, models.StepStatusCompleted, record.Status)
	assert.False(t, record.AwaitingApproval)
	require.NotNil(t, record.Document)
	assert.Equal(t, "doc-laudo", record.Document.ID)
	assert.Equal(t, 7, result.Order.ActiveStep().StepOrder)
	assert.Equal(t, models.OrderStatusEmAndamento, result.Order.Status)

	assert.Contains(t, metrics.decisions, models.ApprovalStatusAprovado)

	_, err = w.Approvals().Approve(t.Context(), gestorAdm, item.ID, "")
	assert.True(t, IsPreconditionError(err))
}

func TestApprovalGate_OnlyApproversDecide(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	_, item := submittedLaudo(t, w)

	tests := []struct {
		name string
		rc   models.RoleContext
	}{
		{"colaborador", colabAss},
		{"mao de obra", worker},
	}

	for _, tt := range tests {
		_, err := w.Approvals().Approve(t.Context(), tt.rc, item.ID, "")
		assert.True(t, IsAuthorizationError(err), tt.name)

		_, err = w.Approvals().Claim(t.Context(), tt.rc, item.ID)
		assert.True(t, IsAuthorizationError(err), tt.name)
	}
}

func TestApprovalGate_ConfiguredApprovers(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t, WithApprovers(models.RoleDiretoria))
	_, item := submittedLaudo(t, w)

	_, err := w.Approvals().Approve(t.Context(), gestorAss, item.ID, "")
	assert.True(t, IsAuthorizationError(err))

	diretor := models.RoleContext{UserID: "dir-1", RoleLevel: models.RoleDiretoria}

	_, err = w.Approvals().Approve(t.Context(), diretor, item.ID, "")
	assert.NoError(t, err)
}

func TestApprovalGate_Claim(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	order, item := submittedLaudo(t, w)

	claimed, err := w.Approvals().Claim(t.Context(), gestorAss, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusEmAnalise, claimed.Status)
	assert.Equal(t, gestorAss.UserID, claimed.ClaimedBy)
	assert.Equal(t, item.Version+1, claimed.Version)

	_, err = w.Approvals().Claim(t.Context(), gestorAdm, item.ID)
	assert.True(t, IsPreconditionError(err))

	stored, err := w.GetOrder(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Version, stored.Version, "claiming does not touch the order")

	result, err := w.Approvals().Approve(t.Context(), gestorAss, item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusAprovado, result.Item.Status)
}

func TestApprovalGate_UnknownItem(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)

	_, err := w.Approvals().Approve(t.Context(), admin, "missing", "")
	assert.True(t, IsNotFound(err))

	_, err = w.Approvals().Claim(t.Context(), admin, "missing")
	assert.True(t, IsNotFound(err))
}

func TestWorkflow_RejectStep(t *testing.T) {
	t.Parallel()

	w, _ := newTestWorkflow(t)
	order, _ := submittedLaudo(t, w)

	_, err := w.Reject(t.Context(), gestorAss, order.ID, 5, order.Version, "faltam fotos")
	assert.True(t, IsPreconditionError(err), "step 5 has no pending item")

	_, err = w.Reject(t.Context(), gestorAss, order.ID, 6, order.Version, "")
	assert.True(t, IsValidationError(err))

	_, err = w.Reject(t.Context(), gestorAss, order.ID, 6, order.Version-1, "faltam fotos")
	assert.True(t, IsConcurrencyConflict(err))

	result, err := w.Reject(t.Context(), gestorAss, order.ID, 6, order.Version, "faltam fotos")
	require.NoError(t, err)
	assert.Equal(t, "faltam fotos", result.Order.Step(6).Observations)
	assert.Equal(t, models.ApprovalStatusRejeitado, result.Item.Status)
}

func TestWorkflow_FinalRejectionTerminatesOrder(t *testing.T) {
	t.Parallel()

	reg := registry.NewDefaultRegistry(discardLogger())
	final := true
	require.NoError(t, reg.Override(models.OS08, 6, registry.Override{FinalRejection: &final}))

	w, _ := newTestWorkflowWith(t, reg)
	order, item := submittedLaudo(t, w)

	result, err := w.Approvals().Reject(t.Context(), admin, item.ID, "cliente desistiu")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusRejeitada, result.Order.Status)
	assert.Equal(t, models.StepStatusBlocked, result.Order.Step(6).Status)
	assert.Nil(t, result.Order.ActiveStep())

	_, err = w.Reopen(t.Context(), admin, order.ID, 5, result.Order.Version, "")
	assert.True(t, IsAuthorizationError(err))

	_, err = w.Advance(t.Context(), ownerOf(t, w, order.OSType, 6), order.ID, 6, result.Order.Version, visitFixtures[6])
	assert.True(t, IsAuthorizationError(err))
}
