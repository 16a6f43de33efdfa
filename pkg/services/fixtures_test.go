package services

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/persistence/file"
	"github.com/minerva-erp/osflow/pkg/registry"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

var (
	admin        = models.RoleContext{UserID: "admin-1", RoleLevel: models.RoleAdmin}
	gestorAdm    = models.RoleContext{UserID: "gestor-adm", RoleLevel: models.RoleGestor, Sector: models.SectorAdministrativo}
	gestorAss    = models.RoleContext{UserID: "gestor-ass", RoleLevel: models.RoleGestor, Sector: models.SectorAssessoria}
	colabAdm     = models.RoleContext{UserID: "colab-adm", RoleLevel: models.RoleColaborador, Sector: models.SectorAdministrativo}
	colabAss     = models.RoleContext{UserID: "colab-ass", RoleLevel: models.RoleColaborador, Sector: models.SectorAssessoria}
	diretorObras = models.RoleContext{UserID: "dir-obras", RoleLevel: models.RoleDiretoria, Sector: models.SectorObras}
	worker       = models.RoleContext{UserID: "worker-1", RoleLevel: models.RoleMaoDeObra, Sector: models.SectorAssessoria}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestWorkflow(t *testing.T, opts ...Option) (*Workflow, *file.Persistence) {
	t.Helper()

	return newTestWorkflowWith(t, registry.NewDefaultRegistry(discardLogger()), opts...)
}

func newTestWorkflowWith(t *testing.T, reg *registry.Registry, opts ...Option) (*Workflow, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	var seq atomic.Int64

	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("00000000-0000-7000-8000-%012d", seq.Add(1)) }),
		WithLogger(discardLogger()),
	}

	return NewWorkflow(store, reg, append(base, opts...)...), store
}

func createOrder(t *testing.T, w *Workflow, osType models.OSType) *models.Order {
	t.Helper()

	order, err := w.CreateOrder(t.Context(), admin, CreateOrderRequest{OSType: osType, ClientRef: "client-1"})
	require.NoError(t, err)

	return order
}

// ownerOf returns a gestor of the sector responsible for the step.
func ownerOf(t *testing.T, w *Workflow, osType models.OSType, stepOrder int) models.RoleContext {
	t.Helper()

	definition, err := w.Registry().Step(osType, stepOrder)
	require.NoError(t, err)

	sector := definition.Responsible.Sector()

	return models.RoleContext{UserID: "gestor-" + string(sector), RoleLevel: models.RoleGestor, Sector: sector}
}

// drive advances the order with fixture data until step to is completed or
// the order stops. Each step is filled in by its sector and checkpoints are
// approved as rc.
func drive(t *testing.T, w *Workflow, rc models.RoleContext, order *models.Order, fixtures map[int]map[string]any, to int) *models.Order {
	t.Helper()

	for {
		active := order.ActiveStep()
		if active == nil || active.StepOrder > to {
			return order
		}

		owner := ownerOf(t, w, order.OSType, active.StepOrder)

		result, err := w.Advance(t.Context(), owner, order.ID, active.StepOrder, order.Version, fixtures[active.StepOrder])
		require.NoError(t, err, "advance step %d", active.StepOrder)

		order = result.Order

		if result.Item != nil {
			decided, err := w.Approvals().Approve(t.Context(), rc, result.Item.ID, "")
			require.NoError(t, err, "approve step %d", active.StepOrder)

			order = decided.Order
		}
	}
}

// storeOrder writes a hand-built order at version 1.
func storeOrder(t *testing.T, store *file.Persistence, order *models.Order) {
	t.Helper()

	order.Version = 1
	order.CreatedAt = testNow
	order.UpdatedAt = testNow

	require.NoError(t, store.Commit(t.Context(), persistence.Transition{Order: order}))
}

var obrasFixtures = map[int]map[string]any{
	1:  {"leadId": "lead-1", "nome": "Condomínio Aurora"},
	2:  {"tipoOS": "OS-01"},
	3:  {"dataEntrevista": "2026-10-14", "interessePrincipal": "Pintura"},
	4:  {"dataVisita": "2026-10-16", "horaVisita": "10:00", "responsavelVisita": "eng-1"},
	5:  {"dataVisitaRealizada": "2026-10-16", "observacoesVisita": "Fachada com desplacamento", "fotos": []any{"foto-1"}},
	6:  {"dataFollowup": "2026-10-17", "feedback": "Positivo"},
	7:  {"idadeEdificacao": 25, "tipoEdificacao": "Residencial", "descricaoEscopo": "Recuperação completa da fachada norte"},
	8:  {"materialCusto": 1000, "maoObraCusto": 2000, "precoFinal": 3500},
	9:  {"descricaoServicos": "Recuperação e pintura da fachada", "valorProposta": 3500, "prazoProposta": 60},
	10: {"dataApresentacao": "2026-10-20", "horaApresentacao": "14:00"},
	11: {"dataApresentacaoRealizada": "2026-10-20", "reacaoCliente": "Aprovou"},
	12: {"dataFollowup3": "2026-10-21", "statusNegociacao": "Fechado"},
	13: {"descricaoContrato": "Contrato de recuperação de fachada", "dataInicio": "2026-11-01", "dataFim": "2027-01-31"},
	14: {"dataAssinatura": "2026-10-25", "assinadoPor": "Síndico"},
	15: {"dataInicio": "2026-11-01", "responsavelObra": "eng-2"},
}

var reformFixtures = map[int]map[string]any{
	1: {"nome": "Carlos Lima"},
	2: {"linkFormulario": "https://forms.example/reforma"},
	3: {"formularioRecebido": true, "parecer": "Reforma aprovada sem ressalvas"},
	4: {"revisado": true},
	5: {"concluida": true},
}

var visitFixtures = map[int]map[string]any{
	1: {"nomeCompleto": "Ana Souza", "contatoWhatsApp": "11999990000", "tipoDocumento": "laudo"},
	2: {"clienteId": "client-1"},
	3: {"dataAgendamento": "2026-10-20"},
	4: {"visitaRealizada": true, "dataRealizacao": "2026-10-20"},
	5: {"resultadoVisita": "Fissuras na fachada norte", "tipoDocumento": "laudo"},
	6: {"conclusaoTecnica": "Recomenda-se reforço estrutural imediato"},
	7: {"documentoEnviado": true, "dataEnvio": "2026-10-22"},
}

var labourFixtures = map[int]map[string]any{
	1: {"cargo": "Pedreiro", "dataNecessidade": "2026-11-01"},
	2: {"centroCusto": "cc-1"},
	3: {"tipoContratacao": "clt", "perfilColaborador": "Experiente"},
	4: {"quantidadeVagas": 1, "descricaoAtividades": "Alvenaria estrutural"},
	5: {"vagas": []any{"pedreiro", "servente"}},
}

var recurringFixtures = map[int]map[string]any{
	1: {"clienteId": "client-1", "senhaPortal": "segredo123"},
	2: {"arquivos": []any{"att-art"}},
	3: {"arquivos": []any{"att-plano"}},
	4: {"dataVisita": "2026-10-20", "horaVisita": "09:30"},
	5: {"visitaRealizada": true},
	6: {"frequencia": "mensal", "proximaVisita": "2026-11-03"},
	7: {"visitaAtualRealizada": true},
	8: {"confirmacaoTermos": true, "contratoAtivo": true},
}
