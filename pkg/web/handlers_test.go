package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/minerva-erp/osflow/pkg/collaborators/attachments"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence/file"
	"github.com/minerva-erp/osflow/pkg/registry"
	"github.com/minerva-erp/osflow/pkg/services"
	"github.com/minerva-erp/osflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = models.RoleContext{UserID: "admin-1", RoleLevel: models.RoleAdmin}
	gestor   = models.RoleContext{UserID: "gestor-ass", RoleLevel: models.RoleGestor, Sector: models.SectorAssessoria}
	colabAdm = models.RoleContext{UserID: "colab-adm", RoleLevel: models.RoleColaborador, Sector: models.SectorAdministrativo}
	colabAss = models.RoleContext{UserID: "colab-ass", RoleLevel: models.RoleColaborador, Sector: models.SectorAssessoria}
	worker   = models.RoleContext{UserID: "worker-1", RoleLevel: models.RoleMaoDeObra, Sector: models.SectorAssessoria}
)

var visitSteps = map[int]map[string]any{
	1: {"nomeCompleto": "Ana Souza", "contatoWhatsApp": "11999990000", "tipoDocumento": "laudo"},
	2: {"clienteId": "client-1"},
	3: {"dataAgendamento": "2026-10-20"},
	4: {"visitaRealizada": true, "dataRealizacao": "2026-10-20"},
	5: {"resultadoVisita": "Fissuras na fachada norte", "tipoDocumento": "laudo"},
	6: {"conclusaoTecnica": "Recomenda-se reforço estrutural imediato"},
}

func setupTestApp(t *testing.T) (*fiber.App, *services.Workflow) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	workflow := services.NewWorkflow(
		file.NewPersistence(t.TempDir()),
		registry.NewDefaultRegistry(logger),
		services.WithAttachments(attachments.NewLocalStore(t.TempDir())),
		services.WithLogger(logger),
	)

	handlers := web.NewAPIHandlers(workflow, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.Register(app)

	return app, workflow
}

func do(t *testing.T, app *fiber.App, method, path string, rc *models.RoleContext, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	setRole(req, rc)

	return send(t, app, req)
}

func setRole(req *http.Request, rc *models.RoleContext) {
	if rc == nil {
		return
	}

	req.Header.Set(web.HeaderUserID, rc.UserID)
	req.Header.Set(web.HeaderRoleLevel, string(rc.RoleLevel))

	if rc.Sector != "" {
		req.Header.Set(web.HeaderSector, string(rc.Sector))
	}
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

type problem struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(body, &value), string(body))

	return value
}

func newVisit(t *testing.T, w *services.Workflow) *models.Order {
	t.Helper()

	order, err := w.CreateOrder(t.Context(), admin, services.CreateOrderRequest{OSType: models.OS08, ClientRef: "client-1"})
	require.NoError(t, err)

	return order
}

// sectorColleague returns a colaborador of the sector responsible for the step.
func sectorColleague(t *testing.T, w *services.Workflow, osType models.OSType, step int) models.RoleContext {
	t.Helper()

	definition, err := w.Registry().Step(osType, step)
	require.NoError(t, err)

	sector := definition.Responsible.Sector()

	return models.RoleContext{UserID: "colab-" + string(sector), RoleLevel: models.RoleColaborador, Sector: sector}
}

// advanceTo completes the steps of an OS-08 order up to and including step to.
func advanceTo(t *testing.T, w *services.Workflow, order *models.Order, to int) *models.Order {
	t.Helper()

	for step := order.ActiveStep().StepOrder; step <= to; step++ {
		result, err := w.Advance(t.Context(), sectorColleague(t, w, order.OSType, step), order.ID, step, order.Version, visitSteps[step])
		require.NoError(t, err, "advance step %d", step)

		order = result.Order
	}

	return order
}

func TestAPIHandlers_CreateOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		rc             *models.RoleContext
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "created",
			rc:             &admin,
			body:           web.CreateOrderRequest{OSType: "os08", ClientRef: "client-1"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing role headers",
			body:           web.CreateOrderRequest{OSType: "OS-08", ClientRef: "client-1"},
			expectedStatus: http.StatusUnauthorized,
			expectedType:   "unauthenticated",
		},
		{
			name:           "invalid JSON",
			rc:             &admin,
			body:           "invalid-json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "bad_request",
		},
		{
			name:           "missing client",
			rc:             &admin,
			body:           web.CreateOrderRequest{OSType: "OS-08"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "validation_error",
		},
		{
			name:           "unknown OS type",
			rc:             &admin,
			body:           web.CreateOrderRequest{OSType: "OS-99", ClientRef: "client-1"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "validation_error",
		},
		{
			name:           "mao de obra may not open orders",
			rc:             &worker,
			body:           web.CreateOrderRequest{OSType: "OS-08", ClientRef: "client-1"},
			expectedStatus: http.StatusForbidden,
			expectedType:   "forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/orders", tt.rc, tt.body)
			require.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, decode[problem](t, body).Type)

				return
			}

			order := decode[models.Order](t, body)
			assert.Equal(t, models.OS08, order.OSType)
			assert.Equal(t, int64(1), order.Version)
			assert.Equal(t, models.OrderStatusTriagem, order.Status)
		})
	}
}

func TestAPIHandlers_CreateOrderFieldErrors(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/orders", &admin, web.CreateOrderRequest{})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	p := decode[problem](t, body)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, "OSType", p.Errors[0].Field)
	assert.Equal(t, "ClientRef", p.Errors[1].Field)
}

func TestAPIHandlers_ConvertLead(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/leads/lead-7/convert", &admin, web.ConvertLeadRequest{OSType: "OS-05"})
	require.Equal(t, http.StatusCreated, status, string(body))

	order := decode[models.Order](t, body)
	assert.Equal(t, models.OS05, order.OSType)
	assert.Equal(t, "lead-7", order.ClientRef)
	assert.Equal(t, "lead-7", order.Metadata["lead_id"])
}

func TestAPIHandlers_AdvanceStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		rc             models.RoleContext
		path           string
		body           func(order *models.Order) any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "completes the active step",
			rc:             colabAdm,
			path:           "/steps/1/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version, Data: visitSteps[1]} },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "stale version",
			rc:             colabAdm,
			path:           "/steps/1/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version + 1, Data: visitSteps[1]} },
			expectedStatus: http.StatusConflict,
			expectedType:   "concurrency_conflict",
		},
		{
			name:           "step not active",
			rc:             colabAdm,
			path:           "/steps/3/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version, Data: visitSteps[3]} },
			expectedStatus: http.StatusConflict,
			expectedType:   "precondition_failed",
		},
		{
			name:           "incomplete data",
			rc:             colabAdm,
			path:           "/steps/1/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version, Data: map[string]any{"nomeCompleto": "An"}} },
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "validation_error",
		},
		{
			name:           "missing version",
			rc:             colabAdm,
			path:           "/steps/1/advance",
			body:           func(*models.Order) any { return web.AdvanceRequest{Data: visitSteps[1]} },
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "validation_error",
		},
		{
			name:           "admin outside the step's sector",
			rc:             admin,
			path:           "/steps/1/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version, Data: visitSteps[1]} },
			expectedStatus: http.StatusForbidden,
			expectedType:   "forbidden",
		},
		{
			name:           "other sector",
			rc:             colabAss,
			path:           "/steps/1/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version, Data: visitSteps[1]} },
			expectedStatus: http.StatusForbidden,
			expectedType:   "forbidden",
		},
		{
			name:           "bad step",
			rc:             admin,
			path:           "/steps/first/advance",
			body:           func(o *models.Order) any { return web.AdvanceRequest{Version: o.Version} },
			expectedStatus: http.StatusBadRequest,
			expectedType:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, w := setupTestApp(t)
			order := newVisit(t, w)

			status, body := do(t, app, http.MethodPost, "/orders/"+order.ID+tt.path, &tt.rc, tt.body(order))
			require.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				p := decode[problem](t, body)
				assert.Equal(t, tt.expectedType, p.Type)
				assert.Equal(t, tt.expectedStatus, p.Status)

				if tt.expectedType == "validation_error" {
					assert.NotEmpty(t, p.Errors)
				}

				return
			}

			result := decode[services.TransitionResult](t, body)
			assert.Equal(t, order.Version+1, result.Order.Version)
			assert.Equal(t, models.StepStatusCompleted, result.Order.Step(1).Status)
			assert.Equal(t, 2, result.Order.ActiveStep().StepOrder)
		})
	}
}

func TestAPIHandlers_UnknownOrder(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/orders/missing/steps/1/advance", &admin, web.AdvanceRequest{Version: 1})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", decode[problem](t, body).Type)

	status, _ = do(t, app, http.MethodGet, "/orders/missing/workflow", &admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_ApprovalFlow(t *testing.T) {
	t.Parallel()

	app, w := setupTestApp(t)
	order := advanceTo(t, w, newVisit(t, w), 5)

	status, body := do(t, app, http.MethodPost, "/approvals", &colabAss, web.SubmitApprovalRequest{
		OrderID: order.ID,
		Version: order.Version,
		Payload: visitSteps[6],
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	item := decode[models.ApprovalItem](t, body)
	assert.Equal(t, models.ApprovalStatusPendenteRevisao, item.Status)
	assert.Equal(t, models.ApprovalKindLaudo, item.Kind)

	status, body = do(t, app, http.MethodGet, "/approvals?status=pendente_revisao&order_id="+order.ID, &gestor, nil)
	require.Equal(t, http.StatusOK, status)

	queue := decode[struct {
		Items      []models.ApprovalItem `json:"items"`
		TotalCount int                   `json:"total_count"`
	}](t, body)
	require.Equal(t, 1, queue.TotalCount)
	assert.Equal(t, item.ID, queue.Items[0].ID)

	status, _ = do(t, app, http.MethodPost, "/approvals/"+item.ID+"/claim", &colabAss, nil)
	assert.Equal(t, http.StatusForbidden, status, "colaboradores do not review")

	status, body = do(t, app, http.MethodPost, "/approvals/"+item.ID+"/claim", &gestor, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.ApprovalStatusEmAnalise, decode[models.ApprovalItem](t, body).Status)

	status, body = do(t, app, http.MethodPost, "/approvals/"+item.ID+"/reject", &gestor, nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_error", decode[problem](t, body).Type)

	status, body = do(t, app, http.MethodPost, "/approvals/"+item.ID+"/reject", &gestor, web.DecisionRequest{Justification: "faltam fotos"})
	require.Equal(t, http.StatusOK, status, string(body))

	rejected := decode[services.TransitionResult](t, body)
	assert.Equal(t, models.ApprovalStatusRejeitado, rejected.Item.Status)
	assert.Equal(t, "faltam fotos", rejected.Order.Step(6).Observations)
	assert.Equal(t, models.StepStatusActive, rejected.Order.Step(6).Status)

	status, _ = do(t, app, http.MethodPost, "/approvals/"+item.ID+"/approve", &gestor, nil)
	assert.Equal(t, http.StatusConflict, status, "decided items are immutable")

	status, body = do(t, app, http.MethodPost, "/orders/"+order.ID+"/steps/6/advance", &colabAss, web.AdvanceRequest{
		Version: rejected.Order.Version,
		Data:    map[string]any{"conclusaoTecnica": "Recomenda-se reforço estrutural com fotos anexas"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	resubmitted := decode[services.TransitionResult](t, body)
	require.NotNil(t, resubmitted.Item)
	assert.Equal(t, item.ID, resubmitted.Item.Supersedes)

	status, body = do(t, app, http.MethodPost, "/approvals/"+resubmitted.Item.ID+"/approve", &gestor, web.DecisionRequest{Observations: "ok"})
	require.Equal(t, http.StatusOK, status, string(body))

	approved := decode[services.TransitionResult](t, body)
	assert.Equal(t, models.ApprovalStatusAprovado, approved.Item.Status)
	assert.Equal(t, models.StepStatusCompleted, approved.Order.Step(6).Status)
	assert.Equal(t, 7, approved.Order.ActiveStep().StepOrder)
}

func TestAPIHandlers_RejectStep(t *testing.T) {
	t.Parallel()

	app, w := setupTestApp(t)
	order := advanceTo(t, w, newVisit(t, w), 5)

	_, err := w.Approvals().Submit(t.Context(), colabAss, order.ID, order.Version, visitSteps[6])
	require.NoError(t, err)

	order, err = w.GetOrder(t.Context(), order.ID)
	require.NoError(t, err)

	path := "/orders/" + order.ID + "/steps/6/reject"

	status, _ := do(t, app, http.MethodPost, path, &gestor, web.RejectRequest{Version: order.Version})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body := do(t, app, http.MethodPost, path, &gestor, web.RejectRequest{Version: order.Version, Justification: "faltam fotos"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "faltam fotos", decode[services.TransitionResult](t, body).Order.Step(6).Observations)
}

func TestAPIHandlers_ReopenAndDelegate(t *testing.T) {
	t.Parallel()

	app, w := setupTestApp(t)
	order := advanceTo(t, w, newVisit(t, w), 2)

	status, body := do(t, app, http.MethodPost, "/orders/"+order.ID+"/steps/3/delegate", &gestor, web.DelegateRequest{
		Version: order.Version,
		UserID:  worker.UserID,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	delegated := decode[services.TransitionResult](t, body)
	assert.Equal(t, worker.UserID, delegated.Order.Step(3).DelegatedTo)

	status, body = do(t, app, http.MethodGet, "/orders", &worker, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[struct {
		TotalCount int `json:"total_count"`
	}](t, body).TotalCount)

	status, _ = do(t, app, http.MethodPost, "/orders/"+order.ID+"/steps/2/reopen", &worker, web.ReopenRequest{
		Version: delegated.Order.Version,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, http.MethodPost, "/orders/"+order.ID+"/steps/2/reopen", &admin, web.ReopenRequest{
		Version: delegated.Order.Version,
		Reason:  "cliente errado",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	reopened := decode[services.TransitionResult](t, body)
	assert.Equal(t, 2, reopened.Order.ActiveStep().StepOrder)
	require.Len(t, reopened.Order.Step(2).Archive, 1)
	assert.Equal(t, "cliente errado", reopened.Order.Step(2).Archive[0].Reason)
	assert.Equal(t, models.StepStatusBlocked, reopened.Order.Step(3).Status)
	assert.Empty(t, reopened.Order.Step(2).Data)
	assert.Equal(t, "client-1", reopened.Order.Step(2).Archive[0].Data["clienteId"])
}

func TestAPIHandlers_GetWorkflowState(t *testing.T) {
	t.Parallel()

	app, w := setupTestApp(t)
	order := advanceTo(t, w, newVisit(t, w), 2)

	status, body := do(t, app, http.MethodGet, "/orders/"+order.ID+"/workflow", &colabAss, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	state := decode[services.WorkflowState](t, body)
	assert.Equal(t, order.ID, state.Order.ID)
	assert.NotEmpty(t, state.Steps)
	assert.NotEmpty(t, state.Handoffs)
	require.NotNil(t, state.Handoff, "step 3 moves the order to assessoria")
	assert.Equal(t, models.CoordAssessoria, state.Handoff.To)

	status, _ = do(t, app, http.MethodGet, "/orders/"+order.ID+"/workflow", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPIHandlers_ListOrders(t *testing.T) {
	t.Parallel()

	app, w := setupTestApp(t)
	newVisit(t, w)

	_, err := w.CreateOrder(t.Context(), admin, services.CreateOrderRequest{OSType: models.OS10, ClientRef: "client-2"})
	require.NoError(t, err)

	tests := []struct {
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{"", http.StatusOK, 2},
		{"?os_type=OS-10", http.StatusOK, 1},
		{"?client_ref=client-1", http.StatusOK, 1},
		{"?status=concluida", http.StatusOK, 0},
		{"?status=perdida", http.StatusBadRequest, 0},
		{"?limit=0", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		status, body := do(t, app, http.MethodGet, "/orders"+tt.query, &admin, nil)
		require.Equal(t, tt.expectedStatus, status, tt.query)

		if status == http.StatusOK {
			assert.Equal(t, tt.expectedCount, decode[struct {
				TotalCount int `json:"total_count"`
			}](t, body).TotalCount, tt.query)
		}
	}
}

func TestAPIHandlers_UploadAttachment(t *testing.T) {
	t.Parallel()

	app, w := setupTestApp(t)
	order := newVisit(t, w)

	var payload bytes.Buffer

	writer := multipart.NewWriter(&payload)
	part, err := writer.CreateFormFile("file", "fachada.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders/"+order.ID+"/attachments", &payload)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	setRole(req, &colabAss)

	status, body := send(t, app, req)
	require.Equal(t, http.StatusCreated, status, string(body))

	ref := decode[models.AttachmentRef](t, body)
	assert.Equal(t, "fachada.jpg", ref.Name)
	assert.Equal(t, order.ID, ref.OrderID)
	assert.EqualValues(t, len("jpeg-bytes"), ref.Size)

	status, _ = do(t, app, http.MethodPost, "/orders/"+order.ID+"/attachments", &colabAss, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status, "no multipart file")
}

func TestAPIHandlers_GetRegistry(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/registry/OS-08", nil, nil)
	require.Equal(t, http.StatusOK, status)

	flow := decode[struct {
		OSType models.OSType                `json:"os_type"`
		Steps  []web.StepDefinitionResponse `json:"steps"`
	}](t, body)
	assert.Equal(t, models.OS08, flow.OSType)
	require.Len(t, flow.Steps, 7)
	assert.True(t, flow.Steps[5].Checkpoint)
	assert.Equal(t, models.ApprovalKindLaudo, flow.Steps[5].ApprovalKind)
	assert.Equal(t, 3, flow.Steps[5].SLADays)
	assert.NotEmpty(t, flow.Steps[0].Schema)

	status, _ = do(t, app, http.MethodGet, "/registry/OS-99", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, status)

	health := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "checkers")
}
