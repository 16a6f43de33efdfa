package documents_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/collaborators/documents"
	"github.com/minerva-erp/osflow/pkg/events"
	"github.com/minerva-erp/osflow/pkg/mocks"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var request = collaborators.DocumentRequest{
	OrderID:      "order-1",
	OSType:       models.OS08,
	StepOrder:    6,
	TemplateKind: "parecer_tecnico",
	Data:         map[string]any{"conclusao": "sem risco"},
}

func TestHTTPGenerator_Generate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/documents", r.URL.Path)

		var got collaborators.DocumentRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&got)) {
			return
		}

		assert.Equal(t, request.TemplateKind, got.TemplateKind)
		assert.Equal(t, 6, got.StepOrder)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1","url":"https://docs.local/doc-1.pdf"}`))
	}))
	t.Cleanup(server.Close)

	generator := documents.NewHTTPGenerator(server.URL+"/", slog.Default())

	ref, err := generator.Generate(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ref.ID)
	assert.Equal(t, "parecer_tecnico", ref.TemplateKind)
	assert.Equal(t, "https://docs.local/doc-1.pdf", ref.URL)
}

func TestHTTPGenerator_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(`{"id":"doc-2"}`))
	}))
	t.Cleanup(server.Close)

	generator := documents.NewHTTPGenerator(server.URL, slog.Default(), documents.WithRetry(3, time.Millisecond))

	ref, err := generator.Generate(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "doc-2", ref.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPGenerator_Rejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown template", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	generator := documents.NewHTTPGenerator(server.URL, slog.Default())

	_, err := generator.Generate(context.Background(), request)
	require.ErrorIs(t, err, collaborators.ErrDocumentRejected)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestHTTPGenerator_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	generator := documents.NewHTTPGenerator(url, slog.Default())

	_, err := generator.Generate(context.Background(), request)
	require.Error(t, err)
}

func TestEventGenerator_Generate(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("doc-evt-1")
	bus.On("Publish", mock.Anything, "order-1", mock.MatchedBy(func(event events.DocumentRequested) bool {
		return event.DocumentID == "doc-evt-1" && event.TemplateKind == "parecer_tecnico" && event.OrderID == "order-1"
	})).Return(nil)

	ref, err := documents.NewEventGenerator(bus).Generate(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "doc-evt-1", ref.ID)
	assert.Empty(t, ref.URL)
	bus.AssertExpectations(t)
}

func TestEventGenerator_PublishFailure(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("doc-evt-2")
	bus.On("Publish", mock.Anything, "order-1", mock.Anything).Return(errors.New("broker down"))

	_, err := documents.NewEventGenerator(bus).Generate(context.Background(), request)
	require.ErrorContains(t, err, "broker down")
}
