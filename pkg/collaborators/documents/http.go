// Package documents provides document generator clients.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/models"
)

const defaultTimeoutSeconds = 30

// HTTPGenerator posts document requests to <baseURL>/documents.
type HTTPGenerator struct {
	baseURL  string
	client   *http.Client
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

type HTTPOption func(*HTTPGenerator)

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(g *HTTPGenerator) { g.client = client }
}

// WithRetry retries server errors and transport failures.
func WithRetry(attempts int, delay time.Duration) HTTPOption {
	return func(g *HTTPGenerator) {
		g.attempts = max(attempts, 1)
		g.delay = delay
	}
}

func NewHTTPGenerator(baseURL string, logger *slog.Logger, opts ...HTTPOption) *HTTPGenerator {
	generator := &HTTPGenerator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		attempts: 1,
		logger:   logger.With("module", "document_generator"),
	}

	for _, opt := range opts {
		opt(generator)
	}

	return generator
}

type generateResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, request collaborators.DocumentRequest) (*models.DocumentRef, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document request: %w", err)
	}

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= g.attempts; attempt++ {
		if attempt > 1 {
			g.logger.InfoContext(ctx, "Retrying document request", "attempt", attempt, "order_id", request.OrderID)

			select {
			case <-time.After(g.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/documents", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build document request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err = g.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("document request failed: %w", err)
			resp = nil

			continue
		}

		if resp.StatusCode >= 500 && attempt < g.attempts {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("document generator returned %d", resp.StatusCode)
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all document request attempts failed, last error: %w", lastErr)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			g.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read document response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", collaborators.ErrDocumentRejected, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var generated generateResponse

	err = json.Unmarshal(payload, &generated)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document response: %w", err)
	}

	if generated.ID == "" {
		return nil, fmt.Errorf("%w: response without document id", collaborators.ErrDocumentRejected)
	}

	return &models.DocumentRef{
		ID:           generated.ID,
		TemplateKind: request.TemplateKind,
		URL:          generated.URL,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
