// Package collaborators declares the external systems the workflow calls into.
package collaborators

import (
	"context"
	"errors"
	"io"

	"github.com/minerva-erp/osflow/pkg/models"
)

var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidAttachment  = errors.New("invalid attachment name")
	ErrClientNotFound     = errors.New("client not found")
	ErrDocumentRejected   = errors.New("document generator rejected the request")
)

// DocumentRequest asks for the document a completed step produces.
type DocumentRequest struct {
	OrderID      string         `json:"order_id"`
	OrderCode    string         `json:"order_code,omitempty"`
	OSType       models.OSType  `json:"os_type"`
	StepOrder    int            `json:"step_order"`
	TemplateKind string         `json:"template_kind"`
	Data         map[string]any `json:"data,omitempty"`
}

type DocumentGenerator interface {
	Generate(ctx context.Context, request DocumentRequest) (*models.DocumentRef, error)
}

// DependentOrderFactory creates the follow-up order of a parent. Calling it
// twice for the same parent and type returns the same order id.
type DependentOrderFactory interface {
	Create(ctx context.Context, parent *models.Order, osType models.OSType, seed map[string]any) (string, error)
}

type AttachmentStore interface {
	Put(ctx context.Context, orderID, name, contentType string, content io.Reader) (*models.AttachmentRef, error)
	Stat(ctx context.Context, orderID, attachmentID string) (*models.AttachmentRef, error)
}

type ClientDirectory interface {
	Lookup(ctx context.Context, clientID string) (*models.Client, error)
}
