package services

import (
	"context"
	"errors"
	"io"

	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/models"
)

var ErrNoAttachmentStore = errors.New("no attachment store configured")

// UploadAttachment stores a file for an open order. The returned reference id
// is what step data lists under its attachment fields.
func (w *Workflow) UploadAttachment(
	ctx context.Context,
	rc models.RoleContext,
	orderID, name, contentType string,
	content io.Reader,
) (*models.AttachmentRef, error) {
	const op = "UploadAttachment"

	err := w.checkActor(op, rc)
	if err != nil {
		return nil, err
	}

	if w.attachments == nil {
		return nil, collaboratorFailed(op, "attachment store", ErrNoAttachmentStore)
	}

	order, err := w.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return nil, w.denied(ctx, unauthorized(op, rc, "may not attach files to a "+string(order.Status)+" order"))
	}

	if rc.RoleLevel.Rank() < models.RoleColaborador.Rank() && !delegatedAny(order, rc.UserID) {
		return nil, w.denied(ctx, unauthorized(op, rc, "holds no step of order "+order.ID))
	}

	ref, err := w.attachments.Put(ctx, order.ID, name, contentType, content)
	if err != nil {
		if errors.Is(err, collaborators.ErrInvalidAttachment) {
			return nil, validationFailed(op, "invalid attachment", fieldError("file", err.Error()))
		}

		return nil, collaboratorFailed(op, "attachment store", err)
	}

	w.logger.InfoContext(ctx, "Attachment stored", "order_id", order.ID, "attachment_id", ref.ID, "size", ref.Size)

	return ref, nil
}

func delegatedAny(order *models.Order, userID string) bool {
	for _, record := range order.Steps {
		if record.DelegatedTo == userID {
			return true
		}
	}

	return false
}
