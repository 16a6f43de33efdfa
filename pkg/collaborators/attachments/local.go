// Package attachments stores uploaded files on the local disk.
package attachments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/models"
)

var ErrInvalidName = collaborators.ErrInvalidAttachment

// LocalStore keeps each attachment as <root>/<order>/<id>.bin next to a
// <id>.json metadata file.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: strings.Replace(root, "file://", "", 1)}
}

func (s *LocalStore) Put(_ context.Context, orderID, name, contentType string, content io.Reader) (*models.AttachmentRef, error) {
	if !safeSegment(orderID) {
		return nil, fmt.Errorf("%w: order id %q", ErrInvalidName, orderID)
	}

	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrInvalidName
	}

	dir := filepath.Join(s.root, orderID)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}

	id := uuid.NewString()

	file, err := os.OpenFile(filepath.Join(dir, id+".bin"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}

	size, err := io.Copy(file, content)

	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(file.Name())

		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}

	ref := &models.AttachmentRef{
		ID:          id,
		OrderID:     orderID,
		Name:        name,
		Size:        size,
		ContentType: contentType,
	}

	meta, err := json.Marshal(ref)
	if err != nil {
		return nil, err
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), meta, 0o600)
	if err != nil {
		_ = os.Remove(file.Name())

		return nil, fmt.Errorf("failed to write attachment metadata: %w", err)
	}

	return ref, nil
}

func (s *LocalStore) Stat(_ context.Context, orderID, attachmentID string) (*models.AttachmentRef, error) {
	if !safeSegment(orderID) || !safeSegment(attachmentID) {
		return nil, collaborators.ErrAttachmentNotFound
	}

	meta, err := os.ReadFile(filepath.Join(s.root, orderID, attachmentID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, collaborators.ErrAttachmentNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read attachment metadata: %w", err)
	}

	var ref models.AttachmentRef

	err = json.Unmarshal(meta, &ref)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment metadata: %w", err)
	}

	return &ref, nil
}

// Open returns the content of a stored attachment. The caller closes it.
func (s *LocalStore) Open(ctx context.Context, orderID, attachmentID string) (io.ReadCloser, *models.AttachmentRef, error) {
	ref, err := s.Stat(ctx, orderID, attachmentID)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(filepath.Join(s.root, orderID, attachmentID+".bin"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}

	return file, ref, nil
}

func safeSegment(segment string) bool {
	return segment != "" && segment != "." && segment != ".." && !strings.ContainsAny(segment, `/\`)
}
