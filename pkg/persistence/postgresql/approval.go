package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
)

// ApprovalRepository handles approval item database operations.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewApprovalRepository creates a new approval item repository.
func NewApprovalRepository(db *sql.DB, logger *slog.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// GetByID returns an approval item by its ID.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalItem, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, "SELECT document FROM approval_items WHERE id = $1", id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewApprovalItemError("GetByID", id, 0, persistence.ErrApprovalItemNotFound)
		}

		return nil, persistence.NewApprovalItemError("GetByID", id, 0, err)
	}

	var item models.ApprovalItem

	err = json.Unmarshal(document, &item)
	if err != nil {
		return nil, persistence.NewApprovalItemError("GetByID", id, 0, fmt.Errorf("failed to decode approval item: %w", err))
	}

	return &item, nil
}

// List returns the approval queue matching the filter, oldest submission first.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]*models.ApprovalItem, error) {
	var (
		conditions []string
		args       []any
	)

	add := func(column, value string) {
		if value == "" {
			return
		}

		args = append(args, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(args)))
	}

	add("status", string(filter.Status))
	add("kind", string(filter.Kind))
	add("owner_order_id", filter.OwnerOrderID)

	query := "SELECT document FROM approval_items"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY submitted_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*models.ApprovalItem, 0)

	for rows.Next() {
		var document []byte

		err := rows.Scan(&document)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval item: %w", err)
		}

		var item models.ApprovalItem

		err = json.Unmarshal(document, &item)
		if err != nil {
			return nil, fmt.Errorf("failed to decode approval item: %w", err)
		}

		items = append(items, &item)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate approval items: %w", err)
	}

	return items, nil
}

func (r *ApprovalRepository) write(ctx context.Context, tx *sql.Tx, item *models.ApprovalItem, expected int64) error {
	document, err := json.Marshal(item)
	if err != nil {
		return persistence.NewApprovalItemError("Commit", item.ID, expected, fmt.Errorf("failed to encode approval item: %w", err))
	}

	if expected == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO approval_items (id, owner_order_id, kind, status, version, document, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.OwnerOrderID, item.Kind, item.Status, item.Version, string(document), item.SubmittedAt,
		)
		if isUniqueViolation(err) {
			return persistence.NewApprovalItemError("Commit", item.ID, expected, persistence.ErrVersionConflict)
		}

		if err != nil {
			return persistence.NewApprovalItemError("Commit", item.ID, expected, err)
		}

		return nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE approval_items
		SET status = $2, version = $3, document = $4
		WHERE id = $1 AND version = $5`,
		item.ID, item.Status, item.Version, string(document), expected,
	)
	if err != nil {
		return persistence.NewApprovalItemError("Commit", item.ID, expected, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewApprovalItemError("Commit", item.ID, expected, err)
	}

	if affected == 0 {
		return persistence.NewApprovalItemError("Commit", item.ID, expected,
			missingOrStale(ctx, tx, "approval_items", item.ID, persistence.ErrApprovalItemNotFound))
	}

	return nil
}
