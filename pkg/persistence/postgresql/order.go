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

// OrderRepository handles order-related database operations.
type OrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *sql.DB, logger *slog.Logger) *OrderRepository {
	return &OrderRepository{db: db, logger: logger}
}

// GetByID returns an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, "SELECT document FROM orders WHERE id = $1", id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewOrderError("GetByID", id, 0, persistence.ErrOrderNotFound)
		}

		return nil, persistence.NewOrderError("GetByID", id, 0, err)
	}

	var order models.Order

	err = json.Unmarshal(document, &order)
	if err != nil {
		return nil, persistence.NewOrderError("GetByID", id, 0, fmt.Errorf("failed to decode order: %w", err))
	}

	return &order, nil
}

// List returns the orders matching the filter, oldest first.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
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
	add("os_type", string(filter.OSType))
	add("client_ref", filter.ClientRef)
	add("parent_order_id", filter.ParentOrderID)

	query := "SELECT document FROM orders"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at ASC, id ASC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := make([]*models.Order, 0)

	for rows.Next() {
		var document []byte

		err := rows.Scan(&document)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		var order models.Order

		err = json.Unmarshal(document, &order)
		if err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}

		orders = append(orders, &order)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

func (r *OrderRepository) write(ctx context.Context, tx *sql.Tx, order *models.Order, expected int64) error {
	document, err := json.Marshal(order)
	if err != nil {
		return persistence.NewOrderError("Commit", order.ID, expected, fmt.Errorf("failed to encode order: %w", err))
	}

	if expected == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, os_type, status, client_ref, parent_order_id, version, document, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
			order.ID, order.OSType, order.Status, order.ClientRef, order.ParentOrderID,
			order.Version, string(document), order.CreatedAt, order.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return persistence.NewOrderError("Commit", order.ID, expected, persistence.ErrOrderAlreadyExists)
		}

		if err != nil {
			return persistence.NewOrderError("Commit", order.ID, expected, err)
		}

		return nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, client_ref = $3, parent_order_id = NULLIF($4, ''), version = $5, document = $6, updated_at = $7
		WHERE id = $1 AND version = $8`,
		order.ID, order.Status, order.ClientRef, order.ParentOrderID,
		order.Version, string(document), order.UpdatedAt, expected,
	)
	if err != nil {
		return persistence.NewOrderError("Commit", order.ID, expected, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewOrderError("Commit", order.ID, expected, err)
	}

	if affected == 0 {
		return persistence.NewOrderError("Commit", order.ID, expected,
			missingOrStale(ctx, tx, "orders", order.ID, persistence.ErrOrderNotFound))
	}

	return nil
}
