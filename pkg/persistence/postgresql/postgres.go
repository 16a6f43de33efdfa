// Package postgresql provides PostgreSQL persistence for orders and approval items.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/persistence/sqlbase"
)

const uniqueViolation = "23505"

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	orderRepo    *OrderRepository
	approvalRepo *ApprovalRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		orderRepo:    NewOrderRepository(database, logger),
		approvalRepo: NewApprovalRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) OrderRepository() persistence.OrderRepository {
	return p.orderRepo
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

// Commit writes the transition in a single database transaction. Updates are
// conditioned on the expected version, so a concurrent writer makes the
// transaction roll back with ErrVersionConflict.
func (p *Persistence) Commit(ctx context.Context, transition persistence.Transition) (err error) {
	err = transition.Validate()
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if transition.Order != nil {
		err = p.orderRepo.write(ctx, tx, transition.Order, transition.ExpectedVersion)
		if err != nil {
			return err
		}
	}

	for _, write := range transition.Items {
		err = p.approvalRepo.write(ctx, tx, write.Item, write.ExpectedVersion)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// missingOrStale tells a zero-row conditional update apart: either the row is
// gone or somebody else moved its version.
func missingOrStale(ctx context.Context, tx *sql.Tx, table, id string, notFound error) error {
	var exists bool

	err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}

	if !exists {
		return notFound
	}

	return persistence.ErrVersionConflict
}
