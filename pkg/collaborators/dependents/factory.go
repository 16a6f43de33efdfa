// Package dependents creates follow-up orders spawned by a completed step.
package dependents

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
)

// SystemActor is recorded as creator of spawned orders.
const SystemActor = "system"

var namespace = uuid.MustParse("6f1c3a4e-2b7d-5e90-8c1a-4d2f6b8e0a13")

// DependentID is the deterministic id of the osType order spawned by parentID.
func DependentID(parentID string, osType models.OSType) string {
	return uuid.NewSHA1(namespace, []byte(parentID+"|"+string(osType))).String()
}

// Factory stores spawned orders through the same persistence as their parent.
type Factory struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	now         func() time.Time
}

func NewFactory(p persistence.Persistence, logger *slog.Logger) *Factory {
	return &Factory{
		persistence: p,
		logger:      logger.With("module", "dependent_orders"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the child order unless it already exists. The seed becomes the
// draft data of the child's first step.
func (f *Factory) Create(ctx context.Context, parent *models.Order, osType models.OSType, seed map[string]any) (string, error) {
	id := DependentID(parent.ID, osType)

	child := models.NewOrder(id, osType, parent.ClientRef, SystemActor, f.now())
	child.ParentOrderID = parent.ID
	child.Metadata = map[string]any{"seed": maps.Clone(seed)}
	child.Steps[0].Data = maps.Clone(seed)

	err := f.persistence.Commit(ctx, persistence.Transition{Order: child})
	if persistence.IsOrderAlreadyExists(err) {
		f.logger.DebugContext(ctx, "Dependent order already exists", "parent_id", parent.ID, "order_id", id)

		return id, nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to create %s order for %s: %w", osType, parent.ID, err)
	}

	f.logger.InfoContext(ctx, "Created dependent order", "parent_id", parent.ID, "order_id", id, "os_type", osType)

	return id, nil
}
