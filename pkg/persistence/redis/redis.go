// Package redis provides Redis persistence for orders and approval items.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minerva-erp/osflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const (
	orderKeyPrefix    = "osflow:order:"
	orderIndexKey     = "osflow:orders"
	approvalKeyPrefix = "osflow:approval:"
	approvalIndexKey  = "osflow:approvals"
)

// Persistence stores every record as a JSON document keyed by ID, plus one set
// per record kind used for listing.
type Persistence struct {
	client       goredis.UniversalClient
	logger       *slog.Logger
	orderRepo    *OrderRepository
	approvalRepo *ApprovalRepository
}

// NewPersistence connects to the Redis server named by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return &Persistence{
		client:       client,
		logger:       logger,
		orderRepo:    &OrderRepository{client: client},
		approvalRepo: &ApprovalRepository{client: client},
	}, nil
}

// Close closes the Redis client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) OrderRepository() persistence.OrderRepository {
	return p.orderRepo
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

// Commit watches every key the transition touches, checks the stored versions,
// and writes them in one MULTI/EXEC. A concurrent write to any watched key
// aborts EXEC, which is reported as a version conflict.
func (p *Persistence) Commit(ctx context.Context, transition persistence.Transition) error {
	err := transition.Validate()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(transition.Items)+1)
	if transition.Order != nil {
		keys = append(keys, orderKeyPrefix+transition.Order.ID)
	}

	for _, write := range transition.Items {
		keys = append(keys, approvalKeyPrefix+write.Item.ID)
	}

	documents, err := encode(transition)
	if err != nil {
		return err
	}

	apply := func(tx *goredis.Tx) error {
		err := p.checkVersions(ctx, tx, transition)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, key := range keys {
				pipe.Set(ctx, key, documents[i], 0)
			}

			if transition.Order != nil {
				pipe.SAdd(ctx, orderIndexKey, transition.Order.ID)
			}

			for _, write := range transition.Items {
				pipe.SAdd(ctx, approvalIndexKey, write.Item.ID)
			}

			return nil
		})

		return err
	}

	err = p.client.Watch(ctx, apply, keys...)
	if !errors.Is(err, goredis.TxFailedErr) {
		return err
	}

	p.logger.DebugContext(ctx, "Redis transaction aborted by concurrent write", "keys", keys)

	if transition.Order != nil {
		return persistence.NewOrderError("Commit", transition.Order.ID, transition.ExpectedVersion, persistence.ErrVersionConflict)
	}

	return persistence.NewApprovalItemError("Commit", transition.Items[0].Item.ID,
		transition.Items[0].ExpectedVersion, persistence.ErrVersionConflict)
}

func (p *Persistence) checkVersions(ctx context.Context, tx *goredis.Tx, transition persistence.Transition) error {
	if transition.Order != nil {
		current, err := storedVersion(ctx, tx, orderKeyPrefix+transition.Order.ID)
		if err != nil {
			return persistence.NewOrderError("Commit", transition.Order.ID, transition.ExpectedVersion, err)
		}

		err = checkVersion(current, transition.ExpectedVersion, persistence.ErrOrderNotFound, persistence.ErrOrderAlreadyExists)
		if err != nil {
			return persistence.NewOrderError("Commit", transition.Order.ID, transition.ExpectedVersion, err)
		}
	}

	for _, write := range transition.Items {
		current, err := storedVersion(ctx, tx, approvalKeyPrefix+write.Item.ID)
		if err != nil {
			return persistence.NewApprovalItemError("Commit", write.Item.ID, write.ExpectedVersion, err)
		}

		err = checkVersion(current, write.ExpectedVersion, persistence.ErrApprovalItemNotFound, persistence.ErrVersionConflict)
		if err != nil {
			return persistence.NewApprovalItemError("Commit", write.Item.ID, write.ExpectedVersion, err)
		}
	}

	return nil
}

// storedVersion returns -1 when the key does not exist.
func storedVersion(ctx context.Context, tx *goredis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return -1, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var versioned struct {
		Version int64 `json:"version"`
	}

	err = json.Unmarshal(raw, &versioned)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return versioned.Version, nil
}

func checkVersion(current, expected int64, notFound, exists error) error {
	switch {
	case expected == 0 && current >= 0:
		return exists
	case expected == 0:
		return nil
	case current < 0:
		return notFound
	case current != expected:
		return persistence.ErrVersionConflict
	default:
		return nil
	}
}

func encode(transition persistence.Transition) ([][]byte, error) {
	documents := make([][]byte, 0, len(transition.Items)+1)

	if transition.Order != nil {
		document, err := json.Marshal(transition.Order)
		if err != nil {
			return nil, fmt.Errorf("failed to encode order: %w", err)
		}

		documents = append(documents, document)
	}

	for _, write := range transition.Items {
		document, err := json.Marshal(write.Item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode approval item: %w", err)
		}

		documents = append(documents, document)
	}

	return documents, nil
}
