package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

// OrderRepository reads orders from Redis.
type OrderRepository struct {
	client goredis.UniversalClient
}

// GetByID returns an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	raw, err := r.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.NewOrderError("GetByID", id, 0, persistence.ErrOrderNotFound)
	}

	if err != nil {
		return nil, persistence.NewOrderError("GetByID", id, 0, err)
	}

	var order models.Order

	err = json.Unmarshal(raw, &order)
	if err != nil {
		return nil, persistence.NewOrderError("GetByID", id, 0, fmt.Errorf("failed to decode order: %w", err))
	}

	return &order, nil
}

// List returns the orders matching the filter, oldest first.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	orders, err := loadAll[models.Order](ctx, r.client, orderIndexKey, orderKeyPrefix)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Order, 0, len(orders))

	for _, order := range orders {
		if filter.Matches(order) {
			matching = append(matching, order)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID < matching[j].ID
		}

		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matching) > filter.Limit {
		matching = matching[:filter.Limit]
	}

	return matching, nil
}

// ApprovalRepository reads approval items from Redis.
type ApprovalRepository struct {
	client goredis.UniversalClient
}

// GetByID returns an approval item by its ID.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalItem, error) {
	raw, err := r.client.Get(ctx, approvalKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.NewApprovalItemError("GetByID", id, 0, persistence.ErrApprovalItemNotFound)
	}

	if err != nil {
		return nil, persistence.NewApprovalItemError("GetByID", id, 0, err)
	}

	var item models.ApprovalItem

	err = json.Unmarshal(raw, &item)
	if err != nil {
		return nil, persistence.NewApprovalItemError("GetByID", id, 0, fmt.Errorf("failed to decode approval item: %w", err))
	}

	return &item, nil
}

// List returns the approval queue matching the filter, oldest submission first.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]*models.ApprovalItem, error) {
	items, err := loadAll[models.ApprovalItem](ctx, r.client, approvalIndexKey, approvalKeyPrefix)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.ApprovalItem, 0, len(items))

	for _, item := range items {
		if filter.Matches(item) {
			matching = append(matching, item)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		if matching[i].SubmittedAt.Equal(matching[j].SubmittedAt) {
			return matching[i].ID < matching[j].ID
		}

		return matching[i].SubmittedAt.Before(matching[j].SubmittedAt)
	})

	return matching, nil
}

func loadAll[T any](ctx context.Context, client goredis.UniversalClient, index, prefix string) ([]*T, error) {
	ids, err := client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", index, err)
	}

	if len(ids) == 0 {
		return []*T{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefix + id
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", index, err)
	}

	records := make([]*T, 0, len(values))

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var record T

		err := json.Unmarshal([]byte(raw), &record)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}

		records = append(records, &record)
	}

	return records, nil
}
