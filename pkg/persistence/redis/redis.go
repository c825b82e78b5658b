// Package redis provides Redis-backed persistence. Order documents are JSON
// strings, step logs are RPUSH-only lists, so the append-only contract maps
// directly onto the data types.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
)

const (
	orderKeyPrefix = "robot:order:"
	orderIndexKey  = "robot:orders"
	stepLogPrefix  = "robot:steplog:"
)

type Persistence struct {
	client   *goredis.Client
	orders   *OrderRepository
	stepLogs *StepLogRepository
}

func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	return &Persistence{
		client:   client,
		orders:   &OrderRepository{client: client},
		stepLogs: &StepLogRepository{client: client},
	}, nil
}

func (p *Persistence) Orders() persistence.OrderRepository {
	return p.orders
}

func (p *Persistence) StepLogs() persistence.StepLogRepository {
	return p.stepLogs
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

type OrderRepository struct {
	client *goredis.Client
}

func (r *OrderRepository) Save(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, orderKeyPrefix+order.ID, data, 0)
	pipe.SAdd(ctx, orderIndexKey, order.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save order %s: %w", order.ID, err)
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	data, err := r.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.ErrOrderNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}

	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*models.Order, error) {
	ids, err := r.client.SMembers(ctx, orderIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list order ids: %w", err)
	}

	orders := make([]*models.Order, 0, len(ids))

	for _, id := range ids {
		order, err := r.GetByID(ctx, id)
		if errors.Is(err, persistence.ErrOrderNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		orders = append(orders, order)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	return orders, nil
}

func (r *OrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]*models.Order, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*models.Order

	for _, order := range all {
		if order.Status == status {
			filtered = append(filtered, order)
		}
	}

	return filtered, nil
}

type StepLogRepository struct {
	client *goredis.Client
}

func (r *StepLogRepository) Append(ctx context.Context, entry *models.StepLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal step log: %w", err)
	}

	if err := r.client.RPush(ctx, stepLogPrefix+entry.OrderID, data).Err(); err != nil {
		return fmt.Errorf("append step log for %s: %w", entry.OrderID, err)
	}

	return nil
}

func (r *StepLogRepository) ListByOrder(ctx context.Context, orderID string) ([]*models.StepLogEntry, error) {
	lines, err := r.client.LRange(ctx, stepLogPrefix+orderID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list step logs for %s: %w", orderID, err)
	}

	entries := make([]*models.StepLogEntry, 0, len(lines))

	for _, line := range lines {
		var entry models.StepLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode step log for %s: %w", orderID, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}
