package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
)

type OrderRepository struct {
	root string
	mu   sync.RWMutex
}

func NewOrderRepository(root string) *OrderRepository {
	return &OrderRepository{root: root}
}

func (r *OrderRepository) path(id string) string {
	return filepath.Join(r.root, "orders", id+".json")
}

func (r *OrderRepository) Save(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := ensureDir(r.root, "orders"); err != nil {
		return fmt.Errorf("ensure orders dir: %w", err)
	}

	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	if err := os.WriteFile(r.path(order.ID), data, 0o644); err != nil {
		return fmt.Errorf("write order %s: %w", order.ID, err)
	}

	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path(id))
	if os.IsNotExist(err) {
		return nil, persistence.ErrOrderNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("read order %s: %w", id, err)
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}

	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*models.Order, error) {
	r.mu.RLock()

	entries, err := os.ReadDir(filepath.Join(r.root, "orders"))

	r.mu.RUnlock()

	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]*models.Order, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]

		order, err := r.GetByID(ctx, id)
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
