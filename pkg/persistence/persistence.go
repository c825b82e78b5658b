// Package persistence provides the storage abstraction for orders and their
// step logs. Runs write through these interfaces only, so tests substitute
// an in-memory or file-backed fake without touching orchestration.
package persistence

import (
	"context"

	"github.com/dorumake/robot/pkg/models"
)

type OrderRepository interface {
	Save(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context) ([]*models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]*models.Order, error)
}

// StepLogRepository is append-only: entries are never updated or deleted.
type StepLogRepository interface {
	Append(ctx context.Context, entry *models.StepLogEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]*models.StepLogEntry, error)
}

type Persistence interface {
	Orders() OrderRepository
	StepLogs() StepLogRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
