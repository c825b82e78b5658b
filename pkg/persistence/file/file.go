// Package file provides file-backed persistence: one JSON document per
// order, one append-only JSON-lines file per order's step log.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dorumake/robot/pkg/persistence"
)

type Persistence struct {
	root     string
	orders   *OrderRepository
	stepLogs *StepLogRepository
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:     cleanRoot,
		orders:   NewOrderRepository(cleanRoot),
		stepLogs: NewStepLogRepository(cleanRoot),
	}
}

func (p *Persistence) Orders() persistence.OrderRepository {
	return p.orders
}

func (p *Persistence) StepLogs() persistence.StepLogRepository {
	return p.stepLogs
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func ensureDir(parts ...string) (string, error) {
	dir := filepath.Join(parts...)

	return dir, os.MkdirAll(dir, 0o755)
}
