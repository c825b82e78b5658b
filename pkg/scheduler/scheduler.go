// Package scheduler periodically re-queries the order store for PENDING
// orders and hands them to the dispatcher, so orders stranded by a crash or
// an external status reset are picked up without manual action.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
)

// Enqueuer is the dispatcher-facing capability the sweeper needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, order *models.Order) error
}

type Sweeper struct {
	store    persistence.Persistence
	enqueuer Enqueuer
	spec     string
	logger   *slog.Logger
	cron     *cron.Cron

	// mu serializes sweeps: cron fires each invocation on a fresh goroutine,
	// so a sweep blocked on a full dispatcher queue can overlap the next
	// fire, and the startup sweep can overlap the first one.
	mu sync.Mutex

	// enqueued tracks orders handed over but still PENDING, so a backed-up
	// queue does not get the same order twice across sweeps.
	enqueued map[string]struct{}
}

func NewSweeper(store persistence.Persistence, enqueuer Enqueuer, spec string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		enqueuer: enqueuer,
		spec:     spec,
		logger:   logger.With("module", "scheduler"),
		cron:     cron.New(),
		enqueued: make(map[string]struct{}),
	}
}

// Start registers the sweep on the cron schedule and starts it.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("pending order sweep scheduled", "spec", s.spec)

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep enqueues every PENDING order not already handed over. Runs on the
// cron goroutine; also callable directly for an immediate sweep at startup.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.store.Orders().ListByStatus(ctx, models.OrderStatusPending)
	if err != nil {
		s.logger.Error("could not list pending orders", "error", err)

		return
	}

	pending := make(map[string]struct{}, len(orders))

	queued := 0

	for _, order := range orders {
		pending[order.ID] = struct{}{}

		if _, done := s.enqueued[order.ID]; done {
			continue
		}

		if err := s.enqueuer.Enqueue(ctx, order); err != nil {
			s.logger.Warn("could not enqueue pending order",
				"order_id", order.ID, "supplier", order.SupplierCode, "error", err)

			continue
		}

		s.enqueued[order.ID] = struct{}{}
		queued++
	}

	// Orders that left PENDING can be handed over again if they come back.
	for id := range s.enqueued {
		if _, still := pending[id]; !still {
			delete(s.enqueued, id)
		}
	}

	if queued > 0 {
		s.logger.Info("pending orders enqueued", "count", queued)
	}
}
