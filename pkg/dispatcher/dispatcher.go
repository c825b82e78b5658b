// Package dispatcher fans order work out to per-supplier queues, each with
// its own consumer goroutine. One supplier's degraded portal never blocks
// or starves another supplier's queue; within a queue orders run strictly
// serially in arrival order.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dorumake/robot/pkg/browser"
	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/engine"
	"github.com/dorumake/robot/pkg/eventbus"
	"github.com/dorumake/robot/pkg/events"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/otelhelper"
	"github.com/dorumake/robot/pkg/persistence"
	"github.com/dorumake/robot/pkg/portals"
	"github.com/dorumake/robot/pkg/screenshot"
)

type Dispatcher struct {
	workerID string
	registry *portals.Registry
	launcher browser.Launcher
	shots    screenshot.Store
	store    persistence.Persistence
	bus      eventbus.EventBus
	cfg      *config.Config
	logger   *slog.Logger
	tracer   trace.Tracer

	queues map[string]chan *models.Order
	wg     sync.WaitGroup
	stop   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

func New(
	workerID string,
	registry *portals.Registry,
	launcher browser.Launcher,
	shots screenshot.Store,
	store persistence.Persistence,
	bus eventbus.EventBus,
	cfg *config.Config,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Dispatcher {
	return &Dispatcher{
		workerID: workerID,
		registry: registry,
		launcher: launcher,
		shots:    shots,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With("module", "dispatcher", "worker_id", workerID),
		tracer:   tracer,
		queues:   make(map[string]chan *models.Order),
		stop:     make(chan struct{}),
	}
}

// Start creates one queue and one consumer goroutine per registered
// supplier. Safe to call once; ctx bounds the lifetime of all runs.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for _, supplier := range d.registry.Suppliers() {
			queue := make(chan *models.Order, d.cfg.Dispatcher.QueueSize)
			d.queues[supplier] = queue

			d.wg.Add(1)

			go d.consume(ctx, supplier, queue)

			d.logger.Info("supplier queue started",
				"supplier", supplier, "queue_size", d.cfg.Dispatcher.QueueSize)
		}
	})
}

// Stop signals all consumers and waits for in-flight orders to finish.
// Shutdown is cooperative: a running order is never abandoned mid-step, so
// the wait is bounded by that order's own step timeouts plus ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stop)
	})

	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

// Enqueue routes the order to its supplier's queue. Orders for suppliers
// without a registered workflow are logged and dropped.
func (d *Dispatcher) Enqueue(ctx context.Context, order *models.Order) error {
	queue, ok := d.queues[order.SupplierCode]
	if !ok {
		d.logger.Warn("order dropped, no workflow for supplier",
			"order_id", order.ID, "supplier", order.SupplierCode)

		return fmt.Errorf("enqueue order %s: %w", order.ID, portals.ErrUnknownSupplier)
	}

	select {
	case queue <- order:
		d.publish(ctx, events.OrderQueued{BaseEvent: d.baseEvent(events.OrderQueuedEvent, order)})

		return nil
	case <-d.stop:
		return fmt.Errorf("enqueue order %s: dispatcher stopped", order.ID)
	case <-ctx.Done():
		return fmt.Errorf("enqueue order %s: %w", order.ID, ctx.Err())
	}
}

// consume processes one supplier's queue serially. The dequeue wait wakes
// periodically so a shutdown signal is observed between items even while
// the queue is idle.
func (d *Dispatcher) consume(ctx context.Context, supplier string, queue chan *models.Order) {
	defer d.wg.Done()

	logger := d.logger.With("supplier", supplier)
	timeout := d.cfg.Dispatcher.DequeueTimeout

	for {
		select {
		case <-d.stop:
			logger.Info("supplier queue stopping")

			return
		case <-ctx.Done():
			return
		case order := <-queue:
			d.processOrder(ctx, order)
		case <-time.After(timeout):
		}
	}
}

// processOrder runs one order end to end and reconciles its status with the
// run outcome. A panic here is isolated: logged, the order marked failed,
// the loop moves on.
func (d *Dispatcher) processOrder(ctx context.Context, order *models.Order) {
	logger := d.logger.With("order_id", order.ID, "order_code", order.OrderCode)

	if d.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, d.tracer, "dispatcher.process_order",
			attribute.String(otelhelper.OrderIDKey, order.ID),
			attribute.String(otelhelper.OrderCodeKey, order.OrderCode),
			attribute.String(otelhelper.SupplierCodeKey, order.SupplierCode),
			attribute.String(otelhelper.WorkerIDKey, d.workerID),
		)
		defer span.End()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing order", "panic", r)
			d.markFailed(ctx, order, fmt.Sprintf("internal error: %v", r), nil)
		}
	}()

	order.Status = models.OrderStatusProcessing
	d.saveOrder(ctx, order, logger)
	d.publish(ctx, events.OrderStarted{BaseEvent: d.baseEvent(events.OrderStartedEvent, order)})

	eng := engine.New(order, d.launcher, d.shots, d.store, logger)

	variant, err := d.registry.Create(order.SupplierCode, eng, d.cfg, logger)
	if err != nil {
		d.markFailed(ctx, order, err.Error(), nil)

		return
	}

	result := eng.Run(ctx, variant)

	if result.Success {
		now := time.Now().UTC()
		order.Status = models.OrderStatusCompleted
		order.PortalRef = result.PortalRef
		order.ErrorMessage = ""
		order.CompletedAt = &now
		d.saveOrder(ctx, order, logger)

		d.publish(ctx, events.OrderCompleted{
			BaseEvent: d.baseEvent(events.OrderCompletedEvent, order),
			PortalRef: result.PortalRef,
			Duration:  result.Duration,
		})

		logger.Info("order completed", "portal_ref", result.PortalRef, "duration", result.Duration)

		return
	}

	d.markFailed(ctx, order, result.Message, result)
}

func (d *Dispatcher) markFailed(ctx context.Context, order *models.Order, message string, result *models.RunResult) {
	logger := d.logger.With("order_id", order.ID)

	order.Status = models.OrderStatusFailed
	order.ErrorMessage = message
	d.saveOrder(ctx, order, logger)

	failed := events.OrderFailed{
		BaseEvent: d.baseEvent(events.OrderFailedEvent, order),
		Message:   message,
	}

	if result != nil {
		failed.Duration = result.Duration

		if result.Err != nil {
			failed.Step = result.Err.Step
			failed.Screenshot = result.Err.Screenshot
		}
	}

	d.publish(ctx, failed)

	logger.Error("order failed", "error", message)
}

func (d *Dispatcher) baseEvent(eventType events.EventType, order *models.Order) events.BaseEvent {
	base := events.NewBaseEvent(eventType, order)
	base.WorkerID = d.workerID

	return base
}

// saveOrder persists the order's current state. Status writes are
// best-effort against the shared store: a write failure is logged, never
// fatal to the run that produced it.
func (d *Dispatcher) saveOrder(ctx context.Context, order *models.Order, logger *slog.Logger) {
	order.UpdatedAt = time.Now().UTC()

	if err := d.store.Orders().Save(ctx, order); err != nil {
		logger.Error("could not persist order status", "status", order.Status, "error", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, event eventbus.Event) {
	if d.bus == nil {
		return
	}

	if err := d.bus.Publish(ctx, events.Topic, event); err != nil {
		d.logger.Warn("could not publish event", "event_type", event.GetType(), "error", err)
	}
}
