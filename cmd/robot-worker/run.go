package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/dorumake/robot/pkg/browser"
	"github.com/dorumake/robot/pkg/cmd"
	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/dispatcher"
	"github.com/dorumake/robot/pkg/events"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/otelhelper"
	"github.com/dorumake/robot/pkg/scheduler"
	"github.com/dorumake/robot/pkg/screenshot"
)

const shutdownGrace = 2 * time.Minute

func runWorker(ctx context.Context, command *cli.Command, workerID string, logger *slog.Logger) error {
	cfg := config.Default()

	if path := command.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	logger.InfoContext(ctx, "Initializing robot worker")

	store, err := cmd.NewPersistence(command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	bus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "robot-worker")
		if err != nil {
			return err
		}
	}

	launcher := browser.NewChromeLauncher(browser.Config{
		Headless:       cfg.Browser.Headless,
		WindowWidth:    cfg.Browser.WindowWidth,
		WindowHeight:   cfg.Browser.WindowHeight,
		Locale:         cfg.Browser.Locale,
		DownloadDir:    cfg.Browser.DownloadDir,
		DefaultTimeout: cfg.Browser.DefaultTimeout,
	})

	disp := dispatcher.New(
		workerID,
		cmd.NewRegistry(),
		launcher,
		screenshot.NewFSStore(cfg.ScreenshotDir),
		store,
		bus,
		cfg,
		logger,
		tracer,
	)
	disp.Start(ctx)

	// Orders accepted by the API arrive as queued events with no worker ID.
	// Events republished by a dispatcher carry one and are ignored here.
	err = bus.Handle(events.OrderQueuedEvent, func(ctx context.Context, payload any) error {
		event, ok := payload.(*events.OrderQueued)
		if !ok || event.WorkerID != "" {
			return nil
		}

		order, err := store.Orders().GetByID(ctx, event.OrderID)
		if err != nil {
			logger.WarnContext(ctx, "queued order not found", "order_id", event.OrderID, "error", err)

			return nil
		}

		if order.Status != models.OrderStatusPending {
			return nil
		}

		if err := disp.Enqueue(ctx, order); err != nil {
			logger.WarnContext(ctx, "could not enqueue order from event, sweep will retry",
				"order_id", order.ID, "error", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := bus.Subscribe(ctx); err != nil {
		return err
	}

	sweeper := scheduler.NewSweeper(store, disp, command.String("sweep-spec"), logger)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	// Pick up whatever was pending before this worker came up.
	sweeper.Sweep(ctx)

	logger.InfoContext(ctx, "Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.InfoContext(ctx, "Shutting down worker...")

	sweeper.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := disp.Stop(stopCtx); err != nil {
		logger.ErrorContext(ctx, "Dispatcher did not drain in time", "error", err)
	}

	return nil
}
