// Package engine sequences portal workflow steps uniformly: each step runs
// under the retrier with step logging and failure screenshots, and every run
// produces exactly one RunResult no matter how it ends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dorumake/robot/pkg/browser"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
	"github.com/dorumake/robot/pkg/retry"
	"github.com/dorumake/robot/pkg/screenshot"
)

// Variant is one portal's workflow: a fixed ordered list of steps driven by
// ProcessOrder, built from the engine's primitives. Variants are composed
// with the engine, not derived from it.
type Variant interface {
	SupplierName() string
	PortalURL() string
	Steps() []models.Step
	Login(ctx context.Context) error
	ProcessOrder(ctx context.Context) (portalRef string, err error)
}

// StepPolicy is the retry policy for one ExecuteStep call.
type StepPolicy struct {
	MaxAttempts       int
	Schedule          []time.Duration
	ScreenshotOnError bool
	// Retryable classifies step errors; nil retries everything.
	Retryable func(error) bool
}

// Engine owns one order's browser session lifecycle, step pointer and
// accumulated logs. It is single-use: one Run per Engine.
type Engine struct {
	order    *models.Order
	launcher browser.Launcher
	shots    screenshot.Store
	store    persistence.Persistence
	logger   *slog.Logger

	session      browser.Session
	teardownOnce sync.Once

	current     models.Step
	completed   []models.Step
	logs        []*models.StepLogEntry
	screenshots []string
	start       time.Time
}

func New(
	order *models.Order,
	launcher browser.Launcher,
	shots screenshot.Store,
	store persistence.Persistence,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		order:    order,
		launcher: launcher,
		shots:    shots,
		store:    store,
		logger:   logger,
		current:  models.StepInit,
	}
}

func (e *Engine) Order() *models.Order {
	return e.order
}

// Session returns the browser session. Valid between setup and teardown.
func (e *Engine) Session() browser.Session {
	return e.session
}

// Run executes the variant's workflow end to end. Teardown always runs,
// regardless of outcome, and failures never escape as errors: any step
// failure, unclassified error or panic becomes RunResult{Success: false}.
// The result is a named return so the recover below can replace the value
// the caller sees after a panic unwinds.
func (e *Engine) Run(ctx context.Context, v Variant) (result *models.RunResult) {
	e.start = time.Now()
	result = &models.RunResult{OrderID: e.order.ID}

	defer e.teardown()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during run", "step", e.current, "panic", r)
			e.fail(ctx, result, &models.StepError{
				Step:  e.current,
				Cause: fmt.Errorf("panic: %v", r),
			})
		}
	}()

	e.logger.Info("starting order processing",
		"supplier", v.SupplierName(), "order_code", e.order.OrderCode)

	e.LogStep(ctx, models.StepInit, models.StepStatusProcessing,
		fmt.Sprintf("processing order %s", e.order.OrderCode),
		map[string]any{"supplier": v.SupplierName(), "portal": v.PortalURL()}, "")

	if err := e.setup(ctx); err != nil {
		e.fail(ctx, result, &models.StepError{Step: models.StepInit, Cause: err})

		return result
	}

	if err := e.session.Navigate(ctx, v.PortalURL()); err != nil {
		e.fail(ctx, result, &models.StepError{Step: models.StepInit, Cause: err})

		return result
	}

	e.LogStep(ctx, models.StepInit, models.StepStatusSuccess,
		fmt.Sprintf("portal opened: %s", v.PortalURL()), nil, "")

	if err := v.Login(ctx); err != nil {
		e.fail(ctx, result, err)

		return result
	}

	portalRef, err := v.ProcessOrder(ctx)
	if err != nil {
		e.fail(ctx, result, err)

		return result
	}

	result.Success = true
	result.PortalRef = portalRef
	result.Message = fmt.Sprintf("order processed, portal reference: %s", portalRef)

	e.LogStep(ctx, models.StepComplete, models.StepStatusSuccess, result.Message, nil, "")
	e.finalize(result)

	e.logger.Info("order processing completed",
		"supplier", v.SupplierName(), "portal_ref", portalRef, "duration", result.Duration)

	return result
}

// setup acquires the browser session. Safe to call when already set up.
func (e *Engine) setup(ctx context.Context) error {
	if e.session != nil {
		return nil
	}

	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	e.session = session

	return nil
}

// teardown releases the browser session exactly once, even after a partial
// setup.
func (e *Engine) teardown() {
	e.teardownOnce.Do(func() {
		if e.session == nil {
			return
		}

		if err := e.session.Close(); err != nil {
			e.logger.Warn("browser teardown failed", "error", err)
		}
	})
}

// ExecuteStep runs one step action under the retrier. Each retried attempt
// is logged with an attempt-tagged screenshot; exhaustion logs a FAILED
// entry with a final screenshot and returns a StepError that ends the run.
func (e *Engine) ExecuteStep(
	ctx context.Context,
	step models.Step,
	opName string,
	pol StepPolicy,
	action func(ctx context.Context) error,
) error {
	e.current = step

	var failShot string

	err := retry.Do(ctx, action, retry.Policy{
		Operation:   fmt.Sprintf("%s:%s", e.order.SupplierCode, opName),
		MaxAttempts: pol.MaxAttempts,
		Schedule:    pol.Schedule,
		Retryable:   pol.Retryable,
		Logger:      e.logger,
		OnRetry: func(attempt int, err error) {
			shot := ""
			if pol.ScreenshotOnError {
				shot = e.TakeScreenshot(ctx, step, fmt.Sprintf("retry_%d", attempt))
			}

			e.LogStep(ctx, step, models.StepStatusRetry,
				fmt.Sprintf("attempt %d failed: %v", attempt, err), nil, shot)
		},
		OnFailure: func(err error) {
			if pol.ScreenshotOnError {
				failShot = e.TakeScreenshot(ctx, step, "failed")
			}

			e.LogStep(ctx, step, models.StepStatusFailed, err.Error(), nil, failShot)
		},
	})
	if err != nil {
		return &models.StepError{Step: step, Screenshot: failShot, Cause: err}
	}

	e.completed = append(e.completed, step)
	e.LogStep(ctx, step, models.StepStatusSuccess, fmt.Sprintf("%s completed", opName), nil, "")

	return nil
}

// TakeScreenshot captures and stores a screenshot, returning its reference.
// Capture is best-effort: failures are logged and yield an empty reference.
func (e *Engine) TakeScreenshot(ctx context.Context, step models.Step, tag string) string {
	if e.session == nil || e.shots == nil {
		return ""
	}

	png, err := e.session.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("screenshot capture failed", "step", step, "tag", tag, "error", err)

		return ""
	}

	ref, err := e.shots.Save(ctx, e.order.ID, step, tag, png)
	if err != nil {
		e.logger.Warn("screenshot save failed", "step", step, "tag", tag, "error", err)

		return ""
	}

	e.screenshots = append(e.screenshots, ref)

	return ref
}

// LogStep appends an audit entry in memory and to the log store. Store
// write failures are logged and swallowed: log durability is best-effort,
// never transactional with the portal action.
func (e *Engine) LogStep(
	ctx context.Context,
	step models.Step,
	status models.StepStatus,
	message string,
	details map[string]any,
	screenshotRef string,
) {
	entry := &models.StepLogEntry{
		ID:         uuid.New().String(),
		OrderID:    e.order.ID,
		Step:       step,
		Status:     status,
		Message:    message,
		Details:    details,
		Screenshot: screenshotRef,
		CreatedAt:  time.Now().UTC(),
	}

	e.logs = append(e.logs, entry)

	switch status {
	case models.StepStatusFailed:
		e.logger.Error(message, "step", step, "status", status)
	case models.StepStatusSuccess:
		e.logger.Info(message, "step", step, "status", status)
	default:
		e.logger.Debug(message, "step", step, "status", status)
	}

	if e.store != nil {
		if err := e.store.StepLogs().Append(ctx, entry); err != nil {
			e.logger.Warn("could not persist step log", "step", step, "error", err)
		}
	}
}

// StepLogs returns the in-memory audit trail accumulated so far.
func (e *Engine) StepLogs() []*models.StepLogEntry {
	return e.logs
}

func (e *Engine) fail(ctx context.Context, result *models.RunResult, err error) {
	var stepErr *models.StepError
	if !errors.As(err, &stepErr) {
		// Unclassified error: tag it with the step that was current and
		// grab whatever the page shows now.
		stepErr = &models.StepError{
			Step:       e.current,
			Screenshot: e.TakeScreenshot(ctx, e.current, "unexpected_error"),
			Cause:      err,
		}

		e.logger.Error("unexpected error during run", "step", e.current, "error", err)
	}

	result.Success = false
	result.Err = stepErr
	result.Message = stepErr.Error()

	e.LogStep(ctx, models.StepFailed, models.StepStatusFailed, stepErr.Error(), nil, stepErr.Screenshot)
	e.finalize(result)
}

func (e *Engine) finalize(result *models.RunResult) {
	result.StepsCompleted = append([]models.Step(nil), e.completed...)
	result.Screenshots = append([]string(nil), e.screenshots...)
	result.Duration = time.Since(e.start)
}
