// Package retry runs an operation repeatedly with a fixed wait schedule.
// Retries are purely local and per-operation: no jitter, no circuit breaker,
// no cross-call rate limiting.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Exhausted is returned when every attempt failed.
type Exhausted struct {
	Operation string
	Attempts  int
	LastErr   error
}

func (e *Exhausted) Error() string {
	return fmt.Sprintf("%s: all %d attempts failed: %v", e.Operation, e.Attempts, e.LastErr)
}

func (e *Exhausted) Unwrap() error {
	return e.LastErr
}

// Policy controls one Do call. The schedule is positional: after failed
// attempt n the retrier waits Schedule[n-1], reusing the last entry when the
// schedule is shorter than the attempt count.
type Policy struct {
	Operation   string
	MaxAttempts int
	Schedule    []time.Duration

	// Retryable classifies errors; nil means every error is retryable.
	// A non-retryable error is returned as-is without consuming attempts.
	Retryable func(error) bool

	// OnRetry runs after each failed attempt that will be retried, before
	// the wait. A panicking hook is logged, never propagated.
	OnRetry func(attempt int, err error)

	// OnFailure runs once, after the final attempt failed.
	OnFailure func(err error)

	Logger *slog.Logger
}

// Do runs op up to p.MaxAttempts times. Waits between attempts honor ctx;
// a cancelled context ends the call immediately with ctx.Err().
func Do(ctx context.Context, op func(context.Context) error, p Policy) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		logger.Debug("running attempt",
			"operation", p.Operation, "attempt", attempt, "max_attempts", p.MaxAttempts)

		err := op(ctx)
		if err == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		lastErr = err
		logger.Warn("attempt failed",
			"operation", p.Operation, "attempt", attempt, "error", err)

		if attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			guard(logger, p.Operation, "on_retry", func() { p.OnRetry(attempt, err) })
		}

		if err := wait(ctx, waitFor(p.Schedule, attempt)); err != nil {
			return err
		}
	}

	if p.OnFailure != nil {
		guard(logger, p.Operation, "on_failure", func() { p.OnFailure(lastErr) })
	}

	return &Exhausted{Operation: p.Operation, Attempts: p.MaxAttempts, LastErr: lastErr}
}

func waitFor(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 {
		return 0
	}

	i := attempt - 1
	if i >= len(schedule) {
		i = len(schedule) - 1
	}

	return schedule[i]
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// guard keeps hook failures from aborting the retry loop.
func guard(logger *slog.Logger, operation, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("retry hook panicked", "operation", operation, "hook", hook, "panic", r)
		}
	}()

	fn()
}
