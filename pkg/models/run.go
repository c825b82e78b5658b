package models

import (
	"fmt"
	"time"
)

// StepError is the terminal failure of one workflow step, raised after the
// step's retries are exhausted. It always ends the run.
type StepError struct {
	Step       Step
	Screenshot string
	Cause      error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
	}

	return fmt.Sprintf("step %s failed", e.Step)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// RunResult is produced exactly once per engine run. The dispatcher treats
// it as authoritative for the attempt; failed orders are only re-run through
// an explicit status reset.
type RunResult struct {
	Success        bool          `json:"success"`
	OrderID        string        `json:"order_id"`
	PortalRef      string        `json:"portal_ref,omitempty"`
	Message        string        `json:"message"`
	StepsCompleted []Step        `json:"steps_completed"`
	Screenshots    []string      `json:"screenshots,omitempty"`
	Duration       time.Duration `json:"duration"`
	Err            *StepError    `json:"-"`
}
