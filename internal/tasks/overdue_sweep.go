package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/library/internal/overdue"
)

// SweepRunner runs one overdue sweep.
type SweepRunner interface {
	Run(ctx context.Context) (overdue.Result, error)
}

// OverdueSweepTask runs an overdue sweep in the background.
type OverdueSweepTask struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// Config returns the queue configuration for sweep tasks. A failed sweep is
// not retried here; the next scheduled run picks up what is left.
func (t OverdueSweepTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_sweep",
		MaxAttempts: 1,
		Timeout:     15 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// OverdueSweepProcessor creates a processor function for OverdueSweepTask.
func OverdueSweepProcessor(sweeper SweepRunner) backlite.QueueProcessor[OverdueSweepTask] {
	return func(ctx context.Context, task OverdueSweepTask) error {
		if sweeper == nil {
			return overdue.ErrNotConfigured
		}

		// A nil *overdue.Sweeper passes the check above and reports
		// ErrNotConfigured from Run.
		result, err := sweeper.Run(ctx)
		if errors.Is(err, overdue.ErrSweepInProgress) {
			log.Printf("[TASK] Overdue sweep already running, skipping request from %q", task.RequestedBy)
			return nil
		}
		if err != nil {
			return fmt.Errorf("overdue sweep: %w", err)
		}

		log.Printf("[TASK] Overdue sweep finished: %d candidates, %d sent, %d failed",
			result.Candidates, result.Sent, result.Failed)
		return nil
	}
}

// NewOverdueSweepQueue creates a backlite queue for overdue sweeps.
func NewOverdueSweepQueue(sweeper SweepRunner) backlite.Queue {
	return backlite.NewQueue(OverdueSweepProcessor(sweeper))
}
