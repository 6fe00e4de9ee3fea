// Package scheduler runs the overdue sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/overdue"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Describe returns a human-readable description of a cron schedule.
func Describe(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight UTC"
	case "0 9 * * *":
		return "Daily at 09:00 UTC"
	default:
		return "Custom schedule: " + schedule
	}
}

// SweepRunner runs one overdue sweep.
type SweepRunner interface {
	Run(ctx context.Context) (overdue.Result, error)
}

// OverdueScheduler triggers overdue sweeps. Schedules are evaluated in UTC.
type OverdueScheduler struct {
	sweeper  SweepRunner
	schedule string

	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewOverdueScheduler(sweeper SweepRunner, cfg config.OverdueSweep) *OverdueScheduler {
	return &OverdueScheduler{
		sweeper:  sweeper,
		schedule: cfg.Schedule,
		cron:     cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
	}
}

// Start schedules the sweep. Sweeps started by the scheduler are cancelled
// when ctx ends or Stop is called.
func (s *OverdueScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	entryID, err := s.cron.AddFunc(s.schedule, func() { s.runSweep(s.ctx) })
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to schedule overdue sweep: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	log.Printf("[OVERDUE] Scheduler started with schedule '%s' (%s). Next run: %v",
		s.schedule, Describe(s.schedule), s.cron.Entry(entryID).Next)

	go func(done <-chan struct{}) {
		<-done
		s.Stop()
	}(s.ctx.Done())

	return nil
}

// Stop cancels in-flight sweeps and waits for them to return.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.running = false

	log.Printf("[OVERDUE] Scheduler stopped")
}

func (s *OverdueScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// NextRun returns when the next sweep will start, or nil when stopped.
func (s *OverdueScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *OverdueScheduler) runSweep(ctx context.Context) {
	result, err := s.sweeper.Run(ctx)
	switch {
	case errors.Is(err, overdue.ErrSweepInProgress):
		log.Printf("[OVERDUE] Scheduled sweep skipped: previous sweep still running")
	case err != nil:
		log.Printf("[OVERDUE] Scheduled sweep failed: %v", err)
	default:
		log.Printf("[OVERDUE] Scheduled sweep done: %d candidates, %d sent, %d failed in %s",
			result.Candidates, result.Sent, result.Failed, result.Duration)
	}
}
