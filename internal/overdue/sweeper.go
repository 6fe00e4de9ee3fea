// Package overdue notifies readers about loans past their due date.
//
// A sweep selects ACTIVE checkouts with due_date < now and
// overdue_email_sent = false, sends one notice per checkout and sets the flag
// only after a successful send. Failed sends are recorded in
// overdue_email_failures and retried by the next sweep, so running a sweep
// twice never emails the same reader twice for the same loan.
package overdue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/database/checkouts"
	"github.com/mrlokans/library/internal/database/failures"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/services"
)

// ErrSweepInProgress is returned when a sweep is started while another one
// is still running in this process.
var ErrSweepInProgress = errors.New("overdue sweep already running")

// ErrNotConfigured is returned by a nil *Sweeper, which is what callers hold
// when outbound email is not set up.
var ErrNotConfigured = errors.New("overdue email is not configured")

// Notice is everything needed to tell a reader about one overdue loan.
type Notice struct {
	CheckoutID uuid.UUID
	UserName   string
	UserEmail  string
	BookTitle  string
	BookAuthor string
	DueDate    time.Time
}

// Notifier delivers overdue notices.
type Notifier interface {
	NotifyOverdue(ctx context.Context, notice Notice) error
}

// Result summarises one sweep.
type Result struct {
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
}

type Sweeper struct {
	db         *gorm.DB
	notifier   Notifier
	dispatcher services.EventDispatcher
	now        func() time.Time

	mu sync.Mutex
}

// NewSweeper creates a Sweeper. Every checkout it flags is reported to
// dispatcher so the mirror sees overdue_email_sent change.
func NewSweeper(db *gorm.DB, notifier Notifier, dispatcher services.EventDispatcher) *Sweeper {
	return &Sweeper{
		db:         db,
		notifier:   notifier,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run performs one sweep. Only one sweep runs at a time per process; across
// processes the overdue_email_sent flag keeps reruns from re-sending.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	if s == nil {
		return Result{}, ErrNotConfigured
	}
	if !s.mu.TryLock() {
		return Result{}, ErrSweepInProgress
	}
	defer s.mu.Unlock()

	started := time.Now()
	result := Result{StartedAt: s.now()}

	pending, err := checkouts.NewRepository(s.db.WithContext(ctx)).ListOverdueUnnotified(result.StartedAt)
	if err != nil {
		return result, fmt.Errorf("list overdue checkouts: %w", err)
	}
	result.Candidates = len(pending)

	for i := range pending {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(started).String()
			return result, err
		}
		if s.notifyOne(ctx, &pending[i]) {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	result.Duration = time.Since(started).String()
	log.Printf("[OVERDUE] Sweep finished: %d overdue, %d sent, %d failed in %s",
		result.Candidates, result.Sent, result.Failed, result.Duration)
	return result, nil
}

func (s *Sweeper) notifyOne(ctx context.Context, c *entities.Checkout) bool {
	notice := noticeFor(c)

	if err := s.notifier.NotifyOverdue(ctx, notice); err != nil {
		log.Printf("[OVERDUE] Failed to notify %s about checkout %s: %v", notice.UserEmail, c.ID, err)
		s.recordFailure(ctx, notice, err)
		return false
	}

	ok, err := checkouts.NewRepository(s.db.WithContext(ctx)).MarkOverdueEmailSent(c.ID)
	if err != nil {
		// The email went out; the next sweep may send a duplicate.
		log.Printf("[OVERDUE] Sent notice for checkout %s but failed to set flag: %v", c.ID, err)
		return true
	}
	if ok {
		s.dispatcher.Dispatch(ctx, services.ChangeEvent{Entity: services.EntityCheckout, ID: c.ID, Op: services.ChangeUpdated})
	} else {
		log.Printf("[OVERDUE] Checkout %s was already flagged by a concurrent sweep", c.ID)
	}
	log.Printf("[OVERDUE] Sent overdue notification to %s", notice.UserEmail)
	return true
}

func (s *Sweeper) recordFailure(ctx context.Context, notice Notice, cause error) {
	details := map[string]any{
		"to":       notice.UserEmail,
		"title":    notice.BookTitle,
		"due_date": notice.DueDate.Format("2006-01-02"),
	}
	// The failure log must be written even when ctx is being cancelled.
	recordCtx := context.WithoutCancel(ctx)
	if err := failures.NewRepository(s.db.WithContext(recordCtx)).Record(notice.CheckoutID, cause.Error(), details); err != nil {
		log.Printf("[OVERDUE] Failed to record failure for checkout %s: %v", notice.CheckoutID, err)
	}
}

func noticeFor(c *entities.Checkout) Notice {
	n := Notice{CheckoutID: c.ID, DueDate: c.DueDate}
	if c.User != nil {
		n.UserName = c.User.Name
		n.UserEmail = c.User.Email
	}
	if c.Book != nil {
		n.BookTitle = c.Book.Title
		n.BookAuthor = c.Book.Author
	}
	return n
}
