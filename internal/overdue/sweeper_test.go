package overdue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/services"
)

var now = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []Notice
	failFor map[uuid.UUID]error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeNotifier) NotifyOverdue(ctx context.Context, n Notice) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[n.CheckoutID]; err != nil {
		return err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) Sent() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.sent...)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []services.ChangeEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, events ...services.ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *recordingDispatcher) Events() []services.ChangeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]services.ChangeEvent(nil), d.events...)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(config.Database{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(t.TempDir(), "overdue.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func seedCheckout(t *testing.T, db *gorm.DB, email string, due time.Time) *entities.Checkout {
	t.Helper()
	user := &entities.User{Email: email, Name: "Reader " + email, Role: entities.UserRoleUser, IsActive: true, MaxCheckouts: 5}
	require.NoError(t, db.Create(user).Error)
	book := &entities.Book{ISBN: uuid.NewString()[:13], Title: "Dune", Author: "Frank Herbert", TotalCopies: 1, AvailableCopies: 0}
	require.NoError(t, db.Create(book).Error)
	c := &entities.Checkout{
		UserID:       user.ID,
		BookID:       book.ID,
		Status:       entities.CheckoutStatusActive,
		CheckedOutAt: due.Add(-14 * 24 * time.Hour),
		DueDate:      due,
		MaxRenewals:  2,
	}
	require.NoError(t, db.Omit("User", "Book").Create(c).Error)
	return c
}

func TestSweeper_SendsOncePerCheckout(t *testing.T) {
	db := setupTestDB(t)
	late := seedCheckout(t, db, "late@example.com", now.Add(-48*time.Hour))
	seedCheckout(t, db, "ontime@example.com", now.Add(48*time.Hour))

	notifier := &fakeNotifier{}
	dispatcher := &recordingDispatcher{}
	sweeper := NewSweeper(db, notifier, dispatcher).WithClock(func() time.Time { return now })

	result, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Sent)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, late.ID, sent[0].CheckoutID)
	assert.Equal(t, "late@example.com", sent[0].UserEmail)
	assert.Equal(t, "Dune", sent[0].BookTitle)
	assert.Equal(t, "Frank Herbert", sent[0].BookAuthor)

	var flagged entities.Checkout
	require.NoError(t, db.Where("id = ?", late.ID).First(&flagged).Error)
	assert.True(t, flagged.OverdueEmailSent)
	assert.Equal(t, entities.CheckoutStatusActive, flagged.Status, "sweep does not change status")
	assert.Equal(t, []services.ChangeEvent{{Entity: services.EntityCheckout, ID: late.ID, Op: services.ChangeUpdated}},
		dispatcher.Events(), "flag change is pushed to the mirror")

	result, err = sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Candidates)
	assert.Len(t, notifier.Sent(), 1, "second sweep is a no-op")
	assert.Len(t, dispatcher.Events(), 1)
}

func TestSweeper_RecordsFailuresAndRetries(t *testing.T) {
	db := setupTestDB(t)
	c := seedCheckout(t, db, "late@example.com", now.Add(-time.Hour))

	notifier := &fakeNotifier{failFor: map[uuid.UUID]error{c.ID: errors.New("HTTP 500")}}
	dispatcher := &recordingDispatcher{}
	sweeper := NewSweeper(db, notifier, dispatcher).WithClock(func() time.Time { return now })

	result, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	var failure entities.OverdueEmailFailure
	require.NoError(t, db.Where("checkout_id = ?", c.ID).First(&failure).Error)
	assert.Equal(t, "HTTP 500", failure.ErrorMessage)
	assert.JSONEq(t, `{"to":"late@example.com","title":"Dune","due_date":"2024-01-31"}`, string(failure.Details))

	var unflagged entities.Checkout
	require.NoError(t, db.Where("id = ?", c.ID).First(&unflagged).Error)
	assert.False(t, unflagged.OverdueEmailSent)
	assert.Empty(t, dispatcher.Events(), "nothing changed, nothing to sync")

	notifier.mu.Lock()
	notifier.failFor = nil
	notifier.mu.Unlock()

	result, err = sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent, "failed notice is retried by the next sweep")
	assert.Len(t, dispatcher.Events(), 1)
}

func TestSweeper_SkipsReturnedCheckouts(t *testing.T) {
	db := setupTestDB(t)
	c := seedCheckout(t, db, "late@example.com", now.Add(-time.Hour))
	require.NoError(t, db.Model(&entities.Checkout{}).Where("id = ?", c.ID).Updates(map[string]any{
		"status":      entities.CheckoutStatusReturned,
		"returned_at": now,
	}).Error)

	notifier := &fakeNotifier{}
	dispatcher := &recordingDispatcher{}
	result, err := NewSweeper(db, notifier, dispatcher).WithClock(func() time.Time { return now }).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Candidates)
	assert.Empty(t, notifier.Sent())
}

func TestSweeper_SingleFlight(t *testing.T) {
	db := setupTestDB(t)
	seedCheckout(t, db, "late@example.com", now.Add(-time.Hour))

	notifier := &fakeNotifier{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	dispatcher := &recordingDispatcher{}
	sweeper := NewSweeper(db, notifier, dispatcher).WithClock(func() time.Time { return now })

	done := make(chan error, 1)
	go func() {
		_, err := sweeper.Run(context.Background())
		done <- err
	}()
	<-notifier.entered

	_, err := sweeper.Run(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(notifier.block)
	require.NoError(t, <-done)
	assert.Len(t, notifier.Sent(), 1)
}

func TestSweeper_NilReportsNotConfigured(t *testing.T) {
	var s *Sweeper
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
