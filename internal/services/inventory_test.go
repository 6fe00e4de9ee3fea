package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInventoryLedger_ReserveAndRelease(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewInventoryLedger()
	book := seedBook(t, db, "9780000000001", 2)

	require.NoError(t, ledger.ReserveCopy(db, book.ID))
	require.NoError(t, ledger.ReserveCopy(db, book.ID))
	assert.Equal(t, 0, reloadBook(t, db, book).AvailableCopies)

	err := ledger.ReserveCopy(db, book.ID)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, ledger.ReleaseCopy(db, book.ID))
	require.NoError(t, ledger.ReleaseCopy(db, book.ID))
	assert.Equal(t, 2, reloadBook(t, db, book).AvailableCopies)

	// Releasing onto a full shelf is a no-op, never above total.
	require.NoError(t, ledger.ReleaseCopy(db, book.ID))
	assert.Equal(t, 2, reloadBook(t, db, book).AvailableCopies)
}

func TestInventoryLedger_UnknownBook(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewInventoryLedger()

	assert.ErrorIs(t, ledger.ReserveCopy(db, uuid.New()), ErrBookNotFound)
	assert.ErrorIs(t, ledger.ReleaseCopy(db, uuid.New()), ErrBookNotFound)
}

func TestInventoryLedger_RollsBackWithTransaction(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewInventoryLedger()
	book := seedBook(t, db, "9780000000001", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, ledger.ReserveCopy(tx, book.ID))
		return ErrCheckoutLimitReached
	})
	require.ErrorIs(t, err, ErrCheckoutLimitReached)
	assert.Equal(t, 1, reloadBook(t, db, book).AvailableCopies)
}

func TestInventoryLedger_ConcurrentReservations(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewInventoryLedger()
	book := seedBook(t, db, "9780000000001", 3)

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				return ledger.ReserveCopy(tx, book.ID)
			})
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrNoCopiesAvailable)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	assert.Equal(t, 0, reloadBook(t, db, book).AvailableCopies)
}
