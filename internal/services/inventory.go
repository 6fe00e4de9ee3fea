package services

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/database/books"
)

// InventoryLedger owns the available-copies counter of each book. Both
// operations take the caller's transaction so that the counter moves in the
// same unit of work as the checkout row.
type InventoryLedger struct{}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{}
}

// ReserveCopy takes one copy of the book off the shelf. The decrement is a
// single conditional UPDATE, so two transactions racing for the last copy
// cannot both succeed.
func (l *InventoryLedger) ReserveCopy(tx *gorm.DB, bookID uuid.UUID) error {
	repo := books.NewRepository(tx)

	ok, err := repo.DecrementAvailable(bookID)
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}
	if ok {
		return nil
	}

	if _, err := repo.GetByID(bookID); err != nil {
		return notFound(err, ErrBookNotFound)
	}
	return ErrNoCopiesAvailable
}

// ReleaseCopy puts one copy back. The counter never exceeds total_copies;
// a release on a full shelf is logged and otherwise ignored.
func (l *InventoryLedger) ReleaseCopy(tx *gorm.DB, bookID uuid.UUID) error {
	repo := books.NewRepository(tx)

	ok, err := repo.IncrementAvailable(bookID)
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}
	if ok {
		return nil
	}

	if _, err := repo.GetByIDWithDeleted(bookID); err != nil {
		return notFound(err, ErrBookNotFound)
	}
	log.Printf("[LEDGER] Book %s already has all copies available, release ignored", bookID)
	return nil
}
