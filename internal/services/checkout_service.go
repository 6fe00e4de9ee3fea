package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/database/checkouts"
	"github.com/mrlokans/library/internal/database/failures"
	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/entities"
)

// LoanPolicy holds the circulation rules applied to new loans.
type LoanPolicy struct {
	LoanPeriod    time.Duration
	RenewalPeriod time.Duration
	MaxRenewals   int
}

// CreateCheckoutInput identifies the borrower and the title. Either BookID or
// ISBN must be set; BookID wins when both are.
type CreateCheckoutInput struct {
	UserID  uuid.UUID
	BookID  uuid.UUID
	ISBN    string
	DueDate *time.Time
}

// CheckoutFilter narrows a checkout listing.
type CheckoutFilter struct {
	UserID  *uuid.UUID
	BookID  *uuid.UUID
	Status  entities.CheckoutStatus
	Overdue *bool
}

// CheckoutService runs the loan lifecycle: checkout, return and renewal.
// Each mutation is one database transaction covering the checkout row and
// the inventory counter; change events are dispatched after commit.
type CheckoutService struct {
	db         *gorm.DB
	ledger     *InventoryLedger
	dispatcher EventDispatcher
	policy     LoanPolicy
	now        func() time.Time
}

func NewCheckoutService(db *gorm.DB, dispatcher EventDispatcher, policy LoanPolicy) *CheckoutService {
	return &CheckoutService{
		db:         db,
		ledger:     NewInventoryLedger(),
		dispatcher: dispatcher,
		policy:     policy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *CheckoutService) WithClock(now func() time.Time) *CheckoutService {
	s.now = func() time.Time { return now().UTC() }
	return s
}

// Create lends one copy of a book to a user. The user must exist and be
// active, the book must have a copy on the shelf and the user must be below
// their loan limit; otherwise nothing is written.
func (s *CheckoutService) Create(ctx context.Context, in CreateCheckoutInput) (*entities.CheckoutDetails, error) {
	if in.UserID == uuid.Nil {
		return nil, invalidInput("user_id is required")
	}
	if in.BookID == uuid.Nil && in.ISBN == "" {
		return nil, invalidInput("book_id or isbn is required")
	}

	now := s.now()
	dueDate := now.Add(s.policy.LoanPeriod)
	if in.DueDate != nil {
		if !in.DueDate.After(now) {
			return nil, invalidInput("due_date must be in the future")
		}
		dueDate = in.DueDate.UTC()
	}

	var checkout *entities.Checkout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		bookRepo := books.NewRepository(tx)

		// Locking the borrower serialises concurrent checkouts by the same
		// user, which keeps the active-loan count below from going stale.
		user, err := userRepo.GetForUpdate(in.UserID)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if !user.IsActive {
			return ErrUserNotFound
		}

		var book *entities.Book
		if in.BookID != uuid.Nil {
			book, err = bookRepo.GetByID(in.BookID)
		} else {
			book, err = bookRepo.GetByISBN(in.ISBN)
		}
		if err != nil {
			return notFound(err, ErrBookNotFound)
		}
		if book.AvailableCopies <= 0 {
			return ErrNoCopiesAvailable
		}

		active, err := userRepo.CountActiveCheckouts(user.ID)
		if err != nil {
			return fmt.Errorf("count active checkouts: %w", err)
		}
		if active >= int64(user.MaxCheckouts) {
			return ErrCheckoutLimitReached
		}

		if err := s.ledger.ReserveCopy(tx, book.ID); err != nil {
			return err
		}

		checkout = &entities.Checkout{
			UserID:       user.ID,
			BookID:       book.ID,
			Status:       entities.CheckoutStatusActive,
			CheckedOutAt: now,
			DueDate:      dueDate,
			MaxRenewals:  s.policy.MaxRenewals,
		}
		if err := checkouts.NewRepository(tx).Create(checkout); err != nil {
			return fmt.Errorf("create checkout: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx,
		ChangeEvent{Entity: EntityCheckout, ID: checkout.ID, Op: ChangeCreated},
		ChangeEvent{Entity: EntityBook, ID: checkout.BookID, Op: ChangeUpdated},
	)

	return s.Get(ctx, checkout.ID)
}

// Return closes an active loan and puts the copy back on the shelf.
func (s *CheckoutService) Return(ctx context.Context, id uuid.UUID) (*entities.CheckoutDetails, error) {
	now := s.now()

	var bookID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := checkouts.NewRepository(tx)

		checkout, err := repo.GetForUpdate(id)
		if err != nil {
			return notFound(err, ErrNoActiveCheckout)
		}
		if !checkout.IsOpen() {
			return ErrNoActiveCheckout
		}

		ok, err := repo.MarkReturned(id, now)
		if err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		if !ok {
			return ErrNoActiveCheckout
		}

		bookID = checkout.BookID
		return s.ledger.ReleaseCopy(tx, checkout.BookID)
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx,
		ChangeEvent{Entity: EntityCheckout, ID: id, Op: ChangeUpdated},
		ChangeEvent{Entity: EntityBook, ID: bookID, Op: ChangeUpdated},
	)

	return s.Get(ctx, id)
}

// Renew pushes the due date of an active loan out by the renewal period,
// counted from the current due date.
func (s *CheckoutService) Renew(ctx context.Context, id uuid.UUID) (*entities.CheckoutDetails, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := checkouts.NewRepository(tx)

		checkout, err := repo.GetForUpdate(id)
		if err != nil {
			return notFound(err, ErrCheckoutNotFound)
		}
		if checkout.Status != entities.CheckoutStatusActive || checkout.ReturnedAt != nil {
			return ErrCheckoutNotActive
		}
		if !checkout.CanRenew() {
			return ErrRenewalLimitReached
		}

		ok, err := repo.Extend(id, checkout.DueDate.Add(s.policy.RenewalPeriod))
		if err != nil {
			return fmt.Errorf("extend checkout: %w", err)
		}
		if !ok {
			return ErrRenewalLimitReached
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, ChangeEvent{Entity: EntityCheckout, ID: id, Op: ChangeUpdated})

	return s.Get(ctx, id)
}

func (s *CheckoutService) Get(ctx context.Context, id uuid.UUID) (*entities.CheckoutDetails, error) {
	checkout, err := checkouts.NewRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, notFound(err, ErrCheckoutNotFound)
	}
	details := entities.NewCheckoutDetails(*checkout, s.now())
	return &details, nil
}

func (s *CheckoutService) List(ctx context.Context, f CheckoutFilter, page entities.Page) (entities.PageResult[entities.CheckoutDetails], error) {
	page = page.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return entities.PageResult[entities.CheckoutDetails]{}, invalidInput("unknown status %q", f.Status)
	}

	now := s.now()
	rows, total, err := checkouts.NewRepository(s.db.WithContext(ctx)).List(checkouts.Filter{
		UserID:  f.UserID,
		BookID:  f.BookID,
		Status:  f.Status,
		Overdue: f.Overdue,
	}, page, now)
	if err != nil {
		return entities.PageResult[entities.CheckoutDetails]{}, fmt.Errorf("list checkouts: %w", err)
	}

	return entities.NewPageResult(toDetails(rows, now), total, page), nil
}

// ListOverdue returns every active loan past its due date.
func (s *CheckoutService) ListOverdue(ctx context.Context) ([]entities.CheckoutDetails, error) {
	now := s.now()
	rows, err := checkouts.NewRepository(s.db.WithContext(ctx)).ListOverdue(now)
	if err != nil {
		return nil, fmt.Errorf("list overdue checkouts: %w", err)
	}
	return toDetails(rows, now), nil
}

// ListOverdueEmailFailures returns recorded overdue notice failures, newest
// first, optionally for one checkout.
func (s *CheckoutService) ListOverdueEmailFailures(ctx context.Context, checkoutID *uuid.UUID, page entities.Page) (entities.PageResult[entities.OverdueEmailFailure], error) {
	page = page.Normalize()
	rows, total, err := failures.NewRepository(s.db.WithContext(ctx)).List(checkoutID, page)
	if err != nil {
		return entities.PageResult[entities.OverdueEmailFailure]{}, fmt.Errorf("list overdue email failures: %w", err)
	}
	return entities.NewPageResult(rows, total, page), nil
}

func toDetails(rows []entities.Checkout, now time.Time) []entities.CheckoutDetails {
	out := make([]entities.CheckoutDetails, 0, len(rows))
	for _, c := range rows {
		out = append(out, entities.NewCheckoutDetails(c, now))
	}
	return out
}
