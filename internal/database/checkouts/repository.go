// Package checkouts provides database operations for loan records.
//
// Overdue is never stored. A loan is overdue when it is ACTIVE and its due
// date is before the reference time, and every query here derives it that
// way so listings and the overdue sweep agree.
package checkouts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/library/internal/entities"
)

// Filter narrows a checkout listing. Nil or empty fields are ignored.
type Filter struct {
	UserID  *uuid.UUID
	BookID  *uuid.UUID
	Status  entities.CheckoutStatus // OVERDUE selects active loans past due
	Overdue *bool
}

// Repository handles all checkout database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new checkouts repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(checkout *entities.Checkout) error {
	return r.db.Omit(clause.Associations).Create(checkout).Error
}

// GetByID retrieves a checkout together with its user and book. Deleted
// books are still loaded so that historical loans keep their summary.
func (r *Repository) GetByID(id uuid.UUID) (*entities.Checkout, error) {
	var checkout entities.Checkout
	if err := r.withSummaries().Where("id = ?", id).First(&checkout).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

// GetForUpdate loads a checkout without associations and locks the row for
// the rest of the transaction.
func (r *Repository) GetForUpdate(id uuid.UUID) (*entities.Checkout, error) {
	var checkout entities.Checkout
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&checkout).Error
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

// MarkReturned closes an active loan. It reports false when the checkout
// does not exist or is not active.
func (r *Repository) MarkReturned(id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.Model(&entities.Checkout{}).
		Where("id = ? AND status = ?", id, entities.CheckoutStatusActive).
		Updates(map[string]any{
			"status":      entities.CheckoutStatusReturned,
			"returned_at": at.UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

// Extend moves the due date of an active loan and counts the renewal. It
// reports false when the loan is not active or the renewal cap is reached;
// nothing is changed then.
func (r *Repository) Extend(id uuid.UUID, dueDate time.Time) (bool, error) {
	result := r.db.Model(&entities.Checkout{}).
		Where("id = ? AND status = ? AND renewal_count < max_renewals", id, entities.CheckoutStatusActive).
		Updates(map[string]any{
			"due_date":      dueDate.UTC(),
			"renewal_count": gorm.Expr("renewal_count + 1"),
		})
	return result.RowsAffected == 1, result.Error
}

// List returns one page of checkouts matching f, newest first. now is the
// reference time for overdue filters.
func (r *Repository) List(f Filter, page entities.Page, now time.Time) ([]entities.Checkout, int64, error) {
	q := r.db.Model(&entities.Checkout{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.BookID != nil {
		q = q.Where("book_id = ?", *f.BookID)
	}
	switch f.Status {
	case "":
	case entities.CheckoutStatusOverdue:
		q = q.Where("status = ? AND due_date < ?", entities.CheckoutStatusActive, now.UTC())
	default:
		q = q.Where("status = ?", f.Status)
	}
	if f.Overdue != nil {
		if *f.Overdue {
			q = q.Where("status = ? AND due_date < ?", entities.CheckoutStatusActive, now.UTC())
		} else {
			q = q.Where("(status <> ? OR due_date >= ?)", entities.CheckoutStatusActive, now.UTC())
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var checkouts []entities.Checkout
	err := r.withSummariesOn(q).
		Order("checked_out_at DESC, id ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&checkouts).Error
	return checkouts, total, err
}

// ListOverdue returns every active loan past due at now, oldest due first.
func (r *Repository) ListOverdue(now time.Time) ([]entities.Checkout, error) {
	var checkouts []entities.Checkout
	err := r.withSummaries().
		Where("status = ? AND due_date < ?", entities.CheckoutStatusActive, now.UTC()).
		Order("due_date ASC, id ASC").
		Find(&checkouts).Error
	return checkouts, err
}

// ListOverdueUnnotified returns overdue loans whose reader has not been
// emailed yet.
func (r *Repository) ListOverdueUnnotified(now time.Time) ([]entities.Checkout, error) {
	var checkouts []entities.Checkout
	err := r.withSummaries().
		Where("status = ? AND due_date < ? AND overdue_email_sent = ?", entities.CheckoutStatusActive, now.UTC(), false).
		Order("due_date ASC, id ASC").
		Find(&checkouts).Error
	return checkouts, err
}

// MarkOverdueEmailSent sets the notification flag. It reports false when the
// flag was already set, so concurrent sweeps can tell who won.
func (r *Repository) MarkOverdueEmailSent(id uuid.UUID) (bool, error) {
	result := r.db.Model(&entities.Checkout{}).
		Where("id = ? AND overdue_email_sent = ?", id, false).
		Update("overdue_email_sent", true)
	return result.RowsAffected == 1, result.Error
}

func (r *Repository) withSummaries() *gorm.DB {
	return r.withSummariesOn(r.db)
}

func (r *Repository) withSummariesOn(q *gorm.DB) *gorm.DB {
	return q.Preload("User").Preload("Book", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	})
}
