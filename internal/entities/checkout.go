package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CheckoutStatus string

const (
	CheckoutStatusActive   CheckoutStatus = "ACTIVE"
	CheckoutStatusReturned CheckoutStatus = "RETURNED"

	// CheckoutStatusOverdue is never persisted; the status column only holds
	// ACTIVE or RETURNED. It is reported for active loans past their due date
	// and accepted as a list filter.
	CheckoutStatusOverdue CheckoutStatus = "OVERDUE"
)

func (s CheckoutStatus) Valid() bool {
	switch s {
	case CheckoutStatusActive, CheckoutStatusReturned, CheckoutStatusOverdue:
		return true
	}
	return false
}

// Checkout is a single loan of one copy of a book to a user. Rows are never
// deleted; a returned checkout stays as part of the circulation history.
type Checkout struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	BookID           uuid.UUID      `gorm:"type:uuid;index;not null" json:"book_id"`
	Status           CheckoutStatus `gorm:"size:20;index;not null;check:chk_checkouts_status,status IN ('ACTIVE', 'RETURNED') AND (status = 'RETURNED') = (returned_at IS NOT NULL)" json:"status"`
	CheckedOutAt     time.Time      `gorm:"not null" json:"checked_out_at"`
	DueDate          time.Time      `gorm:"index;not null" json:"due_date"`
	ReturnedAt       *time.Time     `json:"returned_at"`
	RenewalCount     int            `gorm:"not null;check:chk_checkouts_renewals,renewal_count >= 0 AND renewal_count <= max_renewals" json:"renewal_count"`
	MaxRenewals      int            `gorm:"not null" json:"max_renewals"`
	OverdueEmailSent bool           `gorm:"not null;index" json:"overdue_email_sent"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Book *Book `gorm:"foreignKey:BookID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (Checkout) TableName() string {
	return "checkouts"
}

func (c *Checkout) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsOpen reports whether the loan still holds a copy.
func (c *Checkout) IsOpen() bool {
	return c.ReturnedAt == nil && c.Status == CheckoutStatusActive
}

// IsOverdue reports whether an open loan is past its due date at now.
func (c *Checkout) IsOverdue(now time.Time) bool {
	return c.IsOpen() && c.DueDate.Before(now)
}

// EffectiveStatus is the status reported to clients: ACTIVE loans past due
// are shown as OVERDUE.
func (c *Checkout) EffectiveStatus(now time.Time) CheckoutStatus {
	if c.IsOverdue(now) {
		return CheckoutStatusOverdue
	}
	return c.Status
}

// CanRenew reports whether another renewal is allowed.
func (c *Checkout) CanRenew() bool {
	return c.Status == CheckoutStatusActive && c.ReturnedAt == nil && c.RenewalCount < c.MaxRenewals
}

type CheckoutUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type CheckoutBook struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
	ISBN   string    `json:"isbn"`
}

// CheckoutDetails is a checkout joined with denormalized user and book
// summaries, as returned by the API.
type CheckoutDetails struct {
	Checkout
	EffectiveStatus CheckoutStatus `json:"effective_status"`
	IsOverdue       bool           `json:"is_overdue"`
	User            CheckoutUser   `json:"user"`
	Book            CheckoutBook   `json:"book"`
}

// NewCheckoutDetails builds the API view of c. The User and Book
// associations must be loaded for the summaries to be populated.
func NewCheckoutDetails(c Checkout, now time.Time) CheckoutDetails {
	d := CheckoutDetails{
		Checkout:        c,
		EffectiveStatus: c.EffectiveStatus(now),
		IsOverdue:       c.IsOverdue(now),
	}
	if c.User != nil {
		d.User = CheckoutUser{ID: c.User.ID, Name: c.User.Name, Email: c.User.Email}
	} else {
		d.User = CheckoutUser{ID: c.UserID}
	}
	if c.Book != nil {
		d.Book = CheckoutBook{ID: c.Book.ID, Title: c.Book.Title, Author: c.Book.Author, ISBN: c.Book.ISBN}
	} else {
		d.Book = CheckoutBook{ID: c.BookID}
	}
	return d
}
