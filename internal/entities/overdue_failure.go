package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OverdueEmailFailure records a failed overdue notification attempt so it can
// be inspected later. The checkout keeps overdue_email_sent = false and is
// picked up again by the next sweep.
type OverdueEmailFailure struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CheckoutID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"checkout_id"`
	ErrorMessage string         `gorm:"size:1000;not null" json:"error_message"`
	Details      datatypes.JSON `json:"details,omitempty"` // recipient, subject, due date
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`

	Checkout *Checkout `gorm:"foreignKey:CheckoutID;constraint:OnDelete:CASCADE" json:"-"`
}

func (OverdueEmailFailure) TableName() string {
	return "overdue_email_failures"
}
