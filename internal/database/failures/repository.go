// Package failures stores failed overdue notification attempts.
package failures

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/entities"
)

const maxMessageLength = 1000

// Repository handles overdue email failure records.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new failures repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record appends a failure for checkoutID. details is stored as JSON and may
// be nil.
func (r *Repository) Record(checkoutID uuid.UUID, message string, details map[string]any) error {
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength]
	}
	failure := &entities.OverdueEmailFailure{
		CheckoutID:   checkoutID,
		ErrorMessage: message,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		failure.Details = datatypes.JSON(raw)
	}
	return r.db.Create(failure).Error
}

// List returns failures newest first. A nil checkoutID lists all of them.
func (r *Repository) List(checkoutID *uuid.UUID, page entities.Page) ([]entities.OverdueEmailFailure, int64, error) {
	q := r.db.Model(&entities.OverdueEmailFailure{})
	if checkoutID != nil {
		q = q.Where("checkout_id = ?", *checkoutID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var failures []entities.OverdueEmailFailure
	err := q.Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&failures).Error
	return failures, total, err
}
