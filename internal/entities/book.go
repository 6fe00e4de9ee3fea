package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book is a catalog title with a pool of interchangeable physical copies.
// AvailableCopies is only mutated through the inventory ledger and the
// database enforces 0 <= available_copies <= total_copies.
type Book struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ISBN            string         `gorm:"uniqueIndex;size:20;not null" json:"isbn"`
	Title           string         `gorm:"index;size:512;not null" json:"title"`
	Author          string         `gorm:"index;size:256;not null" json:"author"`
	Publisher       string         `gorm:"size:256" json:"publisher,omitempty"`
	PublishedYear   int            `json:"published_year,omitempty"`
	Genre           string         `gorm:"index;size:100" json:"genre,omitempty"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	CoverURL        string         `gorm:"size:2048" json:"cover_url,omitempty"`
	TotalCopies     int            `gorm:"not null;check:chk_books_total_copies,total_copies >= 0" json:"total_copies"`
	AvailableCopies int            `gorm:"not null;check:chk_books_available_copies,available_copies >= 0 AND available_copies <= total_copies" json:"available_copies"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
