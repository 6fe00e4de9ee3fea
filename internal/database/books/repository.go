// Package books provides database operations for the book catalog and its
// available-copies counter.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByISBN("9780441172719")
//
// The counter methods (DecrementAvailable, IncrementAvailable, ResizeCopies)
// are single conditional UPDATE statements, so they stay correct when called
// concurrently. Pass a transaction handle to NewRepository when they must
// commit together with other writes.
package books

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/entities"
)

// Filter narrows a catalog listing. Empty fields are ignored.
type Filter struct {
	Query         string // partial match on title or author
	ISBN          string
	Author        string
	Genre         string
	AvailableOnly bool
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(book *entities.Book) error {
	return r.db.Create(book).Error
}

// GetByID retrieves a book that has not been deleted.
func (r *Repository) GetByID(id uuid.UUID) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByIDWithDeleted retrieves a book even if it has been soft-deleted.
func (r *Repository) GetByIDWithDeleted(id uuid.UUID) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Unscoped().Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) GetByISBN(isbn string) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// ExistsISBN reports whether any book, including deleted ones, uses isbn.
// The unique index spans soft-deleted rows.
func (r *Repository) ExistsISBN(isbn string) (bool, error) {
	var count int64
	err := r.db.Unscoped().Model(&entities.Book{}).Where("isbn = ?", isbn).Count(&count).Error
	return count > 0, err
}

// List returns one page of books matching f, ordered by title.
func (r *Repository) List(f Filter, page entities.Page) ([]entities.Book, int64, error) {
	q := r.db.Model(&entities.Book{})
	if f.Query != "" {
		pattern := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", pattern, pattern)
	}
	if f.ISBN != "" {
		q = q.Where("isbn = ?", f.ISBN)
	}
	if f.Author != "" {
		q = q.Where("LOWER(author) LIKE ?", "%"+strings.ToLower(f.Author)+"%")
	}
	if f.Genre != "" {
		q = q.Where("LOWER(genre) = ?", strings.ToLower(f.Genre))
	}
	if f.AvailableOnly {
		q = q.Where("available_copies > 0")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []entities.Book
	err := q.Order("title ASC, id ASC").Limit(page.Limit).Offset(page.Offset).Find(&books).Error
	return books, total, err
}

// UpdateFields applies descriptive changes. Copy counters are excluded; use
// ResizeCopies for those.
func (r *Repository) UpdateFields(id uuid.UUID, fields map[string]any) error {
	delete(fields, "total_copies")
	delete(fields, "available_copies")
	if len(fields) == 0 {
		return nil
	}
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(fields).Error
}

// Delete soft-deletes a book. Loan history keeps referencing the row.
func (r *Repository) Delete(id uuid.UUID) error {
	result := r.db.Where("id = ?", id).Delete(&entities.Book{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementAvailable takes one copy off the shelf. It reports false when the
// book does not exist or no copy is available; nothing is changed then.
func (r *Repository) DecrementAvailable(id uuid.UUID) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	return result.RowsAffected == 1, result.Error
}

// IncrementAvailable puts one copy back on the shelf. It reports false when
// the book does not exist or every copy is already available. Deleted books
// are included so that outstanding loans can still be returned.
func (r *Repository) IncrementAvailable(id uuid.UUID) (bool, error) {
	result := r.db.Unscoped().Model(&entities.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	return result.RowsAffected == 1, result.Error
}

// ResizeCopies sets total_copies and shifts available_copies by the same
// delta. It reports false, changing nothing, when the book does not exist or
// the new total would be below the number of copies on loan.
func (r *Repository) ResizeCopies(id uuid.UUID, total int) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND ? >= 0 AND available_copies + (? - total_copies) >= 0", id, total, total).
		UpdateColumns(map[string]any{
			"available_copies": gorm.Expr("available_copies + (? - total_copies)", total),
			"total_copies":     total,
		})
	return result.RowsAffected == 1, result.Error
}

// CountActiveCheckouts returns how many open loans reference the book.
func (r *Repository) CountActiveCheckouts(id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Checkout{}).
		Where("book_id = ? AND status = ?", id, entities.CheckoutStatusActive).
		Count(&count).Error
	return count, err
}
