// Package users provides database operations for library accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail("reader@example.com")
package users

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/library/internal/entities"
)

// Filter narrows a user listing. Nil or empty fields are ignored.
type Filter struct {
	Query    string // partial match on name or email
	Role     entities.UserRole
	IsActive *bool
}

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(user *entities.User) error {
	return r.db.Create(user).Error
}

func (r *Repository) GetByID(id uuid.UUID) (*entities.User, error) {
	var user entities.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetForUpdate loads a user and locks the row until the surrounding
// transaction ends. Concurrent checkouts for the same user queue up behind
// the lock, which keeps the loan-limit check accurate. On sqlite the whole
// database is already write-locked by an immediate transaction and the
// locking clause is dropped by the dialect.
func (r *Repository) GetForUpdate(id uuid.UUID) (*entities.User, error) {
	var user entities.User
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail looks a user up by email, ignoring case.
func (r *Repository) GetByEmail(email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns one page of users matching f, ordered by name.
func (r *Repository) List(f Filter, page entities.Page) ([]entities.User, int64, error) {
	q := r.db.Model(&entities.User{})
	if f.Query != "" {
		pattern := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []entities.User
	err := q.Order("name ASC, id ASC").Limit(page.Limit).Offset(page.Offset).Find(&users).Error
	return users, total, err
}

// UpdateFields applies a partial update. Map keys are column names.
func (r *Repository) UpdateFields(id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Delete(id uuid.UUID) error {
	result := r.db.Where("id = ?", id).Delete(&entities.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveCheckouts returns how many loans the user currently holds.
func (r *Repository) CountActiveCheckouts(id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Checkout{}).
		Where("user_id = ? AND status = ?", id, entities.CheckoutStatusActive).
		Count(&count).Error
	return count, err
}

// HasCheckouts reports whether any loan, open or returned, references the user.
func (r *Repository) HasCheckouts(id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&entities.Checkout{}).Where("user_id = ?", id).Count(&count).Error
	return count > 0, err
}
