package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleUser      UserRole = "USER"
	UserRoleAdmin     UserRole = "ADMIN"
	UserRoleDeveloper UserRole = "DEVELOPER"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin, UserRoleDeveloper:
		return true
	}
	return false
}

// IsStaff reports whether the role may act on other users' records.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleDeveloper
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Role         UserRole  `gorm:"size:20;not null;index" json:"role"`
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	MaxCheckouts int       `gorm:"not null" json:"max_checkouts"`
	PasswordHash string    `gorm:"size:255" json:"-"` // empty for externally authenticated users
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsStaff() bool {
	return u.Role.IsStaff()
}
