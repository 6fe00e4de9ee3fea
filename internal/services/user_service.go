package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/entities"
)

type CreateUserInput struct {
	Email        string            `json:"email" validate:"required,email,max=255"`
	Name         string            `json:"name" validate:"required,max=255"`
	Role         entities.UserRole `json:"role" validate:"omitempty,oneof=USER ADMIN DEVELOPER"`
	MaxCheckouts *int              `json:"max_checkouts" validate:"omitempty,gte=0,lte=100"`
	PasswordHash string            `json:"-"`
}

// UpdateUserInput is a partial update; nil fields are left alone.
type UpdateUserInput struct {
	Email        *string            `json:"email" validate:"omitempty,email,max=255"`
	Name         *string            `json:"name" validate:"omitempty,min=1,max=255"`
	Role         *entities.UserRole `json:"role" validate:"omitempty,oneof=USER ADMIN DEVELOPER"`
	IsActive     *bool              `json:"is_active"`
	MaxCheckouts *int               `json:"max_checkouts" validate:"omitempty,gte=0,lte=100"`
}

// ExternalIdentity is a caller vouched for by an external auth service.
type ExternalIdentity struct {
	ID    string
	Email string
	Name  string
}

type UserFilter = users.Filter

// UserService manages library accounts.
type UserService struct {
	db                  *gorm.DB
	dispatcher          EventDispatcher
	defaultMaxCheckouts int
}

func NewUserService(db *gorm.DB, dispatcher EventDispatcher, defaultMaxCheckouts int) *UserService {
	return &UserService{db: db, dispatcher: dispatcher, defaultMaxCheckouts: defaultMaxCheckouts}
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*entities.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user := &entities.User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		IsActive:     true,
		MaxCheckouts: s.defaultMaxCheckouts,
		PasswordHash: in.PasswordHash,
	}
	if user.Role == "" {
		user.Role = entities.UserRoleUser
	}
	if in.MaxCheckouts != nil {
		user.MaxCheckouts = *in.MaxCheckouts
	}

	if err := s.insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) insert(ctx context.Context, user *entities.User) error {
	if err := users.NewRepository(s.db.WithContext(ctx)).Create(user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with email %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	s.dispatcher.Dispatch(ctx, ChangeEvent{Entity: EntityUser, ID: user.ID, Op: ChangeCreated})
	return nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user, err := users.NewRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	user, err := users.NewRepository(s.db.WithContext(ctx)).GetByEmail(strings.TrimSpace(email))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, f UserFilter, page entities.Page) (entities.PageResult[entities.User], error) {
	page = page.Normalize()
	if f.Role != "" && !f.Role.Valid() {
		return entities.PageResult[entities.User]{}, invalidInput("unknown role %q", f.Role)
	}
	rows, total, err := users.NewRepository(s.db.WithContext(ctx)).List(f, page)
	if err != nil {
		return entities.PageResult[entities.User]{}, fmt.Errorf("list users: %w", err)
	}
	return entities.NewPageResult(rows, total, page), nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*entities.User, error) {
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	setIf(fields, "email", in.Email)
	setIf(fields, "name", in.Name)
	setIf(fields, "role", in.Role)
	setIf(fields, "is_active", in.IsActive)
	setIf(fields, "max_checkouts", in.MaxCheckouts)

	repo := users.NewRepository(s.db.WithContext(ctx))
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}
	if err := repo.UpdateFields(id, fields); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user with email %s: %w", *in.Email, ErrDuplicate)
		}
		return nil, notFound(err, ErrUserNotFound)
	}

	s.dispatcher.Dispatch(ctx, ChangeEvent{Entity: EntityUser, ID: id, Op: ChangeUpdated})
	return s.Get(ctx, id)
}

// SetPassword replaces the stored password hash.
func (s *UserService) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	err := users.NewRepository(s.db.WithContext(ctx)).UpdateFields(id, map[string]any{"password_hash": hash})
	return notFound(err, ErrUserNotFound)
}

// Delete removes an account that has never borrowed anything. Accounts with
// loan history are deactivated instead.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		if _, err := repo.GetByID(id); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		has, err := repo.HasCheckouts(id)
		if err != nil {
			return fmt.Errorf("check user checkouts: %w", err)
		}
		if has {
			return ErrUserHasCheckouts
		}
		return notFound(repo.Delete(id), ErrUserNotFound)
	})
}

// EnsureFromIdentity returns the local account for an externally
// authenticated caller, creating a USER account on first sight. The external
// id is reused as the local id when it is a UUID.
func (s *UserService) EnsureFromIdentity(ctx context.Context, ident ExternalIdentity) (*entities.User, error) {
	repo := users.NewRepository(s.db.WithContext(ctx))
	email := strings.ToLower(strings.TrimSpace(ident.Email))

	externalID, parseErr := uuid.Parse(ident.ID)
	if parseErr == nil {
		user, err := repo.GetByID(externalID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if email == "" {
		return nil, fmt.Errorf("%w: identity has no email", ErrUnauthorized)
	}
	if user, err := repo.GetByEmail(email); err == nil {
		return user, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	name := strings.TrimSpace(ident.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user := &entities.User{
		Email:        email,
		Name:         name,
		Role:         entities.UserRoleUser,
		IsActive:     true,
		MaxCheckouts: s.defaultMaxCheckouts,
	}
	if parseErr == nil {
		user.ID = externalID
	}

	if err := s.insert(ctx, user); err != nil {
		// Lost a race with a concurrent first request from the same caller.
		if existing, getErr := repo.GetByEmail(email); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return user, nil
}
