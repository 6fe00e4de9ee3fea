package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/services"
)

var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", services.ErrUnauthorized)

// UserStore is the part of the user service that authentication needs.
type UserStore interface {
	Create(ctx context.Context, in services.CreateUserInput) (*entities.User, error)
	Get(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	EnsureFromIdentity(ctx context.Context, ident services.ExternalIdentity) (*entities.User, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *entities.User `json:"user"`
}

// Service handles password registration and login for AUTH_MODE=local.
type Service struct {
	users  UserStore
	tokens *TokenService
	config config.Auth
}

func NewService(users UserStore, tokens *TokenService, cfg config.Auth) *Service {
	return &Service{users: users, tokens: tokens, config: cfg}
}

// Register creates a USER account with a password. Staff accounts are
// created by staff or the create-admin command.
func (s *Service) Register(ctx context.Context, email, name, password string) (*Session, error) {
	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, services.CreateUserInput{
		Email:        email,
		Name:         name,
		Role:         entities.UserRoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks credentials. Unknown emails and wrong passwords return the
// same error.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, services.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, services.ErrUserInactive
	}
	return s.issue(user)
}

func (s *Service) issue(user *entities.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
