package http

import (
	"context"

	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/metadata"
	"github.com/mrlokans/library/internal/overdue"
	"github.com/mrlokans/library/internal/services"
)

// Each controller depends on the narrow slice of a service it calls, so
// handlers can be tested against fakes.

type BookService interface {
	Create(ctx context.Context, in services.CreateBookInput) (*entities.Book, error)
	Get(ctx context.Context, id uuid.UUID) (*entities.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*entities.Book, error)
	List(ctx context.Context, f services.BookFilter, page entities.Page) (entities.PageResult[entities.Book], error)
	Update(ctx context.Context, id uuid.UUID, in services.UpdateBookInput) (*entities.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
	LookupISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, error)
}

type UserService interface {
	Create(ctx context.Context, in services.CreateUserInput) (*entities.User, error)
	Get(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	List(ctx context.Context, f services.UserFilter, page entities.Page) (entities.PageResult[entities.User], error)
	Update(ctx context.Context, id uuid.UUID, in services.UpdateUserInput) (*entities.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CheckoutService interface {
	Create(ctx context.Context, in services.CreateCheckoutInput) (*entities.CheckoutDetails, error)
	Return(ctx context.Context, id uuid.UUID) (*entities.CheckoutDetails, error)
	Renew(ctx context.Context, id uuid.UUID) (*entities.CheckoutDetails, error)
	Get(ctx context.Context, id uuid.UUID) (*entities.CheckoutDetails, error)
	List(ctx context.Context, f services.CheckoutFilter, page entities.Page) (entities.PageResult[entities.CheckoutDetails], error)
	ListOverdue(ctx context.Context) ([]entities.CheckoutDetails, error)
	ListOverdueEmailFailures(ctx context.Context, checkoutID *uuid.UUID, page entities.Page) (entities.PageResult[entities.OverdueEmailFailure], error)
}

// OverdueRunner runs an overdue sweep on demand.
type OverdueRunner interface {
	Run(ctx context.Context) (overdue.Result, error)
}

// Authenticator handles password registration and login.
type Authenticator interface {
	Register(ctx context.Context, email, name, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}
