package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/metadata"
)

var (
	ErrISBNNotFound     = fmt.Errorf("isbn %w", ErrNotFound)
	ErrMetadataDisabled = fmt.Errorf("metadata lookup is disabled: %w", ErrNotFound)
)

type CreateBookInput struct {
	ISBN          string `json:"isbn" validate:"required,min=10,max=20"`
	Title         string `json:"title" validate:"max=512"`
	Author        string `json:"author" validate:"max=256"`
	Publisher     string `json:"publisher" validate:"max=256"`
	PublishedYear int    `json:"published_year" validate:"gte=0,lte=3000"`
	Genre         string `json:"genre" validate:"max=100"`
	Description   string `json:"description"`
	CoverURL      string `json:"cover_url" validate:"omitempty,url,max=2048"`
	TotalCopies   int    `json:"total_copies" validate:"gte=0,lte=10000"`
}

// UpdateBookInput is a partial update; nil fields are left alone.
type UpdateBookInput struct {
	Title         *string `json:"title" validate:"omitempty,min=1,max=512"`
	Author        *string `json:"author" validate:"omitempty,min=1,max=256"`
	Publisher     *string `json:"publisher" validate:"omitempty,max=256"`
	PublishedYear *int    `json:"published_year" validate:"omitempty,gte=0,lte=3000"`
	Genre         *string `json:"genre" validate:"omitempty,max=100"`
	Description   *string `json:"description"`
	CoverURL      *string `json:"cover_url" validate:"omitempty,url,max=2048"`
	TotalCopies   *int    `json:"total_copies" validate:"omitempty,gte=0,lte=10000"`
}

type BookFilter = books.Filter

// BookService manages the catalog. Copy counters are only changed through
// the inventory ledger or by resizing the total.
type BookService struct {
	db         *gorm.DB
	metadata   MetadataProvider
	dispatcher EventDispatcher
}

// NewBookService creates a BookService. provider may be nil, which disables
// ISBN enrichment.
func NewBookService(db *gorm.DB, provider MetadataProvider, dispatcher EventDispatcher) *BookService {
	return &BookService{db: db, metadata: provider, dispatcher: dispatcher}
}

// Create adds a title to the catalog with all copies on the shelf. Missing
// title or author are filled in from the ISBN lookup when one is configured.
func (s *BookService) Create(ctx context.Context, in CreateBookInput) (*entities.Book, error) {
	in.ISBN = normalizeISBN(in.ISBN)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if (in.Title == "" || in.Author == "") && s.metadata != nil {
		s.enrich(ctx, &in)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Author) == "" {
		return nil, invalidInput("title and author are required")
	}

	book := &entities.Book{
		ISBN:            in.ISBN,
		Title:           in.Title,
		Author:          in.Author,
		Publisher:       in.Publisher,
		PublishedYear:   in.PublishedYear,
		Genre:           in.Genre,
		Description:     in.Description,
		CoverURL:        in.CoverURL,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}

	repo := books.NewRepository(s.db.WithContext(ctx))
	if err := repo.Create(book); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("book with isbn %s: %w", in.ISBN, ErrDuplicate)
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.dispatcher.Dispatch(ctx, ChangeEvent{Entity: EntityBook, ID: book.ID, Op: ChangeCreated})
	return book, nil
}

func (s *BookService) enrich(ctx context.Context, in *CreateBookInput) {
	meta, err := s.metadata.SearchByISBN(ctx, in.ISBN)
	if err != nil {
		log.Printf("[METADATA] ISBN %s lookup failed: %v", in.ISBN, err)
		return
	}
	if in.Title == "" {
		in.Title = meta.Title
	}
	if in.Author == "" {
		in.Author = meta.Author
	}
	if in.Publisher == "" {
		in.Publisher = meta.Publisher
	}
	if in.PublishedYear == 0 {
		in.PublishedYear = meta.PublicationYear
	}
	if in.Description == "" {
		in.Description = meta.Description
	}
	if in.CoverURL == "" {
		in.CoverURL = meta.CoverURL
	}
	if in.Genre == "" && len(meta.Subjects) > 0 {
		in.Genre = meta.Subjects[0]
	}
}

func (s *BookService) Get(ctx context.Context, id uuid.UUID) (*entities.Book, error) {
	book, err := books.NewRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return book, nil
}

func (s *BookService) GetByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	book, err := books.NewRepository(s.db.WithContext(ctx)).GetByISBN(normalizeISBN(isbn))
	if err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return book, nil
}

func (s *BookService) List(ctx context.Context, f BookFilter, page entities.Page) (entities.PageResult[entities.Book], error) {
	page = page.Normalize()
	if f.ISBN != "" {
		f.ISBN = normalizeISBN(f.ISBN)
	}
	rows, total, err := books.NewRepository(s.db.WithContext(ctx)).List(f, page)
	if err != nil {
		return entities.PageResult[entities.Book]{}, fmt.Errorf("list books: %w", err)
	}
	return entities.NewPageResult(rows, total, page), nil
}

// Update changes descriptive fields and, when TotalCopies is set, resizes the
// pool. Shrinking below the number of copies on loan is a conflict.
func (s *BookService) Update(ctx context.Context, id uuid.UUID, in UpdateBookInput) (*entities.Book, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	setIf(fields, "title", in.Title)
	setIf(fields, "author", in.Author)
	setIf(fields, "publisher", in.Publisher)
	setIf(fields, "published_year", in.PublishedYear)
	setIf(fields, "genre", in.Genre)
	setIf(fields, "description", in.Description)
	setIf(fields, "cover_url", in.CoverURL)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)
		if _, err := repo.GetByID(id); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		if err := repo.UpdateFields(id, fields); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		if in.TotalCopies != nil {
			ok, err := repo.ResizeCopies(id, *in.TotalCopies)
			if err != nil {
				return fmt.Errorf("resize copies: %w", err)
			}
			if !ok {
				return ErrCopiesOnLoan
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, ChangeEvent{Entity: EntityBook, ID: id, Op: ChangeUpdated})
	return s.Get(ctx, id)
}

// Delete removes a title from the catalog. Titles with copies on loan cannot
// be deleted; loan history keeps pointing at the soft-deleted row, and the
// mirror receives the row with deleted_at set.
func (s *BookService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)
		if _, err := repo.GetByID(id); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		active, err := repo.CountActiveCheckouts(id)
		if err != nil {
			return fmt.Errorf("count active checkouts: %w", err)
		}
		if active > 0 {
			return ErrBookOnLoan
		}
		return notFound(repo.Delete(id), ErrBookNotFound)
	})
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, ChangeEvent{Entity: EntityBook, ID: id, Op: ChangeUpdated})
	return nil
}

// LookupISBN returns bibliographic data for isbn without touching the catalog.
func (s *BookService) LookupISBN(ctx context.Context, isbn string) (*metadata.BookMetadata, error) {
	if s.metadata == nil {
		return nil, ErrMetadataDisabled
	}
	meta, err := s.metadata.SearchByISBN(ctx, isbn)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, ErrISBNNotFound
		}
		if errors.Is(err, metadata.ErrInvalidISBN) {
			return nil, invalidInput("invalid isbn %q", isbn)
		}
		return nil, fmt.Errorf("lookup isbn: %w", err)
	}
	return meta, nil
}

func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	return strings.ToUpper(strings.TrimSpace(isbn))
}

func setIf[T any](fields map[string]any, column string, v *T) {
	if v != nil {
		fields[column] = *v
	}
}
