package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/metadata"
)

func TestBookService_Create(t *testing.T) {
	db := setupTestDB(t)
	dispatcher := &recordingDispatcher{}
	svc := NewBookService(db, nil, dispatcher)
	ctx := context.Background()

	book, err := svc.Create(ctx, CreateBookInput{
		ISBN:        "978-0-441-17271-9",
		Title:       "Dune",
		Author:      "Frank Herbert",
		TotalCopies: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "9780441172719", book.ISBN)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.Equal(t, []ChangeEvent{{Entity: EntityBook, ID: book.ID, Op: ChangeCreated}}, dispatcher.Events())

	_, err = svc.Create(ctx, CreateBookInput{ISBN: "9780441172719", Title: "Dune", Author: "Frank Herbert"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookService_CreateValidation(t *testing.T) {
	svc := NewBookService(setupTestDB(t), nil, &recordingDispatcher{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateBookInput{Title: "No ISBN", Author: "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, CreateBookInput{ISBN: "9780441172719", Title: "T", Author: "A", TotalCopies: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, CreateBookInput{ISBN: "9780441172719"})
	assert.ErrorIs(t, err, ErrInvalidInput, "title and author required without metadata")
}

func TestBookService_CreateEnrichedFromMetadata(t *testing.T) {
	provider := &stubMetadata{meta: &metadata.BookMetadata{
		Title:           "Dune",
		Author:          "Frank Herbert",
		Publisher:       "Ace",
		PublicationYear: 1990,
		CoverURL:        "https://covers.openlibrary.org/b/isbn/9780441172719-L.jpg",
		Subjects:        []string{"Science Fiction"},
	}}
	svc := NewBookService(setupTestDB(t), provider, &recordingDispatcher{})

	book, err := svc.Create(context.Background(), CreateBookInput{ISBN: "9780441172719", TotalCopies: 1})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, "Ace", book.Publisher)
	assert.Equal(t, 1990, book.PublishedYear)
	assert.Equal(t, "Science Fiction", book.Genre)
}

func TestBookService_UpdateCopies(t *testing.T) {
	db := setupTestDB(t)
	svc := NewBookService(db, nil, &recordingDispatcher{})
	ctx := context.Background()
	book := seedBook(t, db, "1", 3)
	user := seedUser(t, db, "ada@example.com", 5)
	loans := NewCheckoutService(db, &recordingDispatcher{}, testPolicy)
	_, err := loans.Create(ctx, CreateCheckoutInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	_, err = loans.Create(ctx, CreateCheckoutInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	title := "Renamed"
	total := 5
	updated, err := svc.Update(ctx, book.ID, UpdateBookInput{Title: &title, TotalCopies: &total})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 3, updated.AvailableCopies)

	total = 1
	_, err = svc.Update(ctx, book.ID, UpdateBookInput{TotalCopies: &total})
	assert.ErrorIs(t, err, ErrCopiesOnLoan)

	got, err := svc.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalCopies, "failed resize leaves the book unchanged")

	_, err = svc.Update(ctx, uuid.New(), UpdateBookInput{Title: &title})
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookService_Delete(t *testing.T) {
	db := setupTestDB(t)
	dispatcher := &recordingDispatcher{}
	svc := NewBookService(db, nil, dispatcher)
	ctx := context.Background()
	book := seedBook(t, db, "1", 1)
	user := seedUser(t, db, "ada@example.com", 5)
	loans := NewCheckoutService(db, &recordingDispatcher{}, testPolicy)

	checkout, err := loans.Create(ctx, CreateCheckoutInput{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, book.ID), ErrBookOnLoan)
	assert.Empty(t, dispatcher.Events(), "rejected delete dispatches nothing")

	_, err = loans.Return(ctx, checkout.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, book.ID))
	assert.Equal(t, []ChangeEvent{{Entity: EntityBook, ID: book.ID, Op: ChangeUpdated}}, dispatcher.Events())

	_, err = svc.Get(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, book.ID), ErrBookNotFound)

	history, err := loans.Get(ctx, checkout.ID)
	require.NoError(t, err)
	assert.Equal(t, "Title 1", history.Book.Title, "loan history keeps the book summary")
}

func TestBookService_List(t *testing.T) {
	db := setupTestDB(t)
	svc := NewBookService(db, nil, &recordingDispatcher{})
	for _, isbn := range []string{"1", "2", "3"} {
		seedBook(t, db, isbn, 1)
	}

	page, err := svc.List(context.Background(), BookFilter{}, entities.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
}

func TestBookService_LookupISBN(t *testing.T) {
	ctx := context.Background()

	_, err := NewBookService(setupTestDB(t), nil, &recordingDispatcher{}).LookupISBN(ctx, "9780441172719")
	assert.ErrorIs(t, err, ErrMetadataDisabled)

	svc := NewBookService(setupTestDB(t), &stubMetadata{err: metadata.ErrNotFound}, &recordingDispatcher{})
	_, err = svc.LookupISBN(ctx, "9780441172719")
	assert.ErrorIs(t, err, ErrISBNNotFound)

	svc = NewBookService(setupTestDB(t), &stubMetadata{err: errors.New("boom")}, &recordingDispatcher{})
	_, err = svc.LookupISBN(ctx, "9780441172719")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
