package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/metadata"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, events ...ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *recordingDispatcher) Events() []ChangeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ChangeEvent(nil), d.events...)
}

type stubMetadata struct {
	meta *metadata.BookMetadata
	err  error
}

func (s *stubMetadata) SearchByISBN(_ context.Context, _ string) (*metadata.BookMetadata, error) {
	return s.meta, s.err
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(config.Database{
		Driver: config.DatabaseDriverSQLite,
		Path:   filepath.Join(t.TempDir(), "services.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

var testPolicy = LoanPolicy{
	LoanPeriod:    14 * 24 * time.Hour,
	RenewalPeriod: 14 * 24 * time.Hour,
	MaxRenewals:   2,
}

func seedUser(t *testing.T, db *gorm.DB, email string, maxCheckouts int) *entities.User {
	t.Helper()
	user := &entities.User{
		Email:        email,
		Name:         email,
		Role:         entities.UserRoleUser,
		IsActive:     true,
		MaxCheckouts: maxCheckouts,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedBook(t *testing.T, db *gorm.DB, isbn string, copies int) *entities.Book {
	t.Helper()
	book := &entities.Book{
		ISBN:            isbn,
		Title:           "Title " + isbn,
		Author:          "Author " + isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func reloadBook(t *testing.T, db *gorm.DB, book *entities.Book) *entities.Book {
	t.Helper()
	var got entities.Book
	require.NoError(t, db.Unscoped().Where("id = ?", book.ID).First(&got).Error)
	return &got
}

func countCheckouts(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&entities.Checkout{}).Count(&n).Error)
	return n
}
