package checkouts

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/library/internal/entities"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo *Repository
	db   *gorm.DB
	user *entities.User
	book *entities.Book
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "checkouts.db")

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.Book{}, &entities.Checkout{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	user := &entities.User{Name: "Ada", Email: "ada@example.com", Role: entities.UserRoleUser, IsActive: true, MaxCheckouts: 5}
	require.NoError(t, db.Create(user).Error)
	book := &entities.Book{ISBN: "9780441172719", Title: "Dune", Author: "Frank Herbert", TotalCopies: 5, AvailableCopies: 5}
	require.NoError(t, db.Create(book).Error)

	return &fixture{repo: NewRepository(db), db: db, user: user, book: book}
}

func (f *fixture) checkout(t *testing.T, due time.Time) *entities.Checkout {
	t.Helper()
	c := &entities.Checkout{
		UserID:       f.user.ID,
		BookID:       f.book.ID,
		Status:       entities.CheckoutStatusActive,
		CheckedOutAt: due.Add(-14 * 24 * time.Hour),
		DueDate:      due,
		MaxRenewals:  2,
	}
	require.NoError(t, f.repo.Create(c))
	return c
}

func TestRepository_CreateAndGet(t *testing.T) {
	f := setupTestDB(t)
	created := f.checkout(t, now.Add(24*time.Hour))

	got, err := f.repo.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	require.NotNil(t, got.Book)
	assert.Equal(t, "Ada", got.User.Name)
	assert.Equal(t, "Dune", got.Book.Title)

	_, err = f.repo.GetByID(uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_GetByID_DeletedBookStillLoaded(t *testing.T) {
	f := setupTestDB(t)
	created := f.checkout(t, now)
	require.NoError(t, f.db.Delete(f.book).Error)

	got, err := f.repo.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Book)
	assert.Equal(t, "Dune", got.Book.Title)
}

func TestRepository_MarkReturned(t *testing.T) {
	f := setupTestDB(t)
	c := f.checkout(t, now)

	ok, err := f.repo.MarkReturned(c.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.repo.GetForUpdate(c.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CheckoutStatusReturned, got.Status)
	require.NotNil(t, got.ReturnedAt)
	assert.True(t, got.ReturnedAt.Equal(now))

	ok, err = f.repo.MarkReturned(c.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "already returned")
}

func TestRepository_ReturnedRequiresTimestamp(t *testing.T) {
	f := setupTestDB(t)
	c := f.checkout(t, now)

	err := f.db.Model(&entities.Checkout{}).Where("id = ?", c.ID).Update("status", entities.CheckoutStatusReturned).Error
	assert.Error(t, err, "RETURNED without returned_at violates the check constraint")
}

func TestRepository_Extend(t *testing.T) {
	f := setupTestDB(t)
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := f.checkout(t, due)

	ok, err := f.repo.Extend(c.ID, due.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.repo.Extend(c.ID, due.AddDate(0, 0, 28))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.repo.Extend(c.ID, due.AddDate(0, 0, 42))
	require.NoError(t, err)
	assert.False(t, ok, "renewal cap reached")

	got, err := f.repo.GetForUpdate(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RenewalCount)
	assert.True(t, got.DueDate.Equal(due.AddDate(0, 0, 28)))
}

func TestRepository_List(t *testing.T) {
	f := setupTestDB(t)
	overdue := f.checkout(t, now.Add(-time.Hour))
	current := f.checkout(t, now.Add(time.Hour))
	returned := f.checkout(t, now.Add(-48*time.Hour))
	_, err := f.repo.MarkReturned(returned.ID, now)
	require.NoError(t, err)

	other := &entities.User{Name: "Bob", Email: "bob@example.com", Role: entities.UserRoleUser, IsActive: true, MaxCheckouts: 5}
	require.NoError(t, f.db.Create(other).Error)
	require.NoError(t, f.repo.Create(&entities.Checkout{
		UserID: other.ID, BookID: f.book.ID, Status: entities.CheckoutStatusActive,
		CheckedOutAt: now, DueDate: now.Add(time.Hour), MaxRenewals: 2,
	}))

	yes, no := true, false
	tests := []struct {
		name   string
		filter Filter
		want   []uuid.UUID
		total  int64
	}{
		{"by user", Filter{UserID: &f.user.ID}, nil, 3},
		{"status active includes overdue", Filter{UserID: &f.user.ID, Status: entities.CheckoutStatusActive}, nil, 2},
		{"status overdue", Filter{Status: entities.CheckoutStatusOverdue}, []uuid.UUID{overdue.ID}, 1},
		{"overdue flag", Filter{Overdue: &yes}, []uuid.UUID{overdue.ID}, 1},
		{"not overdue", Filter{UserID: &f.user.ID, Overdue: &no}, nil, 2},
		{"returned", Filter{Status: entities.CheckoutStatusReturned}, []uuid.UUID{returned.ID}, 1},
		{"by book", Filter{BookID: &f.book.ID}, nil, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := f.repo.List(tt.filter, entities.Page{Limit: 20}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			if tt.want != nil {
				var ids []uuid.UUID
				for _, c := range items {
					ids = append(ids, c.ID)
				}
				assert.ElementsMatch(t, tt.want, ids)
			}
			for _, c := range items {
				assert.NotNil(t, c.Book)
				assert.NotNil(t, c.User)
			}
		})
	}

	items, total, err := f.repo.List(Filter{}, entities.Page{Limit: 1, Offset: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 1)
	_ = current
}

func TestRepository_OverdueQueries(t *testing.T) {
	f := setupTestDB(t)
	a := f.checkout(t, now.Add(-72*time.Hour))
	b := f.checkout(t, now.Add(-time.Hour))
	f.checkout(t, now.Add(time.Hour))

	overdue, err := f.repo.ListOverdue(now)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, a.ID, overdue[0].ID, "oldest due first")

	ok, err := f.repo.MarkOverdueEmailSent(a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.repo.MarkOverdueEmailSent(a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "flag already set")

	pending, err := f.repo.ListOverdueUnnotified(now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
	assert.Equal(t, "ada@example.com", pending[0].User.Email)
}

func TestCheckoutStatusConstraint(t *testing.T) {
	f := setupTestDB(t)
	returnedAt := now

	tests := []struct {
		name    string
		status  entities.CheckoutStatus
		retAt   *time.Time
		wantErr bool
	}{
		{name: "active", status: entities.CheckoutStatusActive},
		{name: "returned", status: entities.CheckoutStatusReturned, retAt: &returnedAt},
		{name: "overdue is derived, not stored", status: entities.CheckoutStatusOverdue, wantErr: true},
		{name: "returned without timestamp", status: entities.CheckoutStatusReturned, wantErr: true},
		{name: "active with return timestamp", status: entities.CheckoutStatusActive, retAt: &returnedAt, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.repo.Create(&entities.Checkout{
				UserID:       f.user.ID,
				BookID:       f.book.ID,
				Status:       tt.status,
				CheckedOutAt: now.Add(-time.Hour),
				DueDate:      now.Add(time.Hour),
				ReturnedAt:   tt.retAt,
				MaxRenewals:  2,
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("existing row cannot be switched to overdue", func(t *testing.T) {
		c := f.checkout(t, now.Add(-time.Hour))
		err := f.db.Model(&entities.Checkout{}).Where("id = ?", c.ID).Update("status", entities.CheckoutStatusOverdue).Error
		assert.Error(t, err)
	})
}
