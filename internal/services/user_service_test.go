package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/entities"
)

func TestUserService_Create(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewUserService(setupTestDB(t), dispatcher, 5)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: " Ada@Example.com ", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, entities.UserRoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, 5, user.MaxCheckouts)
	assert.Equal(t, []ChangeEvent{{Entity: EntityUser, ID: user.ID, Op: ChangeCreated}}, dispatcher.Events())

	_, err = svc.Create(ctx, CreateUserInput{Email: "ada@example.com", Name: "Other"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.Create(ctx, CreateUserInput{Email: "not-an-email", Name: "X"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, CreateUserInput{Email: "x@example.com", Name: "X", Role: "ROOT"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	zero := 0
	limited, err := svc.Create(ctx, CreateUserInput{Email: "zero@example.com", Name: "Z", MaxCheckouts: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0, limited.MaxCheckouts)
}

func TestUserService_Update(t *testing.T) {
	svc := NewUserService(setupTestDB(t), &recordingDispatcher{}, 5)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateUserInput{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateUserInput{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	inactive := false
	role := entities.UserRoleAdmin
	updated, err := svc.Update(ctx, user.ID, UpdateUserInput{IsActive: &inactive, Role: &role})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, entities.UserRoleAdmin, updated.Role)

	taken := "bob@example.com"
	_, err = svc.Update(ctx, user.ID, UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, ErrDuplicate)

	name := "Nobody"
	_, err = svc.Update(ctx, uuid.New(), UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_Delete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db, &recordingDispatcher{}, 5)
	ctx := context.Background()
	reader := seedUser(t, db, "reader@example.com", 5)
	idle := seedUser(t, db, "idle@example.com", 5)
	book := seedBook(t, db, "1", 1)

	loans := NewCheckoutService(db, &recordingDispatcher{}, testPolicy)
	checkout, err := loans.Create(ctx, CreateCheckoutInput{UserID: reader.ID, BookID: book.ID})
	require.NoError(t, err)
	_, err = loans.Return(ctx, checkout.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, reader.ID), ErrUserHasCheckouts, "loan history blocks deletion")
	require.NoError(t, svc.Delete(ctx, idle.ID))
	assert.ErrorIs(t, svc.Delete(ctx, idle.ID), ErrUserNotFound)
}

func TestUserService_EnsureFromIdentity(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := NewUserService(setupTestDB(t), dispatcher, 5)
	ctx := context.Background()
	externalID := uuid.New()

	user, err := svc.EnsureFromIdentity(ctx, ExternalIdentity{ID: externalID.String(), Email: "new@example.com", Name: "New Reader"})
	require.NoError(t, err)
	assert.Equal(t, externalID, user.ID)
	assert.Equal(t, entities.UserRoleUser, user.Role)
	assert.Equal(t, 5, user.MaxCheckouts)
	assert.True(t, user.IsActive)

	again, err := svc.EnsureFromIdentity(ctx, ExternalIdentity{ID: externalID.String(), Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Len(t, dispatcher.Events(), 1, "created once")

	byEmail, err := svc.EnsureFromIdentity(ctx, ExternalIdentity{ID: "auth0|123", Email: "NEW@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	nameless, err := svc.EnsureFromIdentity(ctx, ExternalIdentity{ID: "auth0|456", Email: "grace@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "grace", nameless.Name)

	_, err = svc.EnsureFromIdentity(ctx, ExternalIdentity{ID: "auth0|789"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
