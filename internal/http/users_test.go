package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/services"
)

func ptr[T any](v T) *T { return &v }

func TestUsersController_SelfService(t *testing.T) {
	env := newTestEnv(t, nil)
	reader, token := env.seedUser(t, "reader@example.com", entities.UserRoleUser, 5)
	other, _ := env.seedUser(t, "other@example.com", entities.UserRoleUser, 5)
	path := "/api/users/" + reader.ID.String()

	w := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reader.ID, decode[entities.User](t, w).ID)

	w = env.do(t, http.MethodPut, path, token, services.UpdateUserInput{Name: ptr("Renamed")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode[entities.User](t, w).Name)

	role := entities.UserRoleAdmin
	w = env.do(t, http.MethodPut, path, token, services.UpdateUserInput{Role: &role})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, path, token, services.UpdateUserInput{MaxCheckouts: ptr(50)})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/users/"+other.ID.String(), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUsersController_StaffManagement(t *testing.T) {
	env := newTestEnv(t, nil)
	_, adminToken := env.seedUser(t, "admin@example.com", entities.UserRoleAdmin, 5)

	w := env.do(t, http.MethodPost, "/api/users", adminToken, services.CreateUserInput{
		Email: "New@Example.com", Name: "New Reader", Role: entities.UserRoleUser,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[entities.User](t, w)
	assert.Equal(t, "new@example.com", created.Email)

	w = env.do(t, http.MethodGet, "/api/users/email/new@example.com", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[entities.User](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/users?role=USER", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[entities.PageResult[entities.User]](t, w).Total)

	w = env.do(t, http.MethodPut, "/api/users/"+created.ID.String(), adminToken, services.UpdateUserInput{IsActive: ptr(false)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[entities.User](t, w).IsActive)

	w = env.do(t, http.MethodDelete, "/api/users/"+created.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/users/"+created.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsersController_InactiveTokenRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	reader, token := env.seedUser(t, "reader@example.com", entities.UserRoleUser, 5)
	require.NoError(t, env.db.Model(reader).Update("is_active", false).Error)

	w := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
