package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/services"
)

type UsersController struct {
	users UserService
}

func NewUsersController(users UserService) *UsersController {
	return &UsersController{users: users}
}

// List handles GET /api/users?q=&role=&active=&limit=&offset= (staff only).
func (uc *UsersController) List(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	active, ok := parseOptionalBoolQuery(c, "active")
	if !ok {
		return
	}

	result, err := uc.users.List(c.Request.Context(), services.UserFilter{
		Query:    c.Query("q"),
		Role:     entities.UserRole(c.Query("role")),
		IsActive: active,
	}, page)
	if err != nil {
		respondServiceError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (uc *UsersController) Create(c *gin.Context) {
	var in services.CreateUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := uc.users.Create(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "create user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Me returns the caller's own account.
func (uc *UsersController) Me(c *gin.Context) {
	user := auth.GetUser(c)
	if user == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no account for this caller"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UsersController) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if !principal(c).CanAccess(id) {
		respondForbidden(c)
		return
	}
	user, err := uc.users.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UsersController) GetByEmail(c *gin.Context) {
	user, err := uc.users.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondServiceError(c, err, "get user by email")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update lets staff change any field. Other callers may only rename
// themselves.
func (uc *UsersController) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	p := principal(c)
	if !p.CanAccess(id) {
		respondForbidden(c)
		return
	}

	var in services.UpdateUserInput
	if !bindJSON(c, &in) {
		return
	}
	if !p.IsStaff() && (in.Email != nil || in.Role != nil || in.IsActive != nil || in.MaxCheckouts != nil) {
		respondForbidden(c)
		return
	}

	user, err := uc.users.Update(c.Request.Context(), id, in)
	if err != nil {
		respondServiceError(c, err, "update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UsersController) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := uc.users.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete user")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "user deleted"})
}
