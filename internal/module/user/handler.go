package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/middleware"
	"github.com/medilab/backend/internal/pkg"
)

// UserHandler handles REST API requests for the user resource.
type UserHandler struct {
	svc domain.UserService
}

// NewUserHandler creates a new UserHandler with the given service.
func NewUserHandler(svc domain.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), req.toUser(), req.Password)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, pkg.Response{
		Code:    http.StatusCreated,
		Message: "success",
		Data:    user,
	})
}

// Get handles GET /api/v1/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// GetMe handles GET /api/v1/users/me for the authenticated user.
func (h *UserHandler) GetMe(c *gin.Context) {
	username := middleware.Username(c)
	if username == "" {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}

	user, err := h.svc.GetCurrentUser(c.Request.Context(), username)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// GetUsernameByEmail handles GET /api/v1/users/email/:email.
func (h *UserHandler) GetUsernameByEmail(c *gin.Context) {
	email := c.Param("email")

	username, err := h.svc.GetUsernameByEmail(c.Request.Context(), email)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, gin.H{"username": username})
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(c *gin.Context) {
	req := pkg.ParsePageRequest(c)

	result, err := h.svc.ListUsers(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result)
}

// Update handles PUT /api/v1/users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	var req UpdateUserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), id, req.toUpdate())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// UpdateMe handles PUT /api/v1/users/me for the authenticated user.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	username := middleware.Username(c)
	if username == "" {
		pkg.Error(c, domain.ErrUnauthorized)
		return
	}

	var req UpdateUserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.UpdateCurrentUser(c.Request.Context(), username, req.toUpdate())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// Delete handles DELETE /api/v1/users/:id (soft delete).
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, nil)
}

// Restore handles PUT /api/v1/users/:id/restore.
func (h *UserHandler) Restore(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	user, err := h.svc.RestoreUser(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// AddRole handles PUT /api/v1/users/:id/roles/:role.
func (h *UserHandler) AddRole(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	user, err := h.svc.AddRole(c.Request.Context(), id, c.Param("role"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// RemoveRole handles DELETE /api/v1/users/:id/roles/:role.
func (h *UserHandler) RemoveRole(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	user, err := h.svc.RemoveRole(c.Request.Context(), id, c.Param("role"))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, user)
}

// parseID extracts and validates the :id path parameter.
func parseID(c *gin.Context) (uint, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
