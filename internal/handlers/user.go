package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

// UserHandler exposes the admin user directory. All routes sit behind
// AdminRequired.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{userService: services.NewUserService(db)}
}

// List handles GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// Get handles GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	user, err := h.userService.Get(uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// Create handles POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.userService.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	callerID := middleware.GetUserID(c)
	services.LogInfo("user", "create", "created user "+user.Username, &callerID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Created(c, user)
}

// Update handles PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.userService.Update(uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// ResetPassword handles POST /api/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "password (min 6 chars) is required")
		return
	}

	if err := h.userService.ResetPassword(uint(id), &req); err != nil {
		response.Error(c, err)
		return
	}

	callerID := middleware.GetUserID(c)
	services.LogInfo("user", "reset_password", "reset password for user "+c.Param("id"), &callerID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Success(c, nil)
}

// Delete handles DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	if uint(id) == middleware.GetUserID(c) {
		response.BadRequest(c, "cannot delete your own account")
		return
	}

	if err := h.userService.Delete(uint(id)); err != nil {
		response.Error(c, err)
		return
	}

	callerID := middleware.GetUserID(c)
	services.LogInfo("user", "delete", "deleted user "+c.Param("id"), &callerID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Success(c, nil)
}
