package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectMemberHandler struct {
	memberService *services.MembershipService
}

func NewProjectMemberHandler(db *gorm.DB) *ProjectMemberHandler {
	return &ProjectMemberHandler{memberService: services.NewMembershipService(db)}
}

// List handles GET /api/projects/:id/members
func (h *ProjectMemberHandler) List(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	members, err := h.memberService.List(middleware.GetUserID(c), pid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// Add handles POST /api/projects/:id/members
func (h *ProjectMemberHandler) Add(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id and role are required")
		return
	}

	member, err := h.memberService.Add(middleware.GetUserID(c), pid, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// UpdateRole handles PUT /api/projects/:id/members/:user_id
func (h *ProjectMemberHandler) UpdateRole(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	memberUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	var req services.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "role is required")
		return
	}

	member, err := h.memberService.UpdateRole(middleware.GetUserID(c), pid, uint(memberUserID), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// Remove handles DELETE /api/projects/:id/members/:user_id
func (h *ProjectMemberHandler) Remove(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	memberUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	if err := h.memberService.Remove(middleware.GetUserID(c), pid, uint(memberUserID)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
