package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	activityService *services.ActivityService
}

func NewActivityHandler(db *gorm.DB) *ActivityHandler {
	return &ActivityHandler{activityService: services.NewActivityService(db)}
}

// List handles GET /api/projects/:id/activities
func (h *ActivityHandler) List(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var req services.ActivityListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	result, err := h.activityService.List(middleware.GetUserID(c), pid, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Record handles POST /api/projects/:id/activities
func (h *ActivityHandler) Record(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var req services.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "type is required")
		return
	}

	activity, err := h.activityService.RecordManual(middleware.GetUserID(c), pid, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Stats handles GET /api/projects/:id/stats
func (h *ActivityHandler) Stats(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	stats, err := h.activityService.ComputeStats(middleware.GetUserID(c), pid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
