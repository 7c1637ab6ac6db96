package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

// SystemLogHandler exposes the operational audit log. Admin only.
type SystemLogHandler struct {
	logService *services.SystemLogService
}

func NewSystemLogHandler(db *gorm.DB) *SystemLogHandler {
	return &SystemLogHandler{logService: services.NewSystemLogService(db)}
}

// List handles GET /api/system/logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	result, err := h.logService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Modules handles GET /api/system/logs/modules
func (h *SystemLogHandler) Modules(c *gin.Context) {
	modules, err := h.logService.GetModules()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, modules)
}

// GetRetention handles GET /api/system/logs/retention
func (h *SystemLogHandler) GetRetention(c *gin.Context) {
	response.Success(c, gin.H{"retention_days": h.logService.GetRetentionDays()})
}

type setRetentionRequest struct {
	RetentionDays int `json:"retention_days" binding:"required,min=1,max=3650"`
}

// SetRetention handles PUT /api/system/logs/retention
func (h *SystemLogHandler) SetRetention(c *gin.Context) {
	var req setRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "retention_days must be between 1 and 3650")
		return
	}

	if err := h.logService.SetRetentionDays(req.RetentionDays); err != nil {
		response.Error(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	services.LogInfo("system", "set_log_retention", "changed log retention", &userID, c.ClientIP(), c.Request.UserAgent(),
		gin.H{"retention_days": req.RetentionDays})

	response.Success(c, gin.H{"retention_days": req.RetentionDays})
}

// Cleanup handles POST /api/system/logs/cleanup, forcing an immediate
// retention sweep.
func (h *SystemLogHandler) Cleanup(c *gin.Context) {
	deleted, err := h.logService.CleanupOldLogs(h.logService.GetRetentionDays())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}
