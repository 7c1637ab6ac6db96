package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

type DocumentHandler struct {
	documentService *services.DocumentService
}

func NewDocumentHandler(db *gorm.DB) *DocumentHandler {
	return &DocumentHandler{documentService: services.NewDocumentService(db)}
}

func documentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid document id")
		return 0, false
	}
	return uint(id), true
}

// List handles GET /api/projects/:id/documents
func (h *DocumentHandler) List(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var req services.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters")
		return
	}

	docs, err := h.documentService.List(middleware.GetUserID(c), pid, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, docs)
}

// Create handles POST /api/projects/:id/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}

	var req services.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "step, title and content are required")
		return
	}

	doc, err := h.documentService.Create(middleware.GetUserID(c), pid, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Get handles GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, doc)
}

// Edit handles PUT /api/documents/:id
func (h *DocumentHandler) Edit(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	var req services.EditDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	doc, err := h.documentService.Edit(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, doc)
}

// Submit handles POST /api/documents/:id/submit
func (h *DocumentHandler) Submit(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.SubmitForApproval(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, doc)
}

// Approve handles POST /api/documents/:id/approve
func (h *DocumentHandler) Approve(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Approve(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	services.LogInfo("document", "approve", "approved document "+c.Param("id"), &userID, c.ClientIP(), c.Request.UserAgent(), nil)

	response.Success(c, doc)
}

// Reject handles POST /api/documents/:id/reject
func (h *DocumentHandler) Reject(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	var req services.RejectDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "reason is required")
		return
	}

	doc, err := h.documentService.Reject(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, doc)
}
