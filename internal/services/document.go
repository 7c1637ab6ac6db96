package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentService owns the document workflow state machine:
//
//	private --submit (creator)--> pending_approval
//	pending_approval --approve (admin)--> official
//	pending_approval --reject (admin)--> private
//	official --edit (creator or admin)--> private
//
// Every transition runs as a single transaction with a status+version guarded
// update; a guard matching zero rows means the document changed since it was
// read and the transition fails with a conflict instead of overwriting.
type DocumentService struct {
	db       *gorm.DB
	access   *AccessService
	activity *ActivityService
}

func NewDocumentService(db *gorm.DB) *DocumentService {
	return &DocumentService{
		db:       db,
		access:   NewAccessService(db),
		activity: NewActivityService(db),
	}
}

type DocumentListRequest struct {
	Step   *int   `form:"step"`
	Status string `form:"status"`
}

type CreateDocumentRequest struct {
	Step    int    `json:"step" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type EditDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	// BaseVersion optionally pins the version the client edited against; a
	// mismatch fails with a conflict before anything is written.
	BaseVersion *int `json:"base_version"`
}

type RejectDocumentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// List returns the project's documents visible to the caller, optionally
// filtered by step and status. Visibility is applied after the query so the
// same predicate covers every read path.
func (s *DocumentService) List(userID, projectID uint, req *DocumentListRequest) ([]models.Document, error) {
	auth, err := s.access.RequireProjectAccess(userID, projectID)
	if err != nil {
		return nil, err
	}

	if req.Step != nil && !models.IsValidStep(*req.Step) {
		return nil, response.NewValidation(fmt.Sprintf("step must be between 1 and %d", models.StepCount))
	}

	query := s.db.Where("project_id = ?", projectID)
	if req.Step != nil {
		query = query.Where("step = ?", *req.Step)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var docs []models.Document
	if err := query.Order("step ASC, created_at DESC").Find(&docs).Error; err != nil {
		return nil, response.NewDatabaseError("failed to list documents")
	}

	return FilterDocuments(auth, docs), nil
}

// Get returns a single document if the caller may see it. An existing but
// invisible document reads as not found so draft existence is never leaked.
func (s *DocumentService) Get(userID, documentID uint) (*models.Document, error) {
	doc, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	auth, err := s.access.RequireProjectAccess(userID, doc.ProjectID)
	if err != nil {
		return nil, err
	}

	if !Visible(auth, doc) {
		return nil, response.NewNotFound("document not found")
	}

	return doc, nil
}

// Create adds a new private document at the given workflow step.
func (s *DocumentService) Create(userID, projectID uint, req *CreateDocumentRequest) (*models.Document, error) {
	if _, err := s.access.RequireProjectAccess(userID, projectID); err != nil {
		return nil, err
	}

	if !models.IsValidStep(req.Step) {
		return nil, response.NewValidation(fmt.Sprintf("step must be between 1 and %d", models.StepCount))
	}
	if req.Title == "" {
		return nil, response.NewValidation("title is required")
	}
	if req.Content == "" {
		return nil, response.NewValidation("content is required")
	}

	doc := models.Document{
		ProjectID: projectID,
		Step:      req.Step,
		Title:     req.Title,
		Content:   req.Content,
		Status:    models.StatusPrivate,
		Version:   1,
		CreatedBy: userID,
	}

	if err := s.db.Create(&doc).Error; err != nil {
		return nil, response.NewDatabaseError("failed to create document")
	}

	s.record(projectID, userID, models.ActivityDocumentCreated, doc.ID,
		map[string]interface{}{"step": doc.Step, "title": doc.Title},
		fmt.Sprintf("created document %q at step %d (%s)", doc.Title, doc.Step, doc.StepName()))

	return &doc, nil
}

// Edit updates a document's content. Only the creator or a global admin may
// edit. The version always increments; editing an official document demotes
// it back to private and clears its approval, since the edited content is no
// longer what was approved.
func (s *DocumentService) Edit(userID, documentID uint, req *EditDocumentRequest) (*models.Document, error) {
	doc, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	auth, err := s.access.RequireProjectAccess(userID, doc.ProjectID)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin() && doc.CreatedBy != userID {
		return nil, response.NewForbidden("only the document creator can edit it")
	}

	if req.Title == "" && req.Content == "" {
		return nil, response.NewValidation("nothing to update")
	}
	if req.BaseVersion != nil && *req.BaseVersion != doc.Version {
		return nil, response.NewConflict(
			fmt.Sprintf("document changed: edited version %d, current version %d", *req.BaseVersion, doc.Version))
	}

	updates := map[string]interface{}{
		"version":    doc.Version + 1,
		"updated_at": time.Now(),
	}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Content != "" {
		updates["content"] = req.Content
	}
	if doc.Status == models.StatusOfficial {
		updates["status"] = models.StatusPrivate
		updates["approved_by"] = nil
		updates["approved_at"] = nil
	}

	if err := s.transition(doc, updates); err != nil {
		return nil, err
	}

	updated, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	s.record(doc.ProjectID, userID, models.ActivityDocumentUpdated, doc.ID,
		map[string]interface{}{"version": updated.Version},
		fmt.Sprintf("updated document %q (v%d)", updated.Title, updated.Version))

	return updated, nil
}

// SubmitForApproval moves a private document into the approval queue. Only
// the creator may submit.
func (s *DocumentService) SubmitForApproval(userID, documentID uint) (*models.Document, error) {
	doc, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.access.RequireProjectAccess(userID, doc.ProjectID); err != nil {
		return nil, err
	}
	if doc.CreatedBy != userID {
		return nil, response.NewForbidden("only the document creator can submit it for approval")
	}
	if doc.Status != models.StatusPrivate {
		return nil, response.NewInvalidState(
			fmt.Sprintf("cannot submit a document in status %q", doc.Status))
	}

	updates := map[string]interface{}{
		"status":     models.StatusPendingApproval,
		"updated_at": time.Now(),
	}
	if err := s.transition(doc, updates); err != nil {
		return nil, err
	}

	updated, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	s.record(doc.ProjectID, userID, models.ActivityDocumentApprovalRequested, doc.ID,
		map[string]interface{}{"version": doc.Version},
		fmt.Sprintf("requested approval for document %q", doc.Title))

	return updated, nil
}

// Approve marks a pending document official. Admin only. Any previously
// official document for the same (project, step) is demoted to private in the
// same transaction, so at most one official document per step ever exists. A
// partial unique index on official rows backs that invariant at the store
// level; a violation there reads as a concurrent approval and fails with a
// conflict.
func (s *DocumentService) Approve(userID, documentID uint) (*models.Document, error) {
	doc, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.access.RequireProjectManagement(userID, doc.ProjectID); err != nil {
		return nil, err
	}
	if doc.Status != models.StatusPendingApproval {
		return nil, response.NewInvalidState(
			fmt.Sprintf("cannot approve a document in status %q", doc.Status))
	}

	now := time.Now()
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// Lock the step's documents so concurrent approvals queue and each
		// transaction sees the other's committed outcome. sqlite has no
		// FOR UPDATE and serializes writers on its own.
		if tx.Dialector.Name() != "sqlite" {
			var stepDocs []models.Document
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("project_id = ? AND step = ?", doc.ProjectID, doc.Step).
				Find(&stepDocs).Error; err != nil {
				return response.NewDatabaseError("failed to lock step documents")
			}
			for i := range stepDocs {
				if stepDocs[i].ID == doc.ID &&
					(stepDocs[i].Version != doc.Version || stepDocs[i].Status != doc.Status) {
					return response.NewConflict("document changed since it was read, re-check its current state")
				}
			}
		}

		// Demote the current official document for this step, if any.
		if err := tx.Model(&models.Document{}).
			Where("project_id = ? AND step = ? AND status = ? AND id != ?",
				doc.ProjectID, doc.Step, models.StatusOfficial, doc.ID).
			Updates(map[string]interface{}{
				"status":      models.StatusPrivate,
				"approved_by": nil,
				"approved_at": nil,
				"updated_at":  now,
			}).Error; err != nil {
			return response.NewDatabaseError("failed to demote previous official document")
		}

		result := tx.Model(&models.Document{}).
			Where("id = ? AND version = ? AND status = ?", doc.ID, doc.Version, doc.Status).
			Updates(map[string]interface{}{
				"status":      models.StatusOfficial,
				"approved_by": userID,
				"approved_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return response.NewConflict("another document is already official for this step, re-check its current state")
			}
			return response.NewDatabaseError("failed to approve document")
		}
		if result.RowsAffected == 0 {
			return response.NewConflict("document changed since it was read, re-check its current state")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	updated, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	s.record(doc.ProjectID, userID, models.ActivityDocumentApproved, doc.ID,
		map[string]interface{}{"step": doc.Step, "version": doc.Version},
		fmt.Sprintf("approved document %q as official for step %d", doc.Title, doc.Step))

	return updated, nil
}

// Reject returns a pending document to private. Admin only. The reason is
// kept in the ledger, not on the document.
func (s *DocumentService) Reject(userID, documentID uint, req *RejectDocumentRequest) (*models.Document, error) {
	doc, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.access.RequireProjectManagement(userID, doc.ProjectID); err != nil {
		return nil, err
	}
	if doc.Status != models.StatusPendingApproval {
		return nil, response.NewInvalidState(
			fmt.Sprintf("cannot reject a document in status %q", doc.Status))
	}

	updates := map[string]interface{}{
		"status":     models.StatusPrivate,
		"updated_at": time.Now(),
	}
	if err := s.transition(doc, updates); err != nil {
		return nil, err
	}

	updated, err := s.load(documentID)
	if err != nil {
		return nil, err
	}

	s.record(doc.ProjectID, userID, models.ActivityDocumentRejected, doc.ID,
		map[string]interface{}{"reason": req.Reason, "version": doc.Version},
		fmt.Sprintf("rejected document %q: %s", doc.Title, req.Reason))

	return updated, nil
}

func (s *DocumentService) load(documentID uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("document not found")
		}
		return nil, response.NewDatabaseError("failed to load document")
	}
	return &doc, nil
}

// transition applies updates guarded by the status and version the document
// had when it was read. Zero matched rows means a concurrent writer got there
// first.
func (s *DocumentService) transition(doc *models.Document, updates map[string]interface{}) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Document{}).
			Where("id = ? AND version = ? AND status = ?", doc.ID, doc.Version, doc.Status).
			Updates(updates)
		if result.Error != nil {
			return response.NewDatabaseError("failed to update document")
		}
		if result.RowsAffected == 0 {
			return response.NewConflict("document changed since it was read, re-check its current state")
		}
		return nil
	})
}

// isUniqueViolation reports whether err came from a unique index. The
// official-document index raises one when two approvals for the same step
// race past each other's snapshots.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}

// record appends a ledger entry for a committed transition. Ledger failures
// never roll back the transition; they are logged inside Record.
func (s *DocumentService) record(projectID, userID uint, activityType string, documentID uint, metadata map[string]interface{}, description string) {
	uid := userID
	_ = s.activity.Record(projectID, &uid, activityType, "document", documentID, metadata, description)
}
