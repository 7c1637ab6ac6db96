package services

import (
	"errors"
	"fmt"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db       *gorm.DB
	access   *AccessService
	activity *ActivityService
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{
		db:       db,
		access:   NewAccessService(db),
		activity: NewActivityService(db),
	}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// List returns the projects the caller may see: every project for global
// admins, only joined projects for everyone else.
func (s *ProjectService) List(userID uint) ([]models.Project, error) {
	user, err := s.access.RequireUser(userID)
	if err != nil {
		return nil, err
	}

	var projects []models.Project
	query := s.db.Order("created_at DESC")
	if !user.IsAdmin() {
		query = query.
			Joins("JOIN project_members ON project_members.project_id = projects.id").
			Where("project_members.user_id = ?", userID)
	}
	if err := query.Find(&projects).Error; err != nil {
		return nil, response.NewDatabaseError("failed to list projects")
	}
	return projects, nil
}

// Get returns one project. Requires membership or admin.
func (s *ProjectService) Get(userID, projectID uint) (*models.Project, error) {
	if _, err := s.access.RequireProjectAccess(userID, projectID); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, response.NewDatabaseError("failed to load project")
	}
	return &project, nil
}

// Create creates a project. Admin only.
func (s *ProjectService) Create(userID uint, req *CreateProjectRequest) (*models.Project, error) {
	user, err := s.access.RequireUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, response.NewForbidden("only admins can create projects")
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}
	if err := s.db.Create(&project).Error; err != nil {
		return nil, response.NewDatabaseError("failed to create project")
	}

	uid := userID
	_ = s.activity.Record(project.ID, &uid, models.ActivityProjectCreated, "project", project.ID,
		nil, fmt.Sprintf("created project %q", project.Name))

	return &project, nil
}

// Update changes a project's name or description. Admin only.
func (s *ProjectService) Update(userID, projectID uint, req *UpdateProjectRequest) (*models.Project, error) {
	if _, err := s.access.RequireProjectManagement(userID, projectID); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, response.NewDatabaseError("failed to load project")
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return &project, nil
	}

	if err := s.db.Model(&project).Updates(updates).Error; err != nil {
		return nil, response.NewDatabaseError("failed to update project")
	}
	return &project, nil
}

// Delete removes a project together with its memberships and documents in one
// transaction. The ledger is kept: activity rows survive as the audit trail of
// the deleted project. Admin only.
func (s *ProjectService) Delete(userID, projectID uint) error {
	if _, err := s.access.RequireProjectManagement(userID, projectID); err != nil {
		return err
	}

	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("project not found")
		}
		return response.NewDatabaseError("failed to load project")
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if txErr != nil {
		return response.NewDatabaseError("failed to delete project")
	}

	uid := userID
	_ = s.activity.Record(projectID, &uid, models.ActivityProjectDeleted, "project", projectID,
		nil, fmt.Sprintf("deleted project %q", project.Name))

	return nil
}
