package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

// MembershipService manages project memberships. Listing is open to any
// project member; adding, role changes and removal are admin operations.
type MembershipService struct {
	db       *gorm.DB
	access   *AccessService
	activity *ActivityService
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{
		db:       db,
		access:   NewAccessService(db),
		activity: NewActivityService(db),
	}
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// List returns the project's member roster with user profiles attached.
func (s *MembershipService) List(userID, projectID uint) ([]models.ProjectMember, error) {
	if _, err := s.access.RequireProjectAccess(userID, projectID); err != nil {
		return nil, err
	}

	var members []models.ProjectMember
	if err := s.db.Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, response.NewDatabaseError("failed to list members")
	}
	return members, nil
}

// Add puts a user into the project with a planning role. Admin only. Adding a
// user who is already a member fails with a conflict; a member holds exactly
// one role per project.
func (s *MembershipService) Add(callerID, projectID uint, req *AddMemberRequest) (*models.ProjectMember, error) {
	if _, err := s.access.RequireProjectManagement(callerID, projectID); err != nil {
		return nil, err
	}

	if !models.IsValidProjectRole(req.Role) {
		return nil, response.NewValidation(
			fmt.Sprintf("invalid role %q, must be one of: %s", req.Role, strings.Join(models.ProjectRoles, ", ")))
	}

	var user models.User
	if err := s.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUserNotFound("user not found")
		}
		return nil, response.NewDatabaseError("failed to load user")
	}

	var existing models.ProjectMember
	err := s.db.Where("project_id = ? AND user_id = ?", projectID, req.UserID).First(&existing).Error
	if err == nil {
		return nil, response.NewConflict("user is already a member of this project")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewDatabaseError("failed to load membership")
	}

	member := models.ProjectMember{
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      req.Role,
		AddedBy:   callerID,
	}
	if err := s.db.Create(&member).Error; err != nil {
		return nil, response.NewDatabaseError("failed to add member")
	}
	member.User = &user

	cid := callerID
	_ = s.activity.Record(projectID, &cid, models.ActivityMemberAdded, "member", member.ID,
		map[string]interface{}{"user_id": user.ID, "username": user.Username, "role": req.Role},
		fmt.Sprintf("added %s as %s", user.Username, req.Role))

	return &member, nil
}

// UpdateRole changes an existing member's planning role. Admin only.
func (s *MembershipService) UpdateRole(callerID, projectID, memberUserID uint, req *UpdateMemberRoleRequest) (*models.ProjectMember, error) {
	if _, err := s.access.RequireProjectManagement(callerID, projectID); err != nil {
		return nil, err
	}

	if !models.IsValidProjectRole(req.Role) {
		return nil, response.NewValidation(
			fmt.Sprintf("invalid role %q, must be one of: %s", req.Role, strings.Join(models.ProjectRoles, ", ")))
	}

	var member models.ProjectMember
	if err := s.db.Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, memberUserID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("member not found")
		}
		return nil, response.NewDatabaseError("failed to load membership")
	}

	oldRole := member.Role
	if oldRole == req.Role {
		return &member, nil
	}

	if err := s.db.Model(&member).Update("role", req.Role).Error; err != nil {
		return nil, response.NewDatabaseError("failed to update member role")
	}

	username := ""
	if member.User != nil {
		username = member.User.Username
	}
	cid := callerID
	_ = s.activity.Record(projectID, &cid, models.ActivityMemberRoleChanged, "member", member.ID,
		map[string]interface{}{"user_id": memberUserID, "old_role": oldRole, "new_role": req.Role},
		fmt.Sprintf("changed %s role from %s to %s", username, oldRole, req.Role))

	return &member, nil
}

// Remove takes a user out of the project. Admin only. The removed user's
// documents and ledger entries stay behind.
func (s *MembershipService) Remove(callerID, projectID, memberUserID uint) error {
	if _, err := s.access.RequireProjectManagement(callerID, projectID); err != nil {
		return err
	}

	var member models.ProjectMember
	if err := s.db.Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, memberUserID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("member not found")
		}
		return response.NewDatabaseError("failed to load membership")
	}

	if err := s.db.Delete(&member).Error; err != nil {
		return response.NewDatabaseError("failed to remove member")
	}

	username := ""
	if member.User != nil {
		username = member.User.Username
	}
	cid := callerID
	_ = s.activity.Record(projectID, &cid, models.ActivityMemberRemoved, "member", member.ID,
		map[string]interface{}{"user_id": memberUserID, "role": member.Role},
		fmt.Sprintf("removed %s from the project", username))

	return nil
}
