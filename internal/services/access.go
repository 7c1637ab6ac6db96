package services

import (
	"errors"
	"fmt"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

// AuthorityLevel is a caller's effective authority over one project.
type AuthorityLevel int

const (
	// NoAccess means neither global admin nor project member.
	NoAccess AuthorityLevel = iota
	// ProjectMember means the caller holds a planning role in the project.
	ProjectMember
	// GlobalAdmin bypasses all project-membership checks.
	GlobalAdmin
)

func (l AuthorityLevel) String() string {
	switch l {
	case GlobalAdmin:
		return "global_admin"
	case ProjectMember:
		return "project_member"
	default:
		return "no_access"
	}
}

// Authority is the resolved authority of a user within a project. Role is the
// planning-role string for project members, empty otherwise.
type Authority struct {
	UserID    uint
	ProjectID uint
	Level     AuthorityLevel
	Role      string
}

func (a *Authority) IsAdmin() bool  { return a.Level == GlobalAdmin }
func (a *Authority) IsMember() bool { return a.Level == ProjectMember }

// AccessService resolves caller authority and enforces the project access
// rules. Every entry point goes through one of its guards before touching a
// store; the guards never mutate state.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// RequireUser loads the caller's profile. An authenticated identity without a
// profile row is rejected.
func (s *AccessService) RequireUser(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUserNotFound("user profile not found")
		}
		return nil, response.NewDatabaseError("failed to load user")
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}
	return &user, nil
}

// Resolve determines a user's effective authority over a project. It is a
// pure lookup: "no access" is a legitimate result, not an error. It fails
// NotFound only when the project itself does not exist.
func (s *AccessService) Resolve(userID, projectID uint) (*Authority, error) {
	var project models.Project
	if err := s.db.Select("id").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, response.NewDatabaseError("failed to load project")
	}

	user, err := s.RequireUser(userID)
	if err != nil {
		return nil, err
	}

	auth := &Authority{UserID: userID, ProjectID: projectID}

	if user.IsAdmin() {
		auth.Level = GlobalAdmin
		return auth, nil
	}

	var member models.ProjectMember
	err = s.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if err == nil {
		auth.Level = ProjectMember
		auth.Role = member.Role
		return auth, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewDatabaseError("failed to load membership")
	}

	auth.Level = NoAccess
	return auth, nil
}

// RequireProjectAccess fails Forbidden unless the caller is a global admin or
// a member of the project.
func (s *AccessService) RequireProjectAccess(userID, projectID uint) (*Authority, error) {
	auth, err := s.Resolve(userID, projectID)
	if err != nil {
		return nil, err
	}
	if auth.Level == NoAccess {
		return nil, response.NewForbidden(fmt.Sprintf("no access to project %d", projectID))
	}
	return auth, nil
}

// RequireProjectManagement fails Forbidden unless the caller is a global
// admin. Project members, regardless of planning role, cannot manage
// membership or approve documents.
func (s *AccessService) RequireProjectManagement(userID, projectID uint) (*Authority, error) {
	auth, err := s.Resolve(userID, projectID)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin() {
		return nil, response.NewForbidden("project management requires admin access")
	}
	return auth, nil
}
