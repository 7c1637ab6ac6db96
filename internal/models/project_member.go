package models

import "time"

// Planning-discipline roles a member can hold inside a project. A user holds
// at most one role per project; the role is a label, not an authority level.
const (
	RoleServicePlanning   = "service-planning"
	RoleContentPlanning   = "content-planning"
	RoleUXUIPlanning      = "uxui-planning"
	RoleBusinessPlanning  = "business-planning"
	RoleDataPlanning      = "data-planning"
	RoleMarketingPlanning = "marketing-planning"
)

// ProjectRoles is the fixed set of valid planning roles.
var ProjectRoles = []string{
	RoleServicePlanning,
	RoleContentPlanning,
	RoleUXUIPlanning,
	RoleBusinessPlanning,
	RoleDataPlanning,
	RoleMarketingPlanning,
}

// IsValidProjectRole reports whether role belongs to the fixed role set.
func IsValidProjectRole(role string) bool {
	for _, r := range ProjectRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ProjectMember represents a user's membership and planning role within a
// project. (ProjectID, UserID) is unique. Rows are hard-deleted on removal so
// a removed member can rejoin.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"project_id"`
	Project   *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      string    `gorm:"size:50;not null" json:"role"`
	AddedBy   uint      `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProjectMember) TableName() string { return "project_members" }
