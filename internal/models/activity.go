package models

import "time"

// Activity types recorded in the project ledger.
const (
	ActivityDocumentCreated           = "document_created"
	ActivityDocumentUpdated           = "document_updated"
	ActivityDocumentApprovalRequested = "document_approval_requested"
	ActivityDocumentApproved          = "document_approved"
	ActivityDocumentRejected          = "document_rejected"
	ActivityMemberAdded               = "member_added"
	ActivityMemberRoleChanged         = "member_role_changed"
	ActivityMemberRemoved             = "member_removed"
	ActivityProjectCreated            = "project_created"
	ActivityProjectDeleted            = "project_deleted"
)

// Activity is one append-only entry in a project's event ledger. Rows are
// never updated or deleted; aggregate statistics are recomputed from them on
// demand. UserID is nil for system events.
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"index;not null" json:"project_id"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Type        string    `gorm:"size:50;index;not null" json:"type"`
	TargetType  string    `gorm:"size:50" json:"target_type"` // document, member, project
	TargetID    uint      `json:"target_id"`
	Metadata    string    `gorm:"type:text" json:"metadata"` // JSON key/value blob
	Description string    `gorm:"size:500" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Activity) TableName() string { return "activities" }
