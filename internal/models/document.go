package models

import (
	"time"

	"gorm.io/gorm"
)

// Document statuses.
const (
	StatusPrivate         = "private"
	StatusPendingApproval = "pending_approval"
	StatusOfficial        = "official"
)

// Fixed number of planning steps per project.
const StepCount = 9

// stepNames are the canonical names of the nine ordered planning steps.
var stepNames = [StepCount]string{
	"Service Overview",
	"Market & User Research",
	"Requirements Definition",
	"Information Architecture",
	"User Flow",
	"Wireframe",
	"Functional Specification",
	"Policy Definition",
	"Release Plan",
}

// StepName returns the canonical name for a planning step (1..9), or "" for
// an out-of-range step.
func StepName(step int) string {
	if step < 1 || step > StepCount {
		return ""
	}
	return stepNames[step-1]
}

// IsValidStep reports whether step is within the fixed 1..9 range.
func IsValidStep(step int) bool {
	return step >= 1 && step <= StepCount
}

// Document is one planning document at a given workflow step. Version starts
// at 1 and increments on every content-changing edit; at most one document per
// (project, step) may hold StatusOfficial at any time. CreatedBy never changes.
type Document struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ProjectID  uint           `gorm:"index:idx_project_step;not null" json:"project_id"`
	Project    *Project       `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Step       int            `gorm:"index:idx_project_step;not null" json:"step"` // 1..9
	Title      string         `gorm:"size:300;not null" json:"title"`
	Content    string         `gorm:"type:text" json:"content"`
	Status     string         `gorm:"size:30;default:private;index" json:"status"`
	Version    int            `gorm:"default:1;not null" json:"version"`
	CreatedBy  uint           `gorm:"index;not null" json:"created_by"`
	Creator    *User          `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	ApprovedBy *uint          `json:"approved_by"`
	ApprovedAt *time.Time     `json:"approved_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Document) TableName() string { return "documents" }

// StepName returns the canonical name of the document's planning step.
func (d *Document) StepName() string { return StepName(d.Step) }
