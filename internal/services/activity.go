package services

import (
	"encoding/json"
	"time"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/logger"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

// ActivityService is the append-only project ledger. Entries are recorded
// after the operation they describe has committed and are never mutated;
// statistics are recomputed from the rows on demand, no counters are kept.
type ActivityService struct {
	db     *gorm.DB
	access *AccessService
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db, access: NewAccessService(db)}
}

// Record appends one ledger entry. A failure here must never undo the
// operation that triggered it, so callers ignore the returned error; it is
// logged for operators.
func (s *ActivityService) Record(projectID uint, userID *uint, activityType, targetType string, targetID uint, metadata map[string]interface{}, description string) error {
	var metaJSON string
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			logger.Warn().Err(err).Str("type", activityType).Msg("failed to encode activity metadata")
		} else {
			metaJSON = string(raw)
		}
	}

	activity := models.Activity{
		ProjectID:   projectID,
		UserID:      userID,
		Type:        activityType,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metaJSON,
		Description: description,
	}

	if err := s.db.Create(&activity).Error; err != nil {
		logger.Warn().Err(err).
			Uint("project_id", projectID).
			Str("type", activityType).
			Msg("failed to record activity")
		return err
	}
	return nil
}

type ActivityListRequest struct {
	Type           string `form:"type"`
	UserID         *uint  `form:"user_id"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
	IncludeStats   bool   `form:"include_stats"`
	IncludeMembers bool   `form:"include_members"`
}

type ActivityListResult struct {
	Activities []models.Activity       `json:"activities"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	Stats      *CollaborationStats     `json:"stats,omitempty"`
	Members    []MemberActivitySummary `json:"members,omitempty"`
}

// List returns a page of the project's ledger, newest first. Aggregate stats
// and per-member summaries ride along on request.
func (s *ActivityService) List(userID, projectID uint, req *ActivityListRequest) (*ActivityListResult, error) {
	if _, err := s.access.RequireProjectAccess(userID, projectID); err != nil {
		return nil, err
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Activity{}).Where("project_id = ?", projectID)
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.UserID != nil {
		query = query.Where("user_id = ?", *req.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, response.NewDatabaseError("failed to count activities")
	}

	var activities []models.Activity
	if err := query.
		Preload("User").
		Order("created_at DESC, id DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&activities).Error; err != nil {
		return nil, response.NewDatabaseError("failed to list activities")
	}

	result := &ActivityListResult{
		Activities: activities,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}

	if req.IncludeStats {
		stats, err := s.computeStats(projectID, req.IncludeMembers)
		if err != nil {
			return nil, err
		}
		result.Stats = stats
	} else if req.IncludeMembers {
		members, err := s.memberSummaries(projectID)
		if err != nil {
			return nil, err
		}
		result.Members = members
	}

	return result, nil
}

type RecordActivityRequest struct {
	Type        string                 `json:"type" binding:"required"`
	TargetType  string                 `json:"target_type"`
	TargetID    uint                   `json:"target_id"`
	Metadata    map[string]interface{} `json:"metadata"`
	Description string                 `json:"description"`
}

// RecordManual appends a caller-supplied ledger entry. Unlike Record, the
// entry is the whole operation here, so a persistence failure surfaces as an
// error instead of a warning.
func (s *ActivityService) RecordManual(userID, projectID uint, req *RecordActivityRequest) (*models.Activity, error) {
	if _, err := s.access.RequireProjectAccess(userID, projectID); err != nil {
		return nil, err
	}

	var metaJSON string
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, response.NewValidation("metadata is not encodable")
		}
		metaJSON = string(raw)
	}

	activity := models.Activity{
		ProjectID:   projectID,
		UserID:      &userID,
		Type:        req.Type,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Metadata:    metaJSON,
		Description: req.Description,
	}
	if err := s.db.Create(&activity).Error; err != nil {
		return nil, response.NewDatabaseError("failed to record activity")
	}
	return &activity, nil
}

// MemberActivitySummary aggregates one contributor's footprint in a project.
type MemberActivitySummary struct {
	UserID            uint       `json:"user_id"`
	Username          string     `json:"username"`
	Nickname          string     `json:"nickname"`
	DocumentsCreated  int64      `json:"documents_created"`
	DocumentsUpdated  int64      `json:"documents_updated"`
	DocumentsApproved int64      `json:"documents_approved"`
	TotalActions      int64      `json:"total_actions"`
	LastActiveAt      *time.Time `json:"last_active_at"`
}

// CollaborationStats is a full recomputation over the ledger and document
// store. Running it twice without intervening writes yields identical results.
type CollaborationStats struct {
	ProjectID         uint                    `json:"project_id"`
	TotalActivities   int64                   `json:"total_activities"`
	ActivitiesByType  map[string]int64        `json:"activities_by_type"`
	DocumentsByStatus map[string]int64        `json:"documents_by_status"`
	MemberCount       int64                   `json:"member_count"`
	Members           []MemberActivitySummary `json:"members"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// ComputeStats derives collaboration statistics for a project from the ledger
// and the current document store.
func (s *ActivityService) ComputeStats(userID, projectID uint) (*CollaborationStats, error) {
	if _, err := s.access.RequireProjectAccess(userID, projectID); err != nil {
		return nil, err
	}
	return s.computeStats(projectID, true)
}

func (s *ActivityService) computeStats(projectID uint, includeMembers bool) (*CollaborationStats, error) {
	stats := &CollaborationStats{
		ProjectID:         projectID,
		ActivitiesByType:  make(map[string]int64),
		DocumentsByStatus: make(map[string]int64),
		GeneratedAt:       time.Now(),
	}

	if err := s.db.Model(&models.Activity{}).
		Where("project_id = ?", projectID).
		Count(&stats.TotalActivities).Error; err != nil {
		return nil, response.NewDatabaseError("failed to count activities")
	}

	type typeCount struct {
		Type  string
		Count int64
	}
	var byType []typeCount
	if err := s.db.Model(&models.Activity{}).
		Select("type, COUNT(*) as count").
		Where("project_id = ?", projectID).
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, response.NewDatabaseError("failed to aggregate activities")
	}
	for _, tc := range byType {
		stats.ActivitiesByType[tc.Type] = tc.Count
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	if err := s.db.Model(&models.Document{}).
		Select("status, COUNT(*) as count").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, response.NewDatabaseError("failed to aggregate documents")
	}
	for _, sc := range byStatus {
		stats.DocumentsByStatus[sc.Status] = sc.Count
	}

	if err := s.db.Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Count(&stats.MemberCount).Error; err != nil {
		return nil, response.NewDatabaseError("failed to count members")
	}

	if includeMembers {
		members, err := s.memberSummaries(projectID)
		if err != nil {
			return nil, err
		}
		stats.Members = members
	}

	return stats, nil
}

func (s *ActivityService) memberSummaries(projectID uint) ([]MemberActivitySummary, error) {
	type row struct {
		UserID       uint
		Username     string
		Nickname     string
		TotalActions int64
		LastActiveAt *time.Time
	}

	var rows []row
	if err := s.db.Model(&models.Activity{}).
		Select("activities.user_id, users.username, users.nickname, COUNT(*) as total_actions, MAX(activities.created_at) as last_active_at").
		Joins("JOIN users ON users.id = activities.user_id").
		Where("activities.project_id = ? AND activities.user_id IS NOT NULL", projectID).
		Group("activities.user_id, users.username, users.nickname").
		Order("total_actions DESC").
		Scan(&rows).Error; err != nil {
		return nil, response.NewDatabaseError("failed to aggregate member activity")
	}

	summaries := make([]MemberActivitySummary, 0, len(rows))
	for _, r := range rows {
		summary := MemberActivitySummary{
			UserID:       r.UserID,
			Username:     r.Username,
			Nickname:     r.Nickname,
			TotalActions: r.TotalActions,
			LastActiveAt: r.LastActiveAt,
		}

		if err := s.db.Model(&models.Activity{}).
			Where("project_id = ? AND user_id = ? AND type = ?",
				projectID, r.UserID, models.ActivityDocumentCreated).
			Count(&summary.DocumentsCreated).Error; err != nil {
			return nil, response.NewDatabaseError("failed to aggregate member activity")
		}
		if err := s.db.Model(&models.Activity{}).
			Where("project_id = ? AND user_id = ? AND type = ?",
				projectID, r.UserID, models.ActivityDocumentUpdated).
			Count(&summary.DocumentsUpdated).Error; err != nil {
			return nil, response.NewDatabaseError("failed to aggregate member activity")
		}
		if err := s.db.Model(&models.Activity{}).
			Where("project_id = ? AND user_id = ? AND type = ?",
				projectID, r.UserID, models.ActivityDocumentApproved).
			Count(&summary.DocumentsApproved).Error; err != nil {
			return nil, response.NewDatabaseError("failed to aggregate member activity")
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}
