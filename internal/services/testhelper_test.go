package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/internal/utils"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database per test. The shared-cache DSN
// keeps the schema visible across pooled connections; the test name keeps
// parallel tests isolated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()

	hashed, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Password: hashed,
		Nickname: username,
		Role:     role,
		AuthType: "local",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, name string, createdBy uint) *models.Project {
	t.Helper()

	project := &models.Project{Name: name, CreatedBy: createdBy}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create project %s: %v", name, err)
	}
	return project
}

func addTestMember(t *testing.T, db *gorm.DB, projectID, userID uint, role string) *models.ProjectMember {
	t.Helper()

	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	return member
}

func createTestDocument(t *testing.T, db *gorm.DB, projectID uint, step int, createdBy uint, status string) *models.Document {
	t.Helper()

	doc := &models.Document{
		ProjectID: projectID,
		Step:      step,
		Title:     fmt.Sprintf("doc-step-%d", step),
		Content:   "content",
		Status:    status,
		Version:   1,
		CreatedBy: createdBy,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	return doc
}

// kindOf extracts the error kind from an AppError, or "" for nil/other errors.
func kindOf(err error) string {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
