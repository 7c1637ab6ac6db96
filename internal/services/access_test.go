package services

import (
	"testing"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
)

func TestResolveAdmin(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	project := createTestProject(t, db, "alpha", admin.ID)

	svc := NewAccessService(db)
	auth, err := svc.Resolve(admin.ID, project.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if auth.Level != GlobalAdmin {
		t.Errorf("expected GlobalAdmin, got %v", auth.Level)
	}
	if !auth.IsAdmin() {
		t.Error("expected IsAdmin to be true")
	}
}

func TestResolveMember(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	member := createTestUser(t, db, "alice", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, member.ID, models.RoleServicePlanning)

	svc := NewAccessService(db)
	auth, err := svc.Resolve(member.ID, project.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if auth.Level != ProjectMember {
		t.Errorf("expected ProjectMember, got %v", auth.Level)
	}
	if auth.Role != models.RoleServicePlanning {
		t.Errorf("expected role %s, got %s", models.RoleServicePlanning, auth.Role)
	}
}

func TestResolveNonMember(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	outsider := createTestUser(t, db, "bob", "user")
	project := createTestProject(t, db, "alpha", admin.ID)

	svc := NewAccessService(db)
	auth, err := svc.Resolve(outsider.ID, project.ID)
	if err != nil {
		t.Fatalf("Resolve should not fail for non-members: %v", err)
	}
	if auth.Level != NoAccess {
		t.Errorf("expected NoAccess, got %v", auth.Level)
	}
}

func TestResolveMissingProject(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")

	svc := NewAccessService(db)
	_, err := svc.Resolve(admin.ID, 9999)
	if kindOf(err) != response.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestRequireUserMissing(t *testing.T) {
	db := newTestDB(t)

	svc := NewAccessService(db)
	_, err := svc.RequireUser(42)
	if kindOf(err) != response.KindUserNotFound {
		t.Errorf("expected user_not_found, got %v", err)
	}
}

func TestRequireUserDisabled(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ghost", "user")
	if err := db.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to disable user: %v", err)
	}

	svc := NewAccessService(db)
	_, err := svc.RequireUser(user.ID)
	if kindOf(err) != response.KindUnauthorized {
		t.Errorf("expected unauthorized for disabled user, got %v", err)
	}
}

func TestRequireProjectAccess(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	member := createTestUser(t, db, "alice", "user")
	outsider := createTestUser(t, db, "bob", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, member.ID, models.RoleUXUIPlanning)

	svc := NewAccessService(db)

	if _, err := svc.RequireProjectAccess(member.ID, project.ID); err != nil {
		t.Errorf("member should have access: %v", err)
	}
	if _, err := svc.RequireProjectAccess(admin.ID, project.ID); err != nil {
		t.Errorf("admin should have access: %v", err)
	}
	_, err := svc.RequireProjectAccess(outsider.ID, project.ID)
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden for outsider, got %v", err)
	}
}

func TestRequireProjectManagement(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	member := createTestUser(t, db, "alice", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, member.ID, models.RoleBusinessPlanning)

	svc := NewAccessService(db)

	if _, err := svc.RequireProjectManagement(admin.ID, project.ID); err != nil {
		t.Errorf("admin should have management access: %v", err)
	}

	// Planning roles never grant management rights.
	_, err := svc.RequireProjectManagement(member.ID, project.ID)
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden for member, got %v", err)
	}
}
