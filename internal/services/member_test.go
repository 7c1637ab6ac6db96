package services

import (
	"testing"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
)

func TestAddMember(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	alice := createTestUser(t, db, "alice", "user")
	project := createTestProject(t, db, "alpha", admin.ID)

	svc := NewMembershipService(db)
	member, err := svc.Add(admin.ID, project.ID, &AddMemberRequest{
		UserID: alice.ID, Role: models.RoleDataPlanning,
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if member.Role != models.RoleDataPlanning {
		t.Errorf("expected role %s, got %s", models.RoleDataPlanning, member.Role)
	}
	if member.AddedBy != admin.ID {
		t.Errorf("expected AddedBy %d, got %d", admin.ID, member.AddedBy)
	}

	// Second add of the same user conflicts.
	_, err = svc.Add(admin.ID, project.ID, &AddMemberRequest{
		UserID: alice.ID, Role: models.RoleContentPlanning,
	})
	if kindOf(err) != response.KindConflict {
		t.Errorf("expected conflict for duplicate membership, got %v", err)
	}
}

func TestAddMemberValidation(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	alice := createTestUser(t, db, "alice", "user")
	project := createTestProject(t, db, "alpha", admin.ID)

	svc := NewMembershipService(db)

	_, err := svc.Add(admin.ID, project.ID, &AddMemberRequest{UserID: alice.ID, Role: "ceo"})
	if kindOf(err) != response.KindValidation {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}

	_, err = svc.Add(admin.ID, project.ID, &AddMemberRequest{UserID: 9999, Role: models.RoleServicePlanning})
	if kindOf(err) != response.KindUserNotFound {
		t.Errorf("expected user_not_found for missing user, got %v", err)
	}

	// Members cannot manage membership.
	addTestMember(t, db, project.ID, alice.ID, models.RoleServicePlanning)
	bob := createTestUser(t, db, "bob", "user")
	_, err = svc.Add(alice.ID, project.ID, &AddMemberRequest{UserID: bob.ID, Role: models.RoleContentPlanning})
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden for member caller, got %v", err)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	alice := createTestUser(t, db, "alice", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, alice.ID, models.RoleServicePlanning)

	svc := NewMembershipService(db)
	member, err := svc.UpdateRole(admin.ID, project.ID, alice.ID, &UpdateMemberRoleRequest{
		Role: models.RoleMarketingPlanning,
	})
	if err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if member.Role != models.RoleMarketingPlanning {
		t.Errorf("expected updated role, got %s", member.Role)
	}

	var activity models.Activity
	if err := db.Where("type = ?", models.ActivityMemberRoleChanged).First(&activity).Error; err != nil {
		t.Errorf("expected a role-change ledger entry: %v", err)
	}

	_, err = svc.UpdateRole(admin.ID, project.ID, 9999, &UpdateMemberRoleRequest{Role: models.RoleDataPlanning})
	if kindOf(err) != response.KindNotFound {
		t.Errorf("expected not_found for non-member, got %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	alice := createTestUser(t, db, "alice", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, alice.ID, models.RoleUXUIPlanning)
	doc := createTestDocument(t, db, project.ID, 1, alice.ID, models.StatusOfficial)

	svc := NewMembershipService(db)
	if err := svc.Remove(admin.ID, project.ID, alice.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	var count int64
	db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected membership row gone, found %d", count)
	}

	// Removal strips access but leaves the member's documents behind.
	var remaining models.Document
	if err := db.First(&remaining, doc.ID).Error; err != nil {
		t.Errorf("removed member's documents should survive: %v", err)
	}

	access := NewAccessService(db)
	auth, err := access.Resolve(alice.ID, project.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if auth.Level != NoAccess {
		t.Errorf("removed member should have no access, got %v", auth.Level)
	}

	// Removed members can rejoin.
	if _, err := svc.Add(admin.ID, project.ID, &AddMemberRequest{
		UserID: alice.ID, Role: models.RoleContentPlanning,
	}); err != nil {
		t.Errorf("re-adding a removed member should work: %v", err)
	}
}

func TestListMembers(t *testing.T) {
	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	alice := createTestUser(t, db, "alice", "user")
	bob := createTestUser(t, db, "bob", "user")
	outsider := createTestUser(t, db, "carol", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, alice.ID, models.RoleServicePlanning)
	addTestMember(t, db, project.ID, bob.ID, models.RoleContentPlanning)

	svc := NewMembershipService(db)

	members, err := svc.List(alice.ID, project.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}
	for _, m := range members {
		if m.User == nil {
			t.Errorf("member %d should have its user profile preloaded", m.ID)
		}
	}

	_, err = svc.List(outsider.ID, project.ID)
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden for outsider, got %v", err)
	}
}
