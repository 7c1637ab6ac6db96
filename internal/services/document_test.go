package services

import (
	"sync"
	"testing"

	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/pkg/response"
	"gorm.io/gorm"
)

type workflowFixture struct {
	db      *gorm.DB
	svc     *DocumentService
	admin   *models.User
	alice   *models.User // member, service-planning
	bob     *models.User // member, content-planning
	project *models.Project
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	db := newTestDB(t)
	admin := createTestUser(t, db, "admin", "admin")
	alice := createTestUser(t, db, "alice", "user")
	bob := createTestUser(t, db, "bob", "user")
	project := createTestProject(t, db, "alpha", admin.ID)
	addTestMember(t, db, project.ID, alice.ID, models.RoleServicePlanning)
	addTestMember(t, db, project.ID, bob.ID, models.RoleContentPlanning)

	return &workflowFixture{
		db:      db,
		svc:     NewDocumentService(db),
		admin:   admin,
		alice:   alice,
		bob:     bob,
		project: project,
	}
}

func TestDocumentLifecycleToOfficial(t *testing.T) {
	f := newWorkflowFixture(t)

	doc, err := f.svc.Create(f.alice.ID, f.project.ID, &CreateDocumentRequest{
		Step: 3, Title: "Requirements v1", Content: "initial requirements",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if doc.Status != models.StatusPrivate || doc.Version != 1 {
		t.Fatalf("new document should be private v1, got %s v%d", doc.Status, doc.Version)
	}

	// While private only the creator and admins see it.
	if _, err := f.svc.Get(f.bob.ID, doc.ID); kindOf(err) != response.KindNotFound {
		t.Errorf("bob should not see alice's draft, got %v", err)
	}
	if _, err := f.svc.Get(f.alice.ID, doc.ID); err != nil {
		t.Errorf("alice should see her own draft: %v", err)
	}
	if _, err := f.svc.Get(f.admin.ID, doc.ID); err != nil {
		t.Errorf("admin should see any draft: %v", err)
	}

	doc, err = f.svc.SubmitForApproval(f.alice.ID, doc.ID)
	if err != nil {
		t.Fatalf("SubmitForApproval failed: %v", err)
	}
	if doc.Status != models.StatusPendingApproval {
		t.Fatalf("expected pending_approval, got %s", doc.Status)
	}

	doc, err = f.svc.Approve(f.admin.ID, doc.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if doc.Status != models.StatusOfficial {
		t.Fatalf("expected official, got %s", doc.Status)
	}
	if doc.ApprovedBy == nil || *doc.ApprovedBy != f.admin.ID {
		t.Error("approved document should carry the approver")
	}
	if doc.ApprovedAt == nil {
		t.Error("approved document should carry the approval time")
	}

	// Official documents are visible to every member.
	if _, err := f.svc.Get(f.bob.ID, doc.ID); err != nil {
		t.Errorf("bob should see the official document: %v", err)
	}
}

func TestRejectReturnsToPrivate(t *testing.T) {
	f := newWorkflowFixture(t)
	doc := createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPendingApproval)

	updated, err := f.svc.Reject(f.admin.ID, doc.ID, &RejectDocumentRequest{Reason: "needs more detail"})
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if updated.Status != models.StatusPrivate {
		t.Errorf("rejected document should be private, got %s", updated.Status)
	}
	if updated.Version != doc.Version {
		t.Errorf("reject should not bump the version: %d != %d", updated.Version, doc.Version)
	}

	// The reason lands in the ledger.
	var activity models.Activity
	if err := f.db.Where("type = ?", models.ActivityDocumentRejected).First(&activity).Error; err != nil {
		t.Fatalf("expected a rejection ledger entry: %v", err)
	}
}

func TestEditOfficialDemotes(t *testing.T) {
	f := newWorkflowFixture(t)
	doc := createTestDocument(t, f.db, f.project.ID, 2, f.alice.ID, models.StatusOfficial)
	adminID := f.admin.ID
	f.db.Model(doc).Updates(map[string]interface{}{"approved_by": adminID})

	updated, err := f.svc.Edit(f.alice.ID, doc.ID, &EditDocumentRequest{Content: "revised"})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if updated.Status != models.StatusPrivate {
		t.Errorf("editing an official document should demote it, got %s", updated.Status)
	}
	if updated.Version != doc.Version+1 {
		t.Errorf("edit should bump the version to %d, got %d", doc.Version+1, updated.Version)
	}
	if updated.ApprovedBy != nil || updated.ApprovedAt != nil {
		t.Error("demoted document should lose its approval fields")
	}
}

func TestApproveDemotesPreviousOfficial(t *testing.T) {
	f := newWorkflowFixture(t)
	old := createTestDocument(t, f.db, f.project.ID, 5, f.alice.ID, models.StatusOfficial)
	next := createTestDocument(t, f.db, f.project.ID, 5, f.bob.ID, models.StatusPendingApproval)

	if _, err := f.svc.Approve(f.admin.ID, next.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	var officials []models.Document
	if err := f.db.Where("project_id = ? AND step = ? AND status = ?",
		f.project.ID, 5, models.StatusOfficial).Find(&officials).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(officials) != 1 {
		t.Fatalf("expected exactly one official document per step, got %d", len(officials))
	}
	if officials[0].ID != next.ID {
		t.Errorf("expected document %d to be official, got %d", next.ID, officials[0].ID)
	}

	var demoted models.Document
	f.db.First(&demoted, old.ID)
	if demoted.Status != models.StatusPrivate {
		t.Errorf("previous official should be demoted to private, got %s", demoted.Status)
	}
	if demoted.ApprovedBy != nil {
		t.Error("demoted document should lose its approver")
	}
}

// Two approvals racing on different pending documents for the same step must
// never both end official. One wins; the other is either demoted in the
// later transaction or fails with a conflict.
func TestConcurrentApprovalsKeepOneOfficial(t *testing.T) {
	f := newWorkflowFixture(t)
	first := createTestDocument(t, f.db, f.project.ID, 3, f.alice.ID, models.StatusPendingApproval)
	second := createTestDocument(t, f.db, f.project.ID, 3, f.bob.ID, models.StatusPendingApproval)

	// sqlite allows a single writer; one pooled connection keeps the race at
	// the service layer instead of surfacing driver lock errors.
	if sqlDB, err := f.db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, documentID uint) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(f.admin.ID, documentID)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && kindOf(err) != response.KindConflict {
			t.Errorf("a racing approval may only fail with conflict, got %v", err)
		}
	}

	var officials []models.Document
	if err := f.db.Where("project_id = ? AND step = ? AND status = ?",
		f.project.ID, 3, models.StatusOfficial).Find(&officials).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(officials) != 1 {
		t.Fatalf("expected exactly one official document after racing approvals, got %d", len(officials))
	}
}

// The store itself refuses a second official document for a step, so the
// invariant holds even against a write path that skips the service.
func TestOfficialUniquenessBackstop(t *testing.T) {
	f := newWorkflowFixture(t)
	createTestDocument(t, f.db, f.project.ID, 4, f.alice.ID, models.StatusOfficial)

	dup := &models.Document{
		ProjectID: f.project.ID,
		Step:      4,
		Title:     "duplicate official",
		Content:   "content",
		Status:    models.StatusOfficial,
		Version:   1,
		CreatedBy: f.bob.ID,
	}
	if err := f.db.Create(dup).Error; err == nil {
		t.Fatal("expected a second official document for the step to be rejected")
	} else if !isUniqueViolation(err) {
		t.Fatalf("expected a unique violation, got %v", err)
	}

	// Another step keeps its own slot.
	other := &models.Document{
		ProjectID: f.project.ID,
		Step:      5,
		Title:     "official elsewhere",
		Content:   "content",
		Status:    models.StatusOfficial,
		Version:   1,
		CreatedBy: f.bob.ID,
	}
	if err := f.db.Create(other).Error; err != nil {
		t.Fatalf("official document at another step should be allowed: %v", err)
	}
}

func TestSubmitRequiresCreator(t *testing.T) {
	f := newWorkflowFixture(t)
	doc := createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPrivate)

	_, err := f.svc.SubmitForApproval(f.bob.ID, doc.ID)
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden when a non-creator submits, got %v", err)
	}

	// Admins cannot submit on the creator's behalf either.
	_, err = f.svc.SubmitForApproval(f.admin.ID, doc.ID)
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden when admin submits another's draft, got %v", err)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newWorkflowFixture(t)
	doc := createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPendingApproval)

	_, err := f.svc.Approve(f.alice.ID, doc.ID)
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden when the creator approves, got %v", err)
	}
	_, err = f.svc.Reject(f.bob.ID, doc.ID, &RejectDocumentRequest{Reason: "no"})
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden when a member rejects, got %v", err)
	}
}

func TestIllegalTransitions(t *testing.T) {
	f := newWorkflowFixture(t)

	private := createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPrivate)
	official := createTestDocument(t, f.db, f.project.ID, 2, f.alice.ID, models.StatusOfficial)
	pending := createTestDocument(t, f.db, f.project.ID, 3, f.alice.ID, models.StatusPendingApproval)

	if _, err := f.svc.Approve(f.admin.ID, private.ID); kindOf(err) != response.KindInvalidState {
		t.Errorf("approving a private document should be invalid_state, got %v", err)
	}
	if _, err := f.svc.Reject(f.admin.ID, official.ID, &RejectDocumentRequest{Reason: "late"}); kindOf(err) != response.KindInvalidState {
		t.Errorf("rejecting an official document should be invalid_state, got %v", err)
	}
	if _, err := f.svc.SubmitForApproval(f.alice.ID, pending.ID); kindOf(err) != response.KindInvalidState {
		t.Errorf("re-submitting a pending document should be invalid_state, got %v", err)
	}
	if _, err := f.svc.SubmitForApproval(f.alice.ID, official.ID); kindOf(err) != response.KindInvalidState {
		t.Errorf("submitting an official document should be invalid_state, got %v", err)
	}
}

func TestEditBaseVersionConflict(t *testing.T) {
	f := newWorkflowFixture(t)
	doc := createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPrivate)

	// First edit moves the document to v2.
	if _, err := f.svc.Edit(f.alice.ID, doc.ID, &EditDocumentRequest{Content: "first pass"}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	// A second edit pinned to the stale v1 must fail without writing.
	stale := 1
	_, err := f.svc.Edit(f.alice.ID, doc.ID, &EditDocumentRequest{Content: "stale pass", BaseVersion: &stale})
	if kindOf(err) != response.KindConflict {
		t.Errorf("expected conflict for a stale base version, got %v", err)
	}

	var current models.Document
	f.db.First(&current, doc.ID)
	if current.Content != "first pass" {
		t.Errorf("conflicting edit must not write, content is %q", current.Content)
	}
	if current.Version != 2 {
		t.Errorf("conflicting edit must not bump the version, got %d", current.Version)
	}
}

func TestListVisibilityAndFilters(t *testing.T) {
	f := newWorkflowFixture(t)

	createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusOfficial)
	createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPrivate)
	createTestDocument(t, f.db, f.project.ID, 2, f.bob.ID, models.StatusPendingApproval)

	// Bob sees the official one plus his own pending draft.
	docs, err := f.svc.List(f.bob.ID, f.project.ID, &DocumentListRequest{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("bob should see 2 documents, got %d", len(docs))
	}

	// Admin sees everything.
	docs, err = f.svc.List(f.admin.ID, f.project.ID, &DocumentListRequest{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("admin should see 3 documents, got %d", len(docs))
	}

	// Step filter.
	step := 1
	docs, err = f.svc.List(f.admin.ID, f.project.ID, &DocumentListRequest{Step: &step})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents at step 1, got %d", len(docs))
	}

	// Status filter still goes through visibility: alice filtering on
	// pending_approval cannot see bob's draft.
	docs, err = f.svc.List(f.alice.ID, f.project.ID, &DocumentListRequest{Status: models.StatusPendingApproval})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("alice should not see bob's pending draft via filters, got %d", len(docs))
	}

	badStep := 10
	if _, err := f.svc.List(f.admin.ID, f.project.ID, &DocumentListRequest{Step: &badStep}); kindOf(err) != response.KindValidation {
		t.Errorf("expected validation error for step 10, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newWorkflowFixture(t)

	cases := []struct {
		name string
		req  CreateDocumentRequest
	}{
		{"step zero", CreateDocumentRequest{Step: 0, Title: "t", Content: "c"}},
		{"step too high", CreateDocumentRequest{Step: 10, Title: "t", Content: "c"}},
		{"missing title", CreateDocumentRequest{Step: 1, Content: "c"}},
		{"missing content", CreateDocumentRequest{Step: 1, Title: "t"}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(f.alice.ID, f.project.ID, &tc.req); kindOf(err) != response.KindValidation {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	outsider := createTestUser(t, f.db, "carol", "user")
	_, err := f.svc.Create(outsider.ID, f.project.ID, &CreateDocumentRequest{Step: 1, Title: "t", Content: "c"})
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden for outsider, got %v", err)
	}
}

func TestEditOnlyCreatorOrAdmin(t *testing.T) {
	f := newWorkflowFixture(t)
	doc := createTestDocument(t, f.db, f.project.ID, 1, f.alice.ID, models.StatusPrivate)

	_, err := f.svc.Edit(f.bob.ID, doc.ID, &EditDocumentRequest{Content: "sneaky"})
	if kindOf(err) != response.KindForbidden {
		t.Errorf("expected forbidden for a non-creator member, got %v", err)
	}

	if _, err := f.svc.Edit(f.admin.ID, doc.ID, &EditDocumentRequest{Content: "admin fix"}); err != nil {
		t.Errorf("admin should be able to edit: %v", err)
	}
}

func TestWorkflowLedgerTrail(t *testing.T) {
	f := newWorkflowFixture(t)

	doc, err := f.svc.Create(f.alice.ID, f.project.ID, &CreateDocumentRequest{
		Step: 4, Title: "IA", Content: "sitemap",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.SubmitForApproval(f.alice.ID, doc.ID); err != nil {
		t.Fatalf("SubmitForApproval failed: %v", err)
	}
	if _, err := f.svc.Approve(f.admin.ID, doc.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	wantTypes := []string{
		models.ActivityDocumentCreated,
		models.ActivityDocumentApprovalRequested,
		models.ActivityDocumentApproved,
	}
	var activities []models.Activity
	if err := f.db.Where("project_id = ?", f.project.ID).Order("id ASC").Find(&activities).Error; err != nil {
		t.Fatalf("failed to load ledger: %v", err)
	}
	if len(activities) != len(wantTypes) {
		t.Fatalf("expected %d ledger entries, got %d", len(wantTypes), len(activities))
	}
	for i, want := range wantTypes {
		if activities[i].Type != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, activities[i].Type)
		}
	}
}
