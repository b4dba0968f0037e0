package authz

import (
	"context"
	"errors"
	"testing"
)

func TestStore_RoleLifecycle(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	role := f.createRole(t, "editor", "documents.change_document")
	if role.ID == 0 {
		t.Error("Expected role ID to be set after creation")
	}

	got, err := f.store.GetRoleByName(ctx, "editor")
	if err != nil {
		t.Fatalf("GetRoleByName failed: %v", err)
	}
	if got.ID != role.ID {
		t.Errorf("Expected role ID %d, got %d", role.ID, got.ID)
	}
	if !got.HasPermission("documents.change_document") {
		t.Error("Expected role to bundle documents.change_document")
	}

	byID, err := f.store.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetRole failed: %v", err)
	}
	if byID.Name != "editor" {
		t.Errorf("Expected role name editor, got %s", byID.Name)
	}

	if err := f.store.DeleteRole(ctx, "editor"); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}
	if _, err := f.store.GetRoleByName(ctx, "editor"); !IsNotFound(err) {
		t.Errorf("Expected NotFoundError after deletion, got %v", err)
	}
}

func TestStore_UnknownRole(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	if _, err := f.store.GetRoleByName(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
	if err := f.store.AssignGlobalRole(ctx, UserRef(1), "nope"); !IsNotFound(err) {
		t.Errorf("Expected NotFoundError from AssignGlobalRole, got %v", err)
	}
	if err := f.store.AssignLocalRole(ctx, UserRef(1), Ref{Kind: "document", ID: 1}, "nope"); !IsNotFound(err) {
		t.Errorf("Expected NotFoundError from AssignLocalRole, got %v", err)
	}
}

func TestStore_ListRoles(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "editor")
	f.createRole(t, "senior-editor")
	f.createRole(t, "viewer")

	all, err := f.store.ListRoles(ctx, "")
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 roles, got %d", len(all))
	}

	editors, err := f.store.ListRoles(ctx, "editor")
	if err != nil {
		t.Fatalf("ListRoles with filter failed: %v", err)
	}
	if len(editors) != 2 {
		t.Errorf("Expected 2 roles matching editor, got %d", len(editors))
	}
}

func TestStore_AddPermissionIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "editor", "documents.change_document")

	if err := f.store.AddPermission(ctx, "editor", "documents.change_document"); err != nil {
		t.Fatalf("Repeated AddPermission failed: %v", err)
	}

	role, err := f.store.GetRoleByName(ctx, "editor")
	if err != nil {
		t.Fatalf("GetRoleByName failed: %v", err)
	}
	if len(role.Permissions) != 1 {
		t.Errorf("Expected 1 permission after duplicate add, got %d", len(role.Permissions))
	}
}

func TestStore_GlobalAssignments(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "admin")

	if err := f.store.AssignGlobalRole(ctx, UserRef(1), "admin"); err != nil {
		t.Fatalf("AssignGlobalRole failed: %v", err)
	}
	// Repeated assignment is a no-op, not an error
	if err := f.store.AssignGlobalRole(ctx, UserRef(1), "admin"); err != nil {
		t.Fatalf("Repeated AssignGlobalRole failed: %v", err)
	}

	assignments, err := f.store.GlobalAssignments(ctx, UserRef(1))
	if err != nil {
		t.Fatalf("GlobalAssignments failed: %v", err)
	}
	if len(assignments) != 1 {
		t.Errorf("Expected 1 assignment after duplicate assign, got %d", len(assignments))
	}

	roles, err := f.store.GlobalRolesOf(ctx, UserRef(1))
	if err != nil {
		t.Fatalf("GlobalRolesOf failed: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "admin" {
		t.Errorf("Expected [admin], got %v", roles)
	}

	has, err := f.store.HasGlobalRole(ctx, UserRef(1), "admin")
	if err != nil {
		t.Fatalf("HasGlobalRole failed: %v", err)
	}
	if !has {
		t.Error("Expected HasGlobalRole to report the assignment")
	}

	if err := f.store.UnassignGlobalRole(ctx, UserRef(1), "admin"); err != nil {
		t.Fatalf("UnassignGlobalRole failed: %v", err)
	}
	has, err = f.store.HasGlobalRole(ctx, UserRef(1), "admin")
	if err != nil {
		t.Fatalf("HasGlobalRole failed: %v", err)
	}
	if has {
		t.Error("Expected HasGlobalRole false after unassign")
	}

	// Unassigning again is a no-op
	if err := f.store.UnassignGlobalRole(ctx, UserRef(1), "admin"); err != nil {
		t.Fatalf("Repeated UnassignGlobalRole failed: %v", err)
	}
}

func TestStore_HasGlobalRoleDoesNotExpandGroups(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	group := f.createGroup(t, "admins", 1)
	f.createRole(t, "admin")
	if err := f.store.AssignGlobalRole(ctx, GroupRef(group.ID), "admin"); err != nil {
		t.Fatalf("AssignGlobalRole failed: %v", err)
	}

	// The exact-assignee query sees the group, not its members
	has, err := f.store.HasGlobalRole(ctx, GroupRef(group.ID), "admin")
	if err != nil {
		t.Fatalf("HasGlobalRole failed: %v", err)
	}
	if !has {
		t.Error("Expected group assignee to hold the role")
	}

	has, err = f.store.HasGlobalRole(ctx, UserRef(1), "admin")
	if err != nil {
		t.Fatalf("HasGlobalRole failed: %v", err)
	}
	if has {
		t.Error("Expected exact-assignee query not to expand group membership")
	}
}

func TestStore_SetLocalRoleReplacesHolders(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "owner")
	doc := Ref{Kind: "document", ID: 1}

	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}
	if err := f.store.AssignLocalRole(ctx, UserRef(2), doc, "owner"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}

	// Set makes user 3 the only holder
	if err := f.store.SetLocalRole(ctx, UserRef(3), doc, "owner"); err != nil {
		t.Fatalf("SetLocalRole failed: %v", err)
	}

	assignments, err := f.store.LocalAssignments(ctx, doc, "owner")
	if err != nil {
		t.Fatalf("LocalAssignments failed: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("Expected 1 holder after set, got %d", len(assignments))
	}
	if assignments[0].Assignee != UserRef(3) {
		t.Errorf("Expected holder user/3, got %v", assignments[0].Assignee)
	}
}

func TestStore_SetLocalRoleScopedToRoleAndInstance(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "owner")
	f.createRole(t, "reviewer")
	doc1 := Ref{Kind: "document", ID: 1}
	doc2 := Ref{Kind: "document", ID: 2}

	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc1, "reviewer"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}
	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc2, "owner"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}

	// Setting owner on doc1 touches neither the reviewer row on doc1 nor
	// the owner row on doc2
	if err := f.store.SetLocalRole(ctx, UserRef(2), doc1, "owner"); err != nil {
		t.Fatalf("SetLocalRole failed: %v", err)
	}

	reviewers, err := f.store.LocalAssignments(ctx, doc1, "reviewer")
	if err != nil {
		t.Fatalf("LocalAssignments failed: %v", err)
	}
	if len(reviewers) != 1 {
		t.Errorf("Expected reviewer row on doc1 untouched, got %d rows", len(reviewers))
	}

	owners2, err := f.store.LocalAssignments(ctx, doc2, "owner")
	if err != nil {
		t.Fatalf("LocalAssignments failed: %v", err)
	}
	if len(owners2) != 1 {
		t.Errorf("Expected owner row on doc2 untouched, got %d rows", len(owners2))
	}
}

func TestStore_AssignLocalRoleIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "owner")
	doc := Ref{Kind: "document", ID: 1}

	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}
	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("Repeated AssignLocalRole failed: %v", err)
	}

	assignments, err := f.store.LocalAssignments(ctx, doc, "")
	if err != nil {
		t.Fatalf("LocalAssignments failed: %v", err)
	}
	if len(assignments) != 1 {
		t.Errorf("Expected 1 assignment after duplicate assign, got %d", len(assignments))
	}
}

func TestStore_UnassignLocalRole(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "owner")
	doc := Ref{Kind: "document", ID: 1}

	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}
	if err := f.store.UnassignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("UnassignLocalRole failed: %v", err)
	}

	has, err := f.store.HasLocalRole(ctx, UserRef(1), doc, "owner")
	if err != nil {
		t.Fatalf("HasLocalRole failed: %v", err)
	}
	if has {
		t.Error("Expected HasLocalRole false after unassign")
	}

	// No-op when absent
	if err := f.store.UnassignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("Repeated UnassignLocalRole failed: %v", err)
	}
}

func TestStore_DeleteRoleCascadesAssignments(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createRole(t, "owner")
	doc := Ref{Kind: "document", ID: 1}

	if err := f.store.AssignGlobalRole(ctx, UserRef(1), "owner"); err != nil {
		t.Fatalf("AssignGlobalRole failed: %v", err)
	}
	if err := f.store.AssignLocalRole(ctx, UserRef(1), doc, "owner"); err != nil {
		t.Fatalf("AssignLocalRole failed: %v", err)
	}

	if err := f.store.DeleteRole(ctx, "owner"); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}

	global, err := f.store.GlobalAssignments(ctx, UserRef(1))
	if err != nil {
		t.Fatalf("GlobalAssignments failed: %v", err)
	}
	if len(global) != 0 {
		t.Errorf("Expected global assignments gone with the role, got %d", len(global))
	}

	local, err := f.store.LocalAssignments(ctx, doc, "")
	if err != nil {
		t.Fatalf("LocalAssignments failed: %v", err)
	}
	if len(local) != 0 {
		t.Errorf("Expected local assignments gone with the role, got %d", len(local))
	}
}

func TestStore_RegistryValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	registry := NewRegistry()
	registry.Register(KindUser, func(ctx context.Context, id int64) (bool, error) {
		return id < 100, nil
	})
	registry.Register("document", func(ctx context.Context, id int64) (bool, error) {
		return true, nil
	})
	f.store.WithRegistry(registry)

	f.createRole(t, "owner")

	if err := f.store.AssignGlobalRole(ctx, UserRef(1), "owner"); err != nil {
		t.Fatalf("AssignGlobalRole with valid ref failed: %v", err)
	}

	err := f.store.AssignGlobalRole(ctx, UserRef(100), "owner")
	var dangling *DanglingRefError
	if !errors.As(err, &dangling) {
		t.Errorf("Expected DanglingRefError for missing user, got %v", err)
	}

	err = f.store.AssignLocalRole(ctx, UserRef(1), Ref{Kind: "widget", ID: 1}, "owner")
	var unknown *UnknownKindError
	if !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownKindError for unregistered kind, got %v", err)
	}
}
