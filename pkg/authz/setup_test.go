package authz

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Mirror of the production schema in SQLite form
	_, err = db.Exec(`
		CREATE TABLE permissions (
			id TEXT PRIMARY KEY,
			description TEXT
		);

		CREATE TABLE user_permissions (
			user_id INTEGER NOT NULL,
			permission TEXT NOT NULL,
			PRIMARY KEY (user_id, permission)
		);

		CREATE TABLE group_permissions (
			group_id INTEGER NOT NULL,
			permission TEXT NOT NULL,
			PRIMARY KEY (group_id, permission)
		);

		CREATE TABLE user_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT
		);

		CREATE TABLE group_members (
			group_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (group_id, user_id)
		);

		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE role_permissions (
			role_id INTEGER NOT NULL,
			permission TEXT NOT NULL,
			PRIMARY KEY (role_id, permission)
		);

		CREATE TABLE global_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			assignee_kind TEXT NOT NULL,
			assignee_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			UNIQUE (assignee_kind, assignee_id, role_id)
		);

		CREATE TABLE local_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			assignee_kind TEXT NOT NULL,
			assignee_id INTEGER NOT NULL,
			instance_kind TEXT NOT NULL,
			instance_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			UNIQUE (assignee_kind, assignee_id, instance_kind, instance_id, role_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

// testFixture wires the full read/write surface over one test database.
type testFixture struct {
	db       *sql.DB
	catalog  *SQLCatalog
	store    *Store
	groups   *GroupDirectory
	resolver *Resolver
}

func setupFixture(t *testing.T) *testFixture {
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	catalog := NewSQLCatalog(db)
	store := NewStore(db)
	groups := NewGroupDirectory(db, store)

	return &testFixture{
		db:       db,
		catalog:  catalog,
		store:    store,
		groups:   groups,
		resolver: NewResolver(catalog, groups),
	}
}

func (f *testFixture) declarePermission(t *testing.T, id string) {
	t.Helper()
	if err := f.catalog.Declare(context.Background(), id, "test permission"); err != nil {
		t.Fatalf("Failed to declare permission %s: %v", id, err)
	}
}

func (f *testFixture) createRole(t *testing.T, name string, permissions ...string) *Role {
	t.Helper()
	role := &Role{Name: name, Permissions: permissions}
	for _, p := range permissions {
		f.declarePermission(t, p)
	}
	if err := f.store.CreateRole(context.Background(), role); err != nil {
		t.Fatalf("Failed to create role %s: %v", name, err)
	}
	return role
}

func (f *testFixture) createGroup(t *testing.T, name string, memberIDs ...int64) *Group {
	t.Helper()
	group := &Group{Name: name}
	if err := f.groups.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("Failed to create group %s: %v", name, err)
	}
	for _, userID := range memberIDs {
		if err := f.groups.AddMember(context.Background(), group.ID, userID); err != nil {
			t.Fatalf("Failed to add member %d to group %s: %v", userID, name, err)
		}
	}
	return group
}
