package authz

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists role bundles and role assignments. Role arguments on the
// assignment operations are names, resolved by lookup; an unknown name
// fails with NotFoundError before any write happens.
//
// When a Registry is installed, assignment writes validate their assignee
// and instance references through it.
type Store struct {
	db       *sql.DB
	registry *Registry
}

// NewStore creates a store over the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithRegistry installs reference validation for assignment writes and
// returns the store for chaining.
func (s *Store) WithRegistry(registry *Registry) *Store {
	s.registry = registry
	return s
}

// CreateRole creates a role with the given permission bundle. Role names
// are unique; creating a duplicate fails with the database's constraint
// error.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	now := time.Now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, role.Name, now, now).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now

	for _, p := range role.Permissions {
		if err := s.AddPermission(ctx, role.Name, p); err != nil {
			return err
		}
	}
	return nil
}

// GetRole retrieves a role and its permission bundle by id.
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	var role Role
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM roles WHERE id = $1
	`, roleID).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, roleNotFound(fmt.Sprintf("id %d", roleID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if err := s.loadPermissions(ctx, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRoleByName retrieves a role and its permission bundle by name.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM roles WHERE name = $1
	`, name).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, roleNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if err := s.loadPermissions(ctx, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles lists roles ordered by name. A non-empty nameFilter restricts
// the listing to names containing the filter.
func (s *Store) ListRoles(ctx context.Context, nameFilter string) ([]Role, error) {
	query := `SELECT id, name, created_at, updated_at FROM roles ORDER BY name ASC`
	args := []interface{}{}
	if nameFilter != "" {
		query = `
			SELECT id, name, created_at, updated_at FROM roles
			WHERE name LIKE $1 ORDER BY name ASC
		`
		args = append(args, "%"+nameFilter+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		if err := s.loadPermissions(ctx, &roles[i]); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// DeleteRole deletes a role and its assignments.
func (s *Store) DeleteRole(ctx context.Context, name string) error {
	role, err := s.GetRoleByName(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	for _, query := range []string{
		`DELETE FROM role_permissions WHERE role_id = $1`,
		`DELETE FROM global_roles WHERE role_id = $1`,
		`DELETE FROM local_roles WHERE role_id = $1`,
		`DELETE FROM roles WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, role.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete role: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role deletion: %w", err)
	}
	return nil
}

// AddPermission adds a permission to a role's bundle. Adding a permission
// the role already bundles is a no-op.
func (s *Store) AddPermission(ctx context.Context, roleName, permission string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO role_permissions (role_id, permission)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, role.ID, permission); err != nil {
		return fmt.Errorf("failed to add permission to role: %w", err)
	}
	return nil
}

// AssignGlobalRole grants the named role to the assignee globally.
// Get-or-create semantics: assigning an already-held role is a no-op.
func (s *Store) AssignGlobalRole(ctx context.Context, assignee Ref, roleName string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.validateRef(ctx, assignee); err != nil {
		return err
	}
	query := `
		INSERT INTO global_roles (assignee_kind, assignee_id, role_id, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (assignee_kind, assignee_id, role_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, assignee.Kind, assignee.ID, role.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to assign global role: %w", err)
	}
	return nil
}

// UnassignGlobalRole removes all matching global assignments; no-op if
// none exist.
func (s *Store) UnassignGlobalRole(ctx context.Context, assignee Ref, roleName string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	query := `
		DELETE FROM global_roles
		WHERE assignee_kind = $1 AND assignee_id = $2 AND role_id = $3
	`
	if _, err := s.db.ExecContext(ctx, query, assignee.Kind, assignee.ID, role.ID); err != nil {
		return fmt.Errorf("failed to unassign global role: %w", err)
	}
	return nil
}

// GlobalAssignments returns all global assignments for the exact assignee,
// without group expansion.
func (s *Store) GlobalAssignments(ctx context.Context, assignee Ref) ([]GlobalAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assignee_kind, assignee_id, role_id, granted_at
		FROM global_roles
		WHERE assignee_kind = $1 AND assignee_id = $2
	`, assignee.Kind, assignee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get global assignments: %w", err)
	}
	defer rows.Close()
	return scanGlobalAssignments(rows)
}

// GlobalRolesOf returns the roles globally held by the exact assignee.
func (s *Store) GlobalRolesOf(ctx context.Context, assignee Ref) ([]Role, error) {
	assignments, err := s.GlobalAssignments(ctx, assignee)
	if err != nil {
		return nil, err
	}
	return s.rolesFor(ctx, roleIDsOfGlobal(assignments))
}

// HasGlobalRole reports whether the exact assignee holds the named role
// globally. Groups are not expanded; use GroupDirectory for the
// group-aware query.
func (s *Store) HasGlobalRole(ctx context.Context, assignee Ref, roleName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM global_roles gr
			JOIN roles r ON r.id = gr.role_id
			WHERE gr.assignee_kind = $1 AND gr.assignee_id = $2 AND r.name = $3
		)
	`, assignee.Kind, assignee.ID, roleName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check global role: %w", err)
	}
	return exists, nil
}

// SetLocalRole gives the named role on the instance exactly one holder:
// every existing local assignment for (role, instance) is discarded
// regardless of assignee, then a single row for the given assignee is
// created. Concurrent sets on the same pair are best-effort
// last-writer-wins, not a strict lock.
func (s *Store) SetLocalRole(ctx context.Context, assignee Ref, instance Ref, roleName string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.validateRef(ctx, assignee); err != nil {
		return err
	}
	if err := s.validateRef(ctx, instance); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM local_roles
		WHERE role_id = $1 AND instance_kind = $2 AND instance_id = $3
	`, role.ID, instance.Kind, instance.ID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear local role holders: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO local_roles (assignee_kind, assignee_id, instance_kind, instance_id, role_id, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, assignee.Kind, assignee.ID, instance.Kind, instance.ID, role.ID, time.Now())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to set local role: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit local role set: %w", err)
	}
	return nil
}

// AssignLocalRole grants the named role to the assignee on the instance,
// leaving other assignees' rows for the same role untouched.
// Get-or-create semantics.
func (s *Store) AssignLocalRole(ctx context.Context, assignee Ref, instance Ref, roleName string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.validateRef(ctx, assignee); err != nil {
		return err
	}
	if err := s.validateRef(ctx, instance); err != nil {
		return err
	}
	query := `
		INSERT INTO local_roles (assignee_kind, assignee_id, instance_kind, instance_id, role_id, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignee_kind, assignee_id, instance_kind, instance_id, role_id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		assignee.Kind, assignee.ID, instance.Kind, instance.ID, role.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to assign local role: %w", err)
	}
	return nil
}

// UnassignLocalRole removes the exact-match local assignment; no-op if
// absent.
func (s *Store) UnassignLocalRole(ctx context.Context, assignee Ref, instance Ref, roleName string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	query := `
		DELETE FROM local_roles
		WHERE assignee_kind = $1 AND assignee_id = $2
		  AND instance_kind = $3 AND instance_id = $4 AND role_id = $5
	`
	_, err = s.db.ExecContext(ctx, query,
		assignee.Kind, assignee.ID, instance.Kind, instance.ID, role.ID)
	if err != nil {
		return fmt.Errorf("failed to unassign local role: %w", err)
	}
	return nil
}

// LocalAssignments returns all local assignments on the instance. A
// non-empty roleName restricts the listing to that role; an unknown name
// fails with NotFoundError.
func (s *Store) LocalAssignments(ctx context.Context, instance Ref, roleName string) ([]LocalAssignment, error) {
	query := `
		SELECT id, assignee_kind, assignee_id, instance_kind, instance_id, role_id, granted_at
		FROM local_roles
		WHERE instance_kind = $1 AND instance_id = $2
	`
	args := []interface{}{instance.Kind, instance.ID}
	if roleName != "" {
		role, err := s.GetRoleByName(ctx, roleName)
		if err != nil {
			return nil, err
		}
		query += ` AND role_id = $3`
		args = append(args, role.ID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get local assignments: %w", err)
	}
	defer rows.Close()
	return scanLocalAssignments(rows)
}

// HasLocalRole reports whether the exact assignee holds the named role on
// the instance. Groups are not expanded.
func (s *Store) HasLocalRole(ctx context.Context, assignee Ref, instance Ref, roleName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM local_roles lr
			JOIN roles r ON r.id = lr.role_id
			WHERE lr.assignee_kind = $1 AND lr.assignee_id = $2
			  AND lr.instance_kind = $3 AND lr.instance_id = $4
			  AND r.name = $5
		)
	`, assignee.Kind, assignee.ID, instance.Kind, instance.ID, roleName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check local role: %w", err)
	}
	return exists, nil
}

func (s *Store) validateRef(ctx context.Context, ref Ref) error {
	if s.registry == nil {
		return nil
	}
	return s.registry.Validate(ctx, ref)
}

func (s *Store) loadPermissions(ctx context.Context, role *Role) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission
	`, role.ID)
	if err != nil {
		return fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	role.Permissions = nil
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("failed to scan permission: %w", err)
		}
		role.Permissions = append(role.Permissions, p)
	}
	return rows.Err()
}

func (s *Store) rolesFor(ctx context.Context, ids []int64) ([]Role, error) {
	roles := make([]Role, 0, len(ids))
	for _, id := range ids {
		role, err := s.GetRole(ctx, id)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

func roleIDsOfGlobal(assignments []GlobalAssignment) []int64 {
	seen := make(map[int64]struct{}, len(assignments))
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.RoleID]; ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		ids = append(ids, a.RoleID)
	}
	return ids
}

func roleIDsOfLocal(assignments []LocalAssignment) []int64 {
	seen := make(map[int64]struct{}, len(assignments))
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.RoleID]; ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		ids = append(ids, a.RoleID)
	}
	return ids
}

func scanGlobalAssignments(rows *sql.Rows) ([]GlobalAssignment, error) {
	var assignments []GlobalAssignment
	for rows.Next() {
		var a GlobalAssignment
		if err := rows.Scan(&a.ID, &a.Assignee.Kind, &a.Assignee.ID, &a.RoleID, &a.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan global assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanLocalAssignments(rows *sql.Rows) ([]LocalAssignment, error) {
	var assignments []LocalAssignment
	for rows.Next() {
		var a LocalAssignment
		err := rows.Scan(&a.ID, &a.Assignee.Kind, &a.Assignee.ID,
			&a.Instance.Kind, &a.Instance.ID, &a.RoleID, &a.GrantedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan local assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
