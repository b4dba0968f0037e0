package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// GroupDirectory maintains group membership and answers the group-aware
// assignment queries the Resolver uses: "does this user, or any group the
// user belongs to, hold this role." Membership is mutable and externally
// maintained; the directory never caches it.
type GroupDirectory struct {
	db    *sql.DB
	store *Store
}

// NewGroupDirectory creates a directory sharing the store's database.
func NewGroupDirectory(db *sql.DB, store *Store) *GroupDirectory {
	return &GroupDirectory{db: db, store: store}
}

// CreateGroup creates a group.
func (d *GroupDirectory) CreateGroup(ctx context.Context, group *Group) error {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO user_groups (name, description)
		VALUES ($1, $2)
		RETURNING id
	`, group.Name, group.Description).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// ListGroups lists all groups ordered by name.
func (d *GroupDirectory) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, description FROM user_groups ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

// AddMember adds a user to a group; no-op if already a member.
func (d *GroupDirectory) AddMember(ctx context.Context, groupID, userID int64) error {
	query := `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`
	if _, err := d.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a group; no-op if not a member.
func (d *GroupDirectory) RemoveMember(ctx context.Context, groupID, userID int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	if _, err := d.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// GroupsOf returns the user's current group memberships.
func (d *GroupDirectory) GroupsOf(ctx context.Context, userID int64) ([]Group, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.description
		FROM user_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups of user: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

// GroupIDsOf returns the ids of the user's current groups.
func (d *GroupDirectory) GroupIDsOf(ctx context.Context, userID int64) ([]int64, error) {
	groups, err := d.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids, nil
}

// UserGlobalAssignments returns the global assignments held by the user
// directly or by any group the user belongs to.
func (d *GroupDirectory) UserGlobalAssignments(ctx context.Context, userID int64) ([]GlobalAssignment, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, assignee_kind, assignee_id, role_id, granted_at
		FROM global_roles
		WHERE (assignee_kind = $1 AND assignee_id = $2)
		   OR (assignee_kind = $3 AND assignee_id IN (
				SELECT group_id FROM group_members WHERE user_id = $2))
	`, KindUser, userID, KindGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to get user global assignments: %w", err)
	}
	defer rows.Close()
	return scanGlobalAssignments(rows)
}

// UserGlobalRoles returns the roles behind UserGlobalAssignments.
func (d *GroupDirectory) UserGlobalRoles(ctx context.Context, userID int64) ([]Role, error) {
	assignments, err := d.UserGlobalAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	return d.store.rolesFor(ctx, roleIDsOfGlobal(assignments))
}

// UserLocalAssignments returns the local assignments on the instance held
// by the user directly or by any group the user belongs to.
func (d *GroupDirectory) UserLocalAssignments(ctx context.Context, userID int64, instance Ref) ([]LocalAssignment, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, assignee_kind, assignee_id, instance_kind, instance_id, role_id, granted_at
		FROM local_roles
		WHERE instance_kind = $1 AND instance_id = $2
		  AND ((assignee_kind = $3 AND assignee_id = $4)
		    OR (assignee_kind = $5 AND assignee_id IN (
				SELECT group_id FROM group_members WHERE user_id = $4)))
	`, instance.Kind, instance.ID, KindUser, userID, KindGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to get user local assignments: %w", err)
	}
	defer rows.Close()
	return scanLocalAssignments(rows)
}

// UserLocalRoles returns the roles behind UserLocalAssignments.
func (d *GroupDirectory) UserLocalRoles(ctx context.Context, userID int64, instance Ref) ([]Role, error) {
	assignments, err := d.UserLocalAssignments(ctx, userID, instance)
	if err != nil {
		return nil, err
	}
	return d.store.rolesFor(ctx, roleIDsOfLocal(assignments))
}

// HasUserLocalRole reports whether the user holds the named role on the
// instance, directly or through a group.
func (d *GroupDirectory) HasUserLocalRole(ctx context.Context, userID int64, instance Ref, roleName string) (bool, error) {
	role, err := d.store.GetRoleByName(ctx, roleName)
	if err != nil {
		return false, err
	}
	assignments, err := d.UserLocalAssignments(ctx, userID, instance)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.RoleID == role.ID {
			return true, nil
		}
	}
	return false, nil
}

func scanGroups(rows *sql.Rows) ([]Group, error) {
	var groups []Group
	for rows.Next() {
		var g Group
		var description sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.Description = description.String
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
