package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Catalog resolves a permission id to the principals holding it directly
// and the roles bundling it. Lookup fails with NotFoundError for an
// undeclared id; that is a caller bug, not an access-denied outcome.
type Catalog interface {
	Lookup(ctx context.Context, permission string) (*Grants, error)
}

// SQLCatalog is the database-backed permission catalog. Permission ids are
// opaque namespace-qualified strings such as "documents.change_document".
type SQLCatalog struct {
	db *sql.DB
}

// NewSQLCatalog creates a catalog over the given database.
func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

// Declare registers a permission id. Declaring an existing id is a no-op.
func (c *SQLCatalog) Declare(ctx context.Context, id, description string) error {
	query := `
		INSERT INTO permissions (id, description)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, query, id, description); err != nil {
		return fmt.Errorf("failed to declare permission: %w", err)
	}
	return nil
}

// Lookup returns the grant state for a permission id.
func (c *SQLCatalog) Lookup(ctx context.Context, permission string) (*Grants, error) {
	var id string
	err := c.db.QueryRowContext(ctx,
		`SELECT id FROM permissions WHERE id = $1`, permission).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, permissionNotFound(permission)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up permission: %w", err)
	}

	grants := &Grants{
		Permission: permission,
		UserIDs:    make(map[int64]struct{}),
		GroupIDs:   make(map[int64]struct{}),
		RoleIDs:    make(map[int64]struct{}),
	}

	if err := c.collectIDs(ctx, grants.UserIDs,
		`SELECT user_id FROM user_permissions WHERE permission = $1`, permission); err != nil {
		return nil, err
	}
	if err := c.collectIDs(ctx, grants.GroupIDs,
		`SELECT group_id FROM group_permissions WHERE permission = $1`, permission); err != nil {
		return nil, err
	}
	if err := c.collectIDs(ctx, grants.RoleIDs,
		`SELECT role_id FROM role_permissions WHERE permission = $1`, permission); err != nil {
		return nil, err
	}

	return grants, nil
}

// GrantToUser assigns the permission directly to a user, outside the role
// system. Granting an already-held permission is a no-op.
func (c *SQLCatalog) GrantToUser(ctx context.Context, userID int64, permission string) error {
	if err := c.mustExist(ctx, permission); err != nil {
		return err
	}
	query := `
		INSERT INTO user_permissions (user_id, permission)
		VALUES ($1, $2)
		ON CONFLICT (user_id, permission) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, query, userID, permission); err != nil {
		return fmt.Errorf("failed to grant permission to user: %w", err)
	}
	return nil
}

// RevokeFromUser removes a direct user grant; no-op if absent.
func (c *SQLCatalog) RevokeFromUser(ctx context.Context, userID int64, permission string) error {
	query := `DELETE FROM user_permissions WHERE user_id = $1 AND permission = $2`
	if _, err := c.db.ExecContext(ctx, query, userID, permission); err != nil {
		return fmt.Errorf("failed to revoke permission from user: %w", err)
	}
	return nil
}

// GrantToGroup assigns the permission directly to a group.
func (c *SQLCatalog) GrantToGroup(ctx context.Context, groupID int64, permission string) error {
	if err := c.mustExist(ctx, permission); err != nil {
		return err
	}
	query := `
		INSERT INTO group_permissions (group_id, permission)
		VALUES ($1, $2)
		ON CONFLICT (group_id, permission) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, query, groupID, permission); err != nil {
		return fmt.Errorf("failed to grant permission to group: %w", err)
	}
	return nil
}

// RevokeFromGroup removes a direct group grant; no-op if absent.
func (c *SQLCatalog) RevokeFromGroup(ctx context.Context, groupID int64, permission string) error {
	query := `DELETE FROM group_permissions WHERE group_id = $1 AND permission = $2`
	if _, err := c.db.ExecContext(ctx, query, groupID, permission); err != nil {
		return fmt.Errorf("failed to revoke permission from group: %w", err)
	}
	return nil
}

func (c *SQLCatalog) mustExist(ctx context.Context, permission string) error {
	var id string
	err := c.db.QueryRowContext(ctx,
		`SELECT id FROM permissions WHERE id = $1`, permission).Scan(&id)
	if err == sql.ErrNoRows {
		return permissionNotFound(permission)
	}
	if err != nil {
		return fmt.Errorf("failed to look up permission: %w", err)
	}
	return nil
}

func (c *SQLCatalog) collectIDs(ctx context.Context, into map[int64]struct{}, query string, args ...interface{}) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query permission holders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan holder id: %w", err)
		}
		into[id] = struct{}{}
	}
	return rows.Err()
}
