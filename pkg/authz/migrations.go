package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the authorization schema, oldest first.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permissions and direct grant tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id VARCHAR(255) PRIMARY KEY,
					description TEXT
				);

				CREATE TABLE IF NOT EXISTS user_permissions (
					user_id BIGINT NOT NULL,
					permission VARCHAR(255) NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, permission)
				);

				CREATE TABLE IF NOT EXISTS group_permissions (
					group_id BIGINT NOT NULL,
					permission VARCHAR(255) NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (group_id, permission)
				);

				CREATE INDEX IF NOT EXISTS idx_user_permissions_permission ON user_permissions(permission);
				CREATE INDEX IF NOT EXISTS idx_group_permissions_permission ON group_permissions(permission);
			`,
		},
		{
			Version:     2,
			Description: "Create groups and membership tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT
				);

				CREATE TABLE IF NOT EXISTS group_members (
					group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL,
					PRIMARY KEY (group_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create roles and role permission bundles",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission VARCHAR(255) NOT NULL,
					PRIMARY KEY (role_id, permission)
				);

				CREATE INDEX IF NOT EXISTS idx_role_permissions_permission ON role_permissions(permission);
			`,
		},
		{
			Version:     4,
			Description: "Create global and local role assignment tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS global_roles (
					id BIGSERIAL PRIMARY KEY,
					assignee_kind VARCHAR(50) NOT NULL,
					assignee_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (assignee_kind, assignee_id, role_id)
				);

				CREATE TABLE IF NOT EXISTS local_roles (
					id BIGSERIAL PRIMARY KEY,
					assignee_kind VARCHAR(50) NOT NULL,
					assignee_id BIGINT NOT NULL,
					instance_kind VARCHAR(50) NOT NULL,
					instance_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (assignee_kind, assignee_id, instance_kind, instance_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_global_roles_assignee ON global_roles(assignee_kind, assignee_id);
				CREATE INDEX IF NOT EXISTS idx_local_roles_instance ON local_roles(instance_kind, instance_id);
				CREATE INDEX IF NOT EXISTS idx_local_roles_role_instance ON local_roles(role_id, instance_kind, instance_id);
			`,
		},
	}
}

// RunMigrations applies all pending migrations in order, each in its own
// transaction.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authz_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM authz_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO authz_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
