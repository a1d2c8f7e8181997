package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents one schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations. The schema mirrors the Postgres
// backend's tables column for column; isolation predicates live in the
// repositories instead of policies.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users and roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT NOT NULL,
					org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					identity_provider TEXT NOT NULL,
					identity_provider_user_id TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (id, org_id)
				);

				CREATE INDEX IF NOT EXISTS idx_users_org_id ON users(org_id);
				CREATE INDEX IF NOT EXISTS idx_users_identity ON users(identity_provider, identity_provider_user_id);

				CREATE TABLE IF NOT EXISTS roles (
					id TEXT NOT NULL,
					org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (id, org_id)
				);

				CREATE INDEX IF NOT EXISTS idx_roles_org_id ON roles(org_id);
			`,
		},
		{
			Version:     3,
			Description: "Create resources table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resources (
					id TEXT NOT NULL,
					org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name TEXT,
					description TEXT,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (id, org_id)
				);

				CREATE INDEX IF NOT EXISTS idx_resources_org_id ON resources(org_id);
			`,
		},
		{
			Version:     4,
			Description: "Create property tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_properties (
					org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					value TEXT NOT NULL,
					hidden BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (org_id, name)
				);

				CREATE TABLE IF NOT EXISTS user_properties (
					user_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					name TEXT NOT NULL,
					value TEXT NOT NULL,
					hidden BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, org_id, name),
					FOREIGN KEY (user_id, org_id) REFERENCES users(id, org_id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS role_properties (
					role_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					name TEXT NOT NULL,
					value TEXT NOT NULL,
					hidden BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (role_id, org_id, name),
					FOREIGN KEY (role_id, org_id) REFERENCES roles(id, org_id) ON DELETE CASCADE
				);
			`,
		},
		{
			Version:     5,
			Description: "Create assignment and permission tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id TEXT NOT NULL,
					role_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, role_id, org_id),
					FOREIGN KEY (user_id, org_id) REFERENCES users(id, org_id) ON DELETE CASCADE,
					FOREIGN KEY (role_id, org_id) REFERENCES roles(id, org_id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role ON user_roles(role_id, org_id);

				-- resource_id is a pattern and may denote a subtree that no
				-- stored resource row corresponds to, so no foreign key.
				CREATE TABLE IF NOT EXISTS user_permissions (
					user_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					resource_id TEXT NOT NULL,
					action TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, org_id, resource_id, action),
					FOREIGN KEY (user_id, org_id) REFERENCES users(id, org_id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					resource_id TEXT NOT NULL,
					action TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (role_id, org_id, resource_id, action),
					FOREIGN KEY (role_id, org_id) REFERENCES roles(id, org_id) ON DELETE CASCADE
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gatehouse_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM gatehouse_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
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
			"INSERT INTO gatehouse_migrations (version, description) VALUES (?, ?)",
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
