package postgres

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

// tenantTables are the tables carrying a row-security policy. The
// organizations table is deliberately absent: it is globally visible.
var tenantTables = []string{
	"users",
	"roles",
	"resources",
	"organization_properties",
	"user_properties",
	"role_properties",
	"user_roles",
	"user_permissions",
	"role_permissions",
}

// GetMigrations returns all migrations. appRole is the restricted database
// principal; it is granted table access here while the row-security policies
// bound what it can see. The login credential for appRole is provisioned by
// the operator, not by migrations.
func GetMigrations(appRole string) []Migration {
	migrations := []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (id, org_id)
				);

				CREATE INDEX idx_users_org_id ON users(org_id);
				CREATE INDEX idx_users_identity ON users(identity_provider, identity_provider_user_id);

				CREATE TABLE IF NOT EXISTS roles (
					id TEXT NOT NULL,
					org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (id, org_id)
				);

				CREATE INDEX idx_roles_org_id ON roles(org_id);
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
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (id, org_id)
				);

				CREATE INDEX idx_resources_org_id ON resources(org_id);
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
					hidden BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (org_id, name)
				);

				CREATE TABLE IF NOT EXISTS user_properties (
					user_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					name TEXT NOT NULL,
					value TEXT NOT NULL,
					hidden BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, org_id, name),
					FOREIGN KEY (user_id, org_id) REFERENCES users(id, org_id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS role_properties (
					role_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					name TEXT NOT NULL,
					value TEXT NOT NULL,
					hidden BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role_id, org_id),
					FOREIGN KEY (user_id, org_id) REFERENCES users(id, org_id) ON DELETE CASCADE,
					FOREIGN KEY (role_id, org_id) REFERENCES roles(id, org_id) ON DELETE CASCADE
				);

				CREATE INDEX idx_user_roles_role ON user_roles(role_id, org_id);

				-- resource_id is a pattern and may denote a subtree that no
				-- stored resource row corresponds to, so no foreign key.
				CREATE TABLE IF NOT EXISTS user_permissions (
					user_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					resource_id TEXT NOT NULL,
					action TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, org_id, resource_id, action),
					FOREIGN KEY (user_id, org_id) REFERENCES users(id, org_id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					resource_id TEXT NOT NULL,
					action TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (role_id, org_id, resource_id, action),
					FOREIGN KEY (role_id, org_id) REFERENCES roles(id, org_id) ON DELETE CASCADE
				);
			`,
		},
	}

	// Row-security policies. The restricted principal only sees rows whose
	// org_id matches the session variable; the root principal is not
	// subject to the policies (it owns the tables and FORCE is not set).
	policySQL := ""
	for _, table := range tenantTables {
		policySQL += fmt.Sprintf(`
			ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY;
			CREATE POLICY %[1]s_tenant_isolation ON %[1]s
				USING (org_id = current_setting('gatehouse.current_org_id', true))
				WITH CHECK (org_id = current_setting('gatehouse.current_org_id', true));
		`, table)
	}
	migrations = append(migrations, Migration{
		Version:     6,
		Description: "Enable row security on tenant-scoped tables",
		SQL:         policySQL,
	})

	migrations = append(migrations, Migration{
		Version:     7,
		Description: "Grant table access to the restricted principal",
		SQL: fmt.Sprintf(`
			GRANT USAGE ON SCHEMA public TO %[1]s;
			GRANT SELECT, INSERT, UPDATE, DELETE ON organizations TO %[1]s;
			GRANT SELECT, INSERT, UPDATE, DELETE ON users, roles, resources TO %[1]s;
			GRANT SELECT, INSERT, UPDATE, DELETE ON organization_properties, user_properties, role_properties TO %[1]s;
			GRANT SELECT, INSERT, UPDATE, DELETE ON user_roles, user_permissions, role_permissions TO %[1]s;
		`, appRole),
	})

	return migrations
}

// RunMigrations executes all pending migrations against the root principal.
func RunMigrations(ctx context.Context, db *sql.DB, appRole string) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gatehouse_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

	for _, migration := range GetMigrations(appRole) {
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
			"INSERT INTO gatehouse_migrations (version, description) VALUES ($1, $2)",
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
