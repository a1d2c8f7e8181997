package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse-auth/gatehouse/pkg/database"
	"github.com/gatehouse-auth/gatehouse/pkg/model"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// PermissionRepository is the SQLite implementation of
// repository.PermissionRepository.
type PermissionRepository struct {
	db database.TenantDB
}

// NewPermissionRepository creates a SQLite permission repository.
func NewPermissionRepository(db database.TenantDB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// GrantUserPermission grants an action on a resource pattern directly to a
// user. Granting an existing tuple refreshes its created_at instead of
// failing.
func (r *PermissionRepository) GrantUserPermission(ctx context.Context, orgID, userID, resourceID, action string) (*model.UserPermission, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	perm := model.UserPermission{
		UserID:     userID,
		OrgID:      orgID,
		ResourceID: resourceID,
		Action:     action,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_permissions (user_id, org_id, resource_id, action, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, org_id, resource_id, action)
		DO UPDATE SET created_at = excluded.created_at
	`, perm.UserID, perm.OrgID, perm.ResourceID, perm.Action, perm.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to grant user permission: %w", normalizeError(err, "user permission"))
	}
	return &perm, nil
}

// RevokeUserPermission removes one direct grant; false when it did not
// exist.
func (r *PermissionRepository) RevokeUserPermission(ctx context.Context, orgID, userID, resourceID, action string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM user_permissions
		WHERE user_id = ? AND org_id = ? AND resource_id = ? AND action = ?
	`, userID, orgID, resourceID, action)
	if err != nil {
		return false, fmt.Errorf("failed to revoke user permission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListUserPermissions returns all direct grants held by the user.
func (r *PermissionRepository) ListUserPermissions(ctx context.Context, orgID, userID string) ([]model.UserPermission, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, org_id, resource_id, action, created_at
		FROM user_permissions
		WHERE user_id = ? AND org_id = ?
		ORDER BY resource_id ASC, action ASC
	`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}
	defer rows.Close()

	return collectUserPermissions(rows)
}

// GrantRolePermission grants an action on a resource pattern to a role.
// Idempotent like GrantUserPermission.
func (r *PermissionRepository) GrantRolePermission(ctx context.Context, orgID, roleID, resourceID, action string) (*model.RolePermission, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	perm := model.RolePermission{
		RoleID:     roleID,
		OrgID:      orgID,
		ResourceID: resourceID,
		Action:     action,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO role_permissions (role_id, org_id, resource_id, action, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (role_id, org_id, resource_id, action)
		DO UPDATE SET created_at = excluded.created_at
	`, perm.RoleID, perm.OrgID, perm.ResourceID, perm.Action, perm.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to grant role permission: %w", normalizeError(err, "role permission"))
	}
	return &perm, nil
}

// RevokeRolePermission removes one role grant; false when it did not exist.
func (r *PermissionRepository) RevokeRolePermission(ctx context.Context, orgID, roleID, resourceID, action string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = ? AND org_id = ? AND resource_id = ? AND action = ?
	`, roleID, orgID, resourceID, action)
	if err != nil {
		return false, fmt.Errorf("failed to revoke role permission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListRolePermissions returns all grants held by any of the given roles.
// An empty role list returns nothing.
func (r *PermissionRepository) ListRolePermissions(ctx context.Context, orgID string, roleIDs []string) ([]model.RolePermission, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	if len(roleIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(roleIDs))
	args := []any{orgID}
	for i, roleID := range roleIDs {
		placeholders[i] = "?"
		args = append(args, roleID)
	}

	query := fmt.Sprintf(`
		SELECT role_id, org_id, resource_id, action, created_at
		FROM role_permissions
		WHERE org_id = ? AND role_id IN (%s)
		ORDER BY role_id ASC, resource_id ASC, action ASC
	`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	return collectRolePermissions(rows)
}

// ListByResource returns every grant whose stored pattern exactly equals
// resourceID. No wildcard resolution is applied here.
func (r *PermissionRepository) ListByResource(ctx context.Context, orgID, resourceID string) ([]model.UserPermission, []model.RolePermission, error) {
	if orgID == "" {
		return nil, nil, repository.ErrNoOrgContext
	}

	userRows, err := r.db.QueryContext(ctx, `
		SELECT user_id, org_id, resource_id, action, created_at
		FROM user_permissions
		WHERE org_id = ? AND resource_id = ?
		ORDER BY user_id ASC, action ASC
	`, orgID, resourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list user permissions by resource: %w", err)
	}
	userPerms, err := collectUserPermissions(userRows)
	userRows.Close()
	if err != nil {
		return nil, nil, err
	}

	roleRows, err := r.db.QueryContext(ctx, `
		SELECT role_id, org_id, resource_id, action, created_at
		FROM role_permissions
		WHERE org_id = ? AND resource_id = ?
		ORDER BY role_id ASC, action ASC
	`, orgID, resourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list role permissions by resource: %w", err)
	}
	rolePerms, err := collectRolePermissions(roleRows)
	roleRows.Close()
	if err != nil {
		return nil, nil, err
	}

	return userPerms, rolePerms, nil
}

func collectUserPermissions(rows *sql.Rows) ([]model.UserPermission, error) {
	var perms []model.UserPermission
	for rows.Next() {
		var perm model.UserPermission
		if err := rows.Scan(&perm.UserID, &perm.OrgID, &perm.ResourceID, &perm.Action, &perm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func collectRolePermissions(rows *sql.Rows) ([]model.RolePermission, error) {
	var perms []model.RolePermission
	for rows.Next() {
		var perm model.RolePermission
		if err := rows.Scan(&perm.RoleID, &perm.OrgID, &perm.ResourceID, &perm.Action, &perm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}
