package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/pkg/database"
	"github.com/gatehouse-auth/gatehouse/pkg/model"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// RoleRepository is the Postgres implementation of
// repository.RoleRepository.
type RoleRepository struct {
	db    database.TenantDB
	props propertyStore
}

// NewRoleRepository creates a Postgres role repository.
func NewRoleRepository(db database.TenantDB) *RoleRepository {
	return &RoleRepository{
		db:    db,
		props: propertyStore{table: "role_properties", parentCol: "role_id"},
	}
}

const roleColumns = "id, org_id, name, description, created_at, updated_at"

// Create inserts the role and any initial properties atomically.
func (r *RoleRepository) Create(ctx context.Context, orgID string, role *model.Role, props ...model.Property) (*model.Role, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	created := *role
	created.OrgID = orgID
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	insert := func(db execer) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO roles (id, org_id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, created.ID, created.OrgID, created.Name, created.Description, created.CreatedAt, created.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create role: %w", normalizeError(err, "role"))
		}
		for _, prop := range props {
			if err := r.props.set(ctx, db, orgID, created.ID, prop); err != nil {
				return err
			}
		}
		return nil
	}

	if len(props) == 0 {
		if err := insert(r.db); err != nil {
			return nil, err
		}
		return &created, nil
	}

	err := r.db.Tx(ctx, func(tx *sql.Tx) error { return insert(tx) })
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetByID retrieves a role, or (nil, nil) when absent.
func (r *RoleRepository) GetByID(ctx context.Context, orgID, id string) (*model.Role, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE id = $1 AND org_id = $2", id, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	role, err := scanRole(rows)
	if err != nil {
		return nil, err
	}
	return role, rows.Err()
}

// List returns roles in the organization matching the filter.
func (r *RoleRepository) List(ctx context.Context, orgID string, filter model.RoleFilter, page model.Page) ([]model.Role, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	query := "SELECT " + roleColumns + " FROM roles WHERE org_id = $1"
	args := []any{orgID}
	where, filterArgs := roleFilterClauses(filter, 2)
	if where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}
	query += orderClause("name", page)
	pageSQL, pageArgs := pageClause(page, len(args)+1)
	query += pageSQL
	args = append(args, pageArgs...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// Count returns the number of roles matching the filter.
func (r *RoleRepository) Count(ctx context.Context, orgID string, filter model.RoleFilter) (int64, error) {
	if orgID == "" {
		return 0, repository.ErrNoOrgContext
	}

	query := "SELECT COUNT(*) FROM roles WHERE org_id = $1"
	args := []any{orgID}
	where, filterArgs := roleFilterClauses(filter, 2)
	if where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

// Update applies the non-nil fields and returns the updated role, or
// (nil, nil) when it does not exist.
func (r *RoleRepository) Update(ctx context.Context, orgID, id string, update model.RoleUpdate) (*model.Role, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	sets := []string{}
	args := []any{}
	idx := 1
	if update.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *update.Name)
		idx++
	}
	if update.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, *update.Description)
		idx++
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, orgID, id)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", idx))
	args = append(args, time.Now().UTC())
	idx++

	query := fmt.Sprintf("UPDATE roles SET %s WHERE id = $%d AND org_id = $%d", joinSets(sets), idx, idx+1)
	args = append(args, id, orgID)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", normalizeError(err, "role"))
	}
	return r.GetByID(ctx, orgID, id)
}

// Delete removes the role; properties, assignments, and role grants cascade
// with it. Returns false when no such role existed.
func (r *RoleRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM roles WHERE id = $1 AND org_id = $2", id, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to delete role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetProperties returns all properties of the role.
func (r *RoleRepository) GetProperties(ctx context.Context, orgID, roleID string) ([]model.Property, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	return r.props.getAll(ctx, r.db, orgID, roleID)
}

// GetProperty returns one property, or (nil, nil) when absent.
func (r *RoleRepository) GetProperty(ctx context.Context, orgID, roleID, name string) (*model.Property, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	return r.props.get(ctx, r.db, orgID, roleID, name)
}

// SetProperty upserts a property by name.
func (r *RoleRepository) SetProperty(ctx context.Context, orgID, roleID string, prop model.Property) error {
	if orgID == "" {
		return repository.ErrNoOrgContext
	}
	return r.props.set(ctx, r.db, orgID, roleID, prop)
}

// DeleteProperty removes a property; false when it did not exist.
func (r *RoleRepository) DeleteProperty(ctx context.Context, orgID, roleID, name string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}
	return r.props.delete(ctx, r.db, orgID, roleID, name)
}

// GetUserIDs returns the ids of every user holding the role.
func (r *RoleRepository) GetUserIDs(ctx context.Context, orgID, roleID string) ([]string, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM user_roles WHERE role_id = $1 AND org_id = $2 ORDER BY user_id ASC",
		roleID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user ids: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

func roleFilterClauses(filter model.RoleFilter, startIdx int) (string, []any) {
	clauses := []string{}
	args := []any{}
	idx := startIdx
	if filter.Name != nil {
		clauses = append(clauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *filter.Name)
		idx++
	}
	if len(filter.Properties) > 0 {
		clause, propArgs := propertyMatchClause("role_properties", "role_id", filter.Properties, 1, idx)
		clauses = append(clauses, clause)
		args = append(args, propArgs...)
	}
	return joinAnd(clauses), args
}

func scanRole(rows *sql.Rows) (*model.Role, error) {
	var role model.Role
	var description sql.NullString
	if err := rows.Scan(&role.ID, &role.OrgID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	if description.Valid {
		role.Description = description.String
	}
	return &role, nil
}
