package sqlite

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

// UserRepository is the SQLite implementation of repository.UserRepository.
// SQLite has no row-level policies, so every statement filters on org_id
// explicitly.
type UserRepository struct {
	db    database.TenantDB
	props propertyStore
}

// NewUserRepository creates a SQLite user repository.
func NewUserRepository(db database.TenantDB) *UserRepository {
	return &UserRepository{
		db:    db,
		props: propertyStore{table: "user_properties", parentCol: "user_id"},
	}
}

const userColumns = "id, org_id, identity_provider, identity_provider_user_id, created_at, updated_at"

// Create inserts the user and any initial properties atomically.
func (r *UserRepository) Create(ctx context.Context, orgID string, user *model.User, props ...model.Property) (*model.User, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	created := *user
	created.OrgID = orgID
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	insert := func(db execer) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, org_id, identity_provider, identity_provider_user_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, created.ID, created.OrgID, created.IdentityProvider, created.IdentityProviderUserID, created.CreatedAt, created.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", normalizeError(err, "user"))
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

// GetByID retrieves a user, or (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, orgID, id string) (*model.User, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? AND org_id = ?", id, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	user, err := scanUser(rows)
	if err != nil {
		return nil, err
	}
	return user, rows.Err()
}

// GetByIdentity looks a user up by identity-provider pair across tenants.
// It needs an unrestricted handle.
func (r *UserRepository) GetByIdentity(ctx context.Context, provider, providerUserID string) ([]model.User, error) {
	if !r.db.IsRoot() {
		return nil, repository.ErrRootRequired
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE identity_provider = ? AND identity_provider_user_id = ?
		ORDER BY org_id ASC, id ASC
	`, provider, providerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by identity: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// List returns users in the organization matching the filter.
func (r *UserRepository) List(ctx context.Context, orgID string, filter model.UserFilter, page model.Page) ([]model.User, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	query := "SELECT " + userColumns + " FROM users WHERE org_id = ?"
	args := []any{orgID}
	where, filterArgs := userFilterClauses(filter, orgID)
	if where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}
	query += orderClause("created_at", page)
	pageSQL, pageArgs := pageClause(page)
	query += pageSQL
	args = append(args, pageArgs...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// Count returns the number of users matching the filter.
func (r *UserRepository) Count(ctx context.Context, orgID string, filter model.UserFilter) (int64, error) {
	if orgID == "" {
		return 0, repository.ErrNoOrgContext
	}

	query := "SELECT COUNT(*) FROM users WHERE org_id = ?"
	args := []any{orgID}
	where, filterArgs := userFilterClauses(filter, orgID)
	if where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
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

// Update applies the non-nil fields and returns the updated user, or
// (nil, nil) when it does not exist.
func (r *UserRepository) Update(ctx context.Context, orgID, id string, update model.UserUpdate) (*model.User, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	sets := []string{}
	args := []any{}
	if update.IdentityProvider != nil {
		sets = append(sets, "identity_provider = ?")
		args = append(args, *update.IdentityProvider)
	}
	if update.IdentityProviderUserID != nil {
		sets = append(sets, "identity_provider_user_id = ?")
		args = append(args, *update.IdentityProviderUserID)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, orgID, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, orgID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ? AND org_id = ?", joinSets(sets))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", normalizeError(err, "user"))
	}
	return r.GetByID(ctx, orgID, id)
}

// Delete removes the user; properties, role assignments, and direct grants
// cascade with it. Returns false when no such user existed.
func (r *UserRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM users WHERE id = ? AND org_id = ?", id, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetProperties returns all properties of the user.
func (r *UserRepository) GetProperties(ctx context.Context, orgID, userID string) ([]model.Property, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	return r.props.getAll(ctx, r.db, orgID, userID)
}

// GetProperty returns one property, or (nil, nil) when absent.
func (r *UserRepository) GetProperty(ctx context.Context, orgID, userID, name string) (*model.Property, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	return r.props.get(ctx, r.db, orgID, userID, name)
}

// SetProperty upserts a property by name.
func (r *UserRepository) SetProperty(ctx context.Context, orgID, userID string, prop model.Property) error {
	if orgID == "" {
		return repository.ErrNoOrgContext
	}
	return r.props.set(ctx, r.db, orgID, userID, prop)
}

// DeleteProperty removes a property; false when it did not exist.
func (r *UserRepository) DeleteProperty(ctx context.Context, orgID, userID, name string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}
	return r.props.delete(ctx, r.db, orgID, userID, name)
}

// AssignRole assigns a role to the user. Assigning an already-held role is
// a no-op rather than a conflict.
func (r *UserRepository) AssignRole(ctx context.Context, orgID, userID, roleID string) error {
	if orgID == "" {
		return repository.ErrNoOrgContext
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, org_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, role_id, org_id) DO NOTHING
	`, userID, roleID, orgID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", normalizeError(err, "role assignment"))
	}
	return nil
}

// UnassignRole removes a role assignment; false when it did not exist.
func (r *UserRepository) UnassignRole(ctx context.Context, orgID, userID, roleID string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = ? AND role_id = ? AND org_id = ?",
		userID, roleID, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to unassign role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetRoleIDs returns the ids of every role the user holds.
func (r *UserRepository) GetRoleIDs(ctx context.Context, orgID, userID string) ([]string, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT role_id FROM user_roles WHERE user_id = ? AND org_id = ? ORDER BY role_id ASC",
		userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role ids: %w", err)
	}
	defer rows.Close()

	var roleIDs []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		roleIDs = append(roleIDs, roleID)
	}
	return roleIDs, rows.Err()
}

func userFilterClauses(filter model.UserFilter, orgID string) (string, []any) {
	clauses := []string{}
	args := []any{}
	if filter.IdentityProvider != nil {
		clauses = append(clauses, "identity_provider = ?")
		args = append(args, *filter.IdentityProvider)
	}
	if filter.IdentityProviderUserID != nil {
		clauses = append(clauses, "identity_provider_user_id = ?")
		args = append(args, *filter.IdentityProviderUserID)
	}
	if len(filter.Properties) > 0 {
		clause, propArgs := propertyMatchClause("user_properties", "user_id", filter.Properties, orgID)
		clauses = append(clauses, clause)
		args = append(args, propArgs...)
	}
	return joinAnd(clauses), args
}

func scanUser(rows *sql.Rows) (*model.User, error) {
	var user model.User
	if err := rows.Scan(&user.ID, &user.OrgID, &user.IdentityProvider, &user.IdentityProviderUserID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
