package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gatehouse-auth/gatehouse/pkg/database"
	"github.com/gatehouse-auth/gatehouse/pkg/model"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// ResourceRepository is the SQLite implementation of
// repository.ResourceRepository.
type ResourceRepository struct {
	db database.TenantDB
}

// NewResourceRepository creates a SQLite resource repository.
func NewResourceRepository(db database.TenantDB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = "id, org_id, name, description, created_at, updated_at"

// Create inserts a resource. Resource ids are caller-assigned path strings,
// so an empty id is rejected rather than generated.
func (r *ResourceRepository) Create(ctx context.Context, orgID string, resource *model.Resource) (*model.Resource, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	if resource.ID == "" {
		return nil, fmt.Errorf("resource id is required")
	}

	created := *resource
	created.OrgID = orgID
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resources (id, org_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, created.ID, created.OrgID, created.Name, created.Description, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", normalizeError(err, "resource"))
	}
	return &created, nil
}

// GetByID retrieves a resource, or (nil, nil) when absent.
func (r *ResourceRepository) GetByID(ctx context.Context, orgID, id string) (*model.Resource, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE id = ? AND org_id = ?", id, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	resource, err := scanResource(rows)
	if err != nil {
		return nil, err
	}
	return resource, rows.Err()
}

// List returns resources in the organization matching the filter.
func (r *ResourceRepository) List(ctx context.Context, orgID string, filter model.ResourceFilter, page model.Page) ([]model.Resource, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	query := "SELECT " + resourceColumns + " FROM resources WHERE org_id = ?"
	args := []any{orgID}
	if filter.Name != nil {
		query += " AND name = ?"
		args = append(args, *filter.Name)
	}
	query += orderClause("id", page)
	pageSQL, pageArgs := pageClause(page)
	query += pageSQL
	args = append(args, pageArgs...)

	return r.queryResources(ctx, query, args...)
}

// Count returns the number of resources matching the filter.
func (r *ResourceRepository) Count(ctx context.Context, orgID string, filter model.ResourceFilter) (int64, error) {
	if orgID == "" {
		return 0, repository.ErrNoOrgContext
	}

	query := "SELECT COUNT(*) FROM resources WHERE org_id = ?"
	args := []any{orgID}
	if filter.Name != nil {
		query += " AND name = ?"
		args = append(args, *filter.Name)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
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

// Update applies the non-nil fields and returns the updated resource, or
// (nil, nil) when it does not exist.
func (r *ResourceRepository) Update(ctx context.Context, orgID, id string, update model.ResourceUpdate) (*model.Resource, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	sets := []string{}
	args := []any{}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, orgID, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, orgID)

	query := fmt.Sprintf("UPDATE resources SET %s WHERE id = ? AND org_id = ?", joinSets(sets))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", normalizeError(err, "resource"))
	}
	return r.GetByID(ctx, orgID, id)
}

// Delete removes the resource row. Grants referencing its id are untouched;
// permission patterns do not reference the resources table.
func (r *ResourceRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM resources WHERE id = ? AND org_id = ?", id, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to delete resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListByIDPrefix returns resources whose id starts with prefix, ordered by
// id.
func (r *ResourceRepository) ListByIDPrefix(ctx context.Context, orgID, prefix string, page model.Page) ([]model.Resource, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}

	query := "SELECT " + resourceColumns + ` FROM resources WHERE org_id = ? AND id LIKE ? ESCAPE '\'`
	args := []any{orgID, likePrefix(prefix)}
	query += orderClause("id", page)
	pageSQL, pageArgs := pageClause(page)
	query += pageSQL
	args = append(args, pageArgs...)

	return r.queryResources(ctx, query, args...)
}

// DeleteByIDPrefix removes every resource whose id starts with prefix and
// returns how many rows were removed.
func (r *ResourceRepository) DeleteByIDPrefix(ctx context.Context, orgID, prefix string) (int64, error) {
	if orgID == "" {
		return 0, repository.ErrNoOrgContext
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM resources WHERE org_id = ? AND id LIKE ? ESCAPE '\'`,
		orgID, likePrefix(prefix))
	if err != nil {
		return 0, fmt.Errorf("failed to delete resources by prefix: %w", err)
	}
	return result.RowsAffected()
}

func (r *ResourceRepository) queryResources(ctx context.Context, query string, args ...any) ([]model.Resource, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *resource)
	}
	return resources, rows.Err()
}

func scanResource(rows *sql.Rows) (*model.Resource, error) {
	var resource model.Resource
	var name, description sql.NullString
	if err := rows.Scan(&resource.ID, &resource.OrgID, &name, &description, &resource.CreatedAt, &resource.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan resource: %w", err)
	}
	if name.Valid {
		resource.Name = &name.String
	}
	if description.Valid {
		resource.Description = &description.String
	}
	return &resource, nil
}
