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

// OrganizationRepository is the Postgres implementation of
// repository.OrganizationRepository. Organizations carry no row-security
// policy, so the same statements work on scoped and unrestricted handles.
type OrganizationRepository struct {
	db    database.TenantDB
	props propertyStore
}

// NewOrganizationRepository creates a Postgres organization repository.
func NewOrganizationRepository(db database.TenantDB) *OrganizationRepository {
	return &OrganizationRepository{
		db:    db,
		props: propertyStore{table: "organization_properties"},
	}
}

const orgColumns = "id, name, description, created_at, updated_at"

// Create inserts the organization and any initial properties atomically.
func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization, props ...model.Property) (*model.Organization, error) {
	created := *org
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	insert := func(db execer) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO organizations (id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, created.ID, created.Name, created.Description, created.CreatedAt, created.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create organization: %w", normalizeError(err, "organization"))
		}
		for _, prop := range props {
			if err := r.props.set(ctx, db, created.ID, "", prop); err != nil {
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

// GetByID retrieves an organization, or (nil, nil) when absent.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orgColumns+" FROM organizations WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	org, err := scanOrganization(rows)
	if err != nil {
		return nil, err
	}
	return org, rows.Err()
}

// List returns organizations matching the filter.
func (r *OrganizationRepository) List(ctx context.Context, filter model.OrganizationFilter, page model.Page) ([]model.Organization, error) {
	query := "SELECT " + orgColumns + " FROM organizations"
	where, args := orgFilterClauses(filter, 1)
	if where != "" {
		query += " WHERE " + where
	}
	query += orderClause("created_at", page)
	pageSQL, pageArgs := pageClause(page, len(args)+1)
	query += pageSQL
	args = append(args, pageArgs...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, *org)
	}
	return orgs, rows.Err()
}

// Count returns the number of organizations matching the filter.
func (r *OrganizationRepository) Count(ctx context.Context, filter model.OrganizationFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM organizations"
	where, args := orgFilterClauses(filter, 1)
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
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

// Update applies the non-nil fields and returns the updated organization,
// or (nil, nil) when it does not exist.
func (r *OrganizationRepository) Update(ctx context.Context, id string, update model.OrganizationUpdate) (*model.Organization, error) {
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
		return r.GetByID(ctx, id)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", idx))
	args = append(args, time.Now().UTC())
	idx++
	args = append(args, id)

	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d", joinSets(sets), idx)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", normalizeError(err, "organization"))
	}
	return r.GetByID(ctx, id)
}

// Delete removes the organization; every user, role, resource, property,
// assignment, and grant under it goes with it via the schema's cascades.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM organizations WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete organization: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetProperties returns all properties of the organization.
func (r *OrganizationRepository) GetProperties(ctx context.Context, orgID string) ([]model.Property, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	return r.props.getAll(ctx, r.db, orgID, "")
}

// GetProperty returns one property, or (nil, nil) when absent.
func (r *OrganizationRepository) GetProperty(ctx context.Context, orgID, name string) (*model.Property, error) {
	if orgID == "" {
		return nil, repository.ErrNoOrgContext
	}
	return r.props.get(ctx, r.db, orgID, "", name)
}

// SetProperty upserts a property by name.
func (r *OrganizationRepository) SetProperty(ctx context.Context, orgID string, prop model.Property) error {
	if orgID == "" {
		return repository.ErrNoOrgContext
	}
	return r.props.set(ctx, r.db, orgID, "", prop)
}

// DeleteProperty removes a property; false when it did not exist.
func (r *OrganizationRepository) DeleteProperty(ctx context.Context, orgID, name string) (bool, error) {
	if orgID == "" {
		return false, repository.ErrNoOrgContext
	}
	return r.props.delete(ctx, r.db, orgID, "", name)
}

// orgFilterClauses renders the filter predicates starting at placeholder
// startIdx.
func orgFilterClauses(filter model.OrganizationFilter, startIdx int) (string, []any) {
	clauses := []string{}
	args := []any{}
	idx := startIdx
	if filter.Name != nil {
		clauses = append(clauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *filter.Name)
		idx++
	}
	if len(filter.Properties) > 0 {
		clause, propArgs := propertyMatchClause("organization_properties", "org_id", filter.Properties, 0, idx)
		clauses = append(clauses, clause)
		args = append(args, propArgs...)
	}
	return joinAnd(clauses), args
}

func scanOrganization(rows *sql.Rows) (*model.Organization, error) {
	var org model.Organization
	if err := rows.Scan(&org.ID, &org.Name, &org.Description, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return &org, nil
}
