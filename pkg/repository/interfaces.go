package repository

import (
	"context"

	"github.com/gatehouse-auth/gatehouse/pkg/model"
)

// OrganizationRepository manages organizations and their properties.
// Organizations are globally visible; listing them requires an unrestricted
// handle on the policy-enforced backend.
type OrganizationRepository interface {
	// Create inserts the organization and any initial properties in one
	// transaction; partial failure rolls the whole group back.
	Create(ctx context.Context, org *model.Organization, props ...model.Property) (*model.Organization, error)
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	List(ctx context.Context, filter model.OrganizationFilter, page model.Page) ([]model.Organization, error)
	Count(ctx context.Context, filter model.OrganizationFilter) (int64, error)
	Update(ctx context.Context, id string, update model.OrganizationUpdate) (*model.Organization, error)
	// Delete removes the organization and cascades to every entity under
	// it. Returns false when no such organization existed.
	Delete(ctx context.Context, id string) (bool, error)

	GetProperties(ctx context.Context, orgID string) ([]model.Property, error)
	GetProperty(ctx context.Context, orgID, name string) (*model.Property, error)
	// SetProperty upserts by name, overwriting value, hidden, and
	// created_at.
	SetProperty(ctx context.Context, orgID string, prop model.Property) error
	DeleteProperty(ctx context.Context, orgID, name string) (bool, error)
}

// UserRepository manages users, their properties, and their role
// assignments within one organization.
type UserRepository interface {
	Create(ctx context.Context, orgID string, user *model.User, props ...model.Property) (*model.User, error)
	GetByID(ctx context.Context, orgID, id string) (*model.User, error)
	// GetByIdentity looks a user up by identity-provider pair across all
	// tenants; it requires an unrestricted handle.
	GetByIdentity(ctx context.Context, provider, providerUserID string) ([]model.User, error)
	List(ctx context.Context, orgID string, filter model.UserFilter, page model.Page) ([]model.User, error)
	Count(ctx context.Context, orgID string, filter model.UserFilter) (int64, error)
	Update(ctx context.Context, orgID, id string, update model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, orgID, id string) (bool, error)

	GetProperties(ctx context.Context, orgID, userID string) ([]model.Property, error)
	GetProperty(ctx context.Context, orgID, userID, name string) (*model.Property, error)
	SetProperty(ctx context.Context, orgID, userID string, prop model.Property) error
	DeleteProperty(ctx context.Context, orgID, userID, name string) (bool, error)

	AssignRole(ctx context.Context, orgID, userID, roleID string) error
	// UnassignRole removes an assignment; false when it did not exist.
	UnassignRole(ctx context.Context, orgID, userID, roleID string) (bool, error)
	GetRoleIDs(ctx context.Context, orgID, userID string) ([]string, error)
}

// RoleRepository manages roles and their properties within one organization.
type RoleRepository interface {
	Create(ctx context.Context, orgID string, role *model.Role, props ...model.Property) (*model.Role, error)
	GetByID(ctx context.Context, orgID, id string) (*model.Role, error)
	List(ctx context.Context, orgID string, filter model.RoleFilter, page model.Page) ([]model.Role, error)
	Count(ctx context.Context, orgID string, filter model.RoleFilter) (int64, error)
	Update(ctx context.Context, orgID, id string, update model.RoleUpdate) (*model.Role, error)
	Delete(ctx context.Context, orgID, id string) (bool, error)

	GetProperties(ctx context.Context, orgID, roleID string) ([]model.Property, error)
	GetProperty(ctx context.Context, orgID, roleID, name string) (*model.Property, error)
	SetProperty(ctx context.Context, orgID, roleID string, prop model.Property) error
	DeleteProperty(ctx context.Context, orgID, roleID, name string) (bool, error)

	GetUserIDs(ctx context.Context, orgID, roleID string) ([]string, error)
}

// ResourceRepository manages resources within one organization. The prefix
// operations support wildcard resource housekeeping: a grant target like
// "/api/users/*" corresponds to a whole stored subtree.
type ResourceRepository interface {
	Create(ctx context.Context, orgID string, resource *model.Resource) (*model.Resource, error)
	GetByID(ctx context.Context, orgID, id string) (*model.Resource, error)
	List(ctx context.Context, orgID string, filter model.ResourceFilter, page model.Page) ([]model.Resource, error)
	Count(ctx context.Context, orgID string, filter model.ResourceFilter) (int64, error)
	Update(ctx context.Context, orgID, id string, update model.ResourceUpdate) (*model.Resource, error)
	Delete(ctx context.Context, orgID, id string) (bool, error)

	ListByIDPrefix(ctx context.Context, orgID, prefix string, page model.Page) ([]model.Resource, error)
	// DeleteByIDPrefix removes every resource whose id starts with prefix
	// and returns how many were removed.
	DeleteByIDPrefix(ctx context.Context, orgID, prefix string) (int64, error)
}

// PermissionRepository manages direct and role grants within one
// organization. Grants are idempotent upserts keyed by the full tuple;
// re-granting refreshes created_at.
type PermissionRepository interface {
	GrantUserPermission(ctx context.Context, orgID, userID, resourceID, action string) (*model.UserPermission, error)
	RevokeUserPermission(ctx context.Context, orgID, userID, resourceID, action string) (bool, error)
	ListUserPermissions(ctx context.Context, orgID, userID string) ([]model.UserPermission, error)

	GrantRolePermission(ctx context.Context, orgID, roleID, resourceID, action string) (*model.RolePermission, error)
	RevokeRolePermission(ctx context.Context, orgID, roleID, resourceID, action string) (bool, error)
	ListRolePermissions(ctx context.Context, orgID string, roleIDs []string) ([]model.RolePermission, error)

	// ListByResource returns grants whose stored pattern exactly equals
	// resourceID, without wildcard resolution.
	ListByResource(ctx context.Context, orgID, resourceID string) ([]model.UserPermission, []model.RolePermission, error)
}

// Repositories bundles one repository per entity family. The core hands
// this to the API layer once a backend is constructed.
type Repositories struct {
	Organizations OrganizationRepository
	Users         UserRepository
	Roles         RoleRepository
	Resources     ResourceRepository
	Permissions   PermissionRepository
}
