// Package postgres implements the repository interfaces on top of a
// row-security Postgres backend. Tenant scoping is enforced twice: the
// session variable bound by the database layer drives the row-security
// policies, and every statement here still carries an explicit org_id
// predicate so queries behave identically under an unrestricted handle.
package postgres

import (
	"github.com/gatehouse-auth/gatehouse/pkg/database"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// New builds the full repository bundle over one tenant handle.
func New(db database.TenantDB) *repository.Repositories {
	return &repository.Repositories{
		Organizations: NewOrganizationRepository(db),
		Users:         NewUserRepository(db),
		Roles:         NewRoleRepository(db),
		Resources:     NewResourceRepository(db),
		Permissions:   NewPermissionRepository(db),
	}
}
