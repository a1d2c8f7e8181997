// Package sqlite implements the repository interfaces on an embedded SQLite
// database. There is no row-security equivalent here, so tenant isolation
// rests entirely on the explicit org_id predicate every statement carries.
package sqlite

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
