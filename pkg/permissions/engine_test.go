package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbsqlite "github.com/gatehouse-auth/gatehouse/pkg/database/sqlite"
	"github.com/gatehouse-auth/gatehouse/pkg/model"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
	reposqlite "github.com/gatehouse-auth/gatehouse/pkg/repository/sqlite"
)

type fixture struct {
	repos  *repository.Repositories
	engine *Engine
	orgID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider, err := dbsqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	require.NoError(t, dbsqlite.RunMigrations(context.Background(), provider.DB()))

	repos := reposqlite.New(provider.Open(""))
	org, err := repos.Organizations.Create(context.Background(), &model.Organization{Name: "acme"})
	require.NoError(t, err)

	return &fixture{repos: repos, engine: NewEngine(repos), orgID: org.ID}
}

func (f *fixture) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	user, err := f.repos.Users.Create(context.Background(), f.orgID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: name,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) createRole(t *testing.T, name string) *model.Role {
	t.Helper()
	role, err := f.repos.Roles.Create(context.Background(), f.orgID, &model.Role{Name: name})
	require.NoError(t, err)
	return role
}

func TestRoleGrantAuthorizesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	admin := f.createRole(t, "admin")
	require.NoError(t, f.repos.Users.AssignRole(ctx, f.orgID, user.ID, admin.ID))

	_, err := f.engine.GrantRolePermission(ctx, f.orgID, admin.ID, "/api/*", "read")
	require.NoError(t, err)

	ok, err := f.engine.HasPermission(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	denied, err := f.engine.HasPermission(ctx, f.orgID, user.ID, "/billing", "read")
	require.NoError(t, err)
	assert.False(t, denied)

	wrongAction, err := f.engine.HasPermission(ctx, f.orgID, user.ID, "/api/users", "write")
	require.NoError(t, err)
	assert.False(t, wrongAction)
}

func TestUnionOfDirectAndRoleGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	admin := f.createRole(t, "admin")
	require.NoError(t, f.repos.Users.AssignRole(ctx, f.orgID, user.ID, admin.ID))

	_, err := f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/docs/*", "read")
	require.NoError(t, err)
	_, err = f.engine.GrantRolePermission(ctx, f.orgID, admin.ID, "/api/*", "read")
	require.NoError(t, err)

	effective, err := f.engine.GetEffectivePermissions(ctx, f.orgID, user.ID, Filter{})
	require.NoError(t, err)
	require.Len(t, effective, 2)

	bySource := map[model.PermissionSource]model.EffectivePermission{}
	for _, perm := range effective {
		bySource[perm.Source] = perm
	}
	require.Contains(t, bySource, model.SourceUser)
	require.Contains(t, bySource, model.SourceRole)
	assert.Equal(t, user.ID, bySource[model.SourceUser].SourceID)
	assert.Equal(t, admin.ID, bySource[model.SourceRole].SourceID)
}

func TestEffectivePermissionsFiltering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	_, err := f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	_, err = f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/*", "write")
	require.NoError(t, err)
	_, err = f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/billing", "read")
	require.NoError(t, err)

	byAction, err := f.engine.GetEffectivePermissions(ctx, f.orgID, user.ID, Filter{Action: "read"})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	byTarget, err := f.engine.GetEffectivePermissions(ctx, f.orgID, user.ID, Filter{ResourceID: "/api/users"})
	require.NoError(t, err)
	assert.Len(t, byTarget, 2, "both actions on the covering wildcard grant")

	exact, err := f.engine.GetEffectivePermissions(ctx, f.orgID, user.ID, Filter{ResourceID: "/billing"})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "/billing", exact[0].ResourceID)
}

func TestRoleGrantStopsAfterUnassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	admin := f.createRole(t, "admin")
	require.NoError(t, f.repos.Users.AssignRole(ctx, f.orgID, user.ID, admin.ID))
	_, err := f.engine.GrantRolePermission(ctx, f.orgID, admin.ID, "/api/*", "read")
	require.NoError(t, err)

	ok, err := f.engine.HasPermission(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.repos.Users.UnassignRole(ctx, f.orgID, user.ID, admin.ID)
	require.NoError(t, err)

	// No caching: the next resolution sees the unassignment.
	ok, err = f.engine.HasPermission(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeIsImmediateAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	_, err := f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/*", "read")
	require.NoError(t, err)

	revoked, err := f.engine.RevokeUserPermission(ctx, f.orgID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	assert.True(t, revoked)

	ok, err := f.engine.HasPermission(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	assert.False(t, ok)

	revokedAgain, err := f.engine.RevokeUserPermission(ctx, f.orgID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	assert.False(t, revokedAgain, "revoking a grant that was never made is a no-op")
}

func TestEffectivePermissionsByPrefix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	_, err := f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	_, err = f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/users/1", "write")
	require.NoError(t, err)
	_, err = f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/billing", "read")
	require.NoError(t, err)

	// Both the covering wildcard grant and the grant inside the subtree are
	// relevant to /api/users; the unrelated one is not.
	relevant, err := f.engine.GetEffectivePermissionsByPrefix(ctx, f.orgID, user.ID, "/api/users", "")
	require.NoError(t, err)
	require.Len(t, relevant, 2)

	readOnly, err := f.engine.GetEffectivePermissionsByPrefix(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	require.Len(t, readOnly, 1)
	assert.Equal(t, "/api/*", readOnly[0].ResourceID)
}

func TestGetPermissionsByResourceIsExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	admin := f.createRole(t, "admin")
	_, err := f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	_, err = f.engine.GrantUserPermission(ctx, f.orgID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	_, err = f.engine.GrantRolePermission(ctx, f.orgID, admin.ID, "/api/users", "write")
	require.NoError(t, err)

	userPerms, rolePerms, err := f.engine.GetPermissionsByResource(ctx, f.orgID, "/api/users")
	require.NoError(t, err)
	require.Len(t, userPerms, 1)
	require.Len(t, rolePerms, 1)
	assert.Equal(t, "/api/users", userPerms[0].ResourceID)
}

// The end-to-end scenario: org, user, role, assignment, wildcard role
// grant, concrete authorization checks.
func TestAuthorizationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "u1")
	admin := f.createRole(t, "admin")
	require.NoError(t, f.repos.Users.AssignRole(ctx, f.orgID, user.ID, admin.ID))

	_, err := f.engine.GrantRolePermission(ctx, f.orgID, admin.ID, "/api/*", "read")
	require.NoError(t, err)

	ok, err := f.engine.HasPermission(ctx, f.orgID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.HasPermission(ctx, f.orgID, user.ID, "/billing", "read")
	require.NoError(t, err)
	assert.False(t, ok)

	effective, err := f.engine.GetEffectivePermissions(ctx, f.orgID, user.ID, Filter{ResourceID: "/api/users", Action: "read"})
	require.NoError(t, err)
	require.Len(t, effective, 1)
	assert.Equal(t, model.SourceRole, effective[0].Source)
	assert.Equal(t, admin.ID, effective[0].SourceID)
}
