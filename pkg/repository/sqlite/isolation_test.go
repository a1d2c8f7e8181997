package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbsqlite "github.com/gatehouse-auth/gatehouse/pkg/database/sqlite"
	"github.com/gatehouse-auth/gatehouse/pkg/model"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// Every statement on this backend must filter on org_id; these negative
// tests probe each table from the wrong organization.

func TestUserIsolation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	user, err := repos.Users.Create(ctx, orgA.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	got, err := repos.Users.GetByID(ctx, orgB.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "org B must not read org A's user")

	list, err := repos.Users.List(ctx, orgB.ID, model.UserFilter{}, model.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)

	provider := "github"
	updated, err := repos.Users.Update(ctx, orgB.ID, user.ID, model.UserUpdate{IdentityProvider: &provider})
	require.NoError(t, err)
	assert.Nil(t, updated, "org B must not update org A's user")

	deleted, err := repos.Users.Delete(ctx, orgB.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "org B must not delete org A's user")

	// The row is untouched.
	intact, err := repos.Users.GetByID(ctx, orgA.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, intact)
	assert.Equal(t, "google", intact.IdentityProvider)
}

func TestRoleIsolation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	role, err := repos.Roles.Create(ctx, orgA.ID, &model.Role{Name: "admin"})
	require.NoError(t, err)

	got, err := repos.Roles.GetByID(ctx, orgB.ID, role.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := repos.Roles.Delete(ctx, orgB.ID, role.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestResourceIsolation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	_, err := repos.Resources.Create(ctx, orgA.ID, &model.Resource{ID: "/api/users"})
	require.NoError(t, err)

	got, err := repos.Resources.GetByID(ctx, orgB.ID, "/api/users")
	require.NoError(t, err)
	assert.Nil(t, got)

	listed, err := repos.Resources.ListByIDPrefix(ctx, orgB.ID, "/api", model.Page{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	removed, err := repos.Resources.DeleteByIDPrefix(ctx, orgB.ID, "/api")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestPropertyIsolation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	user, err := repos.Users.Create(ctx, orgA.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	}, model.Property{Name: "dept", Value: json.RawMessage(`"eng"`)})
	require.NoError(t, err)

	got, err := repos.Users.GetProperty(ctx, orgB.ID, user.ID, "dept")
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := repos.Users.DeleteProperty(ctx, orgB.ID, user.ID, "dept")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPermissionIsolation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	user, err := repos.Users.Create(ctx, orgA.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	_, err = repos.Permissions.GrantUserPermission(ctx, orgA.ID, user.ID, "/api/*", "read")
	require.NoError(t, err)

	perms, err := repos.Permissions.ListUserPermissions(ctx, orgB.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	revoked, err := repos.Permissions.RevokeUserPermission(ctx, orgB.ID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	assert.False(t, revoked, "org B must not revoke org A's grant")

	remaining, err := repos.Permissions.ListUserPermissions(ctx, orgA.ID, user.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRoleAssignmentIsolation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	user, err := repos.Users.Create(ctx, orgA.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)
	role, err := repos.Roles.Create(ctx, orgA.ID, &model.Role{Name: "admin"})
	require.NoError(t, err)
	require.NoError(t, repos.Users.AssignRole(ctx, orgA.ID, user.ID, role.ID))

	roleIDs, err := repos.Users.GetRoleIDs(ctx, orgB.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, roleIDs)

	unassigned, err := repos.Users.UnassignRole(ctx, orgB.ID, user.ID, role.ID)
	require.NoError(t, err)
	assert.False(t, unassigned)
}

func TestNoOrgContextRejected(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	_, err := repos.Users.Create(ctx, "", &model.User{IdentityProvider: "google"})
	assert.ErrorIs(t, err, repository.ErrNoOrgContext)

	_, err = repos.Users.GetByID(ctx, "", "u1")
	assert.ErrorIs(t, err, repository.ErrNoOrgContext)

	_, err = repos.Permissions.GrantUserPermission(ctx, "", "u1", "/api", "read")
	assert.ErrorIs(t, err, repository.ErrNoOrgContext)
}

func TestGetByIdentityRequiresRoot(t *testing.T) {
	ctx := context.Background()

	provider, err := dbsqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	require.NoError(t, dbsqlite.RunMigrations(ctx, provider.DB()))

	root := New(provider.Open(""))
	orgA, err := root.Organizations.Create(ctx, &model.Organization{Name: "org-a"})
	require.NoError(t, err)
	_, err = root.Users.Create(ctx, orgA.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	users, err := root.Users.GetByIdentity(ctx, "google", "alice")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	scoped := New(provider.Open(orgA.ID))
	_, err = scoped.Users.GetByIdentity(ctx, "google", "alice")
	assert.ErrorIs(t, err, repository.ErrRootRequired)
}
