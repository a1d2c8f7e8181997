package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-auth/gatehouse/pkg/model"
)

func TestGrantIdempotence(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	user, err := repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	first, err := repos.Permissions.GrantUserPermission(ctx, org.ID, user.ID, "/api/*", "read")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	second, err := repos.Permissions.GrantUserPermission(ctx, org.ID, user.ID, "/api/*", "read")
	require.NoError(t, err)

	perms, err := repos.Permissions.ListUserPermissions(ctx, org.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1, "re-granting the same tuple must not add a row")
	assert.True(t, second.CreatedAt.After(first.CreatedAt), "re-grant refreshes created_at")
	assert.WithinDuration(t, second.CreatedAt, perms[0].CreatedAt, time.Second)
}

func TestRevokeNeverGranted(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	revoked, err := repos.Permissions.RevokeUserPermission(ctx, org.ID, "u1", "/api", "read")
	require.NoError(t, err, "revoking an absent grant is not an error")
	assert.False(t, revoked)

	revoked, err = repos.Permissions.RevokeRolePermission(ctx, org.ID, "r1", "/api", "read")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestGrantAndRevokeRoundTrip(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	role, err := repos.Roles.Create(ctx, org.ID, &model.Role{Name: "admin"})
	require.NoError(t, err)

	_, err = repos.Permissions.GrantRolePermission(ctx, org.ID, role.ID, "/api/*", "read")
	require.NoError(t, err)
	_, err = repos.Permissions.GrantRolePermission(ctx, org.ID, role.ID, "/api/*", "write")
	require.NoError(t, err)

	perms, err := repos.Permissions.ListRolePermissions(ctx, org.ID, []string{role.ID})
	require.NoError(t, err)
	require.Len(t, perms, 2)

	revoked, err := repos.Permissions.RevokeRolePermission(ctx, org.ID, role.ID, "/api/*", "write")
	require.NoError(t, err)
	assert.True(t, revoked)

	perms, err = repos.Permissions.ListRolePermissions(ctx, org.ID, []string{role.ID})
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "read", perms[0].Action)
}

func TestListRolePermissionsEmptyRoleList(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	perms, err := repos.Permissions.ListRolePermissions(ctx, org.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestListByResourceExactMatchOnly(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	user, err := repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)
	role, err := repos.Roles.Create(ctx, org.ID, &model.Role{Name: "admin"})
	require.NoError(t, err)

	_, err = repos.Permissions.GrantUserPermission(ctx, org.ID, user.ID, "/api/users", "read")
	require.NoError(t, err)
	_, err = repos.Permissions.GrantUserPermission(ctx, org.ID, user.ID, "/api/*", "read")
	require.NoError(t, err)
	_, err = repos.Permissions.GrantRolePermission(ctx, org.ID, role.ID, "/api/users", "write")
	require.NoError(t, err)

	// The administrative view matches the stored pattern literally; the
	// wildcard grant is not resolved into it.
	userPerms, rolePerms, err := repos.Permissions.ListByResource(ctx, org.ID, "/api/users")
	require.NoError(t, err)
	require.Len(t, userPerms, 1)
	assert.Equal(t, "/api/users", userPerms[0].ResourceID)
	require.Len(t, rolePerms, 1)
	assert.Equal(t, "write", rolePerms[0].Action)
}

func TestResourcePrefixHousekeeping(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	for _, id := range []string{"/api/users", "/api/users/1", "/api/orders", "/billing"} {
		_, err := repos.Resources.Create(ctx, org.ID, &model.Resource{ID: id})
		require.NoError(t, err)
	}

	listed, err := repos.Resources.ListByIDPrefix(ctx, org.ID, "/api/users", model.Page{})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "/api/users", listed[0].ID)
	assert.Equal(t, "/api/users/1", listed[1].ID)

	// LIKE metacharacters in the prefix are literals, not wildcards.
	_, err = repos.Resources.Create(ctx, org.ID, &model.Resource{ID: "/odd_name"})
	require.NoError(t, err)
	_, err = repos.Resources.Create(ctx, org.ID, &model.Resource{ID: "/oddXname"})
	require.NoError(t, err)
	escaped, err := repos.Resources.ListByIDPrefix(ctx, org.ID, "/odd_", model.Page{})
	require.NoError(t, err)
	require.Len(t, escaped, 1)
	assert.Equal(t, "/odd_name", escaped[0].ID)

	removed, err := repos.Resources.DeleteByIDPrefix(ctx, org.ID, "/api")
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	remaining, err := repos.Resources.Count(ctx, org.ID, model.ResourceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)
}
