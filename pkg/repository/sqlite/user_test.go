package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-auth/gatehouse/pkg/model"
)

func TestUserRoleAssignment(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	user, err := repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)
	admin, err := repos.Roles.Create(ctx, org.ID, &model.Role{Name: "admin"})
	require.NoError(t, err)
	viewer, err := repos.Roles.Create(ctx, org.ID, &model.Role{Name: "viewer"})
	require.NoError(t, err)

	require.NoError(t, repos.Users.AssignRole(ctx, org.ID, user.ID, admin.ID))
	require.NoError(t, repos.Users.AssignRole(ctx, org.ID, user.ID, viewer.ID))
	// Re-assigning an already-held role is a no-op.
	require.NoError(t, repos.Users.AssignRole(ctx, org.ID, user.ID, admin.ID))

	roleIDs, err := repos.Users.GetRoleIDs(ctx, org.ID, user.ID)
	require.NoError(t, err)
	assert.Len(t, roleIDs, 2)

	userIDs, err := repos.Roles.GetUserIDs(ctx, org.ID, admin.ID)
	require.NoError(t, err)
	require.Len(t, userIDs, 1)
	assert.Equal(t, user.ID, userIDs[0])

	unassigned, err := repos.Users.UnassignRole(ctx, org.ID, user.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, unassigned)

	unassignedAgain, err := repos.Users.UnassignRole(ctx, org.ID, user.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, unassignedAgain)
}

func TestAssignRoleToMissingRoleFails(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	user, err := repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	err = repos.Users.AssignRole(ctx, org.ID, user.ID, "no-such-role")
	require.Error(t, err)
}

func TestUserListFilters(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	_, err := repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	}, model.Property{Name: "dept", Value: json.RawMessage(`"eng"`)})
	require.NoError(t, err)
	_, err = repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "bob",
	}, model.Property{Name: "dept", Value: json.RawMessage(`"sales"`)})
	require.NoError(t, err)
	_, err = repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "github",
		IdentityProviderUserID: "carol",
	}, model.Property{Name: "dept", Value: json.RawMessage(`"eng"`)})
	require.NoError(t, err)

	google := "google"
	byProvider, err := repos.Users.List(ctx, org.ID, model.UserFilter{IdentityProvider: &google}, model.Page{})
	require.NoError(t, err)
	assert.Len(t, byProvider, 2)

	byProp, err := repos.Users.List(ctx, org.ID, model.UserFilter{
		Properties: []model.PropertyFilter{{Name: "dept", Value: json.RawMessage(`"eng"`)}},
	}, model.Page{})
	require.NoError(t, err)
	assert.Len(t, byProp, 2)

	both, err := repos.Users.List(ctx, org.ID, model.UserFilter{
		IdentityProvider: &google,
		Properties:       []model.PropertyFilter{{Name: "dept", Value: json.RawMessage(`"eng"`)}},
	}, model.Page{})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "alice", both[0].IdentityProviderUserID)

	count, err := repos.Users.Count(ctx, org.ID, model.UserFilter{IdentityProvider: &google})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestGetByIdentityAcrossOrgs(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	orgA := createOrg(t, repos, "org-a")
	orgB := createOrg(t, repos, "org-b")

	// The same identity pair may exist in several organizations.
	_, err := repos.Users.Create(ctx, orgA.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)
	_, err = repos.Users.Create(ctx, orgB.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	users, err := repos.Users.GetByIdentity(ctx, "google", "alice")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.NotEqual(t, users[0].OrgID, users[1].OrgID)

	none, err := repos.Users.GetByIdentity(ctx, "google", "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserUpdatePartial(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	org := createOrg(t, repos, "acme")

	user, err := repos.Users.Create(ctx, org.ID, &model.User{
		IdentityProvider:       "google",
		IdentityProviderUserID: "alice",
	})
	require.NoError(t, err)

	newID := "alice@corp"
	updated, err := repos.Users.Update(ctx, org.ID, user.ID, model.UserUpdate{IdentityProviderUserID: &newID})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "google", updated.IdentityProvider, "unset fields stay unchanged")
	assert.Equal(t, "alice@corp", updated.IdentityProviderUserID)

	// Updating a missing user yields (nil, nil).
	ghost, err := repos.Users.Update(ctx, org.ID, "no-such-user", model.UserUpdate{IdentityProviderUserID: &newID})
	require.NoError(t, err)
	assert.Nil(t, ghost)
}
