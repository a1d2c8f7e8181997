// Package permissions resolves effective permissions from direct user
// grants and role-inherited grants. There is no precedence between the two
// sources: a user is authorized when either source grants the tuple, and
// resolution returns every matching grant rather than collapsing early.
package permissions

import (
	"context"
	"fmt"

	"github.com/gatehouse-auth/gatehouse/pkg/model"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// Filter narrows effective-permission resolution. A nil or zero filter
// returns everything the user holds. ResourceID is a concrete target id;
// grants match it under the strip-then-prefix rule.
type Filter struct {
	ResourceID string
	Action     string
}

// Engine performs grant management and effective-permission resolution on
// top of the repository layer. It holds no state and caches nothing: every
// resolution re-queries the store, so a revoke takes effect immediately.
type Engine struct {
	users UserGrantSource
	perms repository.PermissionRepository
}

// UserGrantSource is the slice of the user repository the engine needs:
// which roles a user holds.
type UserGrantSource interface {
	GetRoleIDs(ctx context.Context, orgID, userID string) ([]string, error)
}

// NewEngine builds an engine over the repository bundle.
func NewEngine(repos *repository.Repositories) *Engine {
	return &Engine{users: repos.Users, perms: repos.Permissions}
}

// GrantUserPermission grants an action on a resource pattern directly to a
// user. Re-granting the same tuple refreshes created_at.
func (e *Engine) GrantUserPermission(ctx context.Context, orgID, userID, resourceID, action string) (*model.UserPermission, error) {
	return e.perms.GrantUserPermission(ctx, orgID, userID, resourceID, action)
}

// GrantRolePermission grants an action on a resource pattern to a role.
func (e *Engine) GrantRolePermission(ctx context.Context, orgID, roleID, resourceID, action string) (*model.RolePermission, error) {
	return e.perms.GrantRolePermission(ctx, orgID, roleID, resourceID, action)
}

// RevokeUserPermission removes a direct grant. Revoking a grant that was
// never made returns false and no error.
func (e *Engine) RevokeUserPermission(ctx context.Context, orgID, userID, resourceID, action string) (bool, error) {
	return e.perms.RevokeUserPermission(ctx, orgID, userID, resourceID, action)
}

// RevokeRolePermission removes a role grant; false when it did not exist.
func (e *Engine) RevokeRolePermission(ctx context.Context, orgID, roleID, resourceID, action string) (bool, error) {
	return e.perms.RevokeRolePermission(ctx, orgID, roleID, resourceID, action)
}

// GetEffectivePermissions returns the union of the user's direct grants and
// the grants of every role the user holds, each tagged with its source.
// When filter.ResourceID is set, only grants whose stored pattern matches
// that concrete target are returned; filter.Action restricts by exact
// action.
func (e *Engine) GetEffectivePermissions(ctx context.Context, orgID, userID string, filter Filter) ([]model.EffectivePermission, error) {
	match := func(pattern string) bool {
		return filter.ResourceID == "" || Matches(pattern, filter.ResourceID)
	}
	return e.resolve(ctx, orgID, userID, filter.Action, match)
}

// HasPermission reports whether at least one grant, direct or inherited,
// authorizes the action on the concrete resource id.
func (e *Engine) HasPermission(ctx context.Context, orgID, userID, resourceID, action string) (bool, error) {
	effective, err := e.GetEffectivePermissions(ctx, orgID, userID, Filter{ResourceID: resourceID, Action: action})
	if err != nil {
		return false, err
	}
	return len(effective) > 0, nil
}

// GetEffectivePermissionsByPrefix returns grants relevant to the whole
// subtree rooted at resourceIDPrefix: grants covering the subtree root and
// grants sitting inside the subtree. Action "" means any action.
func (e *Engine) GetEffectivePermissionsByPrefix(ctx context.Context, orgID, userID, resourceIDPrefix, action string) ([]model.EffectivePermission, error) {
	match := func(pattern string) bool {
		return MatchesPrefix(pattern, resourceIDPrefix)
	}
	return e.resolve(ctx, orgID, userID, action, match)
}

// GetPermissionsByResource returns every grant whose stored pattern exactly
// equals resourceID, without wildcard resolution. This is the
// administrative view answering "who was granted this pattern".
func (e *Engine) GetPermissionsByResource(ctx context.Context, orgID, resourceID string) ([]model.UserPermission, []model.RolePermission, error) {
	return e.perms.ListByResource(ctx, orgID, resourceID)
}

// resolve gathers direct and role grants, applies the action filter and the
// pattern predicate, and tags each surviving grant with its source.
func (e *Engine) resolve(ctx context.Context, orgID, userID, action string, match func(pattern string) bool) ([]model.EffectivePermission, error) {
	direct, err := e.perms.ListUserPermissions(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve direct permissions: %w", err)
	}

	roleIDs, err := e.users.GetRoleIDs(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user roles: %w", err)
	}
	inherited, err := e.perms.ListRolePermissions(ctx, orgID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role permissions: %w", err)
	}

	var effective []model.EffectivePermission
	for _, perm := range direct {
		if action != "" && perm.Action != action {
			continue
		}
		if !match(perm.ResourceID) {
			continue
		}
		effective = append(effective, model.EffectivePermission{
			ResourceID: perm.ResourceID,
			Action:     perm.Action,
			Source:     model.SourceUser,
			SourceID:   perm.UserID,
			CreatedAt:  perm.CreatedAt,
		})
	}
	for _, perm := range inherited {
		if action != "" && perm.Action != action {
			continue
		}
		if !match(perm.ResourceID) {
			continue
		}
		effective = append(effective, model.EffectivePermission{
			ResourceID: perm.ResourceID,
			Action:     perm.Action,
			Source:     model.SourceRole,
			SourceID:   perm.RoleID,
			CreatedAt:  perm.CreatedAt,
		})
	}
	return effective, nil
}
