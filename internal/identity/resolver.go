package identity

import (
	"context"
	"errors"
	"sort"
)

// Resolver computes effective permissions for a user from its assigned
// roles. Every call re-derives from the store; role counts per user are
// small, and skipping a cache means a role change is visible on the
// next check without invalidation hooks.
type Resolver struct {
	creds CredentialStore
	perms PermissionStore
}

// NewResolver constructs a Resolver.
func NewResolver(creds CredentialStore, perms PermissionStore) (*Resolver, error) {
	if creds == nil || perms == nil {
		return nil, errors.New("identity: resolver requires credential and permission stores")
	}
	return &Resolver{creds: creds, perms: perms}, nil
}

// EffectivePermissions returns the union of permissions granted by all
// roles assigned to the user, sorted by name. There are no negative
// permissions: a grant through any role is a grant.
func (r *Resolver) EffectivePermissions(ctx context.Context, user *User) ([]PermissionName, error) {
	if user == nil {
		return nil, nil
	}
	roles, err := r.creds.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	set := make(map[PermissionName]struct{})
	for _, role := range roles {
		granted, err := r.perms.PermissionsOfRole(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range granted {
			set[p.Name] = struct{}{}
		}
	}
	out := make([]PermissionName, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// HasPermission reports whether any of the user's roles grants name.
// It short-circuits on the first granting role. A nil user has no
// permissions and no error.
func (r *Resolver) HasPermission(ctx context.Context, user *User, name PermissionName) (bool, error) {
	if user == nil {
		return false, nil
	}
	roles, err := r.creds.RolesOf(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		ok, err := r.perms.RoleHasPermission(ctx, role.ID, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasRole is a direct membership check, independent of permissions.
func (r *Resolver) HasRole(ctx context.Context, user *User, roleName string) (bool, error) {
	if user == nil {
		return false, nil
	}
	return r.creds.HasRole(ctx, user.ID, roleName)
}

// CanManageUsers reports whether the user holds any user-management
// permission.
func (r *Resolver) CanManageUsers(ctx context.Context, user *User) (bool, error) {
	for _, name := range []PermissionName{PermUserCreate, PermUserUpdate, PermUserDelete} {
		ok, err := r.HasPermission(ctx, user, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
