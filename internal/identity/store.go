package identity

import "context"

// CredentialStore persists users, roles, and role assignments. The
// Postgres implementation lives in internal/store/pg; tests use
// in-memory fakes.
type CredentialStore interface {
	Save(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	Delete(ctx context.Context, userID string) error

	UpdatePasswordHash(ctx context.Context, userID, hash string, changeRequired bool) error
	SetActive(ctx context.Context, userID string, active bool) error
	UpdateLastLogin(ctx context.Context, userID string) error

	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	RolesOf(ctx context.Context, userID string) ([]Role, error)
	HasRole(ctx context.Context, userID, roleName string) (bool, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

// PermissionStore resolves the permission catalog and role grants.
type PermissionStore interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	PermissionsOfRole(ctx context.Context, roleID string) ([]Permission, error)
	RoleHasPermission(ctx context.Context, roleID string, name PermissionName) (bool, error)
}
