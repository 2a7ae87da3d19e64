package identity

import (
	"context"
	"fmt"
)

// PermissionName identifies a capability from the closed catalog below.
// Permission checks go through typed constants rather than free-form
// strings so a misspelled name is a compile error, not a check that
// silently always denies.
type PermissionName string

const (
	PermUserCreate     PermissionName = "USER_CREATE"
	PermUserRead       PermissionName = "USER_READ"
	PermUserUpdate     PermissionName = "USER_UPDATE"
	PermUserDelete     PermissionName = "USER_DELETE"
	PermUserChangeRole PermissionName = "USER_CHANGE_ROLE"

	PermRoleCreate PermissionName = "ROLE_CREATE"
	PermRoleUpdate PermissionName = "ROLE_UPDATE"
	PermRoleDelete PermissionName = "ROLE_DELETE"

	PermSystemImport         PermissionName = "SYSTEM_IMPORT"
	PermSystemExport         PermissionName = "SYSTEM_EXPORT"
	PermSystemViewLogs       PermissionName = "SYSTEM_VIEW_LOGS"
	PermSystemManageSettings PermissionName = "SYSTEM_MANAGE_SETTINGS"

	PermProfileRead    PermissionName = "PROFILE_READ"
	PermProfileUpdate  PermissionName = "PROFILE_UPDATE"
	PermPasswordChange PermissionName = "PASSWORD_CHANGE"
)

// Names of the roles seeded by migrations.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

// Catalog lists every permission the system knows about, in seed order.
func Catalog() []PermissionName {
	return []PermissionName{
		PermUserCreate,
		PermUserRead,
		PermUserUpdate,
		PermUserDelete,
		PermUserChangeRole,
		PermRoleCreate,
		PermRoleUpdate,
		PermRoleDelete,
		PermSystemImport,
		PermSystemExport,
		PermSystemViewLogs,
		PermSystemManageSettings,
		PermProfileRead,
		PermProfileUpdate,
		PermPasswordChange,
	}
}

// ParsePermission maps a stored name back to its catalog constant.
func ParsePermission(name string) (PermissionName, error) {
	for _, p := range Catalog() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, name)
}

// ValidateCatalog cross-checks the compiled-in catalog against the
// permission rows in the store. Run at startup so a drifted seed fails
// fast instead of turning permission checks into silent denials.
func ValidateCatalog(ctx context.Context, store PermissionStore) error {
	stored, err := store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("list permissions: %w", err)
	}
	known := make(map[PermissionName]struct{}, len(stored))
	for _, p := range stored {
		known[p.Name] = struct{}{}
	}
	for _, name := range Catalog() {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: permission %s missing from store", ErrInvalidInput, name)
		}
	}
	return nil
}
