package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/ids"
)

// memStore is an in-memory CredentialStore + PermissionStore used by
// the tests in this package.
type memStore struct {
	users       map[string]*User                   // id -> user
	roles       map[string]Role                    // id -> role
	assignments map[string]map[string]bool         // userID -> roleID set
	grants      map[string]map[PermissionName]bool // roleID -> permission set
	catalog     []Permission
}

func newMemStore() *memStore {
	m := &memStore{
		users:       map[string]*User{},
		roles:       map[string]Role{},
		assignments: map[string]map[string]bool{},
		grants:      map[string]map[PermissionName]bool{},
	}
	for _, name := range Catalog() {
		m.catalog = append(m.catalog, Permission{ID: ids.New(), Name: name})
	}
	return m
}

func (m *memStore) addRole(name string, perms ...PermissionName) Role {
	r := Role{ID: ids.New(), Name: name}
	m.roles[r.ID] = r
	m.grants[r.ID] = map[PermissionName]bool{}
	for _, p := range perms {
		m.grants[r.ID][p] = true
	}
	return r
}

func (m *memStore) Save(_ context.Context, u *User) error {
	m.users[u.ID] = u
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListUsers(_ context.Context) ([]*User, error) {
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, userID string) error {
	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	delete(m.users, userID)
	delete(m.assignments, userID)
	return nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, userID, hash string, changeRequired bool) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangeRequired = changeRequired
	return nil
}

func (m *memStore) SetActive(_ context.Context, userID string, active bool) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	return nil
}

func (m *memStore) UpdateLastLogin(_ context.Context, userID string) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

func (m *memStore) AssignRole(_ context.Context, userID, roleID string) error {
	if m.assignments[userID] == nil {
		m.assignments[userID] = map[string]bool{}
	}
	if m.assignments[userID][roleID] {
		return ErrConflict
	}
	m.assignments[userID][roleID] = true
	return nil
}

func (m *memStore) RemoveRole(_ context.Context, userID, roleID string) error {
	if !m.assignments[userID][roleID] {
		return ErrNotFound
	}
	delete(m.assignments[userID], roleID)
	return nil
}

func (m *memStore) RolesOf(_ context.Context, userID string) ([]Role, error) {
	var out []Role
	for roleID := range m.assignments[userID] {
		out = append(out, m.roles[roleID])
	}
	return out, nil
}

func (m *memStore) HasRole(_ context.Context, userID, roleName string) (bool, error) {
	for roleID := range m.assignments[userID] {
		if m.roles[roleID].Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindRoleByName(_ context.Context, name string) (*Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, fmt.Errorf("%w: role %s", ErrNotFound, name)
}

func (m *memStore) ListRoles(_ context.Context) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ListPermissions(_ context.Context) ([]Permission, error) {
	return append([]Permission(nil), m.catalog...), nil
}

func (m *memStore) PermissionsOfRole(_ context.Context, roleID string) ([]Permission, error) {
	var out []Permission
	for name := range m.grants[roleID] {
		out = append(out, Permission{ID: ids.New(), Name: name})
	}
	return out, nil
}

func (m *memStore) RoleHasPermission(_ context.Context, roleID string, name PermissionName) (bool, error) {
	return m.grants[roleID][name], nil
}

// memAudit collects entries recorded during service tests.
type memAudit struct {
	entries []audit.Entry
}

func (m *memAudit) Append(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAudit) FindRecent(context.Context, int) ([]audit.Entry, error) {
	return append([]audit.Entry(nil), m.entries...), nil
}

func (m *memAudit) FindByFilter(_ context.Context, f audit.Filter, _ audit.Page) ([]audit.Entry, int, error) {
	var out []audit.Entry
	for _, e := range m.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *memAudit) DeleteByFilter(context.Context, audit.Filter) (int64, error) {
	return 0, nil
}

func (m *memAudit) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memAudit) last() audit.Entry {
	if len(m.entries) == 0 {
		return audit.Entry{}
	}
	return m.entries[len(m.entries)-1]
}
