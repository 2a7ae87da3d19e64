package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/identity"
	"github.com/Artemka007/plk-auth/internal/ids"
	"github.com/Artemka007/plk-auth/internal/password"
	"github.com/Artemka007/plk-auth/internal/session"
)

// fakeStore implements the credential, permission, and audit stores in
// memory for console-level tests.
type fakeStore struct {
	users       map[string]*identity.User
	roles       map[string]identity.Role
	assignments map[string]map[string]bool
	grants      map[string]map[identity.PermissionName]bool
	entries     []audit.Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]*identity.User{},
		roles:       map[string]identity.Role{},
		assignments: map[string]map[string]bool{},
		grants:      map[string]map[identity.PermissionName]bool{},
	}
}

func (f *fakeStore) Save(_ context.Context, u *identity.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeStore) ListUsers(_ context.Context) ([]*identity.User, error) {
	var out []*identity.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.users, id)
	return nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, id, hash string, changeRequired bool) error {
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangeRequired = changeRequired
	return nil
}

func (f *fakeStore) SetActive(_ context.Context, id string, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	u.Active = active
	return nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

func (f *fakeStore) AssignRole(_ context.Context, userID, roleID string) error {
	if f.assignments[userID] == nil {
		f.assignments[userID] = map[string]bool{}
	}
	if f.assignments[userID][roleID] {
		return identity.ErrConflict
	}
	f.assignments[userID][roleID] = true
	return nil
}

func (f *fakeStore) RemoveRole(_ context.Context, userID, roleID string) error {
	delete(f.assignments[userID], roleID)
	return nil
}

func (f *fakeStore) RolesOf(_ context.Context, userID string) ([]identity.Role, error) {
	var out []identity.Role
	for roleID := range f.assignments[userID] {
		out = append(out, f.roles[roleID])
	}
	return out, nil
}

func (f *fakeStore) HasRole(_ context.Context, userID, roleName string) (bool, error) {
	for roleID := range f.assignments[userID] {
		if f.roles[roleID].Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindRoleByName(_ context.Context, name string) (*identity.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeStore) ListRoles(_ context.Context) ([]identity.Role, error) {
	var out []identity.Role
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) ListPermissions(_ context.Context) ([]identity.Permission, error) {
	var out []identity.Permission
	for _, name := range identity.Catalog() {
		out = append(out, identity.Permission{ID: ids.New(), Name: name})
	}
	return out, nil
}

func (f *fakeStore) PermissionsOfRole(_ context.Context, roleID string) ([]identity.Permission, error) {
	var out []identity.Permission
	for name := range f.grants[roleID] {
		out = append(out, identity.Permission{ID: ids.New(), Name: name})
	}
	return out, nil
}

func (f *fakeStore) RoleHasPermission(_ context.Context, roleID string, name identity.PermissionName) (bool, error) {
	return f.grants[roleID][name], nil
}

func (f *fakeStore) Append(_ context.Context, e *audit.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeStore) FindRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	out := append([]audit.Entry(nil), f.entries...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) FindByFilter(_ context.Context, flt audit.Filter, _ audit.Page) ([]audit.Entry, int, error) {
	var out []audit.Entry
	for _, e := range f.entries {
		if flt.Matches(e) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) DeleteByFilter(context.Context, audit.Filter) (int64, error) { return 0, nil }
func (f *fakeStore) DeleteOlderThan(context.Context, time.Time) (int64, error)   { return 0, nil }

func (f *fakeStore) addRole(name string, perms ...identity.PermissionName) identity.Role {
	r := identity.Role{ID: ids.New(), Name: name}
	f.roles[r.ID] = r
	f.grants[r.ID] = map[identity.PermissionName]bool{}
	for _, p := range perms {
		f.grants[r.ID][p] = true
	}
	return r
}

func newEnv(t *testing.T) (*Env, *fakeStore, *bytes.Buffer) {
	t.Helper()
	store := newFakeStore()
	out := &bytes.Buffer{}

	auditLog, err := audit.New(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("audit.New: %v", err)
	}
	users, err := identity.NewService(store, auditLog)
	if err != nil {
		t.Fatalf("identity.NewService: %v", err)
	}
	resolver, err := identity.NewResolver(store, store)
	if err != nil {
		t.Fatalf("identity.NewResolver: %v", err)
	}
	auth, err := session.NewService(store, auditLog, zerolog.Nop())
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}

	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	env := &Env{
		Session:  auth.NewSession(),
		Auth:     auth,
		Users:    users,
		Resolver: resolver,
		Audit:    auditLog,
		Registry: reg,
		Out:      out,
		PageSize: 50,
		Log:      zerolog.Nop(),
	}
	return env, store, out
}

// loginAs seeds an active account, optionally in a role, and logs the
// env's session in as it.
func loginAs(t *testing.T, env *Env, store *fakeStore, email string, perms ...identity.PermissionName) *identity.User {
	t.Helper()
	var h password.Hasher
	hash, err := h.Hash("Corr3ct!Pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &identity.User{
		ID: ids.New(), Email: email, FirstName: "Test", LastName: "Operator",
		PasswordHash: hash, Active: true,
	}
	store.users[u.ID] = u
	if len(perms) > 0 {
		role := store.addRole("ROLE_"+email, perms...)
		store.assignments[u.ID] = map[string]bool{role.ID: true}
	}
	res, err := env.Auth.Login(context.Background(), env.Session, email, "Corr3ct!Pass")
	if err != nil || !res.Success {
		t.Fatalf("login failed: %+v %v", res, err)
	}
	return u
}

func TestDispatchUnknownCommand(t *testing.T) {
	env, _, out := newEnv(t)

	if err := env.Registry.Dispatch(context.Background(), env, "frobnicate", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "Unknown command") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestDispatchRequiresLogin(t *testing.T) {
	env, _, out := newEnv(t)

	if err := env.Registry.Dispatch(context.Background(), env, "user list", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "Please log in first.") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestDispatchDeniesAndAudits(t *testing.T) {
	env, store, out := newEnv(t)
	u := loginAs(t, env, store, "viewer@x.com", identity.PermUserRead)
	before := len(store.entries)

	if err := env.Registry.Dispatch(context.Background(), env, "user create", []string{"A", "B", "c@x.com"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "Access denied.") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	if len(store.entries) != before+1 {
		t.Fatalf("expected one denial entry, got %d new", len(store.entries)-before)
	}
	e := store.entries[len(store.entries)-1]
	if e.Action != audit.ActionSecurityAccessDenied || e.Level != audit.LevelWarning || e.ActorID != u.ID {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
}

func TestDispatchAllowsGrantedCommand(t *testing.T) {
	env, store, out := newEnv(t)
	loginAs(t, env, store, "admin@x.com", identity.PermUserCreate, identity.PermUserRead)

	if err := env.Registry.Dispatch(context.Background(), env, "user create", []string{"New", "Person", "new@x.com"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "One-time password:") {
		t.Fatalf("generated password not shown: %s", out.String())
	}
	if _, err := store.FindByEmail(context.Background(), "new@x.com"); err != nil {
		t.Fatalf("account not created: %v", err)
	}
}

func TestDispatchBlocksPendingPasswordChange(t *testing.T) {
	env, store, out := newEnv(t)
	var h password.Hasher
	hash, _ := h.Hash("Initial!Pw1")
	u := &identity.User{
		ID: ids.New(), Email: "fresh@x.com", FirstName: "F", LastName: "L",
		PasswordHash: hash, Active: true, PasswordChangeRequired: true,
	}
	store.users[u.ID] = u
	if _, err := env.Auth.Login(context.Background(), env.Session, u.Email, "Initial!Pw1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := env.Registry.Dispatch(context.Background(), env, "user list", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "change your password") {
		t.Fatalf("pending state not enforced: %s", out.String())
	}
}

func TestResolveVerbPrefersTwoWords(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	name, args := resolveVerb(reg, []string{"user", "create", "A", "B", "c@x.com"})
	if name != "user create" || len(args) != 3 {
		t.Fatalf("unexpected resolution: %q %v", name, args)
	}

	name, args = resolveVerb(reg, []string{"whoami"})
	if name != "whoami" || len(args) != 0 {
		t.Fatalf("unexpected resolution: %q %v", name, args)
	}
}

func TestParseLogFlags(t *testing.T) {
	f, p, err := parseLogFlags([]string{"-level", "WARNING", "-actor", "u1", "-page", "2", "-size", "10"}, 50)
	if err != nil {
		t.Fatalf("parseLogFlags: %v", err)
	}
	if f.Level == nil || *f.Level != audit.LevelWarning || f.ActorID != "u1" {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if p.Number != 2 || p.Size != 10 {
		t.Fatalf("unexpected page: %+v", p)
	}

	if _, _, err := parseLogFlags([]string{"-level", "LOUD"}, 50); err == nil {
		t.Fatal("unknown level must be rejected")
	}
	if _, _, err := parseLogFlags([]string{"-bogus", "x"}, 50); err == nil {
		t.Fatal("unknown flag must be rejected")
	}
}

func TestPasswdViaSecretPrompt(t *testing.T) {
	env, store, out := newEnv(t)
	u := loginAs(t, env, store, "alice@x.com")

	secrets := []string{"N3w!Passw0rd", "N3w!Passw0rd"}
	env.ReadSecret = func(string) (string, error) {
		s := secrets[0]
		secrets = secrets[1:]
		return s, nil
	}

	if err := env.Registry.Dispatch(context.Background(), env, "passwd", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "Password changed.") {
		t.Fatalf("unexpected output: %s", out.String())
	}
	var h password.Hasher
	if !h.Verify("N3w!Passw0rd", u.PasswordHash) {
		t.Fatal("stored hash not rotated")
	}
}
