package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/ids"
	"github.com/Artemka007/plk-auth/internal/password"
)

const defaultGeneratedPasswordLength = 16

// Service covers the administrative user lifecycle: creation with a
// generated one-time password, activation toggling, role membership,
// and deletion. Every sensitive action is audited.
type Service struct {
	creds       CredentialStore
	hasher      password.Hasher
	audit       *audit.Log
	passwordLen int
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithGeneratedPasswordLength overrides the length of system-generated
// initial passwords.
func WithGeneratedPasswordLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.passwordLen = n
		}
	}
}

// NewService constructs a Service.
func NewService(creds CredentialStore, auditLog *audit.Log, opts ...ServiceOption) (*Service, error) {
	if creds == nil {
		return nil, errors.New("identity: credential store is required")
	}
	if auditLog == nil {
		return nil, errors.New("identity: audit log is required")
	}
	s := &Service{creds: creds, audit: auditLog, passwordLen: defaultGeneratedPasswordLength}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateUser registers a new active account with a generated one-time
// password, returned exactly once to the caller. The account is
// created with a pending password change so the generated secret
// cannot become permanent.
func (s *Service) CreateUser(ctx context.Context, actor *User, firstName, lastName, email string) (*User, string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, "", err
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, "", fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}

	// Duplicate email is a policy check here, not a constraint error
	// bubbled up from the store.
	if _, err := s.creds.FindByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("%w: email %s is taken", ErrConflict, email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	initial, err := s.hasher.Generate(s.passwordLen)
	if err != nil {
		return nil, "", err
	}
	hash, err := s.hasher.Hash(initial)
	if err != nil {
		return nil, "", err
	}

	u := &User{
		ID:                     ids.New(),
		Email:                  email,
		FirstName:              firstName,
		LastName:               lastName,
		PasswordHash:           hash,
		Active:                 true,
		PasswordChangeRequired: true,
	}
	if err := s.creds.Save(ctx, u); err != nil {
		return nil, "", err
	}

	if err := s.audit.Info(ctx, audit.ActionUserCreated,
		fmt.Sprintf("User %s created", email),
		auditActor(actor), audit.WithSubject(u.ID)); err != nil {
		return u, initial, err
	}
	return u, initial, nil
}

// SetActive toggles an account. Deactivated accounts can never
// authenticate, regardless of credentials.
func (s *Service) SetActive(ctx context.Context, actor *User, email string, active bool) error {
	target, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.creds.SetActive(ctx, target.ID, active); err != nil {
		return err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	return s.audit.Info(ctx, audit.ActionUserStatusChanged,
		fmt.Sprintf("User %s %s", target.Email, state),
		auditActor(actor), audit.WithSubject(target.ID))
}

// DeleteUser removes an account. Self-deletion is refused before the
// store is touched.
func (s *Service) DeleteUser(ctx context.Context, actor *User, email string) error {
	target, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if actor != nil && actor.ID == target.ID {
		return fmt.Errorf("%w: cannot delete own account", ErrInvalidInput)
	}
	if err := s.creds.Delete(ctx, target.ID); err != nil {
		return err
	}
	return s.audit.Info(ctx, audit.ActionUserDeleted,
		fmt.Sprintf("User %s deleted", target.Email),
		auditActor(actor), audit.WithSubject(target.ID))
}

// AssignRole grants role membership. Assigning an already held role is
// a benign no-op audited at INFO; the caller sees ErrConflict and can
// phrase it as such.
func (s *Service) AssignRole(ctx context.Context, actor *User, email, roleName string) error {
	target, role, err := s.findUserAndRole(ctx, email, roleName)
	if err != nil {
		return err
	}
	if err := s.creds.AssignRole(ctx, target.ID, role.ID); err != nil {
		if errors.Is(err, ErrConflict) {
			if auditErr := s.audit.Info(ctx, audit.ActionUserRoleChanged,
				fmt.Sprintf("Role %s already assigned to %s", role.Name, target.Email),
				auditActor(actor), audit.WithSubject(target.ID)); auditErr != nil {
				return auditErr
			}
		}
		return err
	}
	return s.audit.Info(ctx, audit.ActionUserRoleChanged,
		fmt.Sprintf("Role %s assigned to %s", role.Name, target.Email),
		auditActor(actor), audit.WithSubject(target.ID))
}

// RemoveRole revokes role membership.
func (s *Service) RemoveRole(ctx context.Context, actor *User, email, roleName string) error {
	target, role, err := s.findUserAndRole(ctx, email, roleName)
	if err != nil {
		return err
	}
	if err := s.creds.RemoveRole(ctx, target.ID, role.ID); err != nil {
		return err
	}
	return s.audit.Info(ctx, audit.ActionUserRoleChanged,
		fmt.Sprintf("Role %s removed from %s", role.Name, target.Email),
		auditActor(actor), audit.WithSubject(target.ID))
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.creds.ListUsers(ctx)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.creds.ListRoles(ctx)
}

// NormalizeEmail lowercases and trims an address and applies the same
// minimal shape check the rest of the system relies on. Email matching
// is case-insensitive everywhere.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.creds.FindByEmail(ctx, email)
}

func (s *Service) findUserAndRole(ctx context.Context, email, roleName string) (*User, *Role, error) {
	target, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	role, err := s.creds.FindRoleByName(ctx, strings.TrimSpace(roleName))
	if err != nil {
		return nil, nil, err
	}
	return target, role, nil
}

func auditActor(actor *User) audit.EntryOption {
	if actor == nil {
		return func(*audit.Entry) {}
	}
	return audit.WithActor(actor.ID)
}
