// Package session implements the interactive authentication state
// machine: login, logout, and the forced password change flow.
//
// A Session is an explicit value owned by the caller (the command
// loop), not process-global state, so several independent sessions can
// coexist in one process. Login failure messages intentionally
// distinguish unknown users from bad credentials; this mirrors how
// operators debug an administrative installation, at the cost of
// account enumeration by anyone who already holds console access.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Artemka007/plk-auth/internal/audit"
	"github.com/Artemka007/plk-auth/internal/identity"
	"github.com/Artemka007/plk-auth/internal/password"
)

// State is the authentication state of a Session.
type State int

const (
	// Anonymous means nobody is logged in.
	Anonymous State = iota
	// Authenticated means a user is logged in with full access.
	Authenticated
	// PendingPasswordChange means credentials were accepted but the
	// account must set a new password before anything else.
	PendingPasswordChange
)

// Session holds the current-user state for one console. Mutated only
// through Service methods.
type Session struct {
	id    string
	state State
	user  *identity.User
}

// ID identifies this session in diagnostics.
func (s *Session) ID() string { return s.id }

// State returns the current authentication state.
func (s *Session) State() State { return s.state }

// CurrentUser returns the logged-in user, or nil when Anonymous.
func (s *Session) CurrentUser() *identity.User { return s.user }

// IsAuthenticated reports whether a user is logged in, including the
// pending-password-change state.
func (s *Session) IsAuthenticated() bool { return s.state != Anonymous }

// Result is the typed outcome of a credential-path operation. Expected
// failures (bad credentials, weak password) come back here, not as
// errors; only infrastructure failures propagate as errors.
type Result struct {
	Success                bool
	PasswordChangeRequired bool
	Message                string
}

// Service orchestrates session transitions against the credential
// store, the password hasher, and the audit trail.
type Service struct {
	creds  identity.CredentialStore
	hasher password.Hasher
	audit  *audit.Log
	log    zerolog.Logger
}

// NewService constructs a Service.
func NewService(creds identity.CredentialStore, auditLog *audit.Log, logger zerolog.Logger) (*Service, error) {
	if creds == nil {
		return nil, errors.New("session: credential store is required")
	}
	if auditLog == nil {
		return nil, errors.New("session: audit log is required")
	}
	return &Service{creds: creds, audit: auditLog, log: logger}, nil
}

// NewSession returns a fresh anonymous session.
func (s *Service) NewSession() *Session {
	return &Session{id: uuid.NewString(), state: Anonymous}
}

// Login verifies credentials and transitions the session. Every
// attempt, successful or not, produces exactly one audit entry. A
// failed audit write is reported through the logger but does not undo
// the login itself.
func (s *Service) Login(ctx context.Context, sess *Session, email, plaintext string) (Result, error) {
	normalized, err := identity.NormalizeEmail(email)
	if err != nil {
		s.auditSoft(ctx, s.audit.Warning, audit.ActionSystemLogin,
			fmt.Sprintf("Login attempt with malformed email %q", email))
		return Result{Message: "User not found"}, nil
	}
	email = normalized

	user, err := s.creds.FindByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		s.auditSoft(ctx, s.audit.Warning, audit.ActionSystemLogin,
			fmt.Sprintf("Login attempt for unknown email %s", email))
		return Result{Message: "User not found"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if !user.Active {
		s.auditSoft(ctx, s.audit.Warning, audit.ActionSecurityAccessDenied,
			fmt.Sprintf("Login attempt for inactive account %s", email),
			audit.WithSubject(user.ID))
		return Result{Message: "Account is inactive"}, nil
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		s.auditSoft(ctx, s.audit.Warning, audit.ActionSecurityAccessDenied,
			fmt.Sprintf("Invalid credentials for %s", email),
			audit.WithSubject(user.ID))
		return Result{Message: "Invalid credentials"}, nil
	}

	if user.PasswordChangeRequired {
		sess.user = user
		sess.state = PendingPasswordChange
		s.auditSoft(ctx, s.audit.Info, audit.ActionSystemLogin,
			fmt.Sprintf("User %s logged in, password change required", email),
			audit.WithActor(user.ID))
		return Result{Success: true, PasswordChangeRequired: true}, nil
	}

	if err := s.creds.UpdateLastLogin(ctx, user.ID); err != nil {
		return Result{}, err
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now

	sess.user = user
	sess.state = Authenticated
	s.auditSoft(ctx, s.audit.Info, audit.ActionSystemLogin,
		fmt.Sprintf("User %s logged in", email),
		audit.WithActor(user.ID))
	return Result{Success: true}, nil
}

// ChangePassword rotates the current user's own password. A weak
// password is rejected without a state transition; success clears the
// pending-change state.
func (s *Service) ChangePassword(ctx context.Context, sess *Session, newPassword string) (Result, error) {
	if !sess.IsAuthenticated() {
		return Result{Message: "Not logged in"}, nil
	}
	user := sess.user

	if !s.hasher.IsStrong(newPassword) {
		s.auditSoft(ctx, s.audit.Warning, audit.ActionUserPasswordChanged,
			fmt.Sprintf("Rejected weak password for %s", user.Email),
			audit.WithActor(user.ID), audit.WithSubject(user.ID))
		return Result{Message: "Password does not meet strength requirements"}, nil
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Result{}, err
	}
	if err := s.creds.UpdatePasswordHash(ctx, user.ID, hash, false); err != nil {
		return Result{}, err
	}
	user.PasswordHash = hash
	user.PasswordChangeRequired = false
	sess.state = Authenticated

	s.auditSoft(ctx, s.audit.Info, audit.ActionUserPasswordChanged,
		fmt.Sprintf("User %s changed password", user.Email),
		audit.WithActor(user.ID), audit.WithSubject(user.ID))
	return Result{Success: true}, nil
}

// AdminResetPassword sets a new password on the target account and
// forces a change at the target's next login. The caller is
// responsible for the permission check before invoking this. Audited
// separately from self-service changes.
func (s *Service) AdminResetPassword(ctx context.Context, sess *Session, targetEmail, newPassword string) error {
	targetEmail, err := identity.NormalizeEmail(targetEmail)
	if err != nil {
		return err
	}
	target, err := s.creds.FindByEmail(ctx, targetEmail)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.creds.UpdatePasswordHash(ctx, target.ID, hash, true); err != nil {
		return err
	}

	opts := []audit.EntryOption{audit.WithSubject(target.ID)}
	if sess.user != nil {
		opts = append(opts, audit.WithActor(sess.user.ID))
	}
	s.auditSoft(ctx, s.audit.Info, audit.ActionSecurityPasswordReset,
		fmt.Sprintf("Password reset for %s", target.Email), opts...)
	return nil
}

// Logout clears the current user. Logging out while Anonymous is a
// no-op.
func (s *Service) Logout(ctx context.Context, sess *Session) Result {
	if !sess.IsAuthenticated() {
		return Result{Message: "Not logged in"}
	}
	user := sess.user
	sess.user = nil
	sess.state = Anonymous
	s.auditSoft(ctx, s.audit.Info, audit.ActionSystemLogout,
		fmt.Sprintf("User %s logged out", user.Email),
		audit.WithActor(user.ID))
	return Result{Success: true}
}

type auditFn func(context.Context, audit.Action, string, ...audit.EntryOption) error

// auditSoft records an entry and reports a write failure without
// failing the surrounding operation. The business change has already
// committed; losing it because the log table is down would be worse
// than a gap in the trail.
func (s *Service) auditSoft(ctx context.Context, record auditFn, action audit.Action, msg string, opts ...audit.EntryOption) {
	if err := record(ctx, action, msg, opts...); err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Msg("audit entry lost")
	}
}
