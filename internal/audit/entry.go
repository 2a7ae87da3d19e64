// Package audit maintains the append-only trail of security and
// business relevant actions, with filterable retrieval and retention
// management.
package audit

import (
	"fmt"
	"time"
)

// Level is the severity of an audit entry.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Levels lists all severities in ascending order.
func Levels() []Level {
	return []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical}
}

// ParseLevel maps a stored severity back to its constant.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels() {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Action categorizes what happened.
type Action string

const (
	ActionUserCreated         Action = "USER_CREATED"
	ActionUserUpdated         Action = "USER_UPDATED"
	ActionUserDeleted         Action = "USER_DELETED"
	ActionUserRoleChanged     Action = "USER_ROLE_CHANGED"
	ActionUserPasswordChanged Action = "USER_PASSWORD_CHANGED"
	ActionUserStatusChanged   Action = "USER_STATUS_CHANGED"

	ActionRoleCreated Action = "ROLE_CREATED"
	ActionRoleUpdated Action = "ROLE_UPDATED"
	ActionRoleDeleted Action = "ROLE_DELETED"

	ActionSystemLogin           Action = "SYSTEM_LOGIN"
	ActionSystemLogout          Action = "SYSTEM_LOGOUT"
	ActionSystemBackupCreated   Action = "SYSTEM_BACKUP_CREATED"
	ActionSystemBackupRestored  Action = "SYSTEM_BACKUP_RESTORED"
	ActionSystemSettingsChanged Action = "SYSTEM_SETTINGS_CHANGED"
	ActionSystemImport          Action = "SYSTEM_IMPORT"
	ActionSystemExport          Action = "SYSTEM_EXPORT"
	ActionSystemStartup         Action = "SYSTEM_STARTUP"

	ActionSecurityViolation     Action = "SECURITY_VIOLATION"
	ActionSecurityPasswordReset Action = "SECURITY_PASSWORD_RESET"
	ActionSecurityAccessDenied  Action = "SECURITY_ACCESS_DENIED"

	ActionProfileUpdated Action = "PROFILE_UPDATED"
	ActionProfileViewed  Action = "PROFILE_VIEWED"
)

// Actions lists every action category.
func Actions() []Action {
	return []Action{
		ActionUserCreated, ActionUserUpdated, ActionUserDeleted,
		ActionUserRoleChanged, ActionUserPasswordChanged, ActionUserStatusChanged,
		ActionRoleCreated, ActionRoleUpdated, ActionRoleDeleted,
		ActionSystemLogin, ActionSystemLogout,
		ActionSystemBackupCreated, ActionSystemBackupRestored,
		ActionSystemSettingsChanged, ActionSystemImport, ActionSystemExport,
		ActionSystemStartup,
		ActionSecurityViolation, ActionSecurityPasswordReset, ActionSecurityAccessDenied,
		ActionProfileUpdated, ActionProfileViewed,
	}
}

// ParseAction maps a stored category back to its constant.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// Entry is one immutable audit record. Entries are never edited after
// the fact; retention works only through bulk deletion by filter or
// age.
type Entry struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Action    Action    `json:"action_type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	SubjectID string    `json:"subject_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}
