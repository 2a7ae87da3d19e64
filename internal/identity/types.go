package identity

import (
	"strings"
	"time"
)

// User is a human account managed through the admin console.
type User struct {
	ID                     string     `json:"id"`
	Email                  string     `json:"email"`
	FirstName              string     `json:"first_name"`
	LastName               string     `json:"last_name"`
	Patronymic             string     `json:"patronymic,omitempty"`
	Phone                  string     `json:"phone,omitempty"`
	PasswordHash           string     `json:"-"`
	Active                 bool       `json:"is_active"`
	PasswordChangeRequired bool       `json:"password_change_required"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
}

// FullName joins the name parts, including the patronymic when set.
func (u *User) FullName() string {
	parts := []string{u.FirstName}
	if u.Patronymic != "" {
		parts = append(parts, u.Patronymic)
	}
	parts = append(parts, u.LastName)
	return strings.Join(parts, " ")
}

// Role groups permissions. System roles are seeded by migrations and
// may not be renamed or deleted.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	System      bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability identified by a catalog name.
type Permission struct {
	ID          string         `json:"id"`
	Name        PermissionName `json:"name"`
	Description string         `json:"description,omitempty"`
}

// RoleAssignment links a user to a role. The (user, role) pair is
// unique.
type RoleAssignment struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// RolePermission links a role to a permission.
type RolePermission struct {
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	GrantedAt    time.Time `json:"granted_at"`
}
