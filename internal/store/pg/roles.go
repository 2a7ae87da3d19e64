package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Artemka007/plk-auth/internal/identity"
)

const roleColumns = `id, name, description, is_system, created_at, updated_at`

func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_role_assignment (user_id, role_id) values ($1, $2)
	`, userID, roleID)
	if err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *Store) RemoveRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_role_assignment where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) RolesOf(ctx context.Context, userID string) ([]identity.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at
		from user_role r
		join user_role_assignment a on a.role_id = r.id
		where a.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identity.Role
	for rows.Next() {
		var r identity.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.System, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1
			from user_role_assignment a
			join user_role r on r.id = a.role_id
			where a.user_id = $1 and r.name = $2
		)
	`, userID, roleName).Scan(&exists)
	return exists, err
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*identity.Role, error) {
	var r identity.Role
	err := s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from user_role where name = $1`, name).
		Scan(&r.ID, &r.Name, &r.Description, &r.System, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: role %s", identity.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]identity.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from user_role order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identity.Role
	for rows.Next() {
		var r identity.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.System, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListPermissions(ctx context.Context) ([]identity.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description from access_permission order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identity.Permission
	for rows.Next() {
		var p identity.Permission
		var name string
		if err := rows.Scan(&p.ID, &name, &p.Description); err != nil {
			return nil, err
		}
		p.Name = identity.PermissionName(name)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PermissionsOfRole(ctx context.Context, roleID string) ([]identity.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.description
		from access_permission p
		join role_permission rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identity.Permission
	for rows.Next() {
		var p identity.Permission
		var name string
		if err := rows.Scan(&p.ID, &name, &p.Description); err != nil {
			return nil, err
		}
		p.Name = identity.PermissionName(name)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RoleHasPermission(ctx context.Context, roleID string, name identity.PermissionName) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1
			from role_permission rp
			join access_permission p on p.id = rp.permission_id
			where rp.role_id = $1 and p.name = $2
		)
	`, roleID, string(name)).Scan(&exists)
	return exists, err
}
