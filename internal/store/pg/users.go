package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Artemka007/plk-auth/internal/identity"
)

const userColumns = `id, first_name, last_name, patronymic, email, phone, password_hash,
	is_active, password_change_required, created_at, updated_at, last_login_at`

func (s *Store) Save(ctx context.Context, u *identity.User) error {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, first_name, last_name, patronymic, email, phone,
			password_hash, is_active, password_change_required)
		values ($1, $2, $3, nullif($4, ''), $5, nullif($6, ''), $7, $8, $9)
		on conflict (id) do update set
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			patronymic = excluded.patronymic,
			email = excluded.email,
			phone = excluded.phone,
			is_active = excluded.is_active,
			updated_at = now()
		returning created_at, updated_at
	`, u.ID, u.FirstName, u.LastName, u.Patronymic, u.Email, u.Phone,
		u.PasswordHash, u.Active, u.PasswordChangeRequired)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]*identity.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, userID)
	if err != nil {
		return mapConstraintErr(err)
	}
	return requireAffected(res)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string, changeRequired bool) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set password_hash = $2, password_change_required = $3, updated_at = now()
		where id = $1
	`, userID, hash, changeRequired)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		update users set is_active = $2, updated_at = now() where id = $1
	`, userID, active)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set last_login_at = now() where id = $1
	`, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*identity.User, error) {
	var (
		u          identity.User
		patronymic sql.NullString
		phone      sql.NullString
		lastLogin  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &patronymic, &u.Email, &phone,
		&u.PasswordHash, &u.Active, &u.PasswordChangeRequired,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Patronymic = patronymic.String
	u.Phone = phone.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}
