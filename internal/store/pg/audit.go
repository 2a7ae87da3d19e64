package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Artemka007/plk-auth/internal/audit"
)

const auditColumns = `id, level, action_type, message, timestamp,
	actor_id, subject_id, ip_address, user_agent`

func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into system_log (id, level, action_type, message, timestamp,
			actor_id, subject_id, ip_address, user_agent)
		values ($1, $2, $3, $4, $5, nullif($6, ''), nullif($7, ''), nullif($8, ''), nullif($9, ''))
	`, e.ID, string(e.Level), string(e.Action), e.Message, e.Timestamp,
		e.ActorID, e.SubjectID, e.IPAddress, e.UserAgent)
	return mapConstraintErr(err)
}

func (s *Store) FindRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+auditColumns+` from system_log
		order by timestamp desc, id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// FindByFilter runs the count and the page select inside one read
// transaction so the total matches the window.
func (s *Store) FindByFilter(ctx context.Context, f audit.Filter, p audit.Page) ([]audit.Entry, int, error) {
	where, args := auditWhere(f)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from system_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, p.Size, p.Offset())
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		select `+auditColumns+` from system_log%s
		order by timestamp desc, id desc
		limit $%d offset $%d
	`, where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, f audit.Filter) (int64, error) {
	where, args := auditWhere(f)
	if where == "" {
		return 0, audit.ErrEmptyFilter
	}
	res, err := s.db.ExecContext(ctx, `delete from system_log`+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from system_log where timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// auditWhere renders the filter conjunction as a parameterized WHERE
// clause. An empty filter yields an empty clause.
func auditWhere(f audit.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}
	if f.Level != nil {
		add("level = $%d", string(*f.Level))
	}
	if f.Action != nil {
		add("action_type = $%d", string(*f.Action))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.SubjectID != "" {
		add("subject_id = $%d", f.SubjectID)
	}
	if f.IPAddress != "" {
		add("ip_address = $%d", f.IPAddress)
	}
	if f.MessageContains != "" {
		add("message ilike $%d", "%"+likeEscaper.Replace(f.MessageContains)+"%")
	}
	if !f.From.IsZero() {
		add("timestamp >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("timestamp <= $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func collectEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		var (
			e                         audit.Entry
			level, action             string
			actor, subject, ip, agent sql.NullString
		)
		if err := rows.Scan(&e.ID, &level, &action, &e.Message, &e.Timestamp,
			&actor, &subject, &ip, &agent); err != nil {
			return nil, err
		}
		e.Level = audit.Level(level)
		e.Action = audit.Action(action)
		e.ActorID = actor.String
		e.SubjectID = subject.String
		e.IPAddress = ip.String
		e.UserAgent = agent.String
		out = append(out, e)
	}
	return out, rows.Err()
}
