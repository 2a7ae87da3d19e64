// Package migrate applies versioned SQL migrations and idempotent seed
// files from disk. Applied file names are recorded in bookkeeping
// tables so reruns are no-ops.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const (
	migrationsTable = "schema_migrations"
	seedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Runner executes migrations against one database handle.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
	log           zerolog.Logger
}

func NewRunner(db *sql.DB, migrationsDir, seedsDir string, log zerolog.Logger) *Runner {
	return &Runner{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
		log:           log,
	}
}

// Up applies every pending migration in lexical order and returns the
// names it applied.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx, migrationsTable)
	if err != nil {
		return nil, err
	}
	names, err := listSQL(r.migrationsDir, upSuffix)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.apply(ctx, filepath.Join(r.migrationsDir, name)); err != nil {
			return out, fmt.Errorf("migrate: apply %s: %w", name, err)
		}
		if err := r.record(ctx, migrationsTable, name); err != nil {
			return out, err
		}
		r.log.Info().Str("migration", name).Msg("applied")
		out = append(out, name)
	}
	return out, nil
}

// Down reverts the most recently applied migration using its .down.sql
// counterpart.
func (r *Runner) Down(ctx context.Context) (string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return "", err
	}
	history, err := r.history(ctx, migrationsTable)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errors.New("migrate: nothing to roll back")
	}

	last := history[len(history)-1]
	down := strings.TrimSuffix(last, upSuffix) + downSuffix
	path := filepath.Join(r.migrationsDir, down)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("migrate: no down file %s for %s", down, last)
	}
	if err := r.apply(ctx, path); err != nil {
		return "", fmt.Errorf("migrate: revert %s: %w", last, err)
	}
	if _, err := r.db.ExecContext(ctx,
		`delete from `+migrationsTable+` where name = $1`, last); err != nil {
		return "", err
	}
	r.log.Info().Str("migration", last).Msg("reverted")
	return last, nil
}

// Seed runs every seed file that has not run yet. Seeds are expected
// to be written idempotently regardless.
func (r *Runner) Seed(ctx context.Context) ([]string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx, seedsTable)
	if err != nil {
		return nil, err
	}
	names, err := listSQL(r.seedsDir, ".sql")
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.apply(ctx, filepath.Join(r.seedsDir, name)); err != nil {
			return out, fmt.Errorf("migrate: seed %s: %w", name, err)
		}
		if err := r.record(ctx, seedsTable, name); err != nil {
			return out, err
		}
		r.log.Info().Str("seed", name).Msg("applied")
		out = append(out, name)
	}
	return out, nil
}

// Status returns applied migration names in application order.
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	return r.history(ctx, migrationsTable)
}

func (r *Runner) ensureTables(ctx context.Context) error {
	for _, table := range []string{migrationsTable, seedsTable} {
		_, err := r.db.ExecContext(ctx, `
			create table if not exists `+table+` (
				name text primary key,
				applied_at timestamptz not null default now()
			)`)
		if err != nil {
			return err
		}
	}
	return nil
}

// apply runs one file inside a transaction so a failing statement
// leaves the schema untouched.
func (r *Runner) apply(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) record(ctx context.Context, table, name string) error {
	_, err := r.db.ExecContext(ctx,
		`insert into `+table+` (name) values ($1) on conflict (name) do nothing`, name)
	return err
}

func (r *Runner) applied(ctx context.Context, table string) (map[string]bool, error) {
	names, err := r.queryNames(ctx, `select name from `+table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

func (r *Runner) history(ctx context.Context, table string) ([]string, error) {
	return r.queryNames(ctx, `select name from `+table+` order by applied_at, name`)
}

func (r *Runner) queryNames(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements cuts a file into statements on semicolons outside
// single-quoted strings. Files avoid dollar-quoted bodies.
func splitStatements(src string) []string {
	var (
		stmts    []string
		b        strings.Builder
		inString bool
	)
	for _, r := range src {
		switch {
		case r == '\'':
			inString = !inString
			b.WriteRune(r)
		case r == ';' && !inString:
			if s := strings.TrimSpace(b.String()); s != "" {
				stmts = append(stmts, s)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
