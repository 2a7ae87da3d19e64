package audit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Artemka007/plk-auth/internal/ids"
)

// ErrEmptyFilter rejects a bulk delete with no predicates, which would
// otherwise wipe the whole trail.
var ErrEmptyFilter = errors.New("audit: refusing bulk delete with empty filter")

// Store persists audit entries. FindByFilter returns the requested
// window plus the total number of matches.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	FindRecent(ctx context.Context, limit int) ([]Entry, error)
	FindByFilter(ctx context.Context, f Filter, p Page) ([]Entry, int, error)
	DeleteByFilter(ctx context.Context, f Filter) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Log records and retrieves audit entries. Recording is best-effort
// relative to the action it describes: a failed write is returned to
// the caller and logged, but callers do not roll back the already
// committed business change.
type Log struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures Log.
type Option func(*Log)

// WithClock overrides the timestamp source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Log on top of store.
func New(store Store, logger zerolog.Logger, opts ...Option) (*Log, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	l := &Log{store: store, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// EntryOption attaches optional context to a recorded entry.
type EntryOption func(*Entry)

// WithActor sets who performed the action.
func WithActor(userID string) EntryOption {
	return func(e *Entry) { e.ActorID = userID }
}

// WithSubject sets who was affected by the action.
func WithSubject(userID string) EntryOption {
	return func(e *Entry) { e.SubjectID = userID }
}

// WithIP sets the client address the action came from.
func WithIP(ip string) EntryOption {
	return func(e *Entry) { e.IPAddress = ip }
}

// WithUserAgent sets the client identification string.
func WithUserAgent(agent string) EntryOption {
	return func(e *Entry) { e.UserAgent = agent }
}

// Record appends one entry with a fresh id and a server-side UTC
// timestamp. Persistence failures are returned, never swallowed.
func (l *Log) Record(ctx context.Context, level Level, action Action, message string, opts ...EntryOption) error {
	e := &Entry{
		ID:        ids.New(),
		Level:     level,
		Action:    action,
		Message:   message,
		Timestamp: l.now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := l.store.Append(ctx, e); err != nil {
		l.log.Error().Err(err).
			Str("action", string(action)).
			Str("level", string(level)).
			Msg("audit write failed")
		return err
	}
	return nil
}

// Debug records at DEBUG severity.
func (l *Log) Debug(ctx context.Context, action Action, message string, opts ...EntryOption) error {
	return l.Record(ctx, LevelDebug, action, message, opts...)
}

// Info records at INFO severity.
func (l *Log) Info(ctx context.Context, action Action, message string, opts ...EntryOption) error {
	return l.Record(ctx, LevelInfo, action, message, opts...)
}

// Warning records at WARNING severity.
func (l *Log) Warning(ctx context.Context, action Action, message string, opts ...EntryOption) error {
	return l.Record(ctx, LevelWarning, action, message, opts...)
}

// Error records at ERROR severity.
func (l *Log) Error(ctx context.Context, action Action, message string, opts ...EntryOption) error {
	return l.Record(ctx, LevelError, action, message, opts...)
}

// Critical records at CRITICAL severity.
func (l *Log) Critical(ctx context.Context, action Action, message string, opts ...EntryOption) error {
	return l.Record(ctx, LevelCritical, action, message, opts...)
}

// Recent returns the latest entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return l.store.FindRecent(ctx, limit)
}

// Search returns one page of entries matching the filter conjunction,
// newest first, along with total match and page counts.
func (l *Log) Search(ctx context.Context, f Filter, p Page) (Result, error) {
	p = p.Normalize()
	entries, total, err := l.store.FindByFilter(ctx, f, p)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Entries:    entries,
		TotalCount: total,
		TotalPages: (total + p.Size - 1) / p.Size,
	}, nil
}

// FindByLevel is Search with a single severity predicate.
func (l *Log) FindByLevel(ctx context.Context, level Level, p Page) (Result, error) {
	return l.Search(ctx, Filter{Level: &level}, p)
}

// FindByAction is Search with a single category predicate.
func (l *Log) FindByAction(ctx context.Context, action Action, p Page) (Result, error) {
	return l.Search(ctx, Filter{Action: &action}, p)
}

// FindByActor is Search with a single actor predicate.
func (l *Log) FindByActor(ctx context.Context, actorID string, p Page) (Result, error) {
	return l.Search(ctx, Filter{ActorID: actorID}, p)
}

// FindBySubject is Search with a single subject predicate.
func (l *Log) FindBySubject(ctx context.Context, subjectID string, p Page) (Result, error) {
	return l.Search(ctx, Filter{SubjectID: subjectID}, p)
}

// FindByIP is Search with a single address predicate.
func (l *Log) FindByIP(ctx context.Context, ip string, p Page) (Result, error) {
	return l.Search(ctx, Filter{IPAddress: ip}, p)
}

// DeleteByFilter irreversibly removes matching entries. An empty
// filter is rejected before the store is touched.
func (l *Log) DeleteByFilter(ctx context.Context, f Filter) (int64, error) {
	if f.IsEmpty() {
		return 0, ErrEmptyFilter
	}
	return l.store.DeleteByFilter(ctx, f)
}

// CleanupOlderThan irreversibly removes entries stamped before cutoff.
func (l *Log) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return l.store.DeleteOlderThan(ctx, cutoff)
}
