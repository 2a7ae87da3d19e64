package audit

import (
	"strings"
	"time"
)

// Filter selects entries by the conjunction of its set predicates. The
// zero Filter matches every entry.
type Filter struct {
	Level           *Level
	Action          *Action
	ActorID         string
	SubjectID       string
	IPAddress       string
	MessageContains string
	From            time.Time
	To              time.Time
}

// IsEmpty reports whether no predicate is set.
func (f Filter) IsEmpty() bool {
	return f.Level == nil && f.Action == nil &&
		f.ActorID == "" && f.SubjectID == "" && f.IPAddress == "" &&
		f.MessageContains == "" && f.From.IsZero() && f.To.IsZero()
}

// Matches reports whether e satisfies every set predicate. The message
// predicate is case-insensitive containment; the time range is
// inclusive on both ends.
func (f Filter) Matches(e Entry) bool {
	if f.Level != nil && e.Level != *f.Level {
		return false
	}
	if f.Action != nil && e.Action != *f.Action {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.SubjectID != "" && e.SubjectID != f.SubjectID {
		return false
	}
	if f.IPAddress != "" && e.IPAddress != f.IPAddress {
		return false
	}
	if f.MessageContains != "" &&
		!strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.MessageContains)) {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

const defaultPageSize = 50

// Page is a 1-indexed page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to valid values, applying the default size.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	return p
}

// Offset is the number of entries preceding this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Result is one page of entries plus the overall match counts.
type Result struct {
	Entries    []Entry
	TotalCount int
	TotalPages int
}
