package audit

import (
	"testing"
	"time"
)

func TestFilterMatchesTimeRangeInclusive(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	f := Filter{From: from, To: to}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{from.Add(-time.Second), false},
		{from, true},
		{from.Add(time.Hour), true},
		{to, true},
		{to.Add(time.Second), false},
	}
	for _, tc := range cases {
		got := f.Matches(Entry{Timestamp: tc.at})
		if got != tc.want {
			t.Errorf("Matches(at=%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

func TestFilterMessageContainsIsCaseInsensitive(t *testing.T) {
	f := Filter{MessageContains: "invalid CREDENTIALS"}
	if !f.Matches(Entry{Message: "login failed: Invalid credentials"}) {
		t.Fatal("expected case-insensitive containment match")
	}
	if f.Matches(Entry{Message: "account is inactive"}) {
		t.Fatal("unexpected match")
	}
}

func TestFilterIsEmpty(t *testing.T) {
	if !(Filter{}).IsEmpty() {
		t.Fatal("zero filter should be empty")
	}
	level := LevelInfo
	if (Filter{Level: &level}).IsEmpty() {
		t.Fatal("filter with a predicate is not empty")
	}
}

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize()
	if p.Number != 1 || p.Size != defaultPageSize {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	p = Page{Number: 3, Size: 20}.Normalize()
	if p.Offset() != 40 {
		t.Fatalf("unexpected offset: %d", p.Offset())
	}
}
