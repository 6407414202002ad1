package scheduling

import (
	"testing"
	"time"
)

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestClosedWindowContains(t *testing.T) {
	w, err := NewClosedWindow("14:00", "16:00", madrid(t))
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	tests := []struct {
		ts   string
		want bool
	}{
		{"2025-12-23T13:59:00+01:00", false},
		{"2025-12-23T14:00:00+01:00", true},
		{"2025-12-23T14:30:00+01:00", true},
		{"2025-12-23T15:59:00+01:00", true},
		{"2025-12-23T16:00:00+01:00", false}, // half-open upper bound
		{"2025-12-23T19:00:00+01:00", false},
	}
	for _, tc := range tests {
		ts, perr := time.Parse(time.RFC3339, tc.ts)
		if perr != nil {
			t.Fatalf("parse %s: %v", tc.ts, perr)
		}
		if got := w.Contains(ts); got != tc.want {
			t.Fatalf("Contains(%s)=%v want %v", tc.ts, got, tc.want)
		}
	}
}

func TestClosedWindowConvertsOffsets(t *testing.T) {
	w, err := NewClosedWindow("14:00", "16:00", madrid(t))
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	// 13:30 UTC in winter is 14:30 in Madrid: inside the window even though
	// the instant's own offset says otherwise.
	ts, _ := time.Parse(time.RFC3339, "2025-12-23T13:30:00Z")
	if !w.Contains(ts) {
		t.Fatalf("expected UTC instant inside Madrid lunch window")
	}
	// 14:30 UTC is 15:30 Madrid: still inside.
	ts, _ = time.Parse(time.RFC3339, "2025-12-23T14:30:00Z")
	if !w.Contains(ts) {
		t.Fatalf("expected 15:30 Madrid inside window")
	}
	// 15:30 UTC is 16:30 Madrid: outside.
	ts, _ = time.Parse(time.RFC3339, "2025-12-23T15:30:00Z")
	if w.Contains(ts) {
		t.Fatalf("expected 16:30 Madrid outside window")
	}
}

func TestClosedWindowCrossesMidnight(t *testing.T) {
	w, err := NewClosedWindow("22:00", "08:00", time.UTC)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	ts, _ := time.Parse(time.RFC3339, "2025-12-23T23:00:00Z")
	if !w.Contains(ts) {
		t.Fatalf("expected 23:00 inside overnight window")
	}
	ts, _ = time.Parse(time.RFC3339, "2025-12-24T07:59:00Z")
	if !w.Contains(ts) {
		t.Fatalf("expected 07:59 inside overnight window")
	}
	ts, _ = time.Parse(time.RFC3339, "2025-12-24T08:00:00Z")
	if w.Contains(ts) {
		t.Fatalf("expected 08:00 outside overnight window")
	}
}

func TestClosedWindowZeroLength(t *testing.T) {
	w, err := NewClosedWindow("14:00", "14:00", time.UTC)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	ts, _ := time.Parse(time.RFC3339, "2025-12-23T14:00:00Z")
	if w.Contains(ts) {
		t.Fatalf("zero-length window must never contain anything")
	}
}

func TestNewClosedWindowValidation(t *testing.T) {
	if _, err := NewClosedWindow("", "16:00", time.UTC); err == nil {
		t.Fatalf("expected error for empty start clock")
	}
	if _, err := NewClosedWindow("14:00", "bad", time.UTC); err == nil {
		t.Fatalf("expected error for malformed end clock")
	}
}
