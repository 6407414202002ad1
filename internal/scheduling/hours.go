package scheduling

import (
	"fmt"
	"time"
)

// ClosedWindow is the daily local-time interval during which no appointment
// may start (the salon's lunch break). The window is half-open:
// [start, end).
type ClosedWindow struct {
	startMinutes int
	endMinutes   int
	location     *time.Location
}

// NewClosedWindow builds a window from HH:MM strings interpreted in the
// given location.
func NewClosedWindow(start, end string, loc *time.Location) (ClosedWindow, error) {
	if loc == nil {
		loc = time.UTC
	}
	startMin, err := parseClock(start)
	if err != nil {
		return ClosedWindow{}, fmt.Errorf("scheduling: parse closed window start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return ClosedWindow{}, fmt.Errorf("scheduling: parse closed window end: %w", err)
	}
	return ClosedWindow{
		startMinutes: startMin,
		endMinutes:   endMin,
		location:     loc,
	}, nil
}

func parseClock(v string) (int, error) {
	if v == "" {
		return 0, fmt.Errorf("empty clock")
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether the instant falls inside the closed window once
// converted into the salon's civil time.
func (w ClosedWindow) Contains(t time.Time) bool {
	if w.startMinutes == w.endMinutes {
		return false
	}
	local := t.In(w.location)
	minutes := local.Hour()*60 + local.Minute()
	if w.startMinutes < w.endMinutes {
		return minutes >= w.startMinutes && minutes < w.endMinutes
	}
	// Window crosses midnight.
	return minutes >= w.startMinutes || minutes < w.endMinutes
}

// Location returns the salon's civil timezone.
func (w ClosedWindow) Location() *time.Location {
	if w.location == nil {
		return time.UTC
	}
	return w.location
}

// String renders the window as "HH:MM-HH:MM" for error messages.
func (w ClosedWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		w.startMinutes/60, w.startMinutes%60,
		w.endMinutes/60, w.endMinutes%60,
	)
}
