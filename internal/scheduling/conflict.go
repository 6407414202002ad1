package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictChecker tests a candidate slot against the same-day calendar.
// The scan is pairwise over one salon-local day; appointment volume per day
// is small enough that no interval structure is warranted.
type ConflictChecker struct {
	store   Store
	catalog *ServiceCatalog
	loc     *time.Location
}

// NewConflictChecker builds a checker over the given store and catalog.
func NewConflictChecker(store Store, catalog *ServiceCatalog, loc *time.Location) *ConflictChecker {
	if loc == nil {
		loc = time.UTC
	}
	return &ConflictChecker{store: store, catalog: catalog, loc: loc}
}

// Check returns a *ConflictError when [start, start+duration(service))
// overlaps any non-cancelled appointment on the same salon-local day,
// excluding excludeID. Back-to-back slots do not conflict: the overlap test
// is half-open (candidateStart < existingEnd && candidateEnd > existingStart).
func (c *ConflictChecker) Check(ctx context.Context, start time.Time, service string, excludeID uuid.UUID) error {
	candidateEnd := start.Add(c.catalog.DurationFor(service))

	dayStart, dayEnd := c.dayBounds(start)
	sameDay, err := c.store.ListBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("scheduling: load day calendar: %w", err)
	}

	for _, existing := range sameDay {
		if existing.Status == StatusCancelled {
			continue
		}
		if excludeID != uuid.Nil && existing.ID == excludeID {
			continue
		}
		existingEnd := existing.End(c.catalog)
		if start.Before(existingEnd) && candidateEnd.After(existing.StartsAt) {
			return &ConflictError{
				Existing:      existing,
				ExistingStart: existing.StartsAt.In(c.loc),
				ExistingEnd:   existingEnd.In(c.loc),
			}
		}
	}
	return nil
}

// dayBounds returns the salon-local calendar day containing t as a
// half-open [start, end) pair.
func (c *ConflictChecker) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(c.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return dayStart, dayStart.AddDate(0, 0, 1)
}

// DayKey renders the salon-local calendar day of t, used to serialize
// check-then-write sequences per day.
func (c *ConflictChecker) DayKey(t time.Time) string {
	return t.In(c.loc).Format(time.DateOnly)
}
