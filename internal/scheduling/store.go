package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpdateFields carries the mutable appointment fields for a partial update.
// Nil pointers leave the stored value untouched.
type UpdateFields struct {
	StartsAt    *time.Time
	ServiceType *string
	ClientName  *string
	Notes       *string
}

// Store is the persistence boundary for appointments. Implementations must
// return ErrNotFound for unknown ids and must make MarkReminderSent a
// conditional write gated on reminder_sent = false.
type Store interface {
	// ListBetween returns appointments starting in [from, to), any status,
	// ordered by start time.
	ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// ListUpcomingByPhone returns non-cancelled appointments for a client
	// starting at or after from, ordered by start time.
	ListUpcomingByPhone(ctx context.Context, phone string, from time.Time) ([]Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Insert(ctx context.Context, appt *Appointment) error
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListDueReminders returns confirmed, not-yet-reminded appointments
	// starting inside [from, to].
	ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// MarkReminderSent flips reminder_sent to true for a confirmed
	// appointment. Returns false when the flag was already set (or the row
	// is no longer confirmed), which callers use as the double-send gate.
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
}
