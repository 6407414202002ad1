// Package scheduling implements the salon calendar: the service duration
// table, the closed-hours policy, conflict detection, and the appointment
// lifecycle used by both the WhatsApp agent and the staff dashboard.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Appointment is a single calendar entry. StartsAt always carries an
// explicit UTC offset; business-hours checks convert it to the salon's
// civil timezone.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	PhoneNumber  string    `json:"phone_number"`
	ClientName   string    `json:"client_name"`
	ServiceType  string    `json:"service_type"`
	StartsAt     time.Time `json:"starts_at"`
	Status       Status    `json:"status"`
	ReminderSent bool      `json:"reminder_sent"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// End computes the half-open end of the slot this appointment occupies.
func (a *Appointment) End(catalog *ServiceCatalog) time.Time {
	return a.StartsAt.Add(catalog.DurationFor(a.ServiceType))
}
