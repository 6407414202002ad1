package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and in DB-less
// development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]*Appointment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: make(map[uuid.UUID]*Appointment)}
}

var _ Store = (*MemoryStore)(nil)

// ListBetween returns appointments starting in [from, to), ordered by start time.
func (s *MemoryStore) ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Appointment
	for _, a := range s.appts {
		if !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

// ListUpcomingByPhone returns non-cancelled appointments for a client.
func (s *MemoryStore) ListUpcomingByPhone(ctx context.Context, phone string, from time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Appointment
	for _, a := range s.appts {
		if a.PhoneNumber == phone && a.Status != StatusCancelled && !a.StartsAt.Before(from) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

// Get retrieves an appointment by id.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// Insert stores a new appointment, assigning id and created_at when unset.
func (s *MemoryStore) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	cp := *appt
	s.appts[appt.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Update applies the non-nil fields in place.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if fields.StartsAt != nil {
		a.StartsAt = *fields.StartsAt
	}
	if fields.ServiceType != nil {
		a.ServiceType = *fields.ServiceType
	}
	if fields.ClientName != nil {
		a.ClientName = *fields.ClientName
	}
	if fields.Notes != nil {
		a.Notes = *fields.Notes
	}
	cp := *a
	return &cp, nil
}

// SetStatus writes the lifecycle state directly.
func (s *MemoryStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

// Delete removes the appointment.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appts[id]; !ok {
		return ErrNotFound
	}
	delete(s.appts, id)
	return nil
}

// ListDueReminders returns confirmed, not-yet-reminded appointments starting
// inside [from, to].
func (s *MemoryStore) ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Appointment
	for _, a := range s.appts {
		if a.Status != StatusConfirmed || a.ReminderSent {
			continue
		}
		if a.StartsAt.Before(from) || a.StartsAt.After(to) {
			continue
		}
		out = append(out, *a)
	}
	sortByStart(out)
	return out, nil
}

// MarkReminderSent flips the flag, gated on it still being false.
func (s *MemoryStore) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.ReminderSent || a.Status != StatusConfirmed {
		return false, nil
	}
	a.ReminderSent = true
	return true, nil
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartsAt.Before(appts[j].StartsAt)
	})
}
