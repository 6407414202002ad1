package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

var bookerTracer = otel.Tracer("reyna.internal.scheduling")

// Source identifies who originated a booking operation.
type Source string

const (
	// SourceAgent marks bookings created by the WhatsApp assistant; they
	// start as pending until staff confirms.
	SourceAgent Source = "agent"
	// SourceStaff marks bookings entered through the dashboard; they start
	// confirmed but run the same closed-hours and conflict checks.
	SourceStaff Source = "staff"
)

// Booker is the scheduling orchestrator: it validates a requested mutation
// against the closed-hours policy and the conflict checker, then applies a
// single atomic store mutation. Check-then-write sequences are serialized
// per salon-local calendar day, so two concurrent creates cannot both pass
// the conflict check for overlapping slots.
type Booker struct {
	store  Store
	logger *logging.Logger
	policy atomic.Pointer[bookingPolicy]

	mu       sync.Mutex
	dayLocks map[string]*sync.Mutex
}

// bookingPolicy bundles the rules one operation runs under. It is swapped
// wholesale so a single operation never mixes an old catalog with a new
// closed window.
type bookingPolicy struct {
	catalog  *ServiceCatalog
	closed   ClosedWindow
	conflict *ConflictChecker
}

// NewBooker constructs the orchestrator.
func NewBooker(store Store, catalog *ServiceCatalog, closed ClosedWindow, logger *logging.Logger) *Booker {
	if store == nil {
		panic("scheduling: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	b := &Booker{
		store:    store,
		logger:   logger,
		dayLocks: make(map[string]*sync.Mutex),
	}
	b.UpdatePolicy(catalog, closed)
	return b
}

// UpdatePolicy swaps the duration table and the closed-hours window, used
// when staff saves a new salon profile. Operations already in flight finish
// under the policy they loaded.
func (b *Booker) UpdatePolicy(catalog *ServiceCatalog, closed ClosedWindow) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	b.policy.Store(&bookingPolicy{
		catalog:  catalog,
		closed:   closed,
		conflict: NewConflictChecker(b.store, catalog, closed.Location()),
	})
}

// Catalog exposes the duration table (used by the agent prompt builder).
func (b *Booker) Catalog() *ServiceCatalog {
	return b.policy.Load().catalog
}

// Upcoming lists a client's non-cancelled appointments starting at or after
// the given instant.
func (b *Booker) Upcoming(ctx context.Context, phone string, from time.Time) ([]Appointment, error) {
	return b.store.ListUpcomingByPhone(ctx, phone, from)
}

// List returns all appointments starting in [from, to), any status.
func (b *Booker) List(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return b.store.ListBetween(ctx, from, to)
}

// CreateInput carries the arguments of a create operation.
type CreateInput struct {
	PhoneNumber string
	ClientName  string
	ServiceType string
	StartsAt    time.Time
	Notes       string
	Source      Source
}

// Create places a new appointment on the calendar. Agent-originated rows
// start pending, staff-entered rows start confirmed; both are rejected when
// the start falls in the closed window or the slot overlaps an existing
// non-cancelled appointment.
func (b *Booker) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	ctx, span := bookerTracer.Start(ctx, "scheduling.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("reyna.service_type", in.ServiceType),
		attribute.String("reyna.source", string(in.Source)),
	)

	if err := validateCreate(in); err != nil {
		span.RecordError(err)
		return nil, err
	}

	pol := b.policy.Load()
	unlock := b.lockDays(pol.conflict, in.StartsAt)
	defer unlock()

	if pol.closed.Contains(in.StartsAt) {
		err := &ClosedHoursError{StartsAt: in.StartsAt, Window: pol.closed}
		span.RecordError(err)
		return nil, err
	}
	if err := pol.conflict.Check(ctx, in.StartsAt, in.ServiceType, uuid.Nil); err != nil {
		span.RecordError(err)
		return nil, err
	}

	status := StatusPending
	if in.Source == SourceStaff {
		status = StatusConfirmed
	}
	appt := &Appointment{
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		ClientName:  strings.TrimSpace(in.ClientName),
		ServiceType: strings.TrimSpace(in.ServiceType),
		StartsAt:    in.StartsAt,
		Status:      status,
		Notes:       strings.TrimSpace(in.Notes),
	}
	if err := b.store.Insert(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	b.logger.Info("appointment created",
		"id", appt.ID,
		"service", appt.ServiceType,
		"starts_at", appt.StartsAt.Format(time.RFC3339),
		"status", appt.Status,
		"source", in.Source,
	)
	return appt, nil
}

// RescheduleInput carries the arguments of an update operation. A non-empty
// PhoneNumber scopes the lookup to that client; staff calls leave it empty.
type RescheduleInput struct {
	ID             uuid.UUID
	PhoneNumber    string
	NewStartsAt    *time.Time
	NewServiceType string
	NewClientName  string
	NewNotes       *string
}

// Reschedule applies field changes to an existing appointment. A new start
// time re-runs the closed-hours and conflict checks (excluding the
// appointment itself); the lifecycle status is never changed here.
func (b *Booker) Reschedule(ctx context.Context, in RescheduleInput) (*Appointment, error) {
	ctx, span := bookerTracer.Start(ctx, "scheduling.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("reyna.appointment_id", in.ID.String()))

	if in.ID == uuid.Nil {
		return nil, &ValidationError{Field: "appointment_id", Reason: "requerido"}
	}

	existing, err := b.getScoped(ctx, in.ID, in.PhoneNumber)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if existing.Status == StatusCancelled {
		return nil, &ValidationError{Field: "appointment_id", Reason: "la cita está cancelada"}
	}

	fields := UpdateFields{Notes: in.NewNotes}
	if svc := strings.TrimSpace(in.NewServiceType); svc != "" {
		fields.ServiceType = &svc
	}
	if name := strings.TrimSpace(in.NewClientName); name != "" {
		fields.ClientName = &name
	}

	if in.NewStartsAt != nil {
		newStart := *in.NewStartsAt
		if newStart.IsZero() {
			return nil, &ValidationError{Field: "new_date", Reason: "fecha vacía"}
		}

		pol := b.policy.Load()
		unlock := b.lockDays(pol.conflict, existing.StartsAt, newStart)
		defer unlock()

		if pol.closed.Contains(newStart) {
			err := &ClosedHoursError{StartsAt: newStart, Window: pol.closed}
			span.RecordError(err)
			return nil, err
		}
		service := existing.ServiceType
		if fields.ServiceType != nil {
			service = *fields.ServiceType
		}
		if err := pol.conflict.Check(ctx, newStart, service, existing.ID); err != nil {
			span.RecordError(err)
			return nil, err
		}
		fields.StartsAt = &newStart
	}

	updated, err := b.store.Update(ctx, existing.ID, fields)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	b.logger.Info("appointment updated",
		"id", updated.ID,
		"starts_at", updated.StartsAt.Format(time.RFC3339),
		"service", updated.ServiceType,
	)
	return updated, nil
}

// Cancel marks an appointment cancelled. Cancelling an already-cancelled
// appointment succeeds silently.
func (b *Booker) Cancel(ctx context.Context, id uuid.UUID, phone string) (*Appointment, error) {
	ctx, span := bookerTracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("reyna.appointment_id", id.String()))

	existing, err := b.getScoped(ctx, id, phone)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if existing.Status == StatusCancelled {
		return existing, nil
	}

	updated, err := b.store.SetStatus(ctx, existing.ID, StatusCancelled)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	b.logger.Info("appointment cancelled", "id", updated.ID)
	return updated, nil
}

// Confirm is the staff override that marks an appointment confirmed without
// re-running the booking checks.
func (b *Booker) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return b.setStatusDirect(ctx, id, StatusConfirmed)
}

// MarkPending is the staff override that returns an appointment to pending.
func (b *Booker) MarkPending(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return b.setStatusDirect(ctx, id, StatusPending)
}

func (b *Booker) setStatusDirect(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	updated, err := b.store.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	b.logger.Info("appointment status set", "id", id, "status", status)
	return updated, nil
}

// Delete removes an appointment record entirely (explicit staff action).
func (b *Booker) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}
	if err := b.store.Delete(ctx, id); err != nil {
		return err
	}
	b.logger.Info("appointment deleted", "id", id)
	return nil
}

func (b *Booker) getScoped(ctx context.Context, id uuid.UUID, phone string) (*Appointment, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	appt, err := b.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// An id belonging to another client is indistinguishable from a missing one.
	if phone != "" && appt.PhoneNumber != phone {
		return nil, ErrNotFound
	}
	return appt, nil
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.ClientName) == "" {
		return &ValidationError{Field: "client_name", Reason: "requerido"}
	}
	if strings.TrimSpace(in.ServiceType) == "" {
		return &ValidationError{Field: "service_type", Reason: "requerido"}
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return &ValidationError{Field: "phone_number", Reason: "requerido"}
	}
	if in.StartsAt.IsZero() {
		return &ValidationError{Field: "appointment_date", Reason: "fecha vacía"}
	}
	return nil
}

// lockDays acquires the per-day mutexes for the salon-local days of the
// given instants, in sorted order so overlapping lock sets cannot deadlock.
func (b *Booker) lockDays(c *ConflictChecker, times ...time.Time) func() {
	keys := make([]string, 0, len(times))
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		key := c.DayKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	locks := make([]*sync.Mutex, 0, len(keys))
	b.mu.Lock()
	for _, key := range keys {
		lock, ok := b.dayLocks[key]
		if !ok {
			lock = &sync.Mutex{}
			b.dayLocks[key] = lock
		}
		locks = append(locks, lock)
	}
	b.mu.Unlock()

	for _, lock := range locks {
		lock.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}
