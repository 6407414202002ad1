package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const apptColumns = `id, phone_number, client_name, service_type, starts_at, status, reminder_sent, notes, created_at`

// PostgresStore persists appointments in the appointments table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store over a pgx pool or mock.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// ListBetween returns appointments starting in [from, to), any status.
func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list between: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListUpcomingByPhone returns a client's non-cancelled appointments from the
// given instant onwards.
func (s *PostgresStore) ListUpcomingByPhone(ctx context.Context, phone string, from time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE phone_number = $1 AND status <> 'cancelled' AND starts_at >= $2
		ORDER BY starts_at ASC`, phone, from)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list upcoming by phone: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Get retrieves a single appointment.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduling: get appointment: %w", err)
	}
	return appt, nil
}

// Insert stores a new appointment, assigning id and created_at when unset.
func (s *PostgresStore) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, phone_number, client_name, service_type, starts_at, status, reminder_sent, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		appt.ID, appt.PhoneNumber, appt.ClientName, appt.ServiceType,
		appt.StartsAt, string(appt.Status), appt.ReminderSent, appt.Notes, appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}
	return nil
}

// Update applies the non-nil fields and returns the updated row.
func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments SET
			starts_at    = COALESCE($2, starts_at),
			service_type = COALESCE($3, service_type),
			client_name  = COALESCE($4, client_name),
			notes        = COALESCE($5, notes)
		WHERE id = $1
		RETURNING `+apptColumns,
		id, fields.StartsAt, fields.ServiceType, fields.ClientName, fields.Notes)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduling: update appointment: %w", err)
	}
	return appt, nil
}

// SetStatus writes the lifecycle state directly and returns the updated row.
func (s *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments SET status = $2
		WHERE id = $1
		RETURNING `+apptColumns, id, string(status))
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduling: set status: %w", err)
	}
	return appt, nil
}

// Delete removes the appointment row.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("scheduling: delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueReminders selects confirmed, not-yet-reminded appointments starting
// inside [from, to].
func (s *PostgresStore) ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'confirmed' AND reminder_sent = false
		  AND starts_at >= $1 AND starts_at <= $2
		ORDER BY starts_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list due reminders: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkReminderSent flips reminder_sent for a still-confirmed appointment.
// The WHERE clause is the double-send gate: the affected-row count, not the
// caller's earlier read, decides whether this sweep owns the reminder.
func (s *PostgresStore) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET reminder_sent = true
		WHERE id = $1 AND reminder_sent = false AND status = 'confirmed'`, id)
	if err != nil {
		return false, fmt.Errorf("scheduling: mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.PhoneNumber, &a.ClientName, &a.ServiceType,
		&a.StartsAt, &status, &a.ReminderSent, &a.Notes, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		err := rows.Scan(
			&a.ID, &a.PhoneNumber, &a.ClientName, &a.ServiceType,
			&a.StartsAt, &status, &a.ReminderSent, &a.Notes, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		a.Status = Status(status)
		result = append(result, a)
	}
	return result, rows.Err()
}
