package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

var sweeperTracer = otel.Tracer("reyna.internal.reminders")

// Dispatcher delivers a reminder text to a phone number.
type Dispatcher interface {
	Send(ctx context.Context, to, body string) error
}

// Outcome reports what happened to one due appointment during a sweep.
type Outcome struct {
	AppointmentID uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Sweeper finds confirmed appointments starting about one hour out and sends
// each client a WhatsApp reminder exactly once. The conditional reminder_sent
// update in the store is what makes concurrent or repeated sweeps safe; the
// sweeper itself keeps no state between passes.
type Sweeper struct {
	store      scheduling.Store
	dispatcher Dispatcher
	loc        *time.Location
	lead       time.Duration
	width      time.Duration
	logger     *logging.Logger
	metrics    *metrics.ReminderMetrics
}

// NewSweeper builds a sweeper. lead is how far ahead of the start time the
// reminder goes out, width the tolerance around that instant. The defaults
// (60m lead, 10m width) select appointments starting 55 to 65 minutes from
// the sweep time.
func NewSweeper(store scheduling.Store, dispatcher Dispatcher, loc *time.Location, lead, width time.Duration, logger *logging.Logger, m *metrics.ReminderMetrics) *Sweeper {
	if lead <= 0 {
		lead = time.Hour
	}
	if width <= 0 {
		width = 10 * time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		loc:        loc,
		lead:       lead,
		width:      width,
		logger:     logger,
		metrics:    m,
	}
}

// Window returns the sweep selection interval for a given instant.
func (s *Sweeper) Window(now time.Time) (from, to time.Time) {
	return now.Add(s.lead - s.width/2), now.Add(s.lead + s.width/2)
}

// Sweep runs one pass at the given instant. A delivery failure for one
// appointment never blocks the rest; failed appointments keep
// reminder_sent = false and are retried on later sweeps while they remain in
// the window.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]Outcome, error) {
	ctx, span := sweeperTracer.Start(ctx, "reminders.sweep")
	defer span.End()

	from, to := s.Window(now)
	due, err := s.store.ListDueReminders(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}
	span.SetAttributes(attribute.Int("reyna.due_count", len(due)))

	outcomes := make([]Outcome, 0, len(due))
	sent, failed := 0, 0
	for i := range due {
		appt := &due[i]
		if err := s.dispatcher.Send(ctx, appt.PhoneNumber, s.Body(appt)); err != nil {
			s.logger.Error("reminder send failed", "id", appt.ID, "error", err)
			outcomes = append(outcomes, Outcome{AppointmentID: appt.ID, Status: OutcomeFailed, Error: err.Error()})
			failed++
			continue
		}

		marked, err := s.store.MarkReminderSent(ctx, appt.ID)
		if err != nil {
			// The message went out but the flag did not stick; the next sweep
			// may send again. Surface it loudly.
			s.logger.Error("reminder sent but not marked", "id", appt.ID, "error", err)
			outcomes = append(outcomes, Outcome{AppointmentID: appt.ID, Status: OutcomeFailed, Error: err.Error()})
			failed++
			continue
		}
		if !marked {
			s.logger.Warn("reminder already marked by a concurrent sweep", "id", appt.ID)
		}
		outcomes = append(outcomes, Outcome{AppointmentID: appt.ID, Status: OutcomeSent})
		sent++
	}

	s.metrics.ObserveSweep(sent, failed)
	s.logger.Info("reminder sweep finished", "due", len(due), "sent", sent, "failed", failed)
	return outcomes, nil
}

// Body renders the reminder text, with the start time in the salon's zone.
func (s *Sweeper) Body(appt *scheduling.Appointment) string {
	local := appt.StartsAt.In(s.loc)
	return fmt.Sprintf(
		"Hola %s, te recordamos tu cita para *%s* hoy a las *%s*. ¡Te esperamos en Peluquería Reyna! 💇‍♀️",
		appt.ClientName, appt.ServiceType, local.Format("15:04"),
	)
}
