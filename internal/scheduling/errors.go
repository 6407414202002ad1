package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that the referenced appointment does not exist or is
// not visible to the requesting client. The user-facing message stays
// generic on purpose.
var ErrNotFound = errors.New("scheduling: appointment not found")

// ValidationError reports a missing or malformed argument. It aborts the
// operation before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s: %s", e.Field, e.Reason)
}

// UserMessage returns the text relayed to the end user.
func (e *ValidationError) UserMessage() string {
	return fmt.Sprintf("Error: falta o no es válido el campo '%s' (%s).", e.Field, e.Reason)
}

// ClosedHoursError reports a start time inside the closed business-hours
// window.
type ClosedHoursError struct {
	StartsAt time.Time
	Window   ClosedWindow
}

func (e *ClosedHoursError) Error() string {
	return fmt.Sprintf("scheduling: start %s falls inside closed window %s",
		e.StartsAt.Format(time.RFC3339), e.Window)
}

// UserMessage returns the text relayed to the end user.
func (e *ClosedHoursError) UserMessage() string {
	return fmt.Sprintf("Error: No se pueden agendar citas entre las %s (hora de comida). Por favor pide otra hora.",
		e.Window.humanRange())
}

func (w ClosedWindow) humanRange() string {
	return fmt.Sprintf("%02d:%02d y las %02d:%02d",
		w.startMinutes/60, w.startMinutes%60,
		w.endMinutes/60, w.endMinutes%60,
	)
}

// ConflictError reports an overlap with an existing non-cancelled
// appointment. It carries the occupied slot so the user can pick another
// time.
type ConflictError struct {
	Existing      Appointment
	ExistingStart time.Time
	ExistingEnd   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduling: slot conflicts with appointment %s (%s - %s)",
		e.Existing.ID,
		e.ExistingStart.Format(time.RFC3339),
		e.ExistingEnd.Format(time.RFC3339),
	)
}

// UserMessage returns the text relayed to the end user, naming the occupied
// range in salon-local time.
func (e *ConflictError) UserMessage() string {
	return fmt.Sprintf("Error: Ya existe una cita que ocupa de %s a %s y se solapa con la duración del servicio. Por favor elige otra hora.",
		e.ExistingStart.Format("15:04"), e.ExistingEnd.Format("15:04"))
}

// UserMessage maps any orchestrator failure to the non-technical Spanish
// text handed back to the conversational layer. Success and failure texts
// must never be confusable, so everything here starts with "Error:".
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.UserMessage()
	}
	var che *ClosedHoursError
	if errors.As(err, &che) {
		return che.UserMessage()
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	if errors.Is(err, ErrNotFound) {
		return "Error: No encuentro ninguna cita con ese identificador. Verifica el ID e inténtalo de nuevo."
	}
	return "Error: No se pudo completar la operación. Inténtalo de nuevo en unos minutos."
}
