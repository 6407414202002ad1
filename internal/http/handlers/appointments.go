// Package handlers hosts the dashboard REST endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

// AppointmentsHandler exposes the staff calendar: listing, manual booking and
// lifecycle changes. Staff creates run the same closed-hours and conflict
// checks as the assistant, they only differ in starting confirmed.
type AppointmentsHandler struct {
	booker   *scheduling.Booker
	settings salon.Provider
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
}

func NewAppointmentsHandler(booker *scheduling.Booker, settings salon.Provider, logger *logging.Logger, m *metrics.BookingMetrics) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{booker: booker, settings: settings, logger: logger, metrics: m}
}

// List returns appointments in an optional from/to range, defaulting to the
// coming week in the salon's timezone.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("load settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	loc := settings.Location()

	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 7)

	if v := r.URL.Query().Get("from"); v != "" {
		from, err = time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid from date, want YYYY-MM-DD"))
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid to date, want YYYY-MM-DD"))
			return
		}
		to = to.AddDate(0, 0, 1) // inclusive end day
	}

	appts, err := h.booker.List(r.Context(), from, to)
	if err != nil {
		h.logger.Error("list appointments failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

type createAppointmentRequest struct {
	PhoneNumber string    `json:"phone_number"`
	ClientName  string    `json:"client_name"`
	ServiceType string    `json:"service_type"`
	StartsAt    time.Time `json:"starts_at"`
	Notes       string    `json:"notes"`
}

// Create books an appointment on behalf of staff.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	appt, err := h.booker.Create(r.Context(), scheduling.CreateInput{
		PhoneNumber: req.PhoneNumber,
		ClientName:  req.ClientName,
		ServiceType: req.ServiceType,
		StartsAt:    req.StartsAt,
		Notes:       req.Notes,
		Source:      scheduling.SourceStaff,
	})
	if err != nil {
		h.metrics.ObserveOperation("staff_create", "error")
		writeBookingError(w, err)
		return
	}
	h.metrics.ObserveOperation("staff_create", "ok")
	writeJSON(w, http.StatusCreated, appt)
}

type updateAppointmentRequest struct {
	StartsAt    *time.Time `json:"starts_at"`
	ServiceType string     `json:"service_type"`
	ClientName  string     `json:"client_name"`
	Notes       *string    `json:"notes"`
}

// Update reschedules or edits an appointment.
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid appointment id"))
		return
	}
	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	appt, err := h.booker.Reschedule(r.Context(), scheduling.RescheduleInput{
		ID:             id,
		NewStartsAt:    req.StartsAt,
		NewServiceType: req.ServiceType,
		NewClientName:  req.ClientName,
		NewNotes:       req.Notes,
	})
	if err != nil {
		h.metrics.ObserveOperation("staff_update", "error")
		writeBookingError(w, err)
		return
	}
	h.metrics.ObserveOperation("staff_update", "ok")
	writeJSON(w, http.StatusOK, appt)
}

// Confirm marks a pending appointment as confirmed.
func (h *AppointmentsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, scheduling.StatusConfirmed)
}

// MarkPending returns an appointment to the pending state.
func (h *AppointmentsHandler) MarkPending(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, scheduling.StatusPending)
}

// Cancel cancels an appointment.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid appointment id"))
		return
	}
	appt, err := h.booker.Cancel(r.Context(), id, "")
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Delete removes an appointment record entirely.
func (h *AppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid appointment id"))
		return
	}
	if err := h.booker.Delete(r.Context(), id); err != nil {
		writeBookingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentsHandler) setStatus(w http.ResponseWriter, r *http.Request, status scheduling.Status) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid appointment id"))
		return
	}
	var appt *scheduling.Appointment
	if status == scheduling.StatusConfirmed {
		appt, err = h.booker.Confirm(r.Context(), id)
	} else {
		appt, err = h.booker.MarkPending(r.Context(), id)
	}
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// writeBookingError maps scheduling errors onto HTTP statuses, carrying both
// the technical error and the client-facing Spanish text.
func writeBookingError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		ve  *scheduling.ValidationError
		ce  *scheduling.ConflictError
		che *scheduling.ClosedHoursError
	)
	switch {
	case errors.Is(err, scheduling.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &che):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"error":   err.Error(),
		"message": scheduling.UserMessage(err),
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
