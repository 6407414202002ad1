package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

// SettingsHandler reads and writes the salon profile. Saves also push the new
// catalog and closed window into the booker, so enforcement follows the
// edited profile without a restart.
type SettingsHandler struct {
	provider salon.Provider
	booker   *scheduling.Booker
	logger   *logging.Logger
}

func NewSettingsHandler(provider salon.Provider, booker *scheduling.Booker, logger *logging.Logger) *SettingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsHandler{provider: provider, booker: booker, logger: logger}
}

// Get returns the current salon profile.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.provider.Get(r.Context())
	if err != nil {
		h.logger.Error("load settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Put replaces the salon profile after validating it.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var settings salon.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := validateSettings(&settings); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := h.provider.Set(r.Context(), &settings); err != nil {
		h.logger.Error("save settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if h.booker != nil {
		// validateSettings already proved the window parses.
		if closed, err := settings.ClosedWindow(); err == nil {
			h.booker.UpdatePolicy(settings.Catalog(), closed)
		}
	}
	h.logger.Info("salon settings updated", "salon", settings.SalonName)
	writeJSON(w, http.StatusOK, &settings)
}

func validateSettings(s *salon.Settings) error {
	if strings.TrimSpace(s.SalonName) == "" {
		return errors.New("salon_name required")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", s.Timezone)
	}
	if _, err := s.ClosedWindow(); err != nil {
		return fmt.Errorf("invalid closed hours: %w", err)
	}
	for _, svc := range s.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return errors.New("service name required")
		}
		if svc.DurationMinutes <= 0 {
			return fmt.Errorf("service %q needs a positive duration", svc.Name)
		}
	}
	return nil
}
