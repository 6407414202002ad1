// Package salon holds the salon's business profile and the stores that
// persist it.
package salon

import (
	"time"

	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
)

// Service is one entry on the salon's price list.
type Service struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price,omitempty"`
}

// Settings is the salon profile: identity, hours and the service menu. It is
// what the dashboard edits and what the assistant prompt is built from.
type Settings struct {
	SalonName     string    `json:"salon_name"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Timezone      string    `json:"timezone"`
	ClosedStart   string    `json:"closed_start"` // "14:00" in 24-hour format
	ClosedEnd     string    `json:"closed_end"`   // "16:00"
	Services      []Service `json:"services"`
	AssistantName string    `json:"assistant_name"`
}

// DefaultSettings returns the production salon profile, used until staff
// saves their own.
func DefaultSettings() *Settings {
	return &Settings{
		SalonName:     "Peluquería Reyna",
		Timezone:      "Europe/Madrid",
		ClosedStart:   "14:00",
		ClosedEnd:     "16:00",
		AssistantName: "LucIA",
		Services: []Service{
			{Name: "Corte/Peinado", DurationMinutes: 45},
			{Name: "Tratamiento de Cauterización", DurationMinutes: 180},
			{Name: "Tratamiento Células Madre", DurationMinutes: 90},
			{Name: "Tintes/Baños de Color", DurationMinutes: 120},
			{Name: "Keratina (Alisado)", DurationMinutes: 270},
			{Name: "Botox Capilar", DurationMinutes: 270},
			{Name: "Reconstrucción (Radiante Glock)", DurationMinutes: 240},
		},
	}
}

// Location resolves the salon timezone, falling back to UTC on a bad name.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Catalog builds the duration table from the service menu.
func (s *Settings) Catalog() *scheduling.ServiceCatalog {
	entries := make([]scheduling.ServiceEntry, 0, len(s.Services))
	for _, svc := range s.Services {
		entries = append(entries, scheduling.ServiceEntry{Name: svc.Name, Minutes: svc.DurationMinutes})
	}
	return scheduling.NewServiceCatalog(entries)
}

// ClosedWindow builds the lunch-closure policy from the configured clocks.
func (s *Settings) ClosedWindow() (scheduling.ClosedWindow, error) {
	return scheduling.NewClosedWindow(s.ClosedStart, s.ClosedEnd, s.Location())
}
