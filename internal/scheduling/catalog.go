package scheduling

import (
	"strings"
	"time"
)

// DefaultServiceMinutes is the fallback duration for services the catalog
// does not recognize.
const DefaultServiceMinutes = 60

// ServiceEntry pairs a service name with its booked duration.
type ServiceEntry struct {
	Name    string
	Minutes int
}

// ServiceCatalog resolves service names to durations using ordered fuzzy
// matching: the first entry whose name contains the requested name, or is
// contained by it, wins. Entry order therefore defines tie-breaks and must
// stay stable.
type ServiceCatalog struct {
	entries        []ServiceEntry
	defaultMinutes int
}

// DefaultEntries returns the production service list of the salon.
func DefaultEntries() []ServiceEntry {
	return []ServiceEntry{
		{Name: "Corte/Peinado", Minutes: 45},
		{Name: "Tratamiento de Cauterización", Minutes: 180},
		{Name: "Tratamiento Células Madre", Minutes: 90},
		{Name: "Tintes/Baños de Color", Minutes: 120},
		{Name: "Keratina (Alisado)", Minutes: 270},
		{Name: "Botox Capilar", Minutes: 270},
		{Name: "Reconstrucción (Radiante Glock)", Minutes: 240},
	}
}

// NewServiceCatalog builds a catalog from the given entries. Entries with a
// non-positive duration fall back to the default.
func NewServiceCatalog(entries []ServiceEntry) *ServiceCatalog {
	cleaned := make([]ServiceEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		if e.Minutes <= 0 {
			e.Minutes = DefaultServiceMinutes
		}
		cleaned = append(cleaned, e)
	}
	return &ServiceCatalog{entries: cleaned, defaultMinutes: DefaultServiceMinutes}
}

// DefaultCatalog returns a catalog seeded with the production service list.
func DefaultCatalog() *ServiceCatalog {
	return NewServiceCatalog(DefaultEntries())
}

// DurationFor resolves a requested service name to its duration.
func (c *ServiceCatalog) DurationFor(service string) time.Duration {
	return time.Duration(c.MinutesFor(service)) * time.Minute
}

// MinutesFor resolves a requested service name to its duration in minutes.
// Matching is case-insensitive and bidirectional: a known name containing
// the request matches, and so does a request containing a known name.
func (c *ServiceCatalog) MinutesFor(service string) int {
	needle := strings.ToLower(strings.TrimSpace(service))
	if needle == "" {
		return c.defaultMinutes
	}
	for _, e := range c.entries {
		known := strings.ToLower(e.Name)
		if strings.Contains(needle, known) || strings.Contains(known, needle) {
			return e.Minutes
		}
	}
	return c.defaultMinutes
}

// Entries returns a copy of the catalog's ordered entries.
func (c *ServiceCatalog) Entries() []ServiceEntry {
	out := make([]ServiceEntry, len(c.entries))
	copy(out, c.entries)
	return out
}
