// Package router assembles the HTTP surface: the public Twilio webhook and
// health endpoints, and the JWT-protected dashboard API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/andrescanal12/reyna-appointments/internal/http/handlers"
	"github.com/andrescanal12/reyna-appointments/internal/http/middleware"
	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

// Config holds router dependencies.
type Config struct {
	Logger             *logging.Logger
	WebhookHandler     *messaging.WebhookHandler
	Appointments       *handlers.AppointmentsHandler
	Conversations      *handlers.ConversationsHandler
	Settings           *handlers.SettingsHandler
	MetricsHandler     http.Handler
	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// New builds the chi router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics and the Twilio webhook, which carries
	// its own signature verification.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WebhookHandler != nil {
			public.Post("/webhooks/twilio/whatsapp", cfg.WebhookHandler.ServeHTTP)
		}
	})

	// Dashboard API.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.AdminJWT(cfg.AdminJWTSecret))

		if cfg.Appointments != nil {
			admin.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.Appointments.List)
				r.Post("/", cfg.Appointments.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", cfg.Appointments.Update)
					r.Delete("/", cfg.Appointments.Delete)
					r.Post("/confirm", cfg.Appointments.Confirm)
					r.Post("/pending", cfg.Appointments.MarkPending)
					r.Post("/cancel", cfg.Appointments.Cancel)
				})
			})
		}
		if cfg.Conversations != nil {
			admin.Get("/conversations", cfg.Conversations.List)
			admin.Get("/conversations/{phone}", cfg.Conversations.Transcript)
			admin.Post("/messages/send", cfg.Conversations.Send)
		}
		if cfg.Settings != nil {
			admin.Get("/settings", cfg.Settings.Get)
			admin.Put("/settings", cfg.Settings.Put)
		}
	})

	return r
}
