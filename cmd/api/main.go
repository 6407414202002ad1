package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/andrescanal12/reyna-appointments/internal/agent"
	"github.com/andrescanal12/reyna-appointments/internal/api/router"
	appconfig "github.com/andrescanal12/reyna-appointments/internal/config"
	"github.com/andrescanal12/reyna-appointments/internal/http/handlers"
	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/internal/reminders"
	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

func main() {
	_ = godotenv.Load() // .env is optional outside local development

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting reyna-appointments API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Stores: Postgres when configured, in-memory for local development.
	var (
		apptStore   scheduling.Store
		transcripts messaging.TranscriptStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		apptStore = scheduling.NewPostgresStore(pool)
		transcripts = messaging.NewPostgresTranscriptStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, appointments and transcripts held in memory")
		apptStore = scheduling.NewMemoryStore()
		transcripts = messaging.NewMemoryTranscriptStore()
	}

	// Until staff saves a profile, the salon settings come from the
	// environment-seeded defaults.
	seed := salon.DefaultSettings()
	seed.Timezone = cfg.SalonTimezone
	seed.ClosedStart = cfg.ClosedHoursStart
	seed.ClosedEnd = cfg.ClosedHoursEnd

	var salonStore salon.Provider
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		salonStore = salon.NewRedisStore(rdb).WithDefaults(seed)
	} else {
		logger.Warn("REDIS_ADDR not set, salon settings held in memory")
		salonStore = salon.NewMemoryStore().WithDefaults(seed)
	}

	settings, err := salonStore.Get(ctx)
	if err != nil {
		logger.Error("failed to load salon settings", "error", err)
		os.Exit(1)
	}
	closed, err := settings.ClosedWindow()
	if err != nil {
		logger.Error("invalid closed-hours configuration", "error", err)
		os.Exit(1)
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)
	messagingMetrics := metrics.NewMessagingMetrics(nil)
	reminderMetrics := metrics.NewReminderMetrics(nil)

	booker := scheduling.NewBooker(apptStore, settings.Catalog(), closed, logger)
	sender := messaging.NewWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.WhatsAppFromNumber, logger)

	assistant := agent.NewAssistant(
		openai.NewClient(cfg.OpenAIAPIKey),
		booker,
		transcripts,
		salonStore,
		cfg.OpenAIModel,
		logger,
		bookingMetrics,
	)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, dashboard API will reject all requests")
	}

	webhookHandler := messaging.NewWebhookHandler(assistant, transcripts, cfg.TwilioAuthToken, logger, messagingMetrics)
	appointmentsHandler := handlers.NewAppointmentsHandler(booker, salonStore, logger, bookingMetrics)
	conversationsHandler := handlers.NewConversationsHandler(transcripts, sender, logger, messagingMetrics)
	settingsHandler := handlers.NewSettingsHandler(salonStore, booker, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		WebhookHandler:     webhookHandler,
		Appointments:       appointmentsHandler,
		Conversations:      conversationsHandler,
		Settings:           settingsHandler,
		MetricsHandler:     promhttp.Handler(),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// In-process reminder sweep. Deployments that run the dedicated
	// reminder-worker binary can disable it with REMINDER_SWEEP_INTERVAL=0.
	runCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	if cfg.ReminderSweepInterval > 0 {
		sweeper := reminders.NewSweeper(apptStore, sender, settings.Location(), cfg.ReminderLead, cfg.ReminderWindow, logger, reminderMetrics)
		runner := reminders.NewRunner(sweeper, cfg.ReminderSweepInterval, logger)
		go runner.Run(runCtx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopRunner()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
