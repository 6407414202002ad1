package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/andrescanal12/reyna-appointments/internal/config"
	"github.com/andrescanal12/reyna-appointments/internal/messaging"
	"github.com/andrescanal12/reyna-appointments/internal/observability/metrics"
	"github.com/andrescanal12/reyna-appointments/internal/reminders"
	"github.com/andrescanal12/reyna-appointments/internal/salon"
	"github.com/andrescanal12/reyna-appointments/internal/scheduling"
	"github.com/andrescanal12/reyna-appointments/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" || cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		logger.Error("reminder worker requires DATABASE_URL, TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

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
		salonStore = salon.NewMemoryStore().WithDefaults(seed)
	}
	settings, err := salonStore.Get(ctx)
	if err != nil {
		logger.Error("failed to load salon settings", "error", err)
		os.Exit(1)
	}

	store := scheduling.NewPostgresStore(pool)
	sender := messaging.NewWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.WhatsAppFromNumber, logger)
	sweeper := reminders.NewSweeper(store, sender, settings.Location(), cfg.ReminderLead, cfg.ReminderWindow, logger, metrics.NewReminderMetrics(nil))
	runner := reminders.NewRunner(sweeper, cfg.ReminderSweepInterval, logger)

	go runner.Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminder worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
