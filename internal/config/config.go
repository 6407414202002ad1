package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	OpenAIAPIKey string
	OpenAIModel  string

	TwilioAccountSID   string
	TwilioAuthToken    string
	WhatsAppFromNumber string

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	SalonTimezone    string
	ClosedHoursStart string
	ClosedHoursEnd   string

	ReminderLead          time.Duration
	ReminderWindow        time.Duration
	ReminderSweepInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		WhatsAppFromNumber: getEnv("WHATSAPP_FROM_NUMBER", "whatsapp:+14155238886"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),

		SalonTimezone:    getEnv("SALON_TIMEZONE", "Europe/Madrid"),
		ClosedHoursStart: getEnv("CLOSED_HOURS_START", "14:00"),
		ClosedHoursEnd:   getEnv("CLOSED_HOURS_END", "16:00"),

		ReminderLead:          getEnvAsDuration("REMINDER_LEAD", 60*time.Minute),
		ReminderWindow:        getEnvAsDuration("REMINDER_WINDOW", 10*time.Minute),
		ReminderSweepInterval: getEnvAsDuration("REMINDER_SWEEP_INTERVAL", 10*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
