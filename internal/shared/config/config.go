package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL string
	DBDriver    string
	Port        string
	Env         string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	ActionTimeout  time.Duration
	WebhookTimeout time.Duration

	SchedulerSpec    string
	SchedulerEnabled bool

	RecordEventsChannel string
	RecordEventsEnabled bool

	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string

	EmailProvider string
	BrevoAPIKey   string
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  getInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getInt("LOG_MAX_AGE_DAYS", 28),

		ActionTimeout:  getDuration("ACTION_TIMEOUT", 30*time.Second),
		WebhookTimeout: getDuration("WEBHOOK_TIMEOUT", 15*time.Second),

		SchedulerSpec:    getEnv("SCHEDULER_SPEC", "@every 1m"),
		SchedulerEnabled: getBool("SCHEDULER_ENABLED", true),

		RecordEventsChannel: getEnv("RECORD_EVENTS_CHANNEL", "record_events"),
		RecordEventsEnabled: getBool("RECORD_EVENTS_ENABLED", false),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),

		EmailProvider: strings.ToLower(os.Getenv("EMAIL_PROVIDER")),
		BrevoAPIKey:   os.Getenv("BREVO_API_KEY"),
		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		EmailFrom:     os.Getenv("EMAIL_FROM"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "Automations"),
	}

	// Fallback to the provider-specific key
	if cfg.LLMAPIKey == "" && cfg.LLMProvider == "openai" {
		cfg.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.DatabaseURL == "" && cfg.DBDriver == "sqlite" {
		cfg.DatabaseURL = "file:automations.db?_pragma=foreign_keys(1)"
	}

	return cfg
}

// EmailAPIKey returns the key of the configured email provider. Without an
// explicit EMAIL_PROVIDER, Brevo wins over Resend.
func (c *Config) EmailAPIKey() (string, string) {
	switch c.EmailProvider {
	case "brevo":
		return "brevo", c.BrevoAPIKey
	case "resend":
		return "resend", c.ResendAPIKey
	}
	if c.BrevoAPIKey != "" {
		return "brevo", c.BrevoAPIKey
	}
	if c.ResendAPIKey != "" {
		return "resend", c.ResendAPIKey
	}
	return "", ""
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msgf("⚠️ Invalid integer, using default %d", def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msgf("⚠️ Invalid boolean, using default %t", def)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msgf("⚠️ Invalid duration, using default %s", def)
		return def
	}
	return d
}
