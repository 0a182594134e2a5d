package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// InternalToken guards the internal sweep trigger. Empty disables the check.
	InternalToken string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Email     EmailConfig
	WhatsApp  WhatsAppConfig
	Assistant AssistantConfig
	Scheduler SchedulerConfig
	Webhooks  WebhookConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address has been configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
}

type WhatsAppConfig struct {
	BaseURL       string
	APIKey        string
	DeviceID      string
	DefaultRegion string
	RatePerSecond float64
}

type AssistantConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// WebhookConfig limits inbound provider callbacks per organization. A zero rate disables the limit.
type WebhookConfig struct {
	RatePerSecond float64
	Burst         int
}

type SchedulerConfig struct {
	Trigger     string
	RunInterval time.Duration
	BatchSize   int
	Concurrency int
	AsynqQueue  string
}

const (
	TriggerTicker = "ticker"
	TriggerAsynq  = "asynq"
	TriggerNone   = "none"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "invoicerecovery"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		InternalToken: strings.TrimSpace(getenv("INTERNAL_API_TOKEN", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "billing@example.com"),
			SMTPFromName: getenv("SMTP_FROM_NAME", "Accounts Receivable"),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:       strings.TrimRight(strings.TrimSpace(getenv("WHATSAPP_URL", "")), "/"),
			APIKey:        strings.TrimSpace(getenv("WHATSAPP_KEY", "")),
			DeviceID:      strings.TrimSpace(getenv("WHATSAPP_DEVICE_ID", "")),
			DefaultRegion: strings.ToUpper(getenv("PHONE_DEFAULT_REGION", "US")),
			RatePerSecond: getenvFloat("WHATSAPP_RATE_PER_SECOND", 5),
		},
		Assistant: AssistantConfig{
			APIKey:  strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
			Model:   getenv("ASSISTANT_MODEL", "gemini-2.5-flash"),
			Timeout: getenvDuration("ASSISTANT_TIMEOUT", 20*time.Second),
		},
		Scheduler: SchedulerConfig{
			Trigger:     normalizeTrigger(getenv("SCHEDULER_TRIGGER", TriggerTicker)),
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:   getenvInt("SCHEDULER_BATCH_SIZE", 50),
			Concurrency: getenvInt("SCHEDULER_CONCURRENCY", 4),
			AsynqQueue:  getenv("SCHEDULER_ASYNQ_QUEUE", "reminders"),
		},
		Webhooks: WebhookConfig{
			RatePerSecond: getenvFloat("WEBHOOK_RATE_PER_SECOND", 20),
			Burst:         getenvInt("WEBHOOK_BURST", 40),
		},
	}
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeTrigger(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case TriggerAsynq:
		return TriggerAsynq
	case TriggerNone, "off", "external":
		return TriggerNone
	default:
		return TriggerTicker
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
