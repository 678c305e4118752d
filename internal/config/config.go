package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Ai       AIConfig
	Dunning  DunningConfig
	Webhook  WebhookConfig
	Send     SendConfig
}

type AppConfig struct {
	Port                string
	BaseURL             string
	Environment         string
	LogFilePath         string
	NotificationLogPath string
	CorsAllowedOrigins  string
	NatsURL             string
	RedisURL            string
	JwtSecret           string
	Storage             string // "postgres" or "memory"
	OtelEnabled         bool
	OtelEndpoint        string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	Timeout    time.Duration
}

type AIConfig struct {
	LLMProvider   string // "ollama" or "huggingface"
	LLMModel      string
	OllamaBaseURL string
	HFBaseURL     string
	HFApiKey      string
	Temperature   float64
	MaxTokens     int // 0 keeps the provider default
	Concurrency   int
	Timeout       time.Duration
}

type DunningConfig struct {
	TickInterval time.Duration
	ClaimLease   time.Duration
	BatchSize    int
	PoolSize     int
}

type WebhookConfig struct {
	ReplayTTL          time.Duration
	SignatureTolerance time.Duration
	StripeSecretKey    string // enables customer lookups for churn events without an email
}

type SendConfig struct {
	ClaimLease time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			BaseURL:             getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			NotificationLogPath: getEnv("NOTIFICATION_LOG_PATH", "logs/notification.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:             getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:           getEnv("JWT_SECRET", ""),
			Storage:             getEnv("APP_STORAGE", "postgres"),
			OtelEnabled:         getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Windback"),
			Timeout:    getEnvAsDuration("SMTP_TIMEOUT", 30*time.Second),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HFBaseURL:     getEnv("HF_BASE_URL", "https://router.huggingface.co/v1"),
			HFApiKey:      getEnv("HF_API_KEY", ""),
			Temperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 0),
			Concurrency:   getEnvAsInt("GENERATION_CONCURRENCY", 3),
			Timeout:       getEnvAsDuration("GENERATION_TIMEOUT", 2*time.Minute),
		},
		Dunning: DunningConfig{
			TickInterval: getEnvAsDuration("DUNNING_TICK_INTERVAL", 5*time.Minute),
			ClaimLease:   getEnvAsDuration("DUNNING_CLAIM_LEASE", 10*time.Minute),
			BatchSize:    getEnvAsInt("DUNNING_BATCH_SIZE", 100),
			PoolSize:     getEnvAsInt("DUNNING_POOL_SIZE", 5),
		},
		Webhook: WebhookConfig{
			ReplayTTL:          getEnvAsDuration("WEBHOOK_REPLAY_TTL", 72*time.Hour),
			SignatureTolerance: getEnvAsDuration("WEBHOOK_SIGNATURE_TOLERANCE", 5*time.Minute),
			StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
		},
		Send: SendConfig{
			ClaimLease: getEnvAsDuration("SEND_CLAIM_LEASE", 5*time.Minute),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
