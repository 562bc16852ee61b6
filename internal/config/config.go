// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generator providers selectable via LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	LogLevel    string

	Provider      string // gemini, openai or mock
	GoogleAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string // set for OpenAI-compatible gateways such as OpenRouter
	Model         string // empty selects the provider's default model

	SessionTTL    time.Duration // <= 0 keeps sessions until reset
	TurnTimeout   time.Duration // <= 0 leaves turns unbounded
	SweepInterval time.Duration

	TurnLog TurnLogConfig
}

// TurnLogConfig controls NDJSON turn audit logging.
type TurnLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TURN_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/tripflow.db"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),

		Provider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderGemini))),
		GoogleAPIKey:  getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Model:         getEnv("LLM_MODEL", ""),

		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		TurnTimeout:   getEnvDuration("TURN_TIMEOUT", 2*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),

		TurnLog: TurnLogConfig{
			Enabled:       getEnvBool("TURN_LOG_ENABLED", true),
			Dir:           getEnv("TURN_LOG_DIR", "./data/logs/turns"),
			GlobalEnabled: getEnvBool("TURN_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("TURN_LOG_GLOBAL_PATH", "./data/logs/turns/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}

	switch c.Provider {
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for LLM_PROVIDER=gemini")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for LLM_PROVIDER=openai")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want gemini, openai or mock)", c.Provider)
	}

	if c.TurnLog.Enabled && c.TurnLog.Dir == "" {
		return fmt.Errorf("TURN_LOG_DIR cannot be empty when turn logging is enabled")
	}
	if c.TurnLog.GlobalEnabled && c.TurnLog.GlobalPath == "" {
		return fmt.Errorf("TURN_LOG_GLOBAL_PATH cannot be empty when the global log is enabled")
	}
	if c.TurnLog.QueueSize <= 0 {
		return fmt.Errorf("TURN_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps the configured log level onto slog's scale. Unknown
// values fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
