package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the studyhall AI service.
type Config struct {
	Port      int
	Version   string
	Log       LogConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Model     ModelConfig
	Retrieval RetrievalConfig
	Chat      ChatConfig
}

type LogConfig struct {
	Level  string
	Format string // "console" or "json"
}

type DatabaseConfig struct {
	Driver         string // "memory", "postgres" or "sqlite3"
	URL            string
	MaxConnections int
	SeedFile       string
}

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	MetricsEnabled bool
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	// DevIdentity is "user:tenant:role", accepted when no bearer token is sent.
	DevIdentity string
}

type ModelConfig struct {
	Provider      string // "openai" or "anthropic"
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	AnthropicURL  string
	Name          string // pins the model for every agent when set
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	MaxRetries    int
}

type RetrievalConfig struct {
	Strategy      string // "keyword" or "bleve"
	MinKeywordLen int
}

type ChatConfig struct {
	HistoryWindow int
	// AgentCatalog is a YAML agent table replacing the built-in one.
	AgentCatalog string
}

// Load reads .env.local and .env, then environment variables with
// sensible defaults. Variables already set in the environment win.
func Load() (*Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv reads configuration from the process environment only.
func FromEnv() *Config {
	return &Config{
		Port:    envInt("STUDYHALL_PORT", 4000),
		Version: envStr("STUDYHALL_VERSION", "0.1.0"),
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Driver:         envStr("DATABASE_DRIVER", "memory"),
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 25),
			SeedFile:       envStr("SEED_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:        envBool("OTEL_ENABLED", false),
			OTLPEndpoint:   envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:    envStr("OTEL_SERVICE_NAME", "studyhall-ai"),
			MetricsEnabled: envBool("METRICS_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret:   envStr("JWT_SECRET", ""),
			JWTIssuer:   envStr("JWT_ISSUER", ""),
			DevIdentity: envStr("AUTH_DEV_IDENTITY", ""),
		},
		Model: ModelConfig{
			Provider:      envStr("MODEL_PROVIDER", "openai"),
			OpenAIKey:     envStr("OPENAI_API_KEY", ""),
			OpenAIBaseURL: envStr("OPENAI_BASE_URL", ""),
			AnthropicKey:  envStr("ANTHROPIC_API_KEY", ""),
			AnthropicURL:  envStr("ANTHROPIC_BASE_URL", ""),
			Name:          envStr("MODEL_NAME", ""),
			Temperature:   envFloat("MODEL_TEMPERATURE", 0.7),
			MaxTokens:     envInt("MODEL_MAX_TOKENS", 2000),
			Timeout:       envDuration("MODEL_TIMEOUT", 60*time.Second),
			MaxRetries:    envInt("MODEL_MAX_RETRIES", 2),
		},
		Retrieval: RetrievalConfig{
			Strategy:      envStr("RETRIEVER", "keyword"),
			MinKeywordLen: envInt("RETRIEVAL_MIN_KEYWORD_LEN", 4),
		},
		Chat: ChatConfig{
			HistoryWindow: envInt("HISTORY_WINDOW", 10),
			AgentCatalog:  envStr("AGENT_CATALOG", ""),
		},
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite3":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported MODEL_PROVIDER %q", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("MODEL_TEMPERATURE must be between 0 and 2")
	}
	if c.Retrieval.MinKeywordLen < 1 {
		return fmt.Errorf("RETRIEVAL_MIN_KEYWORD_LEN must be positive")
	}
	if c.Chat.HistoryWindow < 1 {
		return fmt.Errorf("HISTORY_WINDOW must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
