package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

type HistoryBackend string

const (
	BackendMemory   HistoryBackend = "memory"
	BackendFile     HistoryBackend = "file"
	BackendSQLite   HistoryBackend = "sqlite"
	BackendPostgres HistoryBackend = "postgres"
	BackendRedis    HistoryBackend = "redis"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	AdminUserID      int64  `env:"ADMIN_USER"`

	// LLM settings
	LLMProvider   LLMProvider   `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"15s"`

	// Prompts. Empty path means the built-in persona.
	PersonaPath string `env:"PERSONA_PATH"`

	// History storage
	HistoryBackend  HistoryBackend `env:"HISTORY_BACKEND" envDefault:"sqlite"`
	HistoryFilePath string         `env:"HISTORY_FILE_PATH" envDefault:"data/history.json"`
	SQLitePath      string         `env:"SQLITE_PATH" envDefault:"data/salyqbot.db"`
	DatabaseURL     string         `env:"DATABASE_URL"`
	RedisURL        string         `env:"REDIS_URL"`

	// Interaction log
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"logs/log.jsonl"`

	// HTTP API, off unless HTTP_ADDR is set. Every /v1 call needs
	// "Authorization: Bearer <API_TOKEN>".
	HTTPAddr string `env:"HTTP_ADDR"`
	APIToken string `env:"API_TOKEN"`

	// Daily report (cron spec, UTC). Empty disables it.
	ReportSchedule string `env:"REPORT_SCHEDULE" envDefault:"0 21 * * *"`

	MaxConcurrentMessages int  `env:"MAX_CONCURRENT_MESSAGES" envDefault:"16"`
	Debug                 bool `env:"DEBUG"`
}

// New parses the environment and validates the result.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.LLMTimeout <= 0 {
		return errors.New("LLM_TIMEOUT must be positive")
	}

	switch c.HistoryBackend {
	case BackendMemory:
	case BackendFile:
		if c.HistoryFilePath == "" {
			return errors.New("HISTORY_FILE_PATH cannot be empty")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH cannot be empty")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}

	if c.TelegramBotToken == "" && c.HTTPAddr == "" {
		return errors.New("nothing to serve: set TELEGRAM_BOT_TOKEN or HTTP_ADDR")
	}
	if c.HTTPAddr != "" && c.APIToken == "" {
		return errors.New("API_TOKEN is required when HTTP_ADDR is set")
	}
	if c.MaxConcurrentMessages <= 0 {
		return errors.New("MAX_CONCURRENT_MESSAGES must be > 0")
	}
	return nil
}
