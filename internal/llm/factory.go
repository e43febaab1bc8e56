package llm

import (
	"fmt"
	"strings"
	"time"

	"salyqbot/internal/config"
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	OpenaiAPIKey  string
	OpenaiBaseURL string
	OpenaiModel   string
	Timeout       time.Duration
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
		GeminiModel:   cfg.GeminiModel,
		OpenaiAPIKey:  cfg.OpenAIAPIKey,
		OpenaiBaseURL: cfg.OpenAIBaseURL,
		OpenaiModel:   cfg.OpenAIModel,
		Timeout:       cfg.LLMTimeout,
	}
}

func (f *Factory) CreateClient(provider string) (Client, error) {
	switch config.LLMProvider(strings.ToLower(provider)) {
	case config.ProviderGemini:
		return NewGemini(f.GeminiAPIKey, f.GeminiBaseURL, f.GeminiModel, f.Timeout), nil
	case config.ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, f.OpenaiModel, f.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
