package llm

import (
	"fmt"
	"strings"
)

// ProviderType selects an OpenAI-compatible endpoint
type ProviderType string

const (
	ProviderOpenAI   ProviderType = "openai"
	ProviderGroq     ProviderType = "groq"
	ProviderDeepSeek ProviderType = "deepseek"
)

// ProviderConfig untuk create generator
type ProviderConfig struct {
	Type    ProviderType
	APIKey  string
	Model   string
	BaseURL string

	Temperature float32
	MaxTokens   int
}

type providerDefaults struct {
	name    string
	baseURL string
	model   string
}

var defaults = map[ProviderType]providerDefaults{
	ProviderOpenAI:   {name: "OpenAI", model: "gpt-4o-mini"},
	ProviderGroq:     {name: "Groq", baseURL: "https://api.groq.com/openai/v1", model: "llama-3.1-8b-instant"},
	ProviderDeepSeek: {name: "DeepSeek", baseURL: "https://api.deepseek.com", model: "deepseek-chat"},
}

// NewProvider is the factory for text generators. An empty provider type
// means OpenAI.
func NewProvider(cfg ProviderConfig) (*Generator, error) {
	if cfg.Type == "" {
		cfg.Type = ProviderOpenAI
	}
	cfg.Type = ProviderType(strings.ToLower(string(cfg.Type)))

	d, ok := defaults[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider type: %s", cfg.Type)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s", d.name)
	}
	if cfg.Model == "" {
		cfg.Model = d.model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.baseURL
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return newGenerator(d.name, cfg), nil
}
