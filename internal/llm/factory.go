package llm

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/model"
)

// NewProvider creates a provider from config. An empty provider name
// returns nil, nil: explanations are disabled.
func NewProvider(config Config, logger *zap.Logger) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config, logger)
	case "anthropic", "claude":
		return NewAnthropicProvider(config, logger)
	case "ollama":
		return NewOllamaProvider(config, logger)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the loaded configuration, taking proxy settings from http
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:       llmConfig.Provider,
		Model:          llmConfig.Model,
		APIKey:         llmConfig.APIKey,
		BaseURL:        llmConfig.BaseURL,
		Timeout:        llmConfig.Timeout,
		StrictEvidence: llmConfig.StrictEvidence,
		MaxTokens:      llmConfig.MaxTokens,
		HTTPProxy:      httpConfig.HTTPProxy,
		HTTPSProxy:     httpConfig.HTTPSProxy,
		NoProxy:        httpConfig.NoProxy,
	}
}

// ApplyEnv fills credentials the config left empty from the provider's environment variables
func ApplyEnv(config Config) Config {
	return applyEnv(config, os.Getenv)
}

func applyEnv(config Config, getenv func(string) string) Config {
	switch strings.ToLower(config.Provider) {
	case "openai":
		if config.APIKey == "" {
			config.APIKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if config.APIKey == "" {
			config.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
	return config
}
