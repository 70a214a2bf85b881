package llm

import (
	"fmt"
	"time"

	"sasbridge/internal/config"
)

// NewClient builds a completion client from the LLM section of the config.
// timeout bounds each request; zero keeps the provider default. The API key
// is expected to be resolved already (config applies the OPENAI_API_KEY /
// AZURE_OPENAI_API_KEY / GEMINI_API_KEY overrides).
func NewClient(cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured; set llm.api_key or one of OPENAI_API_KEY, AZURE_OPENAI_API_KEY, GEMINI_API_KEY")
	}

	switch cfg.Provider {
	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			oc.Timeout = timeout
		}
		oc.Temperature = cfg.Temperature
		return NewOpenAIClientWithConfig(oc), nil

	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires llm.base_url (deployment endpoint)")
		}
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			oc.Timeout = timeout
		}
		oc.Temperature = cfg.Temperature
		return NewAzureClient(cfg.APIKey, cfg.BaseURL, oc), nil

	case "gemini":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			gc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			gc.MaxOutputTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			gc.Timeout = timeout
		}
		gc.Temperature = cfg.Temperature
		return NewGeminiClientWithConfig(gc), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: %v)", cfg.Provider, config.ValidProviders)
	}
}
