package ai

import (
	"errors"

	"github.com/hrygo/shopsense/ai/core/llm"
	"github.com/hrygo/shopsense/ai/core/reranker"
	"github.com/hrygo/shopsense/internal/profile"
)

// Config represents engine configuration.
type Config struct {
	LLM      llm.Config
	Reranker reranker.Config

	// Feature switches. Both change only which branch executes, never the
	// collaborator contract shapes.
	FactCheckEnabled      bool
	QueryTransformEnabled bool

	Enabled bool
}

// NewConfigFromProfile creates engine config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.AIEnabled,
	}

	if !cfg.Enabled {
		// No credentials configured. Point at a local ollama so dev and demo
		// runs still have a completion backend.
		cfg.LLM = llm.Config{
			Provider:    "ollama",
			Model:       "llama3.1",
			BaseURL:     "http://localhost:11434",
			MaxTokens:   800,
			Temperature: 0.3,
			Timeout:     p.LLMTimeout,
		}
		return cfg
	}

	cfg.LLM = llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   800,
		Temperature: 0.3,
		Timeout:     p.LLMTimeout,
	}

	// Reranker enablement follows credential presence: an absent API key is
	// a valid, detectable state that selects the degraded path.
	cfg.Reranker = reranker.Config{
		Enabled:  p.RerankAPIKey != "",
		Provider: p.RerankProvider,
		Model:    p.RerankModel,
		APIKey:   p.RerankAPIKey,
		BaseURL:  p.RerankBaseURL,
	}

	cfg.FactCheckEnabled = p.FactCheckEnabled
	cfg.QueryTransformEnabled = p.QueryTransformEnabled

	return cfg
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.LLM.APIKey == "" && c.LLM.Provider != "ollama" {
		return errors.New("LLM API key is required when AI is enabled")
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model is required when AI is enabled")
	}
	return nil
}
