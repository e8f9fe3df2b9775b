package profile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol).
	LLMProvider string // openai, deepseek, siliconflow, ollama
	LLMAPIKey   string
	LLMBaseURL  string // optional, has default per provider
	LLMModel    string
	LLMTimeout  int // request timeout in seconds (default: 30)

	// Reranker configuration. An absent API key disables reranking.
	RerankProvider string
	RerankModel    string
	RerankAPIKey   string
	RerankBaseURL  string

	// Feature switches for the answer pipeline.
	FactCheckEnabled      bool
	QueryTransformEnabled bool

	// Server configuration.
	Mode    string
	Addr    string
	Port    int
	Version string

	AIEnabled bool
}

// Provider default configurations for the LLM.
// Used when SHOPSENSE_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns environment variable value as bool (default false).
func getEnvBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1" || v == "yes"
}

// FromEnv populates the profile from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("SHOPSENSE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = os.Getenv("SHOPSENSE_LLM_API_KEY")
	p.LLMBaseURL = os.Getenv("SHOPSENSE_LLM_BASE_URL")
	p.LLMModel = os.Getenv("SHOPSENSE_LLM_MODEL")
	p.LLMTimeout = getEnvOrDefaultInt("SHOPSENSE_LLM_TIMEOUT", 30)

	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.RerankProvider = getEnvOrDefault("SHOPSENSE_RERANK_PROVIDER", "cohere")
	p.RerankModel = getEnvOrDefault("SHOPSENSE_RERANK_MODEL", "rerank-multilingual-v3.0")
	p.RerankAPIKey = os.Getenv("SHOPSENSE_RERANK_API_KEY")
	p.RerankBaseURL = getEnvOrDefault("SHOPSENSE_RERANK_BASE_URL", "https://api.cohere.com")

	p.FactCheckEnabled = getEnvBool("SHOPSENSE_ENABLE_FACT_CHECKING")
	p.QueryTransformEnabled = getEnvBool("SHOPSENSE_ENABLE_QUERY_TRANSFORMATION")

	p.AIEnabled = p.LLMAPIKey != ""
}

// Validate checks the profile for startup-blocking problems.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" && p.Mode != "demo" {
		return errors.Errorf("invalid mode %q (want prod, dev or demo)", p.Mode)
	}
	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.LLMTimeout <= 0 {
		return errors.New("LLM timeout must be positive")
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (p *Profile) ListenAddr() string {
	return fmt.Sprintf("%s:%d", p.Addr, p.Port)
}
