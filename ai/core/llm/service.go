// Package llm wraps an OpenAI-compatible completion provider behind the
// engine's completion contract. Structured (JSON-mode) output is treated as
// untrusted input: callers hand in a destination shape and get a recoverable
// error — never a panic — on malformed payloads.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// Options tunes a single completion call.
type Options struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// Service is the completion service interface.
type Service interface {
	// Complete performs a synchronous chat completion.
	Complete(ctx context.Context, messages []Message, opts *Options) (string, error)

	// CompleteJSON performs a JSON-mode completion and unmarshals the result
	// into out. A malformed payload is returned as an error; callers apply
	// their documented default on any failure.
	CompleteJSON(ctx context.Context, messages []Message, opts *Options, out any) error
}

// Config represents completion service configuration.
type Config struct {
	Provider    string // openai, deepseek, siliconflow, ollama
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 800
	Temperature float32 // default: 0.3
	Timeout     int     // request timeout in seconds (default: 30)
}

type service struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

var providerBaseURLs = map[string]string{
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"ollama":      "http://localhost:11434",
}

// NewService creates a new completion Service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil || cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, fmt.Errorf("llm: missing API key")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.HTTPClient = newHTTPClient()

	switch {
	case cfg.BaseURL != "":
		clientConfig.BaseURL = cfg.BaseURL
	case providerBaseURLs[cfg.Provider] != "":
		clientConfig.BaseURL = providerBaseURLs[cfg.Provider]
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	return &service{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     time.Duration(timeout) * time.Second,
	}, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func (s *service) Complete(ctx context.Context, messages []Message, opts *Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := s.buildRequest(messages, opts)

	slog.DebugContext(ctx, "LLM: completion request",
		"model", s.model,
		"messages_count", len(messages),
		"max_tokens", req.MaxTokens,
	)

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from LLM")
	}

	return resp.Choices[0].Message.Content, nil
}

func (s *service) CompleteJSON(ctx context.Context, messages []Message, opts *Options, out any) error {
	jsonOpts := Options{Temperature: 0.1, JSONMode: true}
	if opts != nil {
		jsonOpts = *opts
		jsonOpts.JSONMode = true
	}

	raw, err := s.Complete(ctx, messages, &jsonOpts)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return fmt.Errorf("llm returned malformed JSON: %w", err)
	}
	return nil
}

func (s *service) buildRequest(messages []Message, opts *Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages:    convertMessages(messages),
	}
	if opts != nil {
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			req.Temperature = opts.Temperature
		}
		if opts.JSONMode {
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}
	}
	return req
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return converted
}

// extractJSON strips markdown code fences some providers wrap around
// JSON-mode output.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
