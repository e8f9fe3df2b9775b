// Package reranker provides second-pass relevance scoring through an
// external cross-encoder API. The exported Service never fails a turn: every
// error path degrades to the candidates' input order with synthetic scores.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Result represents a reranking result.
type Result struct {
	Index    int     // index into the input documents
	Score    float64 // relevance score
	Document string
}

// Client is the raw rerank API contract.
type Client interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)
	IsConfigured() bool
}

// Service is the degradation-safe reranking interface the pipeline uses.
type Service interface {
	// Rerank reorders documents by relevance. It has no error return: when
	// the backing client is unconfigured or fails, the input order is kept
	// and synthetic descending scores (1.0, 0.9, 0.8, ...) are assigned.
	Rerank(ctx context.Context, query string, documents []string, topN int) []Result

	// IsEnabled reports whether a real rerank backend is configured.
	IsEnabled() bool
}

// Config represents reranker configuration.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Enabled  bool
	Timeout  time.Duration // default: 10s
}

// NewService creates a Service wrapping the HTTP client with the documented
// fallback behavior.
func NewService(cfg *Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackService{
		client: newHTTPClient(cfg),
		logger: logger,
	}
}

// fallbackService decorates a Client with graceful degradation.
type fallbackService struct {
	client Client
	logger *slog.Logger
}

func (s *fallbackService) IsEnabled() bool {
	return s.client.IsConfigured()
}

func (s *fallbackService) Rerank(ctx context.Context, query string, documents []string, topN int) []Result {
	if len(documents) == 0 {
		return nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	// Nothing to rank: the candidate set already fits the request.
	if len(documents) <= topN && !s.client.IsConfigured() {
		return identityResults(documents, topN)
	}
	if len(documents) <= topN {
		return unrankedResults(documents)
	}

	if !s.client.IsConfigured() {
		s.logger.WarnContext(ctx, "Rerank credential absent, returning input order")
		return identityResults(documents, topN)
	}

	results, err := s.client.Rerank(ctx, query, documents, topN)
	if err != nil {
		s.logger.WarnContext(ctx, "Rerank call failed, returning input order", "error", err)
		return identityResults(documents, topN)
	}
	return results
}

// identityResults keeps the input order with strictly descending synthetic
// scores 1.0 - 0.1*rank.
func identityResults(documents []string, topN int) []Result {
	if topN > len(documents) {
		topN = len(documents)
	}
	results := make([]Result, topN)
	for i := 0; i < topN; i++ {
		results[i] = Result{Index: i, Score: 1.0 - 0.1*float64(i), Document: documents[i]}
	}
	return results
}

// unrankedResults returns every candidate untouched; used when the set is
// small enough that reranking would be a no-op.
func unrankedResults(documents []string) []Result {
	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{Index: i, Score: 1.0, Document: doc}
	}
	return results
}

type httpClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
	enabled bool
}

func newHTTPClient(cfg *Config) *httpClient {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		enabled: cfg.Enabled && cfg.APIKey != "",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *httpClient) IsConfigured() bool {
	return c.enabled
}

func (c *httpClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	reqBody := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": documents,
		"top_n":     topN,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(c.baseURL, "/")
	if !strings.HasSuffix(baseURL, "/rerank") {
		baseURL += "/v1/rerank"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("rerank API error: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("rerank API error: %s", string(respBody))
	}

	var payload struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		results = append(results, Result{Index: r.Index, Score: r.Score, Document: documents[r.Index]})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}
