package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/shopsense/ai"
)

// PathMetrics counts per-leg search outcomes.
type PathMetrics interface {
	RecordSearchPath(path string, success bool)
}

// Options tunes a HybridSearcher. Zero values pick the defaults.
type Options struct {
	TopK           int
	VectorTimeout  time.Duration
	KeywordTimeout time.Duration

	EnablePopularityBoost bool
	EnableSeasonalBoost   bool
	PopularityWindowDays  int

	// Metrics, when set, receives one outcome per search leg.
	Metrics PathMetrics
}

const (
	defaultTopK       = 10
	defaultLegTimeout = 3 * time.Second
)

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.VectorTimeout <= 0 {
		opts.VectorTimeout = defaultLegTimeout
	}
	if opts.KeywordTimeout <= 0 {
		opts.KeywordTimeout = defaultLegTimeout
	}
	if opts.PopularityWindowDays <= 0 {
		opts.PopularityWindowDays = PopularityWindowDays
	}
	return opts
}

// Result is the output of one hybrid search.
type Result struct {
	Results        []*MergedResult
	Classification Classification
	Weights        WeightProfile
	VectorCount    int
	KeywordCount   int
	// Degraded names the failed path ("vector" or "keyword") when one leg
	// failed and the other carried the search. Empty on a clean run.
	Degraded string
}

// HybridSearcher runs the vector and keyword paths in parallel and fuses
// their results with query-type-adaptive weights.
type HybridSearcher struct {
	vector     ai.VectorSearchClient
	keyword    ai.KeywordSearchClient
	popularity ai.PopularitySource
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewHybridSearcher builds a searcher. popularity may be nil; the popularity
// boost is then skipped regardless of options.
func NewHybridSearcher(vector ai.VectorSearchClient, keyword ai.KeywordSearchClient, popularity ai.PopularitySource, opts Options, logger *slog.Logger) *HybridSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearcher{
		vector:     vector,
		keyword:    keyword,
		popularity: popularity,
		opts:       opts.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

type legResult struct {
	source  Source
	results []ai.SearchResult
	err     error
}

// Search classifies the query, fans out to both search paths, fuses the
// union, applies boosts, and truncates to TopK. One failed leg degrades to
// the surviving leg; only both legs failing is an error.
//
// expanded is the synonym-grown variant sent to the search backends; the
// classifier always sees the original query so token-count rules stay
// meaningful. Pass "" to search with the original query. filters narrows
// both legs to matching attribute values and may be nil.
func (h *HybridSearcher) Search(ctx context.Context, query, expanded string, filters map[string]string) (*Result, error) {
	classification := ClassifyQuery(query)
	weights := WeightsFor(classification.Type)
	if expanded == "" {
		expanded = query
	}

	h.logger.InfoContext(ctx, "hybrid search start",
		"query_type", classification.Type.String(),
		"confidence", classification.Confidence,
		"vector_weight", weights.Vector,
		"keyword_weight", weights.Keyword)

	ch := make(chan legResult, 2)
	go func() {
		legCtx, cancel := context.WithTimeout(ctx, h.opts.VectorTimeout)
		defer cancel()
		res, err := h.vector.Search(legCtx, expanded, ai.VectorSearchOptions{TopK: h.opts.TopK * 2, Filter: filters})
		ch <- legResult{source: SourceVector, results: res, err: err}
	}()
	go func() {
		legCtx, cancel := context.WithTimeout(ctx, h.opts.KeywordTimeout)
		defer cancel()
		res, err := h.keyword.Search(legCtx, expanded, ai.KeywordSearchOptions{Limit: h.opts.TopK * 2, Filters: filters})
		ch <- legResult{source: SourceKeyword, results: res, err: err}
	}()

	var vectorResults, keywordResults []ai.SearchResult
	var vectorErr, keywordErr error
	for i := 0; i < 2; i++ {
		leg := <-ch
		if leg.source == SourceVector {
			vectorResults, vectorErr = leg.results, leg.err
		} else {
			keywordResults, keywordErr = leg.results, leg.err
		}
	}

	if h.opts.Metrics != nil {
		h.opts.Metrics.RecordSearchPath(string(SourceVector), vectorErr == nil)
		h.opts.Metrics.RecordSearchPath(string(SourceKeyword), keywordErr == nil)
	}

	if vectorErr != nil && keywordErr != nil {
		return nil, fmt.Errorf("both search paths failed: vector: %v; keyword: %w", vectorErr, keywordErr)
	}

	degraded := ""
	if vectorErr != nil {
		degraded = string(SourceVector)
		h.logger.WarnContext(ctx, "vector search failed, keyword-only results", "error", vectorErr)
		vectorResults = nil
	}
	if keywordErr != nil {
		degraded = string(SourceKeyword)
		h.logger.WarnContext(ctx, "keyword search failed, vector-only results", "error", keywordErr)
		keywordResults = nil
	}

	merged := MergeResults(vectorResults, keywordResults, weights)

	if h.opts.EnablePopularityBoost && h.popularity != nil {
		h.applyPopularityBoost(ctx, merged)
	}
	if h.opts.EnableSeasonalBoost {
		ApplySeasonalBoost(merged, SeasonOf(h.now()), SeasonalBoostWeight)
	}

	if len(merged) > h.opts.TopK {
		merged = merged[:h.opts.TopK]
	}
	return &Result{
		Results:        merged,
		Classification: classification,
		Weights:        weights,
		VectorCount:    len(vectorResults),
		KeywordCount:   len(keywordResults),
		Degraded:       degraded,
	}, nil
}

// applyPopularityBoost fetches recent order counts for the merged ids and
// boosts by the normalized signal. A failed fetch skips the boost.
func (h *HybridSearcher) applyPopularityBoost(ctx context.Context, results []*MergedResult) {
	if len(results) == 0 {
		return
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	counts, err := h.popularity.GetRecentOrderCounts(ctx, ids, h.opts.PopularityWindowDays)
	if err != nil {
		h.logger.WarnContext(ctx, "popularity lookup failed, boost skipped", "error", err)
		return
	}
	ApplyPopularityBoost(results, NormalizePopularity(counts), PopularityBoostWeight)
}
