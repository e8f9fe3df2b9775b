// Package rag orchestrates one conversational turn: query transforms,
// hybrid retrieval, reranking, answer generation, and answer verification.
package rag

import (
	gocontext "context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/shopsense/ai"
	aicontext "github.com/hrygo/shopsense/ai/context"
	"github.com/hrygo/shopsense/ai/core/llm"
	"github.com/hrygo/shopsense/ai/core/reranker"
	"github.com/hrygo/shopsense/ai/core/retrieval"
	"github.com/hrygo/shopsense/ai/metrics"
	"github.com/hrygo/shopsense/ai/quality"
	"github.com/hrygo/shopsense/ai/transform"
	"github.com/hrygo/shopsense/internal/keylock"
)

// Source is one retrieved product backing an answer.
type Source struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Score       float64 `json:"score"`
	Origin      string  `json:"origin"` // vector, keyword, both
}

// TurnResult is everything one turn produces.
type TurnResult struct {
	RequestID    string                   `json:"requestId"`
	SessionID    string                   `json:"sessionId"`
	Answer       string                   `json:"answer"`
	Sources      []Source                 `json:"sources"`
	Citations    []quality.Citation       `json:"citations"`
	QueryType    string                   `json:"queryType"`
	Rewritten    string                   `json:"rewrittenQuery,omitempty"`
	TopicChanged bool                     `json:"topicChanged"`
	Action       *transform.FollowupAction `json:"action,omitempty"`
	FactCheck    quality.FactCheckReport  `json:"factCheck"`
	Quality      quality.AnswerScores     `json:"quality"`
	Degraded     string                   `json:"degraded,omitempty"`
	Elapsed      time.Duration            `json:"-"`
}

// Service runs the full turn pipeline. Turns within one session are
// serialized; different sessions proceed concurrently.
type Service struct {
	conversations *aicontext.Manager
	rewriter      *transform.Rewriter
	expander      *transform.Expander
	decomposer    *transform.Decomposer
	searcher      *retrieval.HybridSearcher
	reranker      reranker.Service
	llm           llm.Service
	factChecker   *quality.FactChecker
	catalog       ai.CatalogLookup
	exporter      *metrics.PrometheusExporter
	logger        *slog.Logger

	locks *keylock.Table

	turns         atomic.Int64
	degradedTurns atomic.Int64
}

// Stats is a point-in-time engine snapshot for health reporting.
type Stats struct {
	Turns         int64 `json:"turns"`
	DegradedTurns int64 `json:"degradedTurns"`
}

// Stats reports how many turns the service has run and how many degraded.
func (s *Service) Stats() Stats {
	return Stats{Turns: s.turns.Load(), DegradedTurns: s.degradedTurns.Load()}
}

// Deps carries the collaborators for NewService.
type Deps struct {
	Conversations *aicontext.Manager
	Decomposer    *transform.Decomposer
	Searcher      *retrieval.HybridSearcher
	Reranker      reranker.Service
	LLM           llm.Service
	FactChecker   *quality.FactChecker
	Catalog       ai.CatalogLookup
	Exporter      *metrics.PrometheusExporter
	Logger        *slog.Logger
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Conversations == nil:
		return nil, errors.New("rag: conversation manager is required")
	case deps.Searcher == nil:
		return nil, errors.New("rag: hybrid searcher is required")
	case deps.Reranker == nil:
		return nil, errors.New("rag: reranker is required")
	case deps.LLM == nil:
		return nil, errors.New("rag: completion service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conversations: deps.Conversations,
		rewriter:      transform.NewRewriter(),
		expander:      transform.NewExpander(),
		decomposer:    deps.Decomposer,
		searcher:      deps.Searcher,
		reranker:      deps.Reranker,
		llm:           deps.LLM,
		factChecker:   deps.FactChecker,
		catalog:       deps.Catalog,
		exporter:      deps.Exporter,
		logger:        logger,
		locks:         keylock.New(),
	}, nil
}

// Chat runs one conversational turn end to end and appends both sides of the
// exchange to the session history. Collaborator failures never fail the turn:
// each stage degrades to a documented fallback and the user always gets an
// answer. Degradations surface through logs and metrics only.
func (s *Service) Chat(ctx gocontext.Context, sessionID, message string) (*TurnResult, error) {
	s.locks.Lock(sessionID)
	defer s.locks.Unlock(sessionID)

	requestID := uuid.NewString()
	started := time.Now()
	if s.exporter != nil {
		s.exporter.TurnStarted()
		defer s.exporter.TurnFinished()
	}
	logger := s.logger.With("request_id", requestID, "session_id", sessionID)

	result := s.runTurn(ctx, logger, requestID, sessionID, message)
	s.turns.Add(1)
	if result.Degraded != "" {
		s.degradedTurns.Add(1)
	}
	if s.exporter != nil {
		s.exporter.RecordTurn(result.QueryType, time.Since(started), result.Degraded == "")
	}
	result.Elapsed = time.Since(started)
	logger.InfoContext(ctx, "turn completed",
		"query_type", result.QueryType,
		"sources", len(result.Sources),
		"topic_changed", result.TopicChanged,
		"degraded", result.Degraded,
		"elapsed_ms", result.Elapsed.Milliseconds())
	return result, nil
}

func (s *Service) runTurn(ctx gocontext.Context, logger *slog.Logger, requestID, sessionID, message string) *TurnResult {
	var degraded []string

	convo, err := s.conversations.GetContext(ctx, sessionID, message)
	if err != nil {
		logger.WarnContext(ctx, "conversation context unavailable, starting fresh", "error", err)
		convo = &aicontext.Context{SessionID: sessionID, State: aicontext.StateFresh}
		degraded = append(degraded, "context")
	}
	if convo.TopicChanged && s.exporter != nil {
		s.exporter.RecordTopicChange()
	}

	// Transform stage. The rewritten query feeds decomposition and
	// expansion; the expanded query feeds retrieval.
	rewrite := s.rewriter.Rewrite(message, convo.Entities)
	searchQuery := rewrite.Rewritten

	var plan transform.Decomposition
	if s.decomposer != nil {
		plan = s.decomposer.Decompose(ctx, searchQuery)
		if productQuery := plan.ProductQuery(); productQuery != "" {
			searchQuery = productQuery
		}
	}
	expansion := s.expander.Expand(searchQuery)

	// The decomposer's explicit filters win; otherwise fall back to
	// color/size preferences implied by this turn or the previous one.
	filters := plan.Filters()
	if len(filters) == 0 {
		filters = rewrite.ImplicitFilters
	}
	if len(filters) == 0 {
		if last := lastUserMessage(convo.History); last != "" {
			filters = transform.ExtractImplicitFilters(last)
		}
	}

	// Retrieval stage. Both legs failing yields an empty result set, not a
	// failed turn; the answer then explains nothing was found.
	searchStarted := time.Now()
	queryType := "unknown"
	searchRes, err := s.searcher.Search(ctx, searchQuery, expansion.Enhanced, filters)
	if err != nil {
		logger.WarnContext(ctx, "hybrid search failed, answering without retrieval", "error", err)
		searchRes = &retrieval.Result{Degraded: "search"}
	} else {
		queryType = searchRes.Classification.Type.String()
	}
	if searchRes.Degraded != "" {
		degraded = append(degraded, searchRes.Degraded)
	}
	if s.exporter != nil {
		s.exporter.RecordSearch(queryType,
			time.Since(searchStarted), len(searchRes.Results), searchRes.Degraded)
	}

	originalIDs := mergedIDs(searchRes.Results)
	ranked := s.rerank(ctx, rewrite.Rewritten, searchRes.Results)
	sources := buildSources(ranked)

	// Generation stage. An unreachable completion backend degrades to a
	// canned apology that still surfaces the retrieved products.
	answer, err := s.generateAnswer(ctx, message, rewrite.Rewritten, convo, ranked)
	if err != nil {
		logger.WarnContext(ctx, "answer generation failed, using fallback reply", "error", err)
		answer = fallbackAnswer(sources)
		degraded = append(degraded, "llm")
	}

	// Verification stage.
	qualitySources := make([]quality.Source, len(sources))
	for i, src := range sources {
		qualitySources[i] = quality.Source{ProductID: src.ProductID, ProductName: src.ProductName, Score: src.Score}
	}
	products := s.resolveProducts(ctx, sources)
	answer, citations := quality.InjectCitations(answer, qualitySources)
	if footer := quality.CitationFooter(citations, products); footer != "" {
		answer += footer
	}
	validation := quality.ValidateCitations(answer, qualitySources)
	citationMeta := quality.BuildCitationMetadata(citations, qualitySources)
	logger.DebugContext(ctx, "citation accounting",
		"cited_sources", citationMeta.CitedSources,
		"total_sources", citationMeta.TotalSources,
		"citation_rate", citationMeta.CitationRate)

	retrievalStats := quality.ComputeRetrievalMetrics(products, originalIDs, mergedIDs(ranked))
	logger.DebugContext(ctx, "retrieval metrics",
		"result_count", retrievalStats.ResultCount,
		"category_diversity", retrievalStats.CategoryDiversity,
		"in_stock_ratio", retrievalStats.InStockRatio,
		"rerank_displacement", retrievalStats.RerankDisplacement)

	var factCheck quality.FactCheckReport
	if s.factChecker != nil {
		factCheck = s.factChecker.Check(ctx, answer, products)
	} else {
		factCheck = quality.FactCheckReport{Passed: true, Skipped: true, Verdict: "skipped"}
	}
	scores := quality.ScoreAnswer(message, answer, qualitySources)
	s.recordQuality(validation, factCheck, scores)

	// Persist both sides of the turn. A write failure loses history for
	// later turns but must not withhold the answer already produced.
	userMsg := ai.Message{Role: "user", Content: message, Intent: string(aicontext.QuickIntent(message))}
	if err := s.conversations.AddMessage(ctx, sessionID, userMsg); err != nil {
		logger.WarnContext(ctx, "failed to persist user message", "error", err)
	}
	assistantMsg := ai.Message{Role: "assistant", Content: answer, SuggestedProducts: suggestedRefs(sources)}
	if err := s.conversations.AddMessage(ctx, sessionID, assistantMsg); err != nil {
		logger.WarnContext(ctx, "failed to persist assistant message", "error", err)
	}

	result := &TurnResult{
		RequestID:    requestID,
		SessionID:    sessionID,
		Answer:       answer,
		Sources:      sources,
		Citations:    citations,
		QueryType:    queryType,
		TopicChanged: convo.TopicChanged,
		Action:       rewrite.Action,
		FactCheck:    factCheck,
		Quality:      scores,
		Degraded:     strings.Join(degraded, ","),
	}
	if rewrite.Rewritten != message {
		result.Rewritten = rewrite.Rewritten
	}
	return result
}

// fallbackAnswer is the reply when the completion backend is unavailable.
// Retrieved products still get named so the turn is not a dead end.
func fallbackAnswer(sources []Source) string {
	const apology = "Xin lỗi, dịch vụ AI đang bận. Vui lòng thử lại sau ít phút."
	if len(sources) == 0 {
		return apology
	}
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.ProductName
	}
	return apology + " Một số sản phẩm có thể phù hợp: " + strings.Join(names, ", ") + "."
}

// answerCandidates caps how many reranked products feed answer generation.
const answerCandidates = 5

// rerank narrows the merged results to the most relevant candidates. The
// reranker degrades internally, so this never fails a turn.
func (s *Service) rerank(ctx gocontext.Context, query string, merged []*retrieval.MergedResult) []*retrieval.MergedResult {
	if len(merged) == 0 {
		return merged
	}
	docs := make([]string, len(merged))
	for i, m := range merged {
		docs[i] = rerankDocument(m)
	}
	if !s.reranker.IsEnabled() && s.exporter != nil {
		s.exporter.RecordRerankFallback()
	}
	ranked := s.reranker.Rerank(ctx, query, docs, answerCandidates)
	out := make([]*retrieval.MergedResult, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(merged) {
			continue
		}
		out = append(out, merged[r.Index])
	}
	if len(out) == 0 {
		return merged
	}
	return out
}

func rerankDocument(m *retrieval.MergedResult) string {
	parts := []string{m.Meta.ProductName, m.Meta.Category, m.Meta.Proposition}
	parts = append(parts, m.Meta.Tags...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

const answerSystemPrompt = `Bạn là trợ lý mua sắm của cửa hàng thời trang Devenir.
Chỉ tư vấn dựa trên danh sách sản phẩm được cung cấp, không bịa thêm sản phẩm, giá hay tồn kho.
Gọi tên sản phẩm đúng như trong danh sách. Trả lời thân thiện, ngắn gọn, bằng tiếng Việt.`

func (s *Service) generateAnswer(ctx gocontext.Context, original, rewritten string, convo *aicontext.Context, results []*retrieval.MergedResult) (string, error) {
	var b strings.Builder
	b.WriteString("Sản phẩm tìm được:\n")
	if len(results) == 0 {
		b.WriteString("(không có sản phẩm phù hợp)\n")
	}
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s", i+1, r.Meta.ProductName)
		if r.Meta.Category != "" {
			fmt.Fprintf(&b, " (%s)", r.Meta.Category)
		}
		if r.Meta.Proposition != "" {
			fmt.Fprintf(&b, " - %s", r.Meta.Proposition)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nCâu hỏi của khách: %s", original)
	if rewritten != original {
		fmt.Fprintf(&b, "\n(đã hiểu là: %s)", rewritten)
	}

	messages := []llm.Message{llm.SystemPrompt(answerSystemPrompt)}
	for _, m := range recentWindow(convo.History, 6) {
		switch m.Role {
		case "assistant":
			messages = append(messages, llm.AssistantMessage(m.Content))
		default:
			messages = append(messages, llm.UserMessage(m.Content))
		}
	}
	messages = append(messages, llm.UserMessage(b.String()))

	return s.llm.Complete(ctx, messages, &llm.Options{Temperature: 0.6})
}

func recentWindow(history []ai.Message, n int) []ai.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// resolveProducts loads full catalog records for the sources so the fact
// checker can verify prices and variants. Lookup failures shrink the set.
func (s *Service) resolveProducts(ctx gocontext.Context, sources []Source) []*ai.Product {
	if s.catalog == nil {
		return nil
	}
	var products []*ai.Product
	for _, src := range sources {
		p, err := s.catalog.FindProductByName(ctx, src.ProductName)
		if err != nil || p == nil {
			continue
		}
		products = append(products, p)
	}
	return products
}

func (s *Service) recordQuality(validation quality.CitationValidation, factCheck quality.FactCheckReport, scores quality.AnswerScores) {
	if s.exporter == nil {
		return
	}
	s.exporter.RecordCitationCoverage(validation.Coverage)
	s.exporter.RecordFactCheck(factCheck.Verdict)
	s.exporter.RecordAnswerQuality("faithfulness", scores.Faithfulness)
	s.exporter.RecordAnswerQuality("relevance", scores.Relevance)
	s.exporter.RecordAnswerQuality("context_precision", scores.ContextPrecision)
	s.exporter.RecordAnswerQuality("completeness", scores.Completeness)
	s.exporter.RecordAnswerQuality("overall", scores.Overall)
}

// lastUserMessage returns the newest stored user turn, or "".
func lastUserMessage(history []ai.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

func mergedIDs(results []*retrieval.MergedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func buildSources(results []*retrieval.MergedResult) []Source {
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			ProductID:   r.ID,
			ProductName: r.Meta.ProductName,
			Score:       r.HybridScore,
			Origin:      string(r.Source),
		})
	}
	return sources
}

func suggestedRefs(sources []Source) []ai.ProductRef {
	refs := make([]ai.ProductRef, 0, len(sources))
	for _, src := range sources {
		refs = append(refs, ai.ProductRef{ID: src.ProductID, Name: src.ProductName})
	}
	return refs
}

// History returns the stored conversation for a session.
func (s *Service) History(ctx gocontext.Context, sessionID string) ([]ai.Message, error) {
	return s.conversations.History(ctx, sessionID)
}

// ClearSession deletes a session's conversation state.
func (s *Service) ClearSession(ctx gocontext.Context, sessionID string) error {
	s.locks.Lock(sessionID)
	defer s.locks.Unlock(sessionID)
	return s.conversations.ClearContext(ctx, sessionID)
}
