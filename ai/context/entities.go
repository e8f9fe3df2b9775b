package context

import (
	gocontext "context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"time"

	"github.com/hrygo/shopsense/ai"
	"github.com/hrygo/shopsense/ai/cache"
	"github.com/hrygo/shopsense/ai/core/llm"
)

// ProductEntity is a product referenced in conversation, resolved to a
// catalog id when the lookup succeeds.
type ProductEntity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Entities is the structured state extracted from a conversation window.
// The zero value is the documented default returned on any extraction
// failure.
type Entities struct {
	CurrentProduct   *ProductEntity    `json:"currentProduct"`
	AllProducts      []ProductEntity   `json:"allProducts"`
	UserMeasurements map[string]string `json:"userMeasurements"`
	Preferences      []string          `json:"preferences"`
	Topic            string            `json:"topic"`
	IntentHistory    []string          `json:"intentHistory"`
}

const (
	// extractionWindow is how many recent turns the extraction prompt sees.
	extractionWindow = 10
	// cacheKeyWindow is how many trailing messages feed the cache key.
	cacheKeyWindow = 5

	entityCacheTTL = 5 * time.Minute
)

const entityExtractionPrompt = `Bạn là bộ trích xuất thực thể cho trợ lý mua sắm thời trang.
Đọc đoạn hội thoại và trả về JSON đúng theo khung sau, không thêm trường nào khác:
{"currentProduct": {"name": "..."} | null, "allProducts": [{"name": "..."}], "userMeasurements": {"height": "...", "weight": "...", "size": "..."}, "preferences": ["..."], "topic": "...", "intentHistory": ["..."]}
Chỉ ghi nhận sản phẩm được nhắc đến rõ ràng. Trả về các trường rỗng khi không chắc chắn.`

// CacheMetrics counts entity-cache outcomes.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// EntityExtractor pulls structured entities from recent conversation turns
// through the completion service, with a short-TTL cache keyed on the
// conversation content.
type EntityExtractor struct {
	llm     llm.Service
	catalog ai.CatalogLookup
	cache   *cache.LRU[string, Entities]
	metrics CacheMetrics
	logger  *slog.Logger
}

// NewEntityExtractor builds an extractor. catalog may be nil to skip
// enrichment.
func NewEntityExtractor(svc llm.Service, catalog ai.CatalogLookup, logger *slog.Logger) *EntityExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityExtractor{
		llm:     svc,
		catalog: catalog,
		cache:   cache.New[string, Entities](256, entityCacheTTL),
		logger:  logger,
	}
}

// WithMetrics attaches a cache-outcome recorder and returns the extractor.
func (e *EntityExtractor) WithMetrics(m CacheMetrics) *EntityExtractor {
	e.metrics = m
	return e
}

// Extract returns the entities for the session's recent messages. On cache
// miss it calls the completion service in JSON mode; any failure returns the
// all-empty default rather than an error.
func (e *EntityExtractor) Extract(ctx gocontext.Context, sessionID string, messages []ai.Message) Entities {
	key := sessionID + ":" + contentHash(messages)
	if cached, ok := e.cache.Get(key); ok {
		if e.metrics != nil {
			e.metrics.RecordCacheHit("entities")
		}
		return cached
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss("entities")
	}

	entities, err := e.extract(ctx, messages)
	if err != nil {
		e.logger.WarnContext(ctx, "entity extraction failed, using empty entities", "error", err)
		return Entities{}
	}
	e.enrich(ctx, &entities)
	e.cache.Set(key, entities, 0)
	return entities
}

// InvalidateSession drops cached entities for a session.
func (e *EntityExtractor) InvalidateSession(sessionID string, messages []ai.Message) {
	e.cache.Remove(sessionID + ":" + contentHash(messages))
}

func (e *EntityExtractor) extract(ctx gocontext.Context, messages []ai.Message) (Entities, error) {
	window := messages
	if len(window) > extractionWindow {
		window = window[len(window)-extractionWindow:]
	}

	prompt := []llm.Message{llm.SystemPrompt(entityExtractionPrompt)}
	for _, m := range window {
		switch m.Role {
		case "assistant":
			prompt = append(prompt, llm.AssistantMessage(m.Content))
		default:
			prompt = append(prompt, llm.UserMessage(m.Content))
		}
	}

	var entities Entities
	opts := &llm.Options{Temperature: 0.1, JSONMode: true}
	if err := e.llm.CompleteJSON(ctx, prompt, opts, &entities); err != nil {
		return Entities{}, err
	}
	return entities, nil
}

// enrich resolves product names against the catalog. Lookup misses and
// errors leave the entity unresolved.
func (e *EntityExtractor) enrich(ctx gocontext.Context, entities *Entities) {
	if e.catalog == nil {
		return
	}
	resolve := func(ent *ProductEntity) {
		if ent == nil || ent.Name == "" {
			return
		}
		p, err := e.catalog.FindProductByName(ctx, ent.Name)
		if err != nil {
			e.logger.WarnContext(ctx, "catalog lookup failed", "name", ent.Name, "error", err)
			return
		}
		if p != nil {
			ent.ID = p.ID
			ent.Name = p.Name
		}
	}
	resolve(entities.CurrentProduct)
	for i := range entities.AllProducts {
		resolve(&entities.AllProducts[i])
	}
}

// contentHash fingerprints the trailing messages with FNV-64a so the cache
// key changes whenever the recent conversation does.
func contentHash(messages []ai.Message) string {
	window := messages
	if len(window) > cacheKeyWindow {
		window = window[len(window)-cacheKeyWindow:]
	}
	h := fnv.New64a()
	for _, m := range window {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
