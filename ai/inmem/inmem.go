// Package inmem provides in-memory implementations of the engine's external
// collaborators: catalog lookup, both search paths, the conversation store,
// and the popularity source. They back the demo server and integration
// tests; production deployments plug in real backends instead.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hrygo/shopsense/ai"
)

// Catalog is an in-memory product catalog serving lookups, both search
// paths, and order-count queries.
type Catalog struct {
	mu       sync.RWMutex
	products []*ai.Product
	orders   map[string]int
}

func NewCatalog(products []*ai.Product) *Catalog {
	return &Catalog{products: products, orders: make(map[string]int)}
}

// Add appends a product to the catalog.
func (c *Catalog) Add(p *ai.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = append(c.products, p)
}

// SetOrderCount sets the recent order count used by the popularity source.
func (c *Catalog) SetOrderCount(productID string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[productID] = count
}

// FindProductByName resolves a name exactly first, then by case-insensitive
// substring in either direction. Returns (nil, nil) when nothing matches.
func (c *Catalog) FindProductByName(_ context.Context, name string) (*ai.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.Name == name {
			return p, nil
		}
	}
	lower := strings.ToLower(name)
	for _, p := range c.products {
		pn := strings.ToLower(p.Name)
		if strings.Contains(pn, lower) || strings.Contains(lower, pn) {
			return p, nil
		}
	}
	return nil, nil
}

// GetRecentOrderCounts implements ai.PopularitySource over the seeded counts.
func (c *Catalog) GetRecentOrderCounts(_ context.Context, productIDs []string, _ int) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		if n, ok := c.orders[id]; ok {
			counts[id] = n
		}
	}
	return counts, nil
}

// VectorSearch approximates a semantic path with token-overlap scoring over
// name, category, tags, and materials. A stand-in for a real embedding
// index, good enough to exercise the fusion pipeline.
type VectorSearch struct {
	catalog *Catalog
}

func NewVectorSearch(catalog *Catalog) *VectorSearch {
	return &VectorSearch{catalog: catalog}
}

func (v *VectorSearch) Search(_ context.Context, query string, opts ai.VectorSearchOptions) ([]ai.SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	v.catalog.mu.RLock()
	defer v.catalog.mu.RUnlock()

	var results []ai.SearchResult
	for _, p := range v.catalog.products {
		if !matchesFilters(p, opts.Filter) {
			continue
		}
		docTokens := tokenize(strings.Join(append([]string{p.Name, p.Category, strings.Join(p.Tags, " ")}, p.Materials...), " "))
		score := overlap(queryTokens, docTokens)
		if score == 0 {
			continue
		}
		results = append(results, ai.SearchResult{
			ID:    p.ID,
			Score: score,
			Meta: ai.ResultMeta{
				ProductName: p.Name,
				Category:    p.Category,
				Tags:        p.Tags,
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// KeywordSearch is the literal path: exact token hits against name, brand,
// category, and variant attributes, reporting which fields matched.
type KeywordSearch struct {
	catalog *Catalog
}

func NewKeywordSearch(catalog *Catalog) *KeywordSearch {
	return &KeywordSearch{catalog: catalog}
}

func (k *KeywordSearch) Search(_ context.Context, query string, opts ai.KeywordSearchOptions) ([]ai.SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	k.catalog.mu.RLock()
	defer k.catalog.mu.RUnlock()

	var results []ai.SearchResult
	for _, p := range k.catalog.products {
		if !matchesFilters(p, opts.Filters) {
			continue
		}
		fields := map[string]string{
			"name":     p.Name,
			"brand":    p.Brand,
			"category": p.Category,
		}
		for _, v := range p.Variants {
			fields["color"] += " " + v.Color
			fields["size"] += " " + v.Size
		}

		var matched []string
		hits := 0
		for field, text := range fields {
			fieldTokens := tokenize(text)
			fieldHits := 0
			for _, qt := range queryTokens {
				for _, ft := range fieldTokens {
					if qt == ft {
						fieldHits++
						break
					}
				}
			}
			if fieldHits > 0 {
				matched = append(matched, field)
				hits += fieldHits
			}
		}
		if hits == 0 {
			continue
		}
		sort.Strings(matched)
		results = append(results, ai.SearchResult{
			ID:    p.ID,
			Score: float64(hits) / float64(len(queryTokens)),
			Meta: ai.ResultMeta{
				ProductName:   p.Name,
				Category:      p.Category,
				Tags:          p.Tags,
				MatchedFields: matched,
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// ConversationStore keeps session history in memory.
type ConversationStore struct {
	mu       sync.Mutex
	sessions map[string][]ai.Message
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{sessions: make(map[string][]ai.Message)}
}

func (s *ConversationStore) GetLatestSession(_ context.Context, sessionKey string) ([]ai.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Message(nil), s.sessions[sessionKey]...), nil
}

func (s *ConversationStore) AppendMessage(_ context.Context, sessionKey string, msg ai.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.sessions[sessionKey] = append(s.sessions[sessionKey], msg)
	return nil
}

func (s *ConversationStore) DeleteSessions(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey)
	return nil
}

// matchesFilters checks the product against attribute filters. color and
// size match any variant; brand matches the product. Unknown filter keys
// never match.
func matchesFilters(p *ai.Product, filters map[string]string) bool {
	for key, want := range filters {
		want = strings.ToLower(want)
		switch key {
		case "brand":
			if strings.ToLower(p.Brand) != want {
				return false
			}
		case "color":
			if !anyVariant(p, func(v ai.Variant) bool { return strings.ToLower(v.Color) == want }) {
				return false
			}
		case "size":
			if !anyVariant(p, func(v ai.Variant) bool { return strings.EqualFold(v.Size, want) }) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func anyVariant(p *ai.Product, match func(ai.Variant) bool) bool {
	for _, v := range p.Variants {
		if match(v) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// overlap scores how much of the query appears in the document, in [0,1].
func overlap(query, doc []string) float64 {
	if len(query) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(doc))
	for _, t := range doc {
		docSet[t] = true
	}
	hits := 0
	for _, t := range query {
		if docSet[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
