// Package ai defines the configuration and the collaborator contracts the
// retrieval and conversation engine is built against. Concrete search
// indexes, catalog storage and conversation persistence live behind these
// interfaces; the engine only consumes the narrow request/response shapes
// declared here.
package ai

import (
	"context"
	"time"
)

// SearchResult is a scored candidate returned by either search path.
// ID is the canonical product identifier and the join key during fusion.
type SearchResult struct {
	ID    string
	Score float64
	Meta  ResultMeta
}

// ResultMeta carries the denormalized product fields the ranking layers need
// without a catalog round-trip.
type ResultMeta struct {
	ProductName   string
	Category      string
	Tags          []string
	Proposition   string   // short retrieval snippet describing the item
	MatchedFields []string // keyword path only: raw matched fields
}

// VectorSearchOptions configures a semantic search call.
type VectorSearchOptions struct {
	TopK   int
	Filter map[string]string
}

// KeywordSearchOptions configures a lexical search call.
type KeywordSearchOptions struct {
	Limit   int
	Filters map[string]string
}

// VectorSearchClient is the semantic retrieval collaborator.
type VectorSearchClient interface {
	Search(ctx context.Context, query string, opts VectorSearchOptions) ([]SearchResult, error)
}

// KeywordSearchClient is the lexical retrieval collaborator.
type KeywordSearchClient interface {
	Search(ctx context.Context, query string, opts KeywordSearchOptions) ([]SearchResult, error)
}

// Message is a single conversation turn.
type Message struct {
	Role              string // user, assistant
	Content           string
	Intent            string
	SuggestedProducts []ProductRef
	CreatedAt         time.Time
}

// ProductRef is a lightweight product mention attached to a message.
type ProductRef struct {
	ID   string
	Name string
}

// ConversationStore is the durable conversation history collaborator.
// History outlives the engine's caches; the engine only reads a bounded
// recent window per turn.
type ConversationStore interface {
	GetLatestSession(ctx context.Context, sessionKey string) ([]Message, error)
	AppendMessage(ctx context.Context, sessionKey string, msg Message) error
	DeleteSessions(ctx context.Context, sessionKey string) error
}

// Variant is a sellable configuration of a product.
type Variant struct {
	Color string
	Size  string
	Price int64 // VND
	Stock int
}

// Product is the catalog view the quality and context layers validate
// generated answers against.
type Product struct {
	ID        string
	Name      string
	Slug      string
	Brand     string
	Category  string
	Tags      []string
	Materials []string
	Variants  []Variant
}

// InStock reports whether any variant has stock.
func (p *Product) InStock() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

// PriceRange returns the min and max variant price, or (0, 0) when the
// product has no priced variants.
func (p *Product) PriceRange() (int64, int64) {
	var minPrice, maxPrice int64
	for _, v := range p.Variants {
		if v.Price <= 0 {
			continue
		}
		if minPrice == 0 || v.Price < minPrice {
			minPrice = v.Price
		}
		if v.Price > maxPrice {
			maxPrice = v.Price
		}
	}
	return minPrice, maxPrice
}

// CatalogLookup resolves product names to catalog records.
// Implementations try an exact match first, then a fuzzy/substring match,
// and return (nil, nil) when nothing matches.
type CatalogLookup interface {
	FindProductByName(ctx context.Context, name string) (*Product, error)
}

// PopularitySource exposes recent order counts for popularity boosting.
type PopularitySource interface {
	GetRecentOrderCounts(ctx context.Context, productIDs []string, windowDays int) (map[string]int, error)
}
