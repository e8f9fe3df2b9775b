// Package retrieval implements the hybrid retrieval pipeline: query
// classification, adaptive weight selection, weighted fusion of the vector
// and keyword search paths, and score boosting from auxiliary signals.
package retrieval

import (
	"strings"
)

// QueryType labels a query for adaptive weighting.
type QueryType int

const (
	// CategoryBrowse is short category browsing ("áo khoác", "quần jean").
	// It is also the classifier default.
	CategoryBrowse QueryType = iota
	// SpecificProduct is a long, precise product query ("Áo Polo Devenir Classic").
	SpecificProduct
	// AttributeSearch mixes a category with attributes ("áo màu đen size M").
	AttributeSearch
	// SemanticSearch expresses intent or occasion ("áo mặc đi làm").
	SemanticSearch
	// BrandSearch names a brand ("sản phẩm Devenir").
	BrandSearch
)

// String returns the wire label for the query type.
func (t QueryType) String() string {
	switch t {
	case SpecificProduct:
		return "specific_product"
	case CategoryBrowse:
		return "category_browse"
	case AttributeSearch:
		return "attribute_search"
	case SemanticSearch:
		return "semantic_search"
	case BrandSearch:
		return "brand_search"
	default:
		return "unknown"
	}
}

// Classification is the classifier output.
type Classification struct {
	Type       QueryType
	Confidence float64
	Indicators []string
}

var brandKeywords = []string{
	"devenir", "nike", "adidas", "gucci", "zara", "h&m",
}

// Single-token category words are matched against the token list;
// multi-word entries against the whole query.
var categoryKeywords = []string{
	"áo", "quần", "giày", "dép", "nón", "túi", "thắt lưng",
	"jacket", "shirt", "pants", "shoes", "hat", "bag", "belt",
}

var attributeKeywords = []string{
	"màu", "color", "size", "cỡ", "kích cỡ", "giá", "price",
	"chất liệu", "material", "fabric",
}

var semanticKeywords = []string{
	"đi làm", "công sở", "dạo phố", "đi chơi", "thể thao",
	"mùa đông", "mùa hè", "outfit", "phối đồ", "style",
	"casual", "formal", "elegant", "sport",
}

// ClassifyQuery heuristically labels a query. Pure function, first matching
// rule wins:
//
//	brand keyword            -> brand_search     (0.9)
//	semantic/intent keyword  -> semantic_search  (0.85)
//	attribute AND category   -> attribute_search (0.8)
//	category, <=3 tokens     -> category_browse  (0.75)
//	>=4 tokens, no semantic  -> specific_product (0.7)
//	otherwise                -> category_browse  (0.5)
func ClassifyQuery(query string) Classification {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(lower)

	hasBrand := containsAny(lower, brandKeywords)
	hasCategory := matchesCategory(lower, words)
	hasAttribute := containsAny(lower, attributeKeywords)
	hasSemantic := containsAny(lower, semanticKeywords)

	switch {
	case hasBrand:
		return Classification{Type: BrandSearch, Confidence: 0.9, Indicators: []string{"brand_detected"}}
	case hasSemantic:
		return Classification{Type: SemanticSearch, Confidence: 0.85, Indicators: []string{"semantic_intent"}}
	case hasAttribute && hasCategory:
		return Classification{Type: AttributeSearch, Confidence: 0.8, Indicators: []string{"category", "attributes"}}
	case hasCategory && len(words) <= 3:
		return Classification{Type: CategoryBrowse, Confidence: 0.75, Indicators: []string{"category", "short_query"}}
	case len(words) >= 4:
		return Classification{Type: SpecificProduct, Confidence: 0.7, Indicators: []string{"long_query", "specific"}}
	default:
		return Classification{Type: CategoryBrowse, Confidence: 0.5, Indicators: []string{"default"}}
	}
}

func containsAny(query string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

func matchesCategory(query string, words []string) bool {
	for _, kw := range categoryKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(query, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == kw {
				return true
			}
		}
	}
	return false
}
