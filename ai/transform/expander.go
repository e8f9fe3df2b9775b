package transform

import (
	"sort"
	"strings"
)

// maxAppendedSynonyms caps expansion so the enhanced query does not drown
// the original terms.
const maxAppendedSynonyms = 5

// ExpandResult is the outcome of synonym expansion.
type ExpandResult struct {
	Original   string
	Enhanced   string
	Synonyms   []string
	Dimensions []string // which tables contributed: product, color, style, material
}

var fashionSynonyms = map[string][]string{
	"áo khoác": {"jacket", "áo jacket", "khoác ngoài"},
	"áo thun":  {"t-shirt", "tshirt", "áo phông"},
	"áo sơ mi": {"shirt", "sơ mi"},
	"quần jean": {"jeans", "quần bò", "denim"},
	"quần tây": {"trousers", "quần âu"},
	"giày":     {"shoes", "sneaker", "footwear"},
	"túi":      {"bag", "túi xách"},
	"váy":      {"dress", "đầm"},
}

var colorSynonyms = map[string][]string{
	"đen":   {"black"},
	"trắng": {"white"},
	"xanh":  {"blue", "green"},
	"đỏ":    {"red"},
	"vàng":  {"yellow"},
	"xám":   {"gray", "grey"},
	"nâu":   {"brown"},
	"be":    {"beige", "kem"},
}

var styleSynonyms = map[string][]string{
	"công sở": {"formal", "văn phòng", "office"},
	"thể thao": {"sport", "sporty", "active"},
	"dạo phố": {"casual", "streetwear"},
	"thanh lịch": {"elegant", "sang trọng"},
	"basic":    {"trơn", "đơn giản"},
}

var materialSynonyms = map[string][]string{
	"cotton": {"thun cotton", "vải cotton"},
	"len":    {"wool", "dệt kim"},
	"kaki":   {"khaki"},
	"jean":   {"denim"},
	"lụa":    {"silk"},
	"da":     {"leather"},
}

var synonymTables = []struct {
	dimension string
	table     map[string][]string
}{
	{"product", fashionSynonyms},
	{"color", colorSynonyms},
	{"style", styleSynonyms},
	{"material", materialSynonyms},
}

// Expander grows queries with fixed fashion-domain synonym tables.
type Expander struct{}

func NewExpander() *Expander {
	return &Expander{}
}

// Expand appends up to maxAppendedSynonyms synonyms for every table term
// found in the query. Terms the query already contains are not re-appended.
func (e *Expander) Expand(query string) ExpandResult {
	result := ExpandResult{Original: query, Enhanced: query}
	lower := strings.ToLower(query)

	seen := make(map[string]bool)
	for _, t := range synonymTables {
		contributed := false
		terms := make([]string, 0, len(t.table))
		for term := range t.table {
			terms = append(terms, term)
		}
		// Map order is random; a fixed order keeps Enhanced stable for
		// identical queries.
		sort.Strings(terms)
		for _, term := range terms {
			if !strings.Contains(lower, term) {
				continue
			}
			for _, syn := range t.table[term] {
				if len(result.Synonyms) >= maxAppendedSynonyms {
					break
				}
				if seen[syn] || strings.Contains(lower, syn) {
					continue
				}
				seen[syn] = true
				result.Synonyms = append(result.Synonyms, syn)
				contributed = true
			}
		}
		if contributed {
			result.Dimensions = append(result.Dimensions, t.dimension)
		}
	}

	if len(result.Synonyms) > 0 {
		result.Enhanced = query + " " + strings.Join(result.Synonyms, " ")
	}
	return result
}
