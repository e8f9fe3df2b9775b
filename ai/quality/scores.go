package quality

import (
	"strings"
	"unicode/utf8"

	"github.com/hrygo/shopsense/ai"
)

// Score weights for the overall answer quality figure.
const (
	faithfulnessWeight     = 0.3
	relevanceWeight        = 0.3
	contextPrecisionWeight = 0.2
	completenessWeight     = 0.2
)

// AnswerScores holds the heuristic quality scores for one answer, each in
// [0,1]. Overall is the weighted average.
type AnswerScores struct {
	Faithfulness     float64
	Relevance        float64
	ContextPrecision float64
	Completeness     float64
	Overall          float64
}

// ScoreAnswer computes heuristic quality scores without an LLM judge:
//
//	faithfulness:     share of citation markers resolving to real sources
//	relevance:        share of significant query tokens present in the answer
//	contextPrecision: share of sources the answer actually mentions
//	completeness:     answer length adequacy blended with query coverage
func ScoreAnswer(query, answer string, sources []Source) AnswerScores {
	s := AnswerScores{
		Faithfulness:     faithfulnessScore(answer, sources),
		Relevance:        relevanceScore(query, answer),
		ContextPrecision: contextPrecisionScore(answer, sources),
		Completeness:     completenessScore(query, answer),
	}
	s.Overall = s.Faithfulness*faithfulnessWeight +
		s.Relevance*relevanceWeight +
		s.ContextPrecision*contextPrecisionWeight +
		s.Completeness*completenessWeight
	return s
}

func faithfulnessScore(answer string, sources []Source) float64 {
	matches := citationMarkerRe.FindAllString(answer, -1)
	if len(matches) == 0 {
		// Uncited answers are neither grounded nor contradicted.
		return 0.5
	}
	v := ValidateCitations(answer, sources)
	total := len(v.Valid) + len(v.Invalid)
	if total == 0 {
		return 0.5
	}
	return float64(len(v.Valid)) / float64(total)
}

func relevanceScore(query, answer string) float64 {
	tokens := significantTokens(query)
	if len(tokens) == 0 {
		return 1
	}
	lowerAnswer := strings.ToLower(answer)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(lowerAnswer, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func contextPrecisionScore(answer string, sources []Source) float64 {
	if len(sources) == 0 {
		return 1
	}
	lowerAnswer := strings.ToLower(answer)
	mentioned := 0
	for _, src := range sources {
		tokens := significantTokens(src.ProductName)
		if len(tokens) == 0 {
			continue
		}
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(lowerAnswer, tok) {
				hits++
			}
		}
		if float64(hits) >= float64(len(tokens))*0.5 {
			mentioned++
		}
	}
	return float64(mentioned) / float64(len(sources))
}

const adequateAnswerRunes = 200

func completenessScore(query, answer string) float64 {
	length := float64(utf8.RuneCountInString(answer)) / adequateAnswerRunes
	if length > 1 {
		length = 1
	}
	return length*0.5 + relevanceScore(query, answer)*0.5
}

// RetrievalMetrics describes one retrieval pass for observability.
type RetrievalMetrics struct {
	ResultCount        int
	CategoryDiversity  float64
	MinPrice           int64
	MaxPrice           int64
	InStockRatio       float64
	RerankDisplacement float64
}

// ComputeRetrievalMetrics summarizes the retrieved products plus how far the
// reranker moved them. originalIDs and rerankedIDs are the result orderings
// before and after reranking; displacement is the mean absolute position
// shift normalized by list length.
func ComputeRetrievalMetrics(products []*ai.Product, originalIDs, rerankedIDs []string) RetrievalMetrics {
	m := RetrievalMetrics{ResultCount: len(products)}
	if len(products) > 0 {
		categories := make(map[string]bool)
		inStock := 0
		for _, p := range products {
			categories[strings.ToLower(p.Category)] = true
			if p.InStock() {
				inStock++
			}
			lo, hi := p.PriceRange()
			if m.MinPrice == 0 || (lo > 0 && lo < m.MinPrice) {
				m.MinPrice = lo
			}
			if hi > m.MaxPrice {
				m.MaxPrice = hi
			}
		}
		m.CategoryDiversity = float64(len(categories)) / float64(len(products))
		m.InStockRatio = float64(inStock) / float64(len(products))
	}
	m.RerankDisplacement = displacement(originalIDs, rerankedIDs)
	return m
}

func displacement(original, reranked []string) float64 {
	if len(original) == 0 || len(reranked) == 0 {
		return 0
	}
	pos := make(map[string]int, len(original))
	for i, id := range original {
		pos[id] = i
	}
	total, counted := 0, 0
	for i, id := range reranked {
		orig, ok := pos[id]
		if !ok {
			continue
		}
		d := i - orig
		if d < 0 {
			d = -d
		}
		total += d
		counted++
	}
	if counted == 0 {
		return 0
	}
	return float64(total) / float64(counted) / float64(len(original))
}
