package retrieval

import (
	"sort"

	"github.com/hrygo/shopsense/ai"
)

// Source records which search path produced a merged result.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
	SourceBoth    Source = "both"
)

// MergedResult is one fused result. VectorScore and KeywordScore keep the
// per-path scores (zero when the path did not return the id) so downstream
// metrics can attribute the final score.
type MergedResult struct {
	ID           string
	VectorScore  float64
	KeywordScore float64
	HybridScore  float64
	Source       Source
	Meta         ai.ResultMeta
}

// MergeResults fuses the two result lists over the union of ids:
//
//	hybrid = vectorScore*w.Vector + keywordScore*w.Keyword
//
// An id absent from one path contributes 0 from that path. Results sort by
// hybrid score descending; the sort is stable over vector-list order, with
// keyword-only entries appended after vector entries before sorting.
func MergeResults(vector, keyword []ai.SearchResult, w WeightProfile) []*MergedResult {
	byID := make(map[string]*MergedResult, len(vector)+len(keyword))
	merged := make([]*MergedResult, 0, len(vector)+len(keyword))

	for _, r := range vector {
		m := &MergedResult{
			ID:          r.ID,
			VectorScore: r.Score,
			Source:      SourceVector,
			Meta:        r.Meta,
		}
		byID[r.ID] = m
		merged = append(merged, m)
	}
	for _, r := range keyword {
		if m, ok := byID[r.ID]; ok {
			m.KeywordScore = r.Score
			m.Source = SourceBoth
			mergeMeta(&m.Meta, r.Meta)
			continue
		}
		m := &MergedResult{
			ID:           r.ID,
			KeywordScore: r.Score,
			Source:       SourceKeyword,
			Meta:         r.Meta,
		}
		byID[r.ID] = m
		merged = append(merged, m)
	}

	for _, m := range merged {
		m.HybridScore = m.VectorScore*w.Vector + m.KeywordScore*w.Keyword
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].HybridScore > merged[j].HybridScore
	})
	return merged
}

// mergeMeta fills gaps in the vector-path meta from the keyword path. The
// keyword path knows which fields matched; the vector path usually carries
// the richer product meta.
func mergeMeta(dst *ai.ResultMeta, src ai.ResultMeta) {
	if dst.ProductName == "" {
		dst.ProductName = src.ProductName
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if len(dst.Tags) == 0 {
		dst.Tags = src.Tags
	}
	if dst.Proposition == "" {
		dst.Proposition = src.Proposition
	}
	if len(src.MatchedFields) > 0 {
		dst.MatchedFields = append(dst.MatchedFields, src.MatchedFields...)
	}
}
