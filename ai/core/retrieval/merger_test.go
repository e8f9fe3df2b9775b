package retrieval

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shopsense/ai"
)

func TestMergeResults_WeightedUnion(t *testing.T) {
	w := WeightProfile{Vector: 0.6, Keyword: 0.4}
	vector := []ai.SearchResult{
		{ID: "p1", Score: 0.9},
		{ID: "p2", Score: 0.5},
	}
	keyword := []ai.SearchResult{
		{ID: "p2", Score: 0.8},
		{ID: "p3", Score: 0.7},
	}

	merged := MergeResults(vector, keyword, w)
	require.Len(t, merged, 3)

	byID := make(map[string]*MergedResult)
	for _, m := range merged {
		byID[m.ID] = m
	}

	// In both lists: weighted sum of both scores.
	assert.InDelta(t, 0.5*0.6+0.8*0.4, byID["p2"].HybridScore, 1e-9)
	assert.Equal(t, SourceBoth, byID["p2"].Source)

	// Vector only: keyword contributes zero.
	assert.InDelta(t, 0.9*0.6, byID["p1"].HybridScore, 1e-9)
	assert.Zero(t, byID["p1"].KeywordScore)
	assert.Equal(t, SourceVector, byID["p1"].Source)

	// Keyword only: vector contributes zero.
	assert.InDelta(t, 0.7*0.4, byID["p3"].HybridScore, 1e-9)
	assert.Zero(t, byID["p3"].VectorScore)
	assert.Equal(t, SourceKeyword, byID["p3"].Source)
}

func TestMergeResults_SortedDescending(t *testing.T) {
	w := WeightProfile{Vector: 0.5, Keyword: 0.5}
	vector := []ai.SearchResult{
		{ID: "a", Score: 0.2},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.6},
	}
	merged := MergeResults(vector, nil, w)
	assert.True(t, sort.SliceIsSorted(merged, func(i, j int) bool {
		return merged[i].HybridScore > merged[j].HybridScore
	}))
	assert.Equal(t, "b", merged[0].ID)
}

func TestMergeResults_TieBreaksByVectorOrder(t *testing.T) {
	w := WeightProfile{Vector: 1.0, Keyword: 0.0}
	vector := []ai.SearchResult{
		{ID: "first", Score: 0.5},
		{ID: "second", Score: 0.5},
		{ID: "third", Score: 0.5},
	}
	merged := MergeResults(vector, nil, w)
	require.Len(t, merged, 3)
	assert.Equal(t, "first", merged[0].ID)
	assert.Equal(t, "second", merged[1].ID)
	assert.Equal(t, "third", merged[2].ID)
}

func TestMergeResults_EmptyInputs(t *testing.T) {
	w := WeightsFor(CategoryBrowse)
	assert.Empty(t, MergeResults(nil, nil, w))

	keywordOnly := MergeResults(nil, []ai.SearchResult{{ID: "k", Score: 0.4}}, w)
	require.Len(t, keywordOnly, 1)
	assert.Equal(t, SourceKeyword, keywordOnly[0].Source)
}

func TestMergeResults_MetaFilledFromKeywordPath(t *testing.T) {
	w := WeightProfile{Vector: 0.5, Keyword: 0.5}
	vector := []ai.SearchResult{{ID: "p1", Score: 0.9}}
	keyword := []ai.SearchResult{{ID: "p1", Score: 0.4, Meta: ai.ResultMeta{
		ProductName:   "Áo Polo Devenir",
		MatchedFields: []string{"name"},
	}}}
	merged := MergeResults(vector, keyword, w)
	require.Len(t, merged, 1)
	assert.Equal(t, "Áo Polo Devenir", merged[0].Meta.ProductName)
	assert.Equal(t, []string{"name"}, merged[0].Meta.MatchedFields)
}
