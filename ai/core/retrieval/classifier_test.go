package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantType   QueryType
		confidence float64
	}{
		{"brand name", "sản phẩm devenir mới nhất", BrandSearch, 0.9},
		{"brand beats semantic", "áo nike thể thao", BrandSearch, 0.9},
		{"semantic occasion", "áo mặc đi làm công sở", SemanticSearch, 0.85},
		{"semantic english", "casual outfit for weekend trip", SemanticSearch, 0.85},
		{"attribute with category", "áo màu đen", AttributeSearch, 0.8},
		{"multiword attribute", "quần jean chất liệu cotton", AttributeSearch, 0.8},
		{"short category browse", "áo khoác", CategoryBrowse, 0.75},
		{"category at three tokens", "quần jean nam", CategoryBrowse, 0.75},
		{"long specific query", "polo premium cotton trắng trơn", SpecificProduct, 0.7},
		{"default fallback", "hàng mới về", CategoryBrowse, 0.5},
		{"empty query", "", CategoryBrowse, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyQuery(tt.query)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.NotEmpty(t, got.Indicators)
		})
	}
}

func TestClassifyQuery_CategoryNeedsWholeToken(t *testing.T) {
	// "túi" must match as a token, not as a substring of another word.
	got := ClassifyQuery("tủi thân quá")
	assert.Equal(t, CategoryBrowse, got.Type)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestWeightsFor_SumToOne(t *testing.T) {
	types := []QueryType{SpecificProduct, CategoryBrowse, AttributeSearch, SemanticSearch, BrandSearch, QueryType(99)}
	for _, qt := range types {
		w := WeightsFor(qt)
		assert.InDelta(t, 1.0, w.Vector+w.Keyword, 1e-9, "weights for %s", qt)
	}
}

func TestWeightsFor_SemanticFavorsVector(t *testing.T) {
	w := WeightsFor(SemanticSearch)
	assert.Equal(t, 0.8, w.Vector)
	assert.Equal(t, 0.2, w.Keyword)
	assert.Greater(t, w.Vector, WeightsFor(BrandSearch).Vector)
}
