package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/shopsense/ai/context"
)

func bomberEntities() context.Entities {
	return context.Entities{
		CurrentProduct: &context.ProductEntity{ID: "p1", Name: "Áo Khoác Bomber"},
	}
}

func TestRewrite_PartialColorTemplate(t *testing.T) {
	r := NewRewriter()
	res := r.Rewrite("màu gì", bomberEntities())
	assert.True(t, res.HasContext)
	assert.Equal(t, "màu gì", res.Original)
	assert.Equal(t, "Áo Khoác Bomber có màu gì", res.Rewritten)
}

func TestRewrite_PartialTemplates(t *testing.T) {
	r := NewRewriter()
	tests := []struct {
		query string
		want  string
	}{
		{"size nào vừa", "Áo Khoác Bomber có size nào"},
		{"giá bao nhiêu vậy", "Áo Khoác Bomber giá bao nhiêu"},
		{"còn hàng không shop", "Áo Khoác Bomber còn hàng không"},
	}
	for _, tt := range tests {
		res := r.Rewrite(tt.query, bomberEntities())
		assert.Equal(t, tt.want, res.Rewritten, "query %q", tt.query)
	}
}

func TestRewrite_PronounResolution(t *testing.T) {
	r := NewRewriter()
	res := r.Rewrite("cái này có chống nước không", bomberEntities())
	assert.Equal(t, "Áo Khoác Bomber có chống nước không", res.Rewritten)
}

func TestRewrite_FollowupActions(t *testing.T) {
	r := NewRewriter()
	tests := []struct {
		query  string
		action string
	}{
		{"thêm vào giỏ giúp mình", "add_to_cart"},
		{"có mẫu nào tương tự không", "show_similar"},
		{"so sánh với mẫu khác", "compare"},
	}
	for _, tt := range tests {
		res := r.Rewrite(tt.query, bomberEntities())
		require.NotNil(t, res.Action, "query %q", tt.query)
		assert.Equal(t, tt.action, res.Action.Type)
		assert.Equal(t, "p1", res.Action.ProductID)
	}
}

func TestRewrite_NoContextPassesThrough(t *testing.T) {
	r := NewRewriter()
	res := r.Rewrite("màu gì", context.Entities{})
	assert.False(t, res.HasContext)
	assert.Equal(t, "màu gì", res.Rewritten)
	assert.Nil(t, res.Action)
}

func TestRewrite_UnrelatedQueryUnchanged(t *testing.T) {
	r := NewRewriter()
	res := r.Rewrite("quần jean nam ống rộng", bomberEntities())
	assert.True(t, res.HasContext)
	assert.Equal(t, "quần jean nam ống rộng", res.Rewritten)
}

func TestExtractImplicitFilters(t *testing.T) {
	tests := []struct {
		message string
		want    map[string]string
	}{
		{"mình thích màu đen hơn", map[string]string{"color": "đen"}},
		{"cho mình size M nhé", map[string]string{"size": "m"}},
		{"áo trắng cỡ XL còn không", map[string]string{"color": "trắng", "size": "xl"}},
		{"giao hàng bao lâu", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractImplicitFilters(tt.message), "message %q", tt.message)
	}
}

func TestRewrite_CarriesImplicitFilters(t *testing.T) {
	r := NewRewriter()
	res := r.Rewrite("cái này có màu đỏ không", bomberEntities())
	assert.Equal(t, map[string]string{"color": "đỏ"}, res.ImplicitFilters)
}

func TestRewrite_PronounNeedsTokenBoundary(t *testing.T) {
	r := NewRewriter()

	res := r.Rewrite("trời nóng quá nên cần đồ thoáng", bomberEntities())
	assert.Equal(t, "trời nóng quá nên cần đồ thoáng", res.Rewritten, "nóng must not trigger nó")

	res = r.Rewrite("nó còn hàng không", bomberEntities())
	assert.Equal(t, "Áo Khoác Bomber còn hàng không", res.Rewritten)

	res = r.Rewrite("ship with care nhé", bomberEntities())
	assert.Equal(t, "ship with care nhé", res.Rewritten, "with must not trigger it")
}
