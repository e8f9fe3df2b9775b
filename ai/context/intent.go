// Package context maintains per-session conversational state: quick intent
// detection, topic-change detection, and LLM-backed entity extraction.
package context

import "strings"

// IntentCategory is the coarse intent of one user message.
type IntentCategory string

const (
	IntentSize     IntentCategory = "size"
	IntentOrders   IntentCategory = "orders"
	IntentSupport  IntentCategory = "support"
	IntentCheckout IntentCategory = "checkout"
	IntentStyling  IntentCategory = "styling"
	IntentGift     IntentCategory = "gift"
	IntentProduct  IntentCategory = "product"
	IntentUnknown  IntentCategory = "unknown"
)

// Ordered so specific intents win over the broad product bucket.
var intentKeywords = []struct {
	category IntentCategory
	keywords []string
}{
	{IntentSize, []string{"size", "cỡ", "kích cỡ", "vừa không", "chật", "rộng", "form"}},
	{IntentOrders, []string{"đơn hàng", "order", "giao hàng", "vận chuyển", "ship", "theo dõi đơn"}},
	{IntentSupport, []string{"đổi trả", "bảo hành", "hoàn tiền", "khiếu nại", "liên hệ", "hotline"}},
	{IntentCheckout, []string{"thanh toán", "đặt hàng", "mua ngay", "checkout", "giỏ hàng"}},
	{IntentStyling, []string{"phối đồ", "phối với", "mix", "outfit", "mặc với", "kết hợp"}},
	{IntentGift, []string{"quà", "tặng", "gift", "sinh nhật"}},
	{IntentProduct, []string{"áo", "quần", "giày", "dép", "túi", "sản phẩm", "mẫu", "hàng mới"}},
}

// QuickIntent keyword-classifies a message without an LLM call. First
// matching category wins; no match is IntentUnknown.
func QuickIntent(message string) IntentCategory {
	lower := strings.ToLower(message)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return IntentUnknown
}
