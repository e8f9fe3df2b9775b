// Package transform rewrites, expands, and decomposes user queries before
// retrieval.
package transform

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hrygo/shopsense/ai/context"
)

// FollowupAction is a detected follow-up intent on the product in context.
type FollowupAction struct {
	Type      string // add_to_cart, show_similar, compare
	ProductID string
}

// RewriteResult is the outcome of a context-aware rewrite.
type RewriteResult struct {
	Original        string
	Rewritten       string
	HasContext      bool
	Action          *FollowupAction
	ImplicitFilters map[string]string
}

var pronouns = []string{
	"sản phẩm này", "sản phẩm đó", "mẫu này", "mẫu đó",
	"cái này", "cái đó", "nó", "this one", "that one", "it",
}

var partialPatterns = []struct {
	re       *regexp.Regexp
	template string // {product} is replaced with the product name
}{
	{regexp.MustCompile(`(?i)^\s*(màu|color)\s*(gì|nào|sắc nào|available|có gì)`), "{product} có màu gì"},
	{regexp.MustCompile(`(?i)^\s*(size|cỡ)\s*(gì|nào|bao nhiêu)`), "{product} có size nào"},
	{regexp.MustCompile(`(?i)^\s*(giá|bao nhiêu tiền|price)`), "{product} giá bao nhiêu"},
	{regexp.MustCompile(`(?i)^\s*(còn hàng|hết hàng)`), "{product} còn hàng không"},
}

var followupPatterns = []struct {
	re     *regexp.Regexp
	action string
}{
	{regexp.MustCompile(`(?i)(thêm vào giỏ|cho vào giỏ|mua luôn|add to cart)`), "add_to_cart"},
	{regexp.MustCompile(`(?i)(tương tự|giống vậy|giống như vậy|similar)`), "show_similar"},
	{regexp.MustCompile(`(?i)(so sánh|compare)`), "compare"},
}

// Rewriter resolves contextual references in follow-up queries against the
// session's current product.
type Rewriter struct{}

func NewRewriter() *Rewriter {
	return &Rewriter{}
}

// Rewrite resolves pronouns and partial templates using the current product
// from the session entities, and tags follow-up actions. Without a product
// in context the query passes through unchanged with HasContext false.
func (r *Rewriter) Rewrite(query string, entities context.Entities) RewriteResult {
	result := RewriteResult{Original: query, Rewritten: query}
	result.ImplicitFilters = ExtractImplicitFilters(query)
	product := entities.CurrentProduct
	if product == nil || product.Name == "" {
		return result
	}
	result.HasContext = true

	for _, p := range partialPatterns {
		if p.re.MatchString(query) {
			result.Rewritten = strings.ReplaceAll(p.template, "{product}", product.Name)
			break
		}
	}
	if result.Rewritten == query {
		result.Rewritten = replacePronouns(query, product.Name)
	}

	for _, f := range followupPatterns {
		if f.re.MatchString(query) {
			result.Action = &FollowupAction{Type: f.action, ProductID: product.ID}
			break
		}
	}
	return result
}

var implicitColorVocab = map[string]bool{
	"đen": true, "trắng": true, "xanh": true, "đỏ": true, "vàng": true,
	"xám": true, "nâu": true, "be": true, "hồng": true, "tím": true,
}

var implicitSizeRe = regexp.MustCompile(`(?i)(?:size|cỡ)\s*(xs|s|m|l|xl|xxl|\d{2})\b`)

// ExtractImplicitFilters pulls color and size preferences mentioned in a
// user message. The result narrows retrieval when the decomposer produced
// no explicit filters; nil when the message carries neither.
func ExtractImplicitFilters(message string) map[string]string {
	var filters map[string]string
	lower := strings.ToLower(message)
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if implicitColorVocab[token] {
			filters = map[string]string{"color": token}
			break
		}
	}
	if m := implicitSizeRe.FindStringSubmatch(lower); m != nil {
		if filters == nil {
			filters = map[string]string{}
		}
		filters["size"] = strings.ToLower(m[1])
	}
	return filters
}

func replacePronouns(query, productName string) string {
	lower := strings.ToLower(query)
	for _, pronoun := range pronouns {
		idx := findWholePhrase(lower, pronoun)
		if idx < 0 {
			continue
		}
		return query[:idx] + productName + query[idx+len(pronoun):]
	}
	return query
}

// findWholePhrase locates needle on token boundaries, so "nó" does not match
// inside "nóng" and "it" not inside "with". Both strings must share casing.
func findWholePhrase(haystack, needle string) int {
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return -1
		}
		idx += from
		if tokenBoundary(haystack, idx, true) && tokenBoundary(haystack, idx+len(needle), false) {
			return idx
		}
		from = idx + len(needle)
	}
}

func tokenBoundary(s string, pos int, before bool) bool {
	if pos == 0 || pos >= len(s) {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(s[:pos])
	} else {
		r, _ = utf8.DecodeRuneInString(s[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
