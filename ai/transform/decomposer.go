package transform

import (
	gocontext "context"
	"log/slog"

	"github.com/hrygo/shopsense/ai/core/llm"
)

// SubQuery is one typed component of a decomposed query.
type SubQuery struct {
	Type     string `json:"type"` // product, filter_color, filter_size, filter_price, filter_brand, text
	Value    string `json:"value"`
	Min      int64  `json:"min,omitempty"`
	Max      int64  `json:"max,omitempty"`
	Operator string `json:"operator,omitempty"` // lt, lte, gt, gte, between
}

// Decomposition is an ordered sub-query plan.
type Decomposition struct {
	SubQueries        []SubQuery `json:"subQueries"`
	ExecutionStrategy string     `json:"executionStrategy"` // simple | parallel_filter
}

// ProductQuery returns the first product or text sub-query value, which is
// the retrieval-worthy part of the plan. Empty when the plan is filter-only.
func (d Decomposition) ProductQuery() string {
	for _, sq := range d.SubQueries {
		if sq.Type == "product" || sq.Type == "text" {
			return sq.Value
		}
	}
	return ""
}

// Filters collapses the plan's filter sub-queries into a field→value map
// usable as search filters. Price filters are keyed "price" with the
// operator folded into the value.
func (d Decomposition) Filters() map[string]string {
	filters := make(map[string]string)
	for _, sq := range d.SubQueries {
		switch sq.Type {
		case "filter_color":
			filters["color"] = sq.Value
		case "filter_size":
			filters["size"] = sq.Value
		case "filter_brand":
			filters["brand"] = sq.Value
		}
	}
	return filters
}

const decompositionPrompt = `Bạn là bộ phân rã truy vấn cho trợ lý mua sắm thời trang.
Tách truy vấn thành các thành phần có kiểu, trả về JSON đúng khung sau:
{"subQueries": [{"type": "product|filter_color|filter_size|filter_price|filter_brand|text", "value": "...", "min": 0, "max": 0, "operator": "lt|lte|gt|gte|between"}], "executionStrategy": "simple|parallel_filter"}
Dùng "parallel_filter" khi có từ hai bộ lọc trở lên, ngược lại dùng "simple".
Giá ghi bằng đồng Việt Nam, điền min/max/operator cho filter_price.`

// Decomposer splits multi-intent queries into typed sub-queries through the
// completion service.
type Decomposer struct {
	llm     llm.Service
	enabled bool
	logger  *slog.Logger
}

func NewDecomposer(svc llm.Service, enabled bool, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{llm: svc, enabled: enabled, logger: logger}
}

// Decompose produces the sub-query plan for a query. When disabled, or when
// the completion call fails or returns an unusable shape, it falls back to a
// single text sub-query with the simple strategy.
func (d *Decomposer) Decompose(ctx gocontext.Context, query string) Decomposition {
	if !d.enabled || d.llm == nil {
		return fallbackDecomposition(query)
	}

	messages := []llm.Message{
		llm.SystemPrompt(decompositionPrompt),
		llm.UserMessage(query),
	}
	var result Decomposition
	opts := &llm.Options{Temperature: 0.1, JSONMode: true}
	if err := d.llm.CompleteJSON(ctx, messages, opts, &result); err != nil {
		d.logger.WarnContext(ctx, "query decomposition failed, using fallback", "error", err)
		return fallbackDecomposition(query)
	}
	if !validDecomposition(result) {
		d.logger.WarnContext(ctx, "query decomposition returned unusable shape, using fallback")
		return fallbackDecomposition(query)
	}
	return result
}

func fallbackDecomposition(query string) Decomposition {
	return Decomposition{
		SubQueries:        []SubQuery{{Type: "text", Value: query}},
		ExecutionStrategy: "simple",
	}
}

var subQueryTypes = map[string]bool{
	"product": true, "filter_color": true, "filter_size": true,
	"filter_price": true, "filter_brand": true, "text": true,
}

// validDecomposition treats the completion output as untrusted: every
// sub-query needs a known type, non-price sub-queries need a value, and the
// strategy must be one of the two known tags.
func validDecomposition(d Decomposition) bool {
	if len(d.SubQueries) == 0 {
		return false
	}
	if d.ExecutionStrategy != "simple" && d.ExecutionStrategy != "parallel_filter" {
		return false
	}
	for _, sq := range d.SubQueries {
		if !subQueryTypes[sq.Type] {
			return false
		}
		if sq.Type == "filter_price" {
			if sq.Min == 0 && sq.Max == 0 {
				return false
			}
			continue
		}
		if sq.Value == "" {
			return false
		}
	}
	return true
}
