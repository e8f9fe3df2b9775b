package retrieval

// WeightProfile holds the fusion weights for one query type.
// Vector and Keyword always sum to 1.0.
type WeightProfile struct {
	Vector  float64
	Keyword float64
	Reason  string
}

var weightProfiles = map[QueryType]WeightProfile{
	SpecificProduct: {Vector: 0.3, Keyword: 0.7, Reason: "exact terms matter more than meaning"},
	CategoryBrowse:  {Vector: 0.4, Keyword: 0.6, Reason: "category terms are literal"},
	AttributeSearch: {Vector: 0.35, Keyword: 0.65, Reason: "attribute values are exact tokens"},
	SemanticSearch:  {Vector: 0.8, Keyword: 0.2, Reason: "intent lives in the embedding space"},
	BrandSearch:     {Vector: 0.3, Keyword: 0.7, Reason: "brand names are exact tokens"},
}

var defaultWeights = WeightProfile{Vector: 0.6, Keyword: 0.4, Reason: "balanced default"}

// WeightsFor returns the fusion weights for a query type. Unknown types get
// the balanced default.
func WeightsFor(t QueryType) WeightProfile {
	if w, ok := weightProfiles[t]; ok {
		return w
	}
	return defaultWeights
}
