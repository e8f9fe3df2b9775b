package quality

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hrygo/shopsense/ai"
)

// CheckStatus is the outcome of one fact check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// CheckResult is one individual check outcome.
type CheckResult struct {
	Name   string
	Status CheckStatus
	Detail string
}

// FactCheckReport aggregates the individual checks. Passed is true when no
// check failed. Verdict is "verified" when all ran checks passed, "failed"
// when all failed, "partial" otherwise.
type FactCheckReport struct {
	Passed  bool
	Skipped bool
	Verdict string
	Checks  []CheckResult
}

// FactChecker verifies an answer's claims against the retrieved products.
type FactChecker struct {
	enabled bool
	logger  *slog.Logger
}

func NewFactChecker(enabled bool, logger *slog.Logger) *FactChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactChecker{enabled: enabled, logger: logger}
}

const priceTolerance = 0.05

var (
	// Matches "104.000đ", "104,000 VND", "104000₫".
	vndPriceRe = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d{4,9})\s*(?:₫|đ|vnd|đồng)`)

	stockVocabRe = regexp.MustCompile(`(?i)(còn hàng|hết hàng|còn \d+|in stock|out of stock|sold out|available)`)
	outOfStockRe = regexp.MustCompile(`(?i)(hết hàng|out of stock|sold out)`)
	sizeVocabRe  = regexp.MustCompile(`(?i)\bsize\s+(XS|S|M|L|XL|XXL|\d{2})\b`)

	// Word-boundary regexps are ASCII-only in RE2, so color words are
	// matched over a rune-aware token split instead.
	colorVocab = map[string]bool{
		"đen": true, "trắng": true, "xanh": true, "đỏ": true, "vàng": true,
		"hồng": true, "tím": true, "xám": true, "nâu": true, "be": true,
		"black": true, "white": true, "blue": true, "red": true, "yellow": true,
		"pink": true, "purple": true, "grey": true, "gray": true, "brown": true,
		"beige": true,
	}
)

const nameTokenMinLen = 3

// Check runs all fact checks on the answer. A disabled checker returns a
// skipped, passing report. Check never fails the caller: an internal error
// degrades to a skipped report.
func (f *FactChecker) Check(ctx context.Context, answer string, products []*ai.Product) (report FactCheckReport) {
	if !f.enabled {
		return FactCheckReport{Passed: true, Skipped: true, Verdict: "skipped"}
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.ErrorContext(ctx, "fact check panicked, treating as skipped", "panic", r)
			report = FactCheckReport{Passed: true, Skipped: true, Verdict: "skipped"}
		}
	}()

	checks := []CheckResult{
		f.checkPrices(answer, products),
		f.checkStock(answer, products),
		f.checkNames(answer, products),
		f.checkAttributes(answer, products),
	}

	ran, passed := 0, 0
	for _, c := range checks {
		if c.Status == CheckSkipped {
			continue
		}
		ran++
		if c.Status == CheckPassed {
			passed++
		}
	}

	report = FactCheckReport{Checks: checks, Passed: passed == ran}
	switch {
	case ran == 0 || passed == ran:
		report.Verdict = "verified"
		report.Passed = true
	case passed == 0:
		report.Verdict = "failed"
	default:
		report.Verdict = "partial"
	}
	return report
}

// checkPrices verifies every VND amount in the answer is within 5% of some
// variant price across the products. No prices in the answer skips the check.
func (f *FactChecker) checkPrices(answer string, products []*ai.Product) CheckResult {
	matches := vndPriceRe.FindAllStringSubmatch(strings.ToLower(answer), -1)
	if len(matches) == 0 {
		return CheckResult{Name: "price", Status: CheckSkipped, Detail: "no prices claimed"}
	}
	var actual []int64
	for _, p := range products {
		for _, v := range p.Variants {
			actual = append(actual, v.Price)
		}
	}
	for _, m := range matches {
		claimed := parseVND(m[1])
		if claimed <= 0 {
			continue
		}
		if !priceNearAny(claimed, actual) {
			return CheckResult{Name: "price", Status: CheckFailed,
				Detail: "claimed price " + strconv.FormatInt(claimed, 10) + " not within 5% of any variant price"}
		}
	}
	return CheckResult{Name: "price", Status: CheckPassed}
}

func parseVND(s string) int64 {
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func priceNearAny(claimed int64, actual []int64) bool {
	for _, a := range actual {
		if a == 0 {
			continue
		}
		diff := claimed - a
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) <= float64(a)*priceTolerance {
			return true
		}
	}
	return false
}

// checkStock compares claimed availability against the aggregate variant
// stock. Runs only when the answer uses stock vocabulary.
func (f *FactChecker) checkStock(answer string, products []*ai.Product) CheckResult {
	if !stockVocabRe.MatchString(answer) {
		return CheckResult{Name: "stock", Status: CheckSkipped, Detail: "no stock claims"}
	}
	anyInStock := false
	for _, p := range products {
		if p.InStock() {
			anyInStock = true
			break
		}
	}
	claimedOut := outOfStockRe.MatchString(answer)
	claimedIn := !claimedOut

	if claimedIn && !anyInStock {
		return CheckResult{Name: "stock", Status: CheckFailed, Detail: "claims availability but all variants are out of stock"}
	}
	if claimedOut && anyInStock {
		return CheckResult{Name: "stock", Status: CheckFailed, Detail: "claims out of stock but stock exists"}
	}
	return CheckResult{Name: "stock", Status: CheckPassed}
}

// checkNames verifies the answer actually mentions the products it was given.
// A product counts as mentioned when at least half of its name tokens longer
// than three runes appear in the answer; the check passes when at least 80%
// of products are mentioned.
func (f *FactChecker) checkNames(answer string, products []*ai.Product) CheckResult {
	if len(products) == 0 {
		return CheckResult{Name: "product_name", Status: CheckSkipped, Detail: "no products"}
	}
	lowerAnswer := strings.ToLower(answer)
	mentioned := 0
	for _, p := range products {
		tokens := significantTokens(p.Name)
		if len(tokens) == 0 {
			mentioned++
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
	if float64(mentioned) >= float64(len(products))*0.8 {
		return CheckResult{Name: "product_name", Status: CheckPassed}
	}
	return CheckResult{Name: "product_name", Status: CheckFailed,
		Detail: strconv.Itoa(mentioned) + " of " + strconv.Itoa(len(products)) + " products mentioned"}
}

func wordTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func significantTokens(name string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		if len([]rune(tok)) > nameTokenMinLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// checkAttributes verifies claimed colors and sizes exist on some variant.
// Runs only when the answer names a color or size.
func (f *FactChecker) checkAttributes(answer string, products []*ai.Product) CheckResult {
	var colors []string
	for _, tok := range wordTokens(answer) {
		if colorVocab[tok] {
			colors = append(colors, tok)
		}
	}
	sizeMatches := sizeVocabRe.FindAllStringSubmatch(answer, -1)
	if len(colors) == 0 && len(sizeMatches) == 0 {
		return CheckResult{Name: "attribute", Status: CheckSkipped, Detail: "no attribute claims"}
	}

	variantColors := make(map[string]bool)
	variantSizes := make(map[string]bool)
	for _, p := range products {
		for _, v := range p.Variants {
			variantColors[strings.ToLower(v.Color)] = true
			variantSizes[strings.ToUpper(v.Size)] = true
		}
	}
	for _, c := range colors {
		if !variantColors[strings.ToLower(c)] {
			return CheckResult{Name: "attribute", Status: CheckFailed, Detail: "color " + c + " not offered"}
		}
	}
	for _, m := range sizeMatches {
		if !variantSizes[strings.ToUpper(m[1])] {
			return CheckResult{Name: "attribute", Status: CheckFailed, Detail: "size " + m[1] + " not offered"}
		}
	}
	return CheckResult{Name: "attribute", Status: CheckPassed}
}
