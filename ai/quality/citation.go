// Package quality covers answer verification: citation management, fact
// checking against the catalog, and heuristic quality scoring.
package quality

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hrygo/shopsense/ai"
)

// Source is one retrieved product an answer may cite.
type Source struct {
	ProductID   string
	ProductName string
	Score       float64
}

// Citation maps a marker number in the answer text to its source.
type Citation struct {
	Number      int
	ProductID   string
	ProductName string
}

// CitationValidation reports how well the answer's markers line up with the
// available sources.
type CitationValidation struct {
	Valid    []Citation
	Invalid  []int
	Coverage float64
}

// CitationMetadata is the cited/uncited source accounting kept for
// per-turn analytics.
type CitationMetadata struct {
	TotalSources   int
	CitedSources   int
	UncitedSources []string
	CitationRate   float64
}

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// BuildCitationMetadata reports which sources the answer cited and which it
// left out. Citation numbers are 1-based source positions.
func BuildCitationMetadata(citations []Citation, sources []Source) CitationMetadata {
	cited := make(map[int]bool, len(citations))
	for _, c := range citations {
		cited[c.Number] = true
	}
	meta := CitationMetadata{TotalSources: len(sources), CitedSources: len(cited)}
	for i, src := range sources {
		if !cited[i+1] {
			meta.UncitedSources = append(meta.UncitedSources, src.ProductName)
		}
	}
	if len(sources) > 0 {
		meta.CitationRate = float64(meta.CitedSources) / float64(len(sources))
	}
	return meta
}

// InjectCitations inserts a [k] marker after the first whole-word occurrence
// of each source's product name in the answer, case-insensitively. Sources
// whose names do not appear are skipped. Returns the annotated answer and
// the citations actually injected, numbered by source position (1-based).
func InjectCitations(answer string, sources []Source) (string, []Citation) {
	var cited []Citation
	for i, src := range sources {
		if src.ProductName == "" {
			continue
		}
		pos := findWholeWord(answer, src.ProductName)
		if pos < 0 {
			continue
		}
		end := pos + len(src.ProductName)
		marker := fmt.Sprintf(" [%d]", i+1)
		answer = answer[:end] + marker + answer[end:]
		cited = append(cited, Citation{Number: i + 1, ProductID: src.ProductID, ProductName: src.ProductName})
	}
	return answer, cited
}

// findWholeWord locates needle in haystack case-insensitively at word
// boundaries. Regexp \b is ASCII-only, so boundaries are checked over runes
// to handle Vietnamese letters.
func findWholeWord(haystack, needle string) int {
	lowerHay := strings.ToLower(haystack)
	lowerNeedle := strings.ToLower(needle)
	if lowerNeedle == "" {
		return -1
	}
	from := 0
	for {
		idx := strings.Index(lowerHay[from:], lowerNeedle)
		if idx < 0 {
			return -1
		}
		idx += from
		if isWordBoundary(lowerHay, idx) && isWordBoundary(lowerHay, idx+len(lowerNeedle)) {
			return idx
		}
		from = idx + len(lowerNeedle)
	}
}

// isWordBoundary reports whether byte offset pos in s sits between a letter
// or digit and a non-letter (or the string edge).
func isWordBoundary(s string, pos int) bool {
	if pos <= 0 || pos >= len(s) {
		return true
	}
	before := lastRuneBefore(s, pos)
	after := firstRuneAt(s, pos)
	return !isWordRune(before) || !isWordRune(after)
}

func lastRuneBefore(s string, pos int) rune {
	r := rune(0)
	for _, c := range s[:pos] {
		r = c
	}
	return r
}

func firstRuneAt(s string, pos int) rune {
	for _, c := range s[pos:] {
		return c
	}
	return 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ExtractCitations parses [n] markers from an answer and resolves them
// against sources by 1-based index. Out-of-range markers are dropped;
// repeated references to the same product are deduplicated.
func ExtractCitations(answer string, sources []Source) []Citation {
	matches := citationMarkerRe.FindAllStringSubmatch(answer, -1)
	seen := make(map[string]bool)
	var citations []Citation
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(sources) {
			continue
		}
		src := sources[n-1]
		if seen[src.ProductID] {
			continue
		}
		seen[src.ProductID] = true
		citations = append(citations, Citation{Number: n, ProductID: src.ProductID, ProductName: src.ProductName})
	}
	return citations
}

// ValidateCitations splits the answer's markers into valid and out-of-range
// sets. Coverage is the share of sources with at least one valid citation;
// with no sources coverage is 1.
func ValidateCitations(answer string, sources []Source) CitationValidation {
	matches := citationMarkerRe.FindAllStringSubmatch(answer, -1)
	citedSource := make(map[int]bool)
	seenMarker := make(map[int]bool)
	v := CitationValidation{}
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if seenMarker[n] {
			continue
		}
		seenMarker[n] = true
		if n < 1 || n > len(sources) {
			v.Invalid = append(v.Invalid, n)
			continue
		}
		src := sources[n-1]
		v.Valid = append(v.Valid, Citation{Number: n, ProductID: src.ProductID, ProductName: src.ProductName})
		citedSource[n] = true
	}
	if len(sources) == 0 {
		v.Coverage = 1
	} else {
		v.Coverage = float64(len(citedSource)) / float64(len(sources))
	}
	return v
}

// CitationFooter renders a "Nguồn tham khảo" block listing the cited
// products with their price range, for appending to an answer. Empty
// citations yield "". Products without a catalog record list the name only.
func CitationFooter(citations []Citation, products []*ai.Product) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n---\nNguồn tham khảo:\n")
	for _, c := range citations {
		fmt.Fprintf(&b, "[%d] %s", c.Number, c.ProductName)
		if pr := priceRangeLabel(c.ProductName, products); pr != "" {
			fmt.Fprintf(&b, " - %s", pr)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func priceRangeLabel(name string, products []*ai.Product) string {
	for _, p := range products {
		if p == nil || !strings.EqualFold(p.Name, name) {
			continue
		}
		lo, hi := p.PriceRange()
		if lo == 0 {
			return ""
		}
		if lo == hi {
			return FormatPrice(lo)
		}
		return FormatPrice(lo) + " - " + FormatPrice(hi)
	}
	return ""
}

// FormatPrice renders a VND amount with dot thousand separators ("450.000đ").
func FormatPrice(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteString("đ")
	return b.String()
}
