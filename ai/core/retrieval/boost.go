package retrieval

import (
	"sort"
	"strings"
	"time"

	"github.com/hrygo/shopsense/ai"
)

// Boost weights. A signal s in [0,1] multiplies the score by (1 + s*weight),
// so scores never decrease and a zero signal is a no-op.
const (
	PopularityBoostWeight = 0.10
	SeasonalBoostWeight   = 0.15

	// PopularityWindowDays is the order-count lookback for the popularity signal.
	PopularityWindowDays = 30
)

// Season is a quarter of the fashion year.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

// SeasonOf maps a point in time to its season: Mar-May spring, Jun-Aug
// summer, Sep-Nov fall, the rest winter.
func SeasonOf(t time.Time) Season {
	switch m := t.Month(); {
	case m >= time.March && m <= time.May:
		return SeasonSpring
	case m >= time.June && m <= time.August:
		return SeasonSummer
	case m >= time.September && m <= time.November:
		return SeasonFall
	default:
		return SeasonWinter
	}
}

var seasonKeywords = map[Season][]string{
	SeasonSpring: {"xuân", "spring", "nhẹ", "light", "pastel"},
	SeasonSummer: {"hè", "summer", "mát", "cool", "thoáng", "shorts", "tank"},
	SeasonFall:   {"thu", "fall", "autumn", "khoác nhẹ", "cardigan"},
	SeasonWinter: {"đông", "winter", "ấm", "warm", "len", "wool", "khoác", "coat", "jacket"},
}

// NormalizePopularity turns raw order counts into signals in [0,1] by
// dividing by the max count. An empty or all-zero map yields no signals.
func NormalizePopularity(counts map[string]int) map[string]float64 {
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		return nil
	}
	signals := make(map[string]float64, len(counts))
	for id, c := range counts {
		signals[id] = float64(c) / float64(maxCount)
	}
	return signals
}

// ApplyPopularityBoost multiplies each hybrid score by (1 + signal*weight)
// and re-sorts. Ids without a signal keep their score.
func ApplyPopularityBoost(results []*MergedResult, signals map[string]float64, weight float64) {
	if len(signals) == 0 {
		return
	}
	for _, r := range results {
		if s, ok := signals[r.ID]; ok && s > 0 {
			r.HybridScore *= 1 + s*weight
		}
	}
	resortByScore(results)
}

// ApplySeasonalBoost boosts results whose tags, category, or name match the
// current season's keyword set, then re-sorts.
func ApplySeasonalBoost(results []*MergedResult, season Season, weight float64) {
	keywords := seasonKeywords[season]
	if len(keywords) == 0 {
		return
	}
	for _, r := range results {
		if matchesSeason(r.Meta, keywords) {
			r.HybridScore *= 1 + weight
		}
	}
	resortByScore(results)
}

func matchesSeason(meta ai.ResultMeta, keywords []string) bool {
	text := strings.ToLower(strings.Join(meta.Tags, " ") + " " + meta.Category + " " + meta.ProductName)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func resortByScore(results []*MergedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].HybridScore > results[j].HybridScore
	})
}
