package analytics

import (
	"unicode"
	"unicode/utf8"

	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AggregateByVerb returns, per verb in first-seen order, the fraction of all
// actions carrying it. An empty batch yields an empty map.
func AggregateByVerb(actions []models.Action) *OrderedMap[float64] {
	counts := NewOrderedMap[int]()
	for i := range actions {
		counts.Add(actions[i].Verb, 1)
	}

	out := NewOrderedMap[float64]()
	total := len(actions)
	if total == 0 {
		return out
	}
	counts.Each(func(verb string, n int) {
		out.Set(verb, float64(n)/float64(total))
	})
	return out
}

// FormatByVerb converts fractions to 2-decimal percentages, drops verbs below
// minPercentage and appends an "Other" slice holding 100 minus the kept
// percentages. Rounding drift therefore lands in "Other" and the result sums
// to exactly 100; when the kept shares round up past 100, "Other" is a small
// negative correction. "Other" is appended whenever anything survives, even
// at zero. Nothing survives the threshold -> empty result.
func FormatByVerb(fractions *OrderedMap[float64], minPercentage float64, otherLabel string) []models.VerbShare {
	threshold := decimal.NewFromFloat(minPercentage)

	out := make([]models.VerbShare, 0, fractions.Len()+1)
	sum := decimal.Zero
	fractions.Each(func(verb string, fraction float64) {
		pct := decimal.NewFromFloat(fraction).Mul(hundred).Round(2)
		if pct.LessThan(threshold) {
			return
		}
		sum = sum.Add(pct)
		out = append(out, models.VerbShare{
			Verb:       capitalizeFirst(verb),
			Percentage: pct.InexactFloat64(),
		})
	})

	if len(out) == 0 {
		return out
	}

	other := hundred.Sub(sum).Round(2)
	return append(out, models.VerbShare{Verb: otherLabel, Percentage: other.InexactFloat64()})
}

// capitalizeFirst upper-cases the first letter and leaves the rest untouched.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
