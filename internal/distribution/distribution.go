// Package distribution computes concentration statistics over the top holder
// rows retrieved from the ledger.
package distribution

import (
	"sort"

	"github.com/shopspring/decimal"

	"listing-radar/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is the concentration profile of one asset at analysis time.
type Snapshot struct {
	TotalHolders          int
	Top10ConcentrationPct float64
	Top50ConcentrationPct float64
	GiniCoefficient       float64
}

// Analyze profiles the visible holder rows (the top-50 by balance,
// descending). totalHolders comes from the census run and supersedes
// len(rows) in the reported field; totalSupply, when positive, is the
// concentration denominator. When totalSupply is absent the denominator
// falls back to the sum of visible balances, which understates concentration
// for holder sets fetched only up to position 50.
func Analyze(rows []ledger.HolderRow, totalHolders int, totalSupply decimal.Decimal) Snapshot {
	if len(rows) == 0 {
		// No visible holders: maximally-concentrated convention.
		return Snapshot{
			TotalHolders:          0,
			Top10ConcentrationPct: 100.0,
			Top50ConcentrationPct: 100.0,
			GiniCoefficient:       1.0,
		}
	}

	if totalHolders < len(rows) {
		totalHolders = len(rows)
	}

	visibleSum := decimal.Zero
	for _, row := range rows {
		if row.Quantity.IsNegative() {
			continue
		}
		visibleSum = visibleSum.Add(row.Quantity)
	}

	denom := visibleSum
	if totalSupply.IsPositive() {
		denom = totalSupply
	}

	return Snapshot{
		TotalHolders:          totalHolders,
		Top10ConcentrationPct: topShare(rows, 10, denom),
		Top50ConcentrationPct: topShare(rows, 50, denom),
		GiniCoefficient:       gini(rows, visibleSum),
	}
}

func topShare(rows []ledger.HolderRow, k int, denom decimal.Decimal) float64 {
	if !denom.IsPositive() {
		return 0
	}
	if k > len(rows) {
		k = len(rows)
	}

	sum := decimal.Zero
	for _, row := range rows[:k] {
		if row.Quantity.IsNegative() {
			continue
		}
		sum = sum.Add(row.Quantity)
	}

	pct, _ := sum.Mul(hundred).Div(denom).Float64()
	return clamp(pct, 0, 100)
}

// gini is computed over the visible rows only, not the full population:
// the full balance list is never fetched. Values are sorted ascending and
// weighted by (n-i); the result is clamped to [0,1]. An empty or zero-sum
// list yields 1.0, a single holder yields 0.0.
func gini(rows []ledger.HolderRow, sum decimal.Decimal) float64 {
	if len(rows) == 0 || !sum.IsPositive() {
		return 1.0
	}

	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		v, _ := row.Quantity.Float64()
		if v < 0 {
			v = 0
		}
		values = append(values, v)
	}
	sort.Float64s(values)

	n := float64(len(values))
	total, _ := sum.Float64()
	if total <= 0 {
		return 1.0
	}

	cumsum := 0.0
	for i, v := range values {
		cumsum += (n - float64(i)) * v
	}

	g := (2*cumsum)/(n*total) - (n+1)/n
	return clamp(g, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
