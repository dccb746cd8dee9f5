// Package scoring converts holder-distribution and market metrics into a
// bounded listing-readiness score, and checks the result against per-venue
// listing thresholds.
package scoring

import (
	"github.com/shopspring/decimal"
)

// MetricsBundle gathers every input the scorer consumes. Liquidity and
// volume are optional; either being absent forces the on-chain-only
// weighting regime.
type MetricsBundle struct {
	TotalSupply           decimal.Decimal
	CirculatingSupply     decimal.Decimal
	HolderCount           int
	Top10ConcentrationPct float64
	Top50ConcentrationPct float64
	LiquidityUSD          *float64
	Volume24hUSD          *float64
	MetadataScore         float64
	ContractRiskScore     float64
	MarketDataAvailable   bool
}

// Narrative holds optional explanation text layered on top of the numeric
// core by an external narrative generator. All fields are absent when no
// generator ran; the numeric core never depends on them.
type Narrative struct {
	Reasoning  string
	Strengths  []string
	Weaknesses []string
}

// ReadinessScore is the scored result: six component scores in [0,100], a
// weighted total, and a letter grade. Never mutated after construction.
type ReadinessScore struct {
	Liquidity          float64
	HolderDistribution float64
	Metadata           float64
	Security           float64
	SupplyStability    float64
	MarketActivity     float64
	TotalScore         float64
	Grade              string

	Narrative *Narrative
}

// Weights when market data is available.
const (
	weightLiquidity      = 0.30
	weightHolders        = 0.25
	weightMetadata       = 0.15
	weightSecurity       = 0.15
	weightStability      = 0.10
	weightMarketActivity = 0.05
)

// Weights for the on-chain-only regime: liquidity and volume are unknown, so
// their components are forced to zero and excluded from the weight base.
const (
	onchainWeightHolders   = 0.40
	onchainWeightMetadata  = 0.25
	onchainWeightSecurity  = 0.25
	onchainWeightStability = 0.10
)

// supplyStabilityScore is a constant placeholder: no on-chain supply-change
// history is modelled here.
const supplyStabilityScore = 85.0

// Score computes the readiness score. Pure and deterministic: no I/O and
// no errors, malformed inputs are clamped to their valid domain.
func Score(m MetricsBundle) ReadinessScore {
	hasMarketData := m.MarketDataAvailable && m.LiquidityUSD != nil && m.Volume24hUSD != nil

	score := ReadinessScore{
		Metadata:        clamp(m.MetadataScore, 0, 100),
		Security:        clamp(m.ContractRiskScore, 0, 100),
		SupplyStability: supplyStabilityScore,
	}

	holderCount := m.HolderCount
	if holderCount < 0 {
		holderCount = 0
	}
	score.HolderDistribution = holderDistributionScore(clamp(m.Top10ConcentrationPct, 0, 100), holderCount)

	if hasMarketData {
		liquidity := max(*m.LiquidityUSD, 0)
		volume := max(*m.Volume24hUSD, 0)
		score.Liquidity = liquidityScore(liquidity)
		score.MarketActivity = marketActivityScore(liquidity, volume)

		score.TotalScore = score.Liquidity*weightLiquidity +
			score.HolderDistribution*weightHolders +
			score.Metadata*weightMetadata +
			score.Security*weightSecurity +
			score.SupplyStability*weightStability +
			score.MarketActivity*weightMarketActivity
	} else {
		score.TotalScore = score.HolderDistribution*onchainWeightHolders +
			score.Metadata*onchainWeightMetadata +
			score.Security*onchainWeightSecurity +
			score.SupplyStability*onchainWeightStability
	}

	score.TotalScore = clamp(score.TotalScore, 0, 100)
	score.Grade = gradeFor(score.TotalScore)
	return score
}

// liquidityScore ramps piecewise-linearly: 100 at >= $100k, 70..100 across
// [$50k,$100k], 40..70 across [$10k,$50k], 0..40 below $10k.
func liquidityScore(liquidity float64) float64 {
	switch {
	case liquidity >= 100_000:
		return 100
	case liquidity >= 50_000:
		return 70 + (liquidity-50_000)/50_000*30
	case liquidity >= 10_000:
		return 40 + (liquidity-10_000)/40_000*30
	default:
		return liquidity / 10_000 * 40
	}
}

// holderDistributionScore inverts top-10 concentration piecewise-linearly,
// then adds a bonus (capped at 100) for absolute holder count.
func holderDistributionScore(top10 float64, holderCount int) float64 {
	var base float64
	switch {
	case top10 <= 20:
		base = 100
	case top10 <= 40:
		base = 80 - (top10-20)/20*30
	case top10 <= 60:
		base = 50 - (top10-40)/20*30
	default:
		base = clamp(20-(top10-60)/40*20, 0, 20)
	}

	switch {
	case holderCount >= 10_000:
		base += 20
	case holderCount >= 1_000:
		base += 10
	case holderCount >= 500:
		base += 5
	}

	return clamp(base, 0, 100)
}

// marketActivityScore ramps on the daily turnover ratio volume/liquidity:
// 100 at >= 0.15, 60..100 across [0.05,0.15), 0..60 below 0.05.
func marketActivityScore(liquidity, volume float64) float64 {
	if liquidity <= 0 {
		return 0
	}
	ratio := volume / liquidity
	switch {
	case ratio >= 0.15:
		return 100
	case ratio >= 0.05:
		return 60 + (ratio-0.05)/0.1*40
	default:
		return clamp(ratio/0.05*60, 0, 60)
	}
}

func gradeFor(total float64) string {
	switch {
	case total >= 85:
		return "A"
	case total >= 70:
		return "B"
	case total >= 55:
		return "C"
	case total >= 40:
		return "D"
	default:
		return "F"
	}
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
