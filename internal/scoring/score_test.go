package scoring

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func floatPtr(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func strongMarketMetrics() MetricsBundle {
	return MetricsBundle{
		TotalSupply:           decimal.NewFromInt(1_000_000),
		CirculatingSupply:     decimal.NewFromInt(1_000_000),
		HolderCount:           12_000,
		Top10ConcentrationPct: 15,
		Top50ConcentrationPct: 35,
		LiquidityUSD:          floatPtr(150_000),
		Volume24hUSD:          floatPtr(30_000),
		MetadataScore:         95,
		ContractRiskScore:     100,
		MarketDataAvailable:   true,
	}
}

func TestScoreStrongAssetGradesA(t *testing.T) {
	score := Score(strongMarketMetrics())

	// 100*.30 + 100*.25 + 95*.15 + 100*.15 + 85*.10 + 100*.05
	if !almostEqual(score.TotalScore, 97.75) {
		t.Fatalf("expected total 97.75, got %f", score.TotalScore)
	}
	if score.Grade != "A" {
		t.Fatalf("expected grade A, got %s", score.Grade)
	}
	if score.Liquidity != 100 || score.MarketActivity != 100 {
		t.Fatalf("expected saturated market components, got %+v", score)
	}
	if score.Narrative != nil {
		t.Fatal("no narrative generator ran; Narrative must be nil")
	}
}

func TestScoreBoundaryScenarios(t *testing.T) {
	// Everything saturated except metadata/security at 90.
	m := MetricsBundle{
		HolderCount:           10_000,
		Top10ConcentrationPct: 15,
		LiquidityUSD:          floatPtr(100_000),
		Volume24hUSD:          floatPtr(20_000),
		MetadataScore:         90,
		ContractRiskScore:     90,
		MarketDataAvailable:   true,
	}

	score := Score(m)
	if score.Liquidity != 100 || score.HolderDistribution != 100 || score.MarketActivity != 100 {
		t.Fatalf("expected saturated components, got %+v", score)
	}
	// 100*.30 + 100*.25 + 90*.15 + 90*.15 + 85*.10 + 100*.05
	if !almostEqual(score.TotalScore, 95.5) {
		t.Fatalf("expected total 95.5, got %f", score.TotalScore)
	}
	if score.Grade != "A" {
		t.Fatalf("expected grade A, got %s", score.Grade)
	}

	// Concentrated on-chain-only asset lands in the failing band.
	weak := MetricsBundle{
		HolderCount:           200,
		Top10ConcentrationPct: 70,
		MetadataScore:         40,
		ContractRiskScore:     50,
	}

	score = Score(weak)
	// 15*.40 + 40*.25 + 50*.25 + 85*.10 = 37
	if !almostEqual(score.TotalScore, 37) {
		t.Fatalf("expected total 37, got %f", score.TotalScore)
	}
	if score.Grade != "F" {
		t.Fatalf("expected grade F, got %s", score.Grade)
	}
}

func TestScoreOnChainOnlyRegime(t *testing.T) {
	m := MetricsBundle{
		HolderCount:           300,
		Top10ConcentrationPct: 70,
		MetadataScore:         25,
		ContractRiskScore:     75,
	}

	score := Score(m)

	// Holder base: 20 - (70-60)/40*20 = 15, no count bonus below 500.
	if !almostEqual(score.HolderDistribution, 15) {
		t.Fatalf("expected holder score 15, got %f", score.HolderDistribution)
	}
	if score.Liquidity != 0 || score.MarketActivity != 0 {
		t.Fatal("market components must be zero without market data")
	}

	// 15*.40 + 25*.25 + 75*.25 + 85*.10 = 39.5
	if !almostEqual(score.TotalScore, 39.5) {
		t.Fatalf("expected total 39.5, got %f", score.TotalScore)
	}
	if score.Grade != "F" {
		t.Fatalf("expected grade F, got %s", score.Grade)
	}
}

func TestScoreMarketFlagRequiresBothValues(t *testing.T) {
	m := strongMarketMetrics()
	m.Volume24hUSD = nil

	score := Score(m)
	if score.Liquidity != 0 {
		t.Fatal("missing volume must force the on-chain-only regime")
	}
}

func TestScoreDeterministic(t *testing.T) {
	m := strongMarketMetrics()
	first := Score(m)
	for i := 0; i < 10; i++ {
		if got := Score(m); got != first {
			t.Fatalf("score is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestScoreClampsMalformedInputs(t *testing.T) {
	m := MetricsBundle{
		HolderCount:           -5,
		Top10ConcentrationPct: 180,
		MetadataScore:         -10,
		ContractRiskScore:     400,
		LiquidityUSD:          floatPtr(-10_000),
		Volume24hUSD:          floatPtr(-500),
		MarketDataAvailable:   true,
	}

	score := Score(m)

	if score.Metadata != 0 {
		t.Fatalf("negative metadata must clamp to 0, got %f", score.Metadata)
	}
	if score.Security != 100 {
		t.Fatalf("oversized risk score must clamp to 100, got %f", score.Security)
	}
	if score.Liquidity != 0 || score.MarketActivity != 0 {
		t.Fatal("negative market values must floor at zero")
	}
	if score.TotalScore < 0 || score.TotalScore > 100 {
		t.Fatalf("total %f out of bounds", score.TotalScore)
	}
}

func TestLiquidityScoreRamps(t *testing.T) {
	cases := []struct {
		liquidity float64
		expected  float64
	}{
		{0, 0},
		{5_000, 20},
		{10_000, 40},
		{30_000, 55},
		{50_000, 70},
		{75_000, 85},
		{100_000, 100},
		{500_000, 100},
	}
	for _, tc := range cases {
		if got := liquidityScore(tc.liquidity); !almostEqual(got, tc.expected) {
			t.Fatalf("liquidityScore(%f) = %f, expected %f", tc.liquidity, got, tc.expected)
		}
	}
}

func TestHolderDistributionBonusTiers(t *testing.T) {
	cases := []struct {
		holders  int
		expected float64
	}{
		{499, 100},
		{500, 100}, // bonus clamps at 100
		{100, 100},
	}
	for _, tc := range cases {
		if got := holderDistributionScore(10, tc.holders); got != tc.expected {
			t.Fatalf("holderDistributionScore(10, %d) = %f, expected %f", tc.holders, got, tc.expected)
		}
	}

	// At 50% concentration the base is 35; bonuses separate the tiers.
	if got := holderDistributionScore(50, 400); !almostEqual(got, 35) {
		t.Fatalf("expected 35, got %f", got)
	}
	if got := holderDistributionScore(50, 600); !almostEqual(got, 40) {
		t.Fatalf("expected 40, got %f", got)
	}
	if got := holderDistributionScore(50, 2_000); !almostEqual(got, 45) {
		t.Fatalf("expected 45, got %f", got)
	}
	if got := holderDistributionScore(50, 50_000); !almostEqual(got, 55) {
		t.Fatalf("expected 55, got %f", got)
	}
}

func TestMarketActivityTurnoverRamp(t *testing.T) {
	if got := marketActivityScore(0, 100); got != 0 {
		t.Fatalf("zero liquidity must score 0, got %f", got)
	}
	if got := marketActivityScore(100_000, 15_000); got != 100 {
		t.Fatalf("turnover 0.15 must saturate, got %f", got)
	}
	if got := marketActivityScore(100_000, 10_000); !almostEqual(got, 80) {
		t.Fatalf("turnover 0.10 should score 80, got %f", got)
	}
	if got := marketActivityScore(100_000, 2_500); !almostEqual(got, 30) {
		t.Fatalf("turnover 0.025 should score 30, got %f", got)
	}
}

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		total float64
		grade string
	}{
		{100, "A"},
		{85, "A"},
		{84.9, "B"},
		{70, "B"},
		{69.9, "C"},
		{55, "C"},
		{54.9, "D"},
		{40, "D"},
		{39.9, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		if got := gradeFor(tc.total); got != tc.grade {
			t.Fatalf("gradeFor(%f) = %s, expected %s", tc.total, got, tc.grade)
		}
	}
}
