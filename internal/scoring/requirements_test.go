package scoring

import (
	"testing"
)

func midMarketMetrics() MetricsBundle {
	return MetricsBundle{
		HolderCount:           400,
		Top10ConcentrationPct: 55,
		LiquidityUSD:          floatPtr(30_000),
		Volume24hUSD:          floatPtr(2_000),
		MetadataScore:         80,
		ContractRiskScore:     75,
		MarketDataAvailable:   true,
	}
}

func TestFindGapsHighBeforeMedium(t *testing.T) {
	gaps := FindGaps(midMarketMetrics(), DefaultVenues())
	if len(gaps) == 0 {
		t.Fatal("expected gaps for a mid-market asset")
	}

	seenMedium := false
	for _, gap := range gaps {
		switch gap.Priority {
		case PriorityHigh:
			if seenMedium {
				t.Fatalf("high-priority gap %+v ordered after a medium one", gap)
			}
		case PriorityMedium:
			seenMedium = true
		default:
			t.Fatalf("unknown priority %q", gap.Priority)
		}
	}
	if !seenMedium {
		t.Fatal("expected at least one medium gap")
	}
}

func TestFindGapsShortfallValues(t *testing.T) {
	gaps := FindGaps(midMarketMetrics(), DefaultVenues())

	find := func(venue, metric string) *Gap {
		for i := range gaps {
			if gaps[i].Venue == venue && gaps[i].Metric == metric {
				return &gaps[i]
			}
		}
		return nil
	}

	// Binance wants $100k liquidity; $70k short is a high-priority gap.
	if gap := find("Binance", MetricLiquidity); gap == nil {
		t.Fatal("expected a Binance liquidity gap")
	} else {
		if gap.Shortfall != 70_000 {
			t.Fatalf("expected shortfall 70000, got %f", gap.Shortfall)
		}
		if gap.Priority != PriorityHigh {
			t.Fatalf("a $70k shortfall is high priority, got %s", gap.Priority)
		}
	}

	// KuCoin wants $50k; $20k short stays medium.
	if gap := find("KuCoin", MetricLiquidity); gap == nil {
		t.Fatal("expected a KuCoin liquidity gap")
	} else if gap.Priority != PriorityMedium {
		t.Fatalf("a $20k shortfall is medium priority, got %s", gap.Priority)
	}

	// Top-10 at 55% is 15 points over Binance's 40% ceiling: high priority.
	if gap := find("Binance", MetricConcentration); gap == nil {
		t.Fatal("expected a Binance concentration gap")
	} else {
		if gap.Shortfall != 15 {
			t.Fatalf("expected 15 points over, got %f", gap.Shortfall)
		}
		if gap.Priority != PriorityHigh {
			t.Fatalf("15 points over the ceiling is high priority, got %s", gap.Priority)
		}
	}

	// 55% clears MEXC's 70% ceiling.
	if gap := find("MEXC", MetricConcentration); gap != nil {
		t.Fatalf("unexpected MEXC concentration gap: %+v", gap)
	}

	// Audit and KYC are always manual items when mandated.
	if gap := find("Binance", MetricAudit); gap == nil || gap.Priority != PriorityHigh {
		t.Fatalf("expected a high-priority Binance audit gap, got %+v", gap)
	}
	if gap := find("MEXC", MetricKYC); gap != nil {
		t.Fatalf("MEXC mandates no KYC, got %+v", gap)
	}

	// Metadata at 80 clears the completeness bar everywhere.
	if gap := find("Binance", MetricMetadata); gap != nil {
		t.Fatalf("unexpected metadata gap: %+v", gap)
	}
}

func TestFindGapsWithoutMarketData(t *testing.T) {
	m := midMarketMetrics()
	m.MarketDataAvailable = false

	gaps := FindGaps(m, DefaultVenues())

	// Without market data every venue gaps on liquidity and volume.
	liquidityGaps := 0
	for _, gap := range gaps {
		if gap.Metric == MetricLiquidity {
			liquidityGaps++
		}
	}
	if liquidityGaps != len(DefaultVenues()) {
		t.Fatalf("expected a liquidity gap per venue, got %d", liquidityGaps)
	}
}

func TestRecommendVenues(t *testing.T) {
	strong := MetricsBundle{
		HolderCount:           5_000,
		Top10ConcentrationPct: 25,
		LiquidityUSD:          floatPtr(120_000),
		Volume24hUSD:          floatPtr(20_000),
		MetadataScore:         90,
		MarketDataAvailable:   true,
	}
	venues := RecommendVenues(strong, DefaultVenues())
	if len(venues) != 4 {
		t.Fatalf("a strong asset should match every venue, got %v", venues)
	}

	weak := MetricsBundle{HolderCount: 5}
	venues = RecommendVenues(weak, DefaultVenues())
	if len(venues) != 2 || venues[0] != "MEXC" || venues[1] != "Gate.io" {
		t.Fatalf("expected the fallback suggestion, got %v", venues)
	}
}

func TestComplianceRate(t *testing.T) {
	strong := MetricsBundle{
		HolderCount:           50_000,
		Top10ConcentrationPct: 15,
		LiquidityUSD:          floatPtr(500_000),
		Volume24hUSD:          floatPtr(80_000),
		MetadataScore:         100,
		MarketDataAvailable:   true,
	}

	// Default table: 4 venues x 3 numeric items + 4 ceilings + 4 metadata
	// + 1 audit + 3 KYC = 24 items. Only audit and KYC remain unmet.
	rate := ComplianceRate(strong, DefaultVenues())
	expected := float64(24-4) / 24 * 100
	if rate != expected {
		t.Fatalf("expected %.2f%%, got %.2f%%", expected, rate)
	}

	if rate := ComplianceRate(strong, nil); rate != 0 {
		t.Fatalf("empty venue table yields 0, got %f", rate)
	}
}
