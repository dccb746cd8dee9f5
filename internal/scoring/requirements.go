package scoring

// Gap priorities. High-priority gaps always sort before medium ones.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Gap metrics.
const (
	MetricLiquidity     = "liquidity"
	MetricHolders       = "holders"
	MetricVolume        = "volume_24h"
	MetricConcentration = "top10_concentration"
	MetricMetadata      = "metadata"
	MetricAudit         = "security_audit"
	MetricKYC           = "kyc"
)

// VenueThreshold is the static listing-requirement table for one venue.
type VenueThreshold struct {
	Venue            string
	Tier             string
	MinLiquidityUSD  float64
	MinHolders       int
	MinVolume24hUSD  float64
	MaxTop10Pct      float64
	MetadataRequired bool
	AuditRequired    bool
	KYCRequired      bool
}

// Gap flags one unmet venue requirement. Shortfall is in the metric's own
// unit: USD for liquidity/volume, holders for holders, percentage points for
// concentration and metadata.
type Gap struct {
	Venue     string
	Metric    string
	Shortfall float64
	Priority  string
}

// metadataPassScore is the completeness score a venue's "complete metadata"
// item demands.
const metadataPassScore = 70.0

// DefaultVenues returns the public listing-requirement table, ordered by
// tier and strictness.
func DefaultVenues() []VenueThreshold {
	return []VenueThreshold{
		{
			Venue:            "Binance",
			Tier:             "Tier 1",
			MinLiquidityUSD:  100_000,
			MinHolders:       1_000,
			MinVolume24hUSD:  10_000,
			MaxTop10Pct:      40,
			MetadataRequired: true,
			AuditRequired:    true,
			KYCRequired:      true,
		},
		{
			Venue:            "KuCoin",
			Tier:             "Tier 1",
			MinLiquidityUSD:  50_000,
			MinHolders:       500,
			MinVolume24hUSD:  5_000,
			MaxTop10Pct:      50,
			MetadataRequired: true,
			KYCRequired:      true,
		},
		{
			Venue:            "Gate.io",
			Tier:             "Tier 2",
			MinLiquidityUSD:  25_000,
			MinHolders:       300,
			MinVolume24hUSD:  2_500,
			MaxTop10Pct:      60,
			MetadataRequired: true,
			KYCRequired:      true,
		},
		{
			Venue:            "MEXC",
			Tier:             "Tier 2",
			MinLiquidityUSD:  10_000,
			MinHolders:       200,
			MinVolume24hUSD:  1_000,
			MaxTop10Pct:      70,
			MetadataRequired: true,
		},
	}
}

// FindGaps compares the metrics against each venue's thresholds and returns
// every unmet requirement, all high-priority gaps first, input order
// preserved within each tier. Audit and KYC items always need manual
// completion outside this system, so a venue mandating them always gaps.
func FindGaps(m MetricsBundle, venues []VenueThreshold) []Gap {
	liquidity, volume := marketValues(m)

	var high, medium []Gap
	push := func(g Gap) {
		if g.Priority == PriorityHigh {
			high = append(high, g)
		} else {
			medium = append(medium, g)
		}
	}

	top10 := clamp(m.Top10ConcentrationPct, 0, 100)
	holderCount := m.HolderCount
	if holderCount < 0 {
		holderCount = 0
	}

	for _, venue := range venues {
		if shortfall := venue.MinLiquidityUSD - liquidity; shortfall > 0 {
			priority := PriorityMedium
			if shortfall > 50_000 {
				priority = PriorityHigh
			}
			push(Gap{Venue: venue.Venue, Metric: MetricLiquidity, Shortfall: shortfall, Priority: priority})
		}

		if shortfall := venue.MinHolders - holderCount; shortfall > 0 {
			push(Gap{Venue: venue.Venue, Metric: MetricHolders, Shortfall: float64(shortfall), Priority: PriorityMedium})
		}

		if shortfall := venue.MinVolume24hUSD - volume; shortfall > 0 {
			push(Gap{Venue: venue.Venue, Metric: MetricVolume, Shortfall: shortfall, Priority: PriorityMedium})
		}

		if venue.MaxTop10Pct > 0 && top10 > venue.MaxTop10Pct {
			over := top10 - venue.MaxTop10Pct
			priority := PriorityMedium
			if over > 10 {
				priority = PriorityHigh
			}
			push(Gap{Venue: venue.Venue, Metric: MetricConcentration, Shortfall: over, Priority: priority})
		}

		if venue.MetadataRequired && m.MetadataScore < metadataPassScore {
			push(Gap{Venue: venue.Venue, Metric: MetricMetadata, Shortfall: metadataPassScore - clamp(m.MetadataScore, 0, 100), Priority: PriorityMedium})
		}

		if venue.AuditRequired {
			push(Gap{Venue: venue.Venue, Metric: MetricAudit, Shortfall: 0, Priority: PriorityHigh})
		}
		if venue.KYCRequired {
			push(Gap{Venue: venue.Venue, Metric: MetricKYC, Shortfall: 0, Priority: PriorityHigh})
		}
	}

	return append(high, medium...)
}

// RecommendVenues returns the venues where the average requirement ratio
// across liquidity, holders, and volume is at least 0.8. With no match, the
// lowest-tier fallbacks are suggested.
func RecommendVenues(m MetricsBundle, venues []VenueThreshold) []string {
	liquidity, volume := marketValues(m)

	var recommended []string
	for _, venue := range venues {
		liquidityMatch := ratio(liquidity, venue.MinLiquidityUSD)
		holderMatch := ratio(float64(m.HolderCount), float64(venue.MinHolders))
		volumeMatch := ratio(volume, venue.MinVolume24hUSD)

		if (liquidityMatch+holderMatch+volumeMatch)/3 >= 0.8 {
			recommended = append(recommended, venue.Venue)
		}
	}

	if len(recommended) == 0 {
		recommended = []string{"MEXC", "Gate.io"}
	}
	return recommended
}

// ComplianceRate is the percentage of requirement items met across every
// venue's checklist.
func ComplianceRate(m MetricsBundle, venues []VenueThreshold) float64 {
	total := 0
	for _, venue := range venues {
		total += 3 // liquidity, holders, volume
		if venue.MaxTop10Pct > 0 {
			total++
		}
		if venue.MetadataRequired {
			total++
		}
		if venue.AuditRequired {
			total++
		}
		if venue.KYCRequired {
			total++
		}
	}
	if total == 0 {
		return 0
	}

	unmet := len(FindGaps(m, venues))
	met := total - unmet
	if met < 0 {
		met = 0
	}
	return float64(met) / float64(total) * 100
}

func marketValues(m MetricsBundle) (liquidity, volume float64) {
	if m.MarketDataAvailable && m.LiquidityUSD != nil {
		liquidity = max(*m.LiquidityUSD, 0)
	}
	if m.MarketDataAvailable && m.Volume24hUSD != nil {
		volume = max(*m.Volume24hUSD, 0)
	}
	return liquidity, volume
}

func ratio(value, minimum float64) float64 {
	if minimum <= 0 {
		return 1
	}
	if value < 0 {
		return 0
	}
	return value / minimum
}
