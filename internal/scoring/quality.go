package scoring

import (
	"listing-radar/internal/ledger"
)

// DefaultRiskScore is reported when the asset history cannot be fetched.
const DefaultRiskScore = 75.0

// MetadataScore rates registry metadata completeness in [0,100]. Essential
// fields weigh 20 points each, presentation extras 5 points each.
func MetadataScore(meta ledger.Metadata) float64 {
	essential := []string{meta.Name, meta.Description, meta.Image, meta.Ticker}
	optional := []string{meta.Website, meta.Twitter, meta.Telegram, meta.Logo}

	score := 0.0
	for _, field := range essential {
		if field != "" {
			score += 20
		}
	}
	for _, field := range optional {
		if field != "" {
			score += 5
		}
	}
	return clamp(score, 0, 100)
}

// HistoryRiskScore derives a contract-risk score from the depth of the
// asset's mint/burn history: a longer history means a more established asset.
// Higher is safer.
func HistoryRiskScore(eventCount int) float64 {
	score := 100.0
	switch {
	case eventCount > 100:
		// Established asset, no deduction.
	case eventCount > 50:
		score -= 10
	default:
		score -= 20
	}
	return clamp(score, 0, 100)
}
