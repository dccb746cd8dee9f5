package storage

import (
	"encoding/json"
	"time"
)

// AnalysisReport is a persisted per-bucket readiness analysis of one asset.
// The flat columns cover querying and export; Payload carries the full
// report document.
type AnalysisReport struct {
	AssetID       string
	Bucket        time.Time
	TotalHolders  int
	PagesExamined int
	PartialCensus bool
	Top10Pct      float64
	Top50Pct      float64
	Gini          float64
	LiquidityUSD  *float64
	Volume24hUSD  *float64
	MetadataScore float64
	SecurityScore float64
	TotalScore    float64
	Grade         string
	MarketData    bool
	Status        string
	Warnings      []string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// AlertRecord captures an emitted alert for de-duplication/auditing.
type AlertRecord struct {
	ID        int64
	AssetID   string
	Bucket    time.Time
	Kind      string
	Message   string
	Channels  []string
	CreatedAt time.Time
}
