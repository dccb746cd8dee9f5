package fetcher

import (
	"context"
)

// MarketData carries DEX-derived market signals. Nil fields mean the metric
// could not be determined from any venue; the scorer treats that as market
// data unavailable.
type MarketData struct {
	LiquidityUSD *float64
	Volume24hUSD *float64
	PriceUSD     *float64
	Source       string
}

// Available reports whether both liquidity and volume were resolved.
func (m MarketData) Available() bool {
	return m.LiquidityUSD != nil && m.Volume24hUSD != nil
}

// MarketDataFetcher retrieves liquidity and volume for an asset from
// secondary markets.
type MarketDataFetcher interface {
	FetchMarketData(ctx context.Context, assetID string) (MarketData, error)
}
