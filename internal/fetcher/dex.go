package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	aggregatorTokensPath = "/aggregator/tokens"
	liquidityPoolsPath   = "/liquidity/pools"

	// defaultQuotePriceUSD is applied to pool liquidity denominated in the
	// quote currency when no USD price is reported by the venue.
	defaultQuotePriceUSD = 0.4
)

// DexOptions parameterise the DEX market-data fetcher.
type DexOptions struct {
	// AggregatorURL is the base URL of a swap-aggregator API exposing a
	// token search endpoint with per-token liquidity and 24h volume.
	AggregatorURL string
	// PoolsURL is the base URL of an analytics API listing raw liquidity
	// pools.
	PoolsURL      string
	QuotePriceUSD float64
	Timeout       time.Duration
	UserAgent     string
	OnlyVerified  bool
}

// Dex aggregates liquidity and volume across two DEX venues. A venue that
// fails or doesn't know the asset contributes zero; when neither venue
// yields data, the result carries nil metrics so the scorer drops into the
// on-chain-only regime.
type Dex struct {
	opts   DexOptions
	logger zerolog.Logger
	client *http.Client
}

// NewDex constructs a DEX market-data fetcher.
func NewDex(opts DexOptions, logger zerolog.Logger) *Dex {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.QuotePriceUSD <= 0 {
		opts.QuotePriceUSD = defaultQuotePriceUSD
	}
	opts.AggregatorURL = strings.TrimRight(opts.AggregatorURL, "/")
	opts.PoolsURL = strings.TrimRight(opts.PoolsURL, "/")

	return &Dex{
		opts:   opts,
		logger: logger.With().Str("component", "dex_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchMarketData sums liquidity and 24h volume across the configured
// venues.
func (d *Dex) FetchMarketData(ctx context.Context, assetID string) (MarketData, error) {
	var (
		liquidity float64
		volume    float64
		price     *float64
		sources   []string
	)

	if d.opts.AggregatorURL != "" {
		liq, vol, pr, err := d.fetchAggregator(ctx, assetID)
		if err != nil {
			d.logger.Warn().Err(err).Str("asset", assetID).Msg("aggregator venue unavailable")
		} else {
			liquidity += liq
			volume += vol
			if pr > 0 {
				price = &pr
			}
			sources = append(sources, "aggregator")
		}
	}

	if d.opts.PoolsURL != "" {
		liq, err := d.fetchPools(ctx, assetID)
		if err != nil {
			d.logger.Warn().Err(err).Str("asset", assetID).Msg("pools venue unavailable")
		} else {
			liquidity += liq
			sources = append(sources, "pools")
		}
	}

	if len(sources) == 0 {
		// No venue answered; market data is unknown, not zero.
		return MarketData{}, nil
	}

	data := MarketData{
		LiquidityUSD: &liquidity,
		Volume24hUSD: &volume,
		PriceUSD:     price,
		Source:       strings.Join(sources, "+"),
	}
	return data, nil
}

func (d *Dex) fetchAggregator(ctx context.Context, assetID string) (liquidity, volume, price float64, err error) {
	payload, err := json.Marshal(map[string]any{
		"query":         assetID,
		"only_verified": d.opts.OnlyVerified,
	})
	if err != nil {
		return 0, 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.AggregatorURL+aggregatorTokensPath, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	d.setCommonHeaders(req)

	body, err := d.do(req)
	if err != nil {
		return 0, 0, 0, err
	}

	var tokens []struct {
		Liquidity float64 `json:"liquidity"`
		Volume24h float64 `json:"volume24h"`
		PriceUSD  float64 `json:"price_usd"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return 0, 0, 0, fmt.Errorf("decode aggregator response: %w", err)
	}
	if len(tokens) == 0 {
		return 0, 0, 0, nil
	}

	first := tokens[0]
	return first.Liquidity, first.Volume24h, first.PriceUSD, nil
}

func (d *Dex) fetchPools(ctx context.Context, assetID string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.opts.PoolsURL+liquidityPoolsPath, nil)
	if err != nil {
		return 0, err
	}
	d.setCommonHeaders(req)

	body, err := d.do(req)
	if err != nil {
		return 0, err
	}

	var pools []struct {
		BaseToken         string  `json:"baseToken"`
		QuoteToken        string  `json:"quoteToken"`
		Liquidity         float64 `json:"liquidity"`
		BaseDecimalPlaces int     `json:"baseDecimalPlaces"`
		PriceUSD          float64 `json:"price_usd"`
	}
	if err := json.Unmarshal(body, &pools); err != nil {
		return 0, fmt.Errorf("decode pools response: %w", err)
	}

	needle := strings.ToLower(assetID)
	total := 0.0
	for _, pool := range pools {
		if !strings.Contains(strings.ToLower(pool.BaseToken), needle) &&
			!strings.Contains(strings.ToLower(pool.QuoteToken), needle) {
			continue
		}
		if pool.Liquidity <= 0 {
			continue
		}

		// Pool liquidity is reported in raw integer units.
		decimals := pool.BaseDecimalPlaces
		if decimals <= 0 {
			decimals = 6
		}
		scaled := pool.Liquidity
		for i := 0; i < decimals; i++ {
			scaled /= 10
		}

		priceUSD := pool.PriceUSD
		if priceUSD <= 0 {
			priceUSD = d.opts.QuotePriceUSD
		}
		total += scaled * priceUSD
	}
	return total, nil
}

func (d *Dex) setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "listingradar/1.0")
	}
}

func (d *Dex) do(req *http.Request) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dex api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

var _ MarketDataFetcher = (*Dex)(nil)
