package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"listing-radar/internal/fetcher"
	"listing-radar/internal/ledger"
	"listing-radar/internal/service"
)

// SimulateOptions describe the synthetic asset used to exercise the alert
// flow end to end.
type SimulateOptions struct {
	Holders      int
	Top10Pct     float64
	LiquidityUSD float64
	Volume24hUSD float64
}

// SimulateAlert runs the full analysis pipeline against a synthetic asset
// and dispatches whatever alerts it triggers.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	if opts.Holders < 10 {
		return errors.New("--holders must be at least 10")
	}
	if opts.Top10Pct <= 0 || opts.Top10Pct > 100 {
		return errors.New("--top10 must be in (0, 100]")
	}

	src := newSyntheticLedger(opts)
	market := &staticMarketFetcher{liquidity: opts.LiquidityUSD, volume: opts.Volume24hUSD}

	svc := service.New(a.Config, nil, src, market, nil, a.newPlanner(), nil, nil, notifier, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Monitor.Interval)
	report, err := svc.ProcessAsset(ctx, "simulated-asset", bucket)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Float64("score", report.Score.TotalScore).
		Str("grade", report.Score.Grade).
		Float64("top10_pct", report.Snapshot.Top10ConcentrationPct).
		Msg("simulation complete")
	return nil
}

// syntheticLedger serves a generated holder list: the top ten addresses
// share Top10Pct of a fixed supply, the rest is spread evenly.
type syntheticLedger struct {
	rows   []ledger.HolderRow
	supply decimal.Decimal
}

func newSyntheticLedger(opts SimulateOptions) *syntheticLedger {
	supply := decimal.NewFromInt(1_000_000)
	topTotal := supply.Mul(decimal.NewFromFloat(opts.Top10Pct / 100))
	restTotal := supply.Sub(topTotal)

	rows := make([]ledger.HolderRow, 0, opts.Holders)
	topEach := topTotal.Div(decimal.NewFromInt(10))
	for i := 0; i < 10; i++ {
		rows = append(rows, ledger.HolderRow{
			Address:  fmt.Sprintf("addr_whale_%02d", i),
			Quantity: topEach,
		})
	}
	restEach := restTotal.Div(decimal.NewFromInt(int64(opts.Holders - 10)))
	for i := 10; i < opts.Holders; i++ {
		rows = append(rows, ledger.HolderRow{
			Address:  fmt.Sprintf("addr_%06d", i),
			Quantity: restEach,
		})
	}

	return &syntheticLedger{rows: rows, supply: supply}
}

func (s *syntheticLedger) ListHolders(ctx context.Context, assetID string, page, count int) ([]ledger.HolderRow, error) {
	if page < 1 || count < 1 {
		return nil, ledger.ErrInvalidInput
	}
	start := (page - 1) * count
	if start >= len(s.rows) {
		return nil, nil
	}
	end := min(start+count, len(s.rows))
	return s.rows[start:end], nil
}

func (s *syntheticLedger) GetAsset(ctx context.Context, assetID string) (ledger.Asset, error) {
	return ledger.Asset{
		AssetID: assetID,
		Supply:  s.supply,
		Metadata: ledger.Metadata{
			Name:        "Simulated Token",
			Description: "synthetic asset for alert simulation",
			Ticker:      "SIM",
			Image:       "ipfs://simulated",
			Website:     "https://example.invalid",
		},
	}, nil
}

func (s *syntheticLedger) CountHistoryEvents(ctx context.Context, assetID string, count int) (int, error) {
	return 42, nil
}

type staticMarketFetcher struct {
	liquidity float64
	volume    float64
}

func (s *staticMarketFetcher) FetchMarketData(ctx context.Context, assetID string) (fetcher.MarketData, error) {
	return fetcher.MarketData{
		LiquidityUSD: &s.liquidity,
		Volume24hUSD: &s.volume,
		Source:       "simulated",
	}, nil
}

var _ service.LedgerSource = (*syntheticLedger)(nil)
var _ fetcher.MarketDataFetcher = (*staticMarketFetcher)(nil)
