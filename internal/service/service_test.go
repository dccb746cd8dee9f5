package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"listing-radar/internal/alerting"
	"listing-radar/internal/census"
	"listing-radar/internal/config"
	"listing-radar/internal/fetcher"
	"listing-radar/internal/ledger"
	"listing-radar/internal/liquidity"
	"listing-radar/internal/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Monitor.Assets = []string{"asset1"}
	cfg.Monitor.Interval = time.Hour
	cfg.Ledger.PageSize = 100
	cfg.Alerting.Enabled = true
	cfg.Alerting.ConcentrationPct = 40
	cfg.Alerting.Channels = []string{"telegram"}
	cfg.Planner.TargetLiquidityUSD = 100_000
	return cfg
}

// fakeLedger serves a fixed holder population with optional fault injection.
type fakeLedger struct {
	total        int
	pageSize     int
	asset        ledger.Asset
	historyCount int
	historyErr   error
	failPage     int
	// whaleBalance, when set, replaces the top holder's balance.
	whaleBalance int64
}

func (f *fakeLedger) ListHolders(ctx context.Context, assetID string, page, count int) ([]ledger.HolderRow, error) {
	if f.failPage != 0 && page == f.failPage {
		return nil, errors.New("upstream timeout")
	}
	start := (page - 1) * count
	if start >= f.total {
		return nil, nil
	}
	end := start + count
	if end > f.total {
		end = f.total
	}
	rows := make([]ledger.HolderRow, 0, end-start)
	for i := start; i < end; i++ {
		balance := int64(f.total - i)
		if i == 0 && f.whaleBalance > 0 {
			balance = f.whaleBalance
		}
		rows = append(rows, ledger.HolderRow{
			Address:  fmt.Sprintf("addr_%06d", i),
			Quantity: decimal.NewFromInt(balance),
		})
	}
	return rows, nil
}

func (f *fakeLedger) GetAsset(ctx context.Context, assetID string) (ledger.Asset, error) {
	if f.asset.AssetID == "" {
		f.asset.AssetID = assetID
	}
	return f.asset, nil
}

func (f *fakeLedger) CountHistoryEvents(ctx context.Context, assetID string, count int) (int, error) {
	if f.historyErr != nil {
		return 0, f.historyErr
	}
	return f.historyCount, nil
}

type fakeMarket struct {
	data fetcher.MarketData
	err  error
}

func (f *fakeMarket) FetchMarketData(ctx context.Context, assetID string) (fetcher.MarketData, error) {
	if f.err != nil {
		return fetcher.MarketData{}, f.err
	}
	return f.data, nil
}

// memoryStore implements ReportStore and AlertStore in memory.
type memoryStore struct {
	mu      sync.Mutex
	reports []storage.AnalysisReport
	alerts  []storage.AlertRecord
}

func (m *memoryStore) UpsertReport(ctx context.Context, report storage.AnalysisReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *memoryStore) ListReportsBetween(ctx context.Context, assetID string, from, to time.Time) ([]storage.AnalysisReport, error) {
	return m.reports, nil
}

func (m *memoryStore) ListRecentReports(ctx context.Context, limit int) ([]storage.AnalysisReport, error) {
	return m.reports, nil
}

func (m *memoryStore) CountReports(ctx context.Context) (int64, error) {
	return int64(len(m.reports)), nil
}

func (m *memoryStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert.ID = int64(len(m.alerts) + 1)
	m.alerts = append(m.alerts, alert)
	return alert, nil
}

func (m *memoryStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	return m.alerts, nil
}

func (m *memoryStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return nil
}

func healthyLedger() *fakeLedger {
	return &fakeLedger{
		total:    1_450,
		pageSize: 100,
		asset: ledger.Asset{
			AssetID: "asset1",
			Supply:  decimal.NewFromInt(10_000_000),
			Metadata: ledger.Metadata{
				Name:        "Token",
				Description: "A token",
				Ticker:      "TKN",
				Image:       "ipfs://img",
				Website:     "https://example.com",
			},
		},
		historyCount: 120,
	}
}

func marketWith(liquidity, volume float64) *fakeMarket {
	return &fakeMarket{data: fetcher.MarketData{
		LiquidityUSD: &liquidity,
		Volume24hUSD: &volume,
		Source:       "test",
	}}
}

func TestAnalyzeAssetFullPipeline(t *testing.T) {
	planner := liquidity.NewPlanner("minswap", "sundaeswap")
	svc := New(testConfig(), nil, healthyLedger(), marketWith(60_000, 8_000),
		nil, planner, nil, nil, nil, testLogger())

	bucket := time.Now().UTC().Truncate(time.Hour)
	report, err := svc.AnalyzeAsset(context.Background(), "asset1", bucket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Census.TotalHolders != 1_450 {
		t.Fatalf("expected 1450 holders, got %d", report.Census.TotalHolders)
	}
	if report.Census.Partial {
		t.Fatal("healthy source must not be partial")
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", report.Warnings)
	}
	if !report.Metrics.MarketDataAvailable {
		t.Fatal("market data must be flagged available")
	}
	if report.Score.Grade == "" || report.Score.TotalScore <= 0 {
		t.Fatalf("expected a scored report, got %+v", report.Score)
	}
	if len(report.Gaps) == 0 {
		t.Fatal("a $60k asset must gap against Binance")
	}
	if len(report.RecommendedVenues) == 0 {
		t.Fatal("expected venue recommendations")
	}
	if report.ComplianceRatePct <= 0 || report.ComplianceRatePct >= 100 {
		t.Fatalf("expected a mid-range compliance rate, got %f", report.ComplianceRatePct)
	}
	if report.Plan == nil {
		t.Fatal("planner is composed in; report must carry a plan")
	}
	if report.Plan.GapUSD != 40_000 {
		t.Fatalf("expected a $40k liquidity gap, got %f", report.Plan.GapUSD)
	}
	if len(report.Trace) == 0 {
		t.Fatal("expected a populated audit trail")
	}

	stages := make(map[string]bool)
	for _, event := range report.Trace {
		stages[event.Stage] = true
	}
	for _, stage := range []string{"asset", "census", "distribution", "market", "score", "requirements", "plan"} {
		if !stages[stage] {
			t.Fatalf("audit trail missing stage %q: %v", stage, report.Trace)
		}
	}
}

func TestAnalyzeAssetWithoutOptionalCapabilities(t *testing.T) {
	svc := New(testConfig(), nil, healthyLedger(), &fakeMarket{},
		nil, nil, nil, nil, nil, testLogger())

	report, err := svc.AnalyzeAsset(context.Background(), "asset1", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Plan != nil {
		t.Fatal("no planner composed; report must not carry a plan")
	}
	if report.Metrics.MarketDataAvailable {
		t.Fatal("empty market data must flip to the on-chain-only regime")
	}
	if report.Score.Narrative != nil {
		t.Fatal("no narrative generator ran; Narrative must be nil")
	}
}

func TestAnalyzeAssetDegradedCensus(t *testing.T) {
	src := healthyLedger()
	src.failPage = 10 // fails during the exponential probe

	svc := New(testConfig(), nil, src, marketWith(60_000, 8_000),
		nil, nil, nil, nil, nil, testLogger())

	report, err := svc.AnalyzeAsset(context.Background(), "asset1", time.Now().UTC())
	if err != nil {
		t.Fatalf("degraded census must not fail the analysis: %v", err)
	}
	if !report.Census.Partial {
		t.Fatal("expected a partial census")
	}
	if len(report.Warnings) == 0 {
		t.Fatal("partial census must be surfaced as a warning")
	}
	if report.Census.TotalHolders != 100 {
		t.Fatalf("expected the confirmed lower bound 100, got %d", report.Census.TotalHolders)
	}
}

func TestAnalyzeAssetFirstPageFailureIsFatal(t *testing.T) {
	src := healthyLedger()
	src.failPage = 1

	svc := New(testConfig(), nil, src, marketWith(60_000, 8_000),
		nil, nil, nil, nil, nil, testLogger())

	_, err := svc.AnalyzeAsset(context.Background(), "asset1", time.Now().UTC())
	if !errors.Is(err, census.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAnalyzeAssetHistoryFailureUsesDefaultRisk(t *testing.T) {
	src := healthyLedger()
	src.historyErr = errors.New("history endpoint down")

	svc := New(testConfig(), nil, src, marketWith(60_000, 8_000),
		nil, nil, nil, nil, nil, testLogger())

	report, err := svc.AnalyzeAsset(context.Background(), "asset1", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Metrics.ContractRiskScore != 75 {
		t.Fatalf("expected the default risk score 75, got %f", report.Metrics.ContractRiskScore)
	}
	if len(report.Warnings) == 0 {
		t.Fatal("history failure must be surfaced as a warning")
	}
}

func TestProcessAssetPersistsAndAlerts(t *testing.T) {
	store := &memoryStore{}
	notifier := &fakeNotifier{}

	// 1450 holders, $60k liquidity, $8k volume: KuCoin and MEXC numeric
	// thresholds are met, so a listing_ready alert fires.
	svc := New(testConfig(), nil, healthyLedger(), marketWith(60_000, 8_000),
		nil, nil, store, store, notifier, testLogger())

	bucket := time.Now().UTC().Truncate(time.Hour)
	report, err := svc.ProcessAsset(context.Background(), "asset1", bucket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected 1 persisted report, got %d", len(store.reports))
	}
	stored := store.reports[0]
	if stored.AssetID != "asset1" || stored.Status != "complete" {
		t.Fatalf("unexpected stored report %+v", stored)
	}
	if len(stored.Payload) == 0 {
		t.Fatal("stored report must carry the full JSON payload")
	}
	if stored.TotalScore != report.Score.TotalScore {
		t.Fatalf("flat column diverges from the report: %f vs %f", stored.TotalScore, report.Score.TotalScore)
	}

	kinds := make(map[string]bool)
	for _, note := range notifier.notes {
		kinds[note.Kind] = true
	}
	if !kinds[alerting.KindListingReady] {
		t.Fatalf("expected a listing_ready alert, got %v", kinds)
	}
	if len(store.alerts) != len(notifier.notes) {
		t.Fatalf("alert records and notifications diverge: %d vs %d", len(store.alerts), len(notifier.notes))
	}
}

func TestEmitAlertsConcentrationHigh(t *testing.T) {
	notifier := &fakeNotifier{}

	// One whale owning most of the float pushes top-10 over the ceiling.
	src := healthyLedger()
	src.total = 600
	src.whaleBalance = 1_000_000
	src.asset.Supply = decimal.NewFromInt(0) // fall back to the visible sum

	svc := New(testConfig(), nil, src, marketWith(5_000, 100),
		nil, nil, nil, nil, notifier, testLogger())

	report, err := svc.ProcessAsset(context.Background(), "asset1", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := make(map[string]bool)
	for _, note := range notifier.notes {
		kinds[note.Kind] = true
	}

	if report.Snapshot.Top10ConcentrationPct <= 40 {
		t.Fatalf("whale-dominated float should exceed the ceiling, got %.1f%%", report.Snapshot.Top10ConcentrationPct)
	}
	if !kinds[alerting.KindConcentrationHigh] {
		t.Fatalf("expected a concentration_high alert at %.1f%%, got %v", report.Snapshot.Top10ConcentrationPct, kinds)
	}
	if !kinds[alerting.KindLiquidityLow] {
		t.Fatalf("$5k liquidity is below every venue floor, got %v", kinds)
	}
	if kinds[alerting.KindListingReady] {
		t.Fatal("an illiquid asset must not be flagged listing ready")
	}
}

func TestEmitAlertsDisabled(t *testing.T) {
	notifier := &fakeNotifier{}

	cfg := testConfig()
	cfg.Alerting.Enabled = false

	svc := New(cfg, nil, healthyLedger(), marketWith(60_000, 8_000),
		nil, nil, nil, nil, notifier, testLogger())

	if _, err := svc.ProcessAsset(context.Background(), "asset1", time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("alerting disabled; expected no notifications, got %d", len(notifier.notes))
	}
}

func TestRunRequiresAssets(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.Assets = nil

	svc := New(cfg, nil, healthyLedger(), &fakeMarket{}, nil, nil, nil, nil, nil, testLogger())
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("Run without a scheduler and assets must fail")
	}
}
