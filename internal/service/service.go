package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"listing-radar/internal/alerting"
	"listing-radar/internal/census"
	"listing-radar/internal/config"
	"listing-radar/internal/distribution"
	"listing-radar/internal/fetcher"
	"listing-radar/internal/ledger"
	"listing-radar/internal/liquidity"
	"listing-radar/internal/scheduler"
	"listing-radar/internal/scoring"
	"listing-radar/internal/storage"
)

// LedgerSource is the slice of the ledger client the service depends on.
type LedgerSource interface {
	ListHolders(ctx context.Context, assetID string, page, count int) ([]ledger.HolderRow, error)
	GetAsset(ctx context.Context, assetID string) (ledger.Asset, error)
	CountHistoryEvents(ctx context.Context, assetID string, count int) (int, error)
}

// SupplyReader is the optional on-chain supply check for a bridged
// deployment of the asset.
type SupplyReader interface {
	FetchSupply(ctx context.Context) (decimal.Decimal, uint64, error)
}

// TraceEvent is one entry of the per-analysis audit trail. The trail is
// built inside a single Analyze call and returned on the report; nothing
// accumulates on the service between requests.
type TraceEvent struct {
	At     time.Time `json:"at"`
	Stage  string    `json:"stage"`
	Detail string    `json:"detail"`
}

// CensusSummary condenses the holder-count discovery outcome for reporting.
type CensusSummary struct {
	TotalHolders  int  `json:"total_holders"`
	PagesExamined int  `json:"pages_examined"`
	Partial       bool `json:"partial"`
}

// Report is the full outcome of one asset analysis.
type Report struct {
	AssetID           string                 `json:"asset_id"`
	Bucket            time.Time              `json:"bucket"`
	Asset             ledger.Asset           `json:"asset"`
	Census            CensusSummary          `json:"census"`
	Snapshot          distribution.Snapshot  `json:"snapshot"`
	Metrics           scoring.MetricsBundle  `json:"metrics"`
	Score             scoring.ReadinessScore `json:"score"`
	Gaps              []scoring.Gap          `json:"gaps"`
	RecommendedVenues []string               `json:"recommended_venues"`
	ComplianceRatePct float64                `json:"compliance_rate_pct"`
	NextSteps         []string               `json:"next_steps"`
	Plan              *liquidity.Plan        `json:"plan,omitempty"`
	Warnings          []string               `json:"warnings,omitempty"`
	Trace             []TraceEvent           `json:"trace"`
}

// Service orchestrates holder census, distribution analysis, scoring,
// persistence, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	ledger    LedgerSource
	market    fetcher.MarketDataFetcher
	supply    SupplyReader       // optional capability, nil when not composed
	planner   *liquidity.Planner // optional capability, nil when not composed
	store     storage.ReportStore
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	assets        []string
	venues        []scoring.VenueThreshold
	pageSize      int
	alertsOn      bool
	concThreshold float64
	channels      []string
	planTargetUSD float64
	locker        storage.AdvisoryLocker
	lockKey       int64
}

// New constructs the analysis service. supply and planner are optional
// capabilities: pass nil to compose the service without them. The
// availability decision is made here, once, not at call sites.
func New(cfg *config.Config, sched *scheduler.Scheduler, ledgerSource LedgerSource, market fetcher.MarketDataFetcher, supply SupplyReader, planner *liquidity.Planner, store storage.ReportStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	concentration := cfg.Alerting.ConcentrationPct
	if concentration <= 0 {
		concentration = 40
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:     sched,
		ledger:        ledgerSource,
		market:        market,
		supply:        supply,
		planner:       planner,
		store:         store,
		alerts:        alertStore,
		notifier:      notifier,
		logger:        logger.With().Str("component", "service").Logger(),
		assets:        cfg.Monitor.Assets,
		venues:        scoring.DefaultVenues(),
		pageSize:      cfg.Ledger.PageSize,
		alertsOn:      cfg.Alerting.Enabled,
		concThreshold: concentration,
		channels:      cfg.Alerting.Channels,
		planTargetUSD: cfg.Planner.TargetLiquidityUSD,
		locker:        locker,
		lockKey:       cfg.Monitor.AdvisoryLockKey,
	}
}

// Run begins the aligned analysis loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.assets) == 0 {
		return fmt.Errorf("monitor.assets is empty")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket analyses every monitored asset for one time bucket.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	var firstErr error
	for _, assetID := range s.assets {
		if _, err := s.ProcessAsset(ctx, assetID, bucket); err != nil {
			s.logger.Error().Err(err).Str("asset", assetID).Time("bucket", bucket).Msg("asset analysis failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ProcessAsset analyses a single asset, persists the report, and dispatches
// any alerts it triggers.
func (s *Service) ProcessAsset(ctx context.Context, assetID string, bucket time.Time) (*Report, error) {
	report, err := s.AnalyzeAsset(ctx, assetID, bucket)
	if err != nil {
		return nil, err
	}
	s.persistReport(ctx, report)
	s.emitAlerts(ctx, report)
	return report, nil
}

// AnalyzeAsset runs the full pipeline for one asset. A failed census on the
// very first page aborts the analysis; every later degradation is recorded
// as a warning on the report instead, favouring a usable pessimistic score
// over failing outright.
func (s *Service) AnalyzeAsset(ctx context.Context, assetID string, bucket time.Time) (*Report, error) {
	report := &Report{AssetID: assetID, Bucket: bucket}
	trace := func(stage, format string, args ...any) {
		report.Trace = append(report.Trace, TraceEvent{
			At:     time.Now().UTC(),
			Stage:  stage,
			Detail: fmt.Sprintf(format, args...),
		})
	}
	warn := func(format string, args ...any) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(format, args...))
	}

	asset, err := s.ledger.GetAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("fetch asset info: %w", err)
	}
	report.Asset = asset
	trace("asset", "ledger supply %s", asset.Supply.String())

	probe := func(ctx context.Context, page int) ([]ledger.HolderRow, error) {
		return s.ledger.ListHolders(ctx, assetID, page, s.pageSize)
	}
	result, err := census.Estimate(ctx, probe, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("holder census: %w", err)
	}
	report.Census = CensusSummary{
		TotalHolders:  result.TotalHolders,
		PagesExamined: result.PagesExamined,
		Partial:       result.Partial,
	}
	trace("census", "%d holders in %d page fetches", result.TotalHolders, result.PagesExamined)
	if result.Partial {
		warn("holder census degraded mid-search; total %d is a lower bound", result.TotalHolders)
	}

	supply := asset.Supply
	if s.supply != nil {
		chainSupply, block, err := s.supply.FetchSupply(ctx)
		if err != nil {
			warn("on-chain supply check unavailable: %v", err)
		} else {
			supply = chainSupply
			trace("supply", "on-chain supply %s at block %d", chainSupply.String(), block)
		}
	}

	topRows := result.TopHolders
	if len(topRows) > 50 {
		topRows = topRows[:50]
	}
	report.Snapshot = distribution.Analyze(topRows, result.TotalHolders, supply)
	trace("distribution", "top10 %.2f%% top50 %.2f%% gini %.3f",
		report.Snapshot.Top10ConcentrationPct, report.Snapshot.Top50ConcentrationPct, report.Snapshot.GiniCoefficient)

	marketData, err := s.market.FetchMarketData(ctx, assetID)
	if err != nil {
		warn("market data fetch failed: %v", err)
		marketData = fetcher.MarketData{}
	}
	if marketData.Available() {
		trace("market", "liquidity $%.0f volume $%.0f via %s", *marketData.LiquidityUSD, *marketData.Volume24hUSD, marketData.Source)
	} else {
		trace("market", "no market data; scoring on-chain only")
	}

	metadataScore := scoring.MetadataScore(asset.Metadata)

	riskScore := scoring.DefaultRiskScore
	if events, err := s.ledger.CountHistoryEvents(ctx, assetID, 100); err != nil {
		warn("asset history unavailable, assuming default risk score: %v", err)
	} else {
		riskScore = scoring.HistoryRiskScore(events)
	}

	report.Metrics = scoring.MetricsBundle{
		TotalSupply:           supply,
		CirculatingSupply:     supply,
		HolderCount:           report.Snapshot.TotalHolders,
		Top10ConcentrationPct: report.Snapshot.Top10ConcentrationPct,
		Top50ConcentrationPct: report.Snapshot.Top50ConcentrationPct,
		LiquidityUSD:          marketData.LiquidityUSD,
		Volume24hUSD:          marketData.Volume24hUSD,
		MetadataScore:         metadataScore,
		ContractRiskScore:     riskScore,
		MarketDataAvailable:   marketData.Available(),
	}

	report.Score = scoring.Score(report.Metrics)
	trace("score", "total %.1f grade %s", report.Score.TotalScore, report.Score.Grade)

	report.Gaps = scoring.FindGaps(report.Metrics, s.venues)
	report.RecommendedVenues = scoring.RecommendVenues(report.Metrics, s.venues)
	report.ComplianceRatePct = scoring.ComplianceRate(report.Metrics, s.venues)
	report.NextSteps = nextSteps(report.Gaps)
	trace("requirements", "%d gaps, %.1f%% compliant", len(report.Gaps), report.ComplianceRatePct)

	if s.planner != nil {
		current := 0.0
		if marketData.LiquidityUSD != nil {
			current = *marketData.LiquidityUSD
		}
		plan := s.planner.BuildPlan(current, s.planTargetUSD)
		report.Plan = &plan
		trace("plan", "liquidity gap $%.0f across %d actions", plan.GapUSD, len(plan.Actions))
	}

	return report, nil
}

// nextSteps renders an ordered action list from the gap analysis: the top
// high-priority items first, then venue process items, then medium ones.
func nextSteps(gaps []scoring.Gap) []string {
	var steps []string

	high := 0
	for _, gap := range gaps {
		if gap.Priority != scoring.PriorityHigh || high >= 3 {
			continue
		}
		steps = append(steps, fmt.Sprintf("[HIGH] %s", describeGap(gap)))
		high++
	}

	process := 0
	for _, gap := range gaps {
		if process >= 2 {
			break
		}
		if gap.Metric == scoring.MetricAudit || gap.Metric == scoring.MetricKYC {
			steps = append(steps, fmt.Sprintf("[EXCHANGE] Complete the %s process for %s", gap.Metric, gap.Venue))
			process++
		}
	}

	medium := 0
	for _, gap := range gaps {
		if gap.Priority != scoring.PriorityMedium || medium >= 2 {
			continue
		}
		steps = append(steps, fmt.Sprintf("[MEDIUM] %s", describeGap(gap)))
		medium++
	}

	return steps
}

func describeGap(gap scoring.Gap) string {
	switch gap.Metric {
	case scoring.MetricLiquidity:
		return fmt.Sprintf("%s: add $%.0f of DEX liquidity", gap.Venue, gap.Shortfall)
	case scoring.MetricVolume:
		return fmt.Sprintf("%s: grow 24h volume by $%.0f", gap.Venue, gap.Shortfall)
	case scoring.MetricHolders:
		return fmt.Sprintf("%s: grow the holder base by %.0f addresses", gap.Venue, gap.Shortfall)
	case scoring.MetricConcentration:
		return fmt.Sprintf("%s: reduce top-10 concentration by %.1f points", gap.Venue, gap.Shortfall)
	case scoring.MetricMetadata:
		return fmt.Sprintf("%s: complete token metadata (+%.0f points needed)", gap.Venue, gap.Shortfall)
	case scoring.MetricAudit:
		return fmt.Sprintf("%s: commission a security audit", gap.Venue)
	case scoring.MetricKYC:
		return fmt.Sprintf("%s: complete team KYC", gap.Venue)
	default:
		return fmt.Sprintf("%s: resolve %s shortfall %.1f", gap.Venue, gap.Metric, gap.Shortfall)
	}
}

func (s *Service) persistReport(ctx context.Context, report *Report) {
	if s.store == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error().Err(err).Str("asset", report.AssetID).Msg("failed to marshal report payload")
	}

	status := "complete"
	if report.Census.Partial {
		status = "partial"
	}

	stored := storage.AnalysisReport{
		AssetID:       report.AssetID,
		Bucket:        report.Bucket,
		TotalHolders:  report.Snapshot.TotalHolders,
		PagesExamined: report.Census.PagesExamined,
		PartialCensus: report.Census.Partial,
		Top10Pct:      report.Snapshot.Top10ConcentrationPct,
		Top50Pct:      report.Snapshot.Top50ConcentrationPct,
		Gini:          report.Snapshot.GiniCoefficient,
		LiquidityUSD:  report.Metrics.LiquidityUSD,
		Volume24hUSD:  report.Metrics.Volume24hUSD,
		MetadataScore: report.Score.Metadata,
		SecurityScore: report.Score.Security,
		TotalScore:    report.Score.TotalScore,
		Grade:         report.Score.Grade,
		MarketData:    report.Metrics.MarketDataAvailable,
		Status:        status,
		Warnings:      report.Warnings,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.UpsertReport(ctx, stored); err != nil {
		s.logger.Error().Err(err).Str("asset", report.AssetID).Time("bucket", report.Bucket).Msg("failed to upsert report")
		return
	}

	s.logger.Info().Str("asset", report.AssetID).Time("bucket", report.Bucket).
		Int("holders", report.Snapshot.TotalHolders).
		Str("grade", report.Score.Grade).
		Msg("report recorded")
}

func (s *Service) emitAlerts(ctx context.Context, report *Report) {
	if !s.alertsOn {
		return
	}

	for _, kind := range s.evaluateAlerts(report) {
		note := alerting.Notification{
			Bucket:       report.Bucket,
			AssetID:      report.AssetID,
			Kind:         kind.kind,
			Grade:        report.Score.Grade,
			TotalScore:   report.Score.TotalScore,
			Top10Pct:     report.Snapshot.Top10ConcentrationPct,
			HolderCount:  report.Snapshot.TotalHolders,
			LiquidityUSD: report.Metrics.LiquidityUSD,
			Channels:     s.channels,
			Detail:       kind.detail,
		}

		if s.alerts != nil {
			record := storage.AlertRecord{
				AssetID:  report.AssetID,
				Bucket:   report.Bucket,
				Kind:     kind.kind,
				Message:  kind.detail,
				Channels: s.channels,
			}
			if _, err := s.alerts.InsertAlert(ctx, record); err != nil {
				s.logger.Error().Err(err).Str("asset", report.AssetID).Str("kind", kind.kind).Msg("failed to persist alert record")
			}
		}

		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, note); err != nil {
				s.logger.Error().Err(err).Str("asset", report.AssetID).Str("kind", kind.kind).Msg("failed to dispatch alert")
			}
		}
	}
}

type alertSignal struct {
	kind   string
	detail string
}

// evaluateAlerts checks the report against the venue table and the
// concentration ceiling.
func (s *Service) evaluateAlerts(report *Report) []alertSignal {
	var signals []alertSignal

	liquidity, volume := 0.0, 0.0
	hasMarket := report.Metrics.MarketDataAvailable
	if hasMarket {
		liquidity = *report.Metrics.LiquidityUSD
		volume = *report.Metrics.Volume24hUSD
	}

	var ready []string
	lowestFloor := 0.0
	for i, venue := range s.venues {
		if i == 0 || venue.MinLiquidityUSD < lowestFloor {
			lowestFloor = venue.MinLiquidityUSD
		}
		if !hasMarket {
			continue
		}
		if liquidity >= venue.MinLiquidityUSD &&
			report.Snapshot.TotalHolders >= venue.MinHolders &&
			volume >= venue.MinVolume24hUSD {
			ready = append(ready, venue.Venue)
		}
	}

	if len(ready) > 0 {
		signals = append(signals, alertSignal{
			kind:   alerting.KindListingReady,
			detail: fmt.Sprintf("numeric listing thresholds met for: %v", ready),
		})
	}

	if hasMarket && liquidity < lowestFloor {
		signals = append(signals, alertSignal{
			kind:   alerting.KindLiquidityLow,
			detail: fmt.Sprintf("liquidity $%.0f is below the lowest venue floor $%.0f", liquidity, lowestFloor),
		})
	}

	if report.Snapshot.Top10ConcentrationPct > s.concThreshold {
		signals = append(signals, alertSignal{
			kind:   alerting.KindConcentrationHigh,
			detail: fmt.Sprintf("top-10 holders control %.1f%% of supply (ceiling %.1f%%)", report.Snapshot.Top10ConcentrationPct, s.concThreshold),
		})
	}

	return signals
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
