package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"listing-radar/internal/alerting"
	"listing-radar/internal/chain"
	"listing-radar/internal/config"
	"listing-radar/internal/fetcher"
	"listing-radar/internal/ledger"
	"listing-radar/internal/liquidity"
	"listing-radar/internal/scheduler"
	"listing-radar/internal/service"
	"listing-radar/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLedger() *ledger.Client {
	return ledger.NewClient(ledger.Options{
		BaseURL:    a.Config.Ledger.BaseURL,
		ProjectKey: a.Config.Ledger.ProjectKey,
		Timeout:    a.Config.Ledger.RequestTimeout,
		UserAgent:  a.Config.Ledger.UserAgent,
		RateLimit:  a.Config.Ledger.RateLimit,
		Burst:      a.Config.Ledger.Burst,
	}, a.Logger)
}

func (a *App) newMarketFetcher() fetcher.MarketDataFetcher {
	return fetcher.NewDex(fetcher.DexOptions{
		AggregatorURL: a.Config.Dex.AggregatorURL,
		PoolsURL:      a.Config.Dex.PoolsURL,
		QuotePriceUSD: a.Config.Dex.QuotePriceUSD,
		OnlyVerified:  a.Config.Dex.OnlyVerified,
		Timeout:       a.Config.Dex.RequestTimeout,
		UserAgent:     a.Config.Dex.UserAgent,
	}, a.Logger)
}

// newSupplyReader returns nil when no bridged deployment is configured.
func (a *App) newSupplyReader() service.SupplyReader {
	if a.Config.Chain.RPCURL == "" || a.Config.Chain.TokenAddress == "" {
		return nil
	}
	return chain.NewSupplyReader(chain.Options{
		RPCURL:       a.Config.Chain.RPCURL,
		TokenAddress: a.Config.Chain.TokenAddress,
		Timeout:      a.Config.Chain.RequestTimeout,
	}, a.Logger)
}

// newPlanner returns nil when liquidity planning is disabled.
func (a *App) newPlanner() *liquidity.Planner {
	if !a.Config.Planner.Enabled {
		return nil
	}
	return liquidity.NewPlanner(a.Config.Planner.PrimaryVenue, a.Config.Planner.SecondaryVenue)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}

	if path := a.Config.Database.MigrationsPath; path != "" {
		if err := store.ApplyMigrations(ctx, path); err != nil {
			closer()
			return nil, nil, err
		}
		a.Logger.Debug().Str("path", path).Msg("schema migrations applied")
	}

	return store, closer, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.Interval,
		AlignToStart: a.Config.Monitor.AlignToBucket,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, a.Logger)

	var reportStore storage.ReportStore
	var alertStore storage.AlertStore
	if store != nil {
		reportStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, a.newLedger(), a.newMarketFetcher(),
		a.newSupplyReader(), a.newPlanner(), reportStore, alertStore, a.newNotifier(), a.Logger)

	a.Logger.Info().Strs("assets", a.Config.Monitor.Assets).Msg("starting listing readiness monitor")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("listing readiness monitor stopped")
	return nil
}

// AnalyzeOptions configure a one-shot analysis.
type AnalyzeOptions struct {
	AssetID string
	JSON    bool
}

// ExportOptions hold parameters for exporting stored reports.
type ExportOptions struct {
	AssetID   string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
