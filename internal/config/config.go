package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"listing-radar/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Dex      DexConfig      `mapstructure:"dex"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// MonitorConfig governs the analysis cadence.
type MonitorConfig struct {
	Assets          []string      `mapstructure:"assets"`
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// LedgerConfig covers the paginated ledger indexer.
type LedgerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ProjectKey     string        `mapstructure:"project_key"`
	PageSize       int           `mapstructure:"page_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// DexConfig captures market-data venue connectivity.
type DexConfig struct {
	AggregatorURL  string        `mapstructure:"aggregator_url"`
	PoolsURL       string        `mapstructure:"pools_url"`
	QuotePriceUSD  float64       `mapstructure:"quote_price_usd"`
	OnlyVerified   bool          `mapstructure:"only_verified"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ChainConfig covers the optional EVM-side supply check for a bridged
// deployment of the asset.
type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	TokenAddress   string        `mapstructure:"token_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PlannerConfig enables the optional liquidity-plan capability.
type PlannerConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	PrimaryVenue       string  `mapstructure:"primary_venue"`
	SecondaryVenue     string  `mapstructure:"secondary_venue"`
	TargetLiquidityUSD float64 `mapstructure:"target_liquidity_usd"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	ConcentrationPct float64        `mapstructure:"concentration_pct"`
	Channels         []string       `mapstructure:"channels"`
	Telegram         TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "listingradar")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("monitor.interval", "5m")
	v.SetDefault("monitor.align_to_bucket", true)
	v.SetDefault("monitor.advisory_lock_key", int64(0x6c697261))
	v.SetDefault("monitor.startup_delay", "0s")

	v.SetDefault("ledger.page_size", 100)
	v.SetDefault("ledger.request_timeout", "15s")
	v.SetDefault("ledger.rate_limit", 10.0)
	v.SetDefault("ledger.burst", 5)
	v.SetDefault("ledger.user_agent", "listingradar/1.0")

	v.SetDefault("dex.quote_price_usd", 0.4)
	v.SetDefault("dex.only_verified", false)
	v.SetDefault("dex.request_timeout", "10s")
	v.SetDefault("dex.user_agent", "listingradar/1.0")

	v.SetDefault("chain.request_timeout", "10s")

	v.SetDefault("planner.enabled", false)
	v.SetDefault("planner.primary_venue", "minswap")
	v.SetDefault("planner.secondary_venue", "sundaeswap")
	v.SetDefault("planner.target_liquidity_usd", 100000.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.concentration_pct", 40.0)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Ledger.PageSize <= 0 {
		return fmt.Errorf("ledger.page_size must be greater than zero")
	}
	if c.Alerting.ConcentrationPct < 0 || c.Alerting.ConcentrationPct > 100 {
		return fmt.Errorf("alerting.concentration_pct must be within [0,100]")
	}
	if c.Planner.Enabled && c.Planner.TargetLiquidityUSD <= 0 {
		return fmt.Errorf("planner.target_liquidity_usd must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
