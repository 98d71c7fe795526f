// Package config loads and validates the core's configuration surface:
// risk limits, scanner thresholds, executor deadlines, allocation weights
// and per-venue enablement. Invalid configuration fails the process at
// startup, never mid-trade.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigError reports a missing or invalid configuration value.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// ScannerConfig controls spread detection.
type ScannerConfig struct {
	MinSpreadBps     float64       `mapstructure:"min_spread_bps"`
	RoundTripCostBps float64       `mapstructure:"round_trip_cost_bps"`
	MaxQuoteAgeMS    int64         `mapstructure:"max_quote_age_ms"`
	MaxNotionalUSD   float64       `mapstructure:"max_notional_usd"`
	MinNotionalUSD   float64       `mapstructure:"min_notional_usd"`
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
}

// RiskConfig holds the hard limits the risk gate enforces.
type RiskConfig struct {
	MaxArbNotionalUSD     float64 `mapstructure:"max_arb_notional_usd"`
	MaxBookExposurePct    float64 `mapstructure:"max_book_exposure_pct"`
	MaxAggregateArbUSD    float64 `mapstructure:"max_aggregate_arb_usd"`
	MaxVenueExposurePct   float64 `mapstructure:"max_venue_exposure_pct"`
	MaxClusterExposurePct float64 `mapstructure:"max_cluster_exposure_pct"`
	BreakerMaxLatencyMS   int64   `mapstructure:"breaker_max_latency_ms"`
	BreakerMaxErrorRate   float64 `mapstructure:"breaker_max_error_rate"`
}

// ExecutorConfig controls leg placement and unwind behavior.
type ExecutorConfig struct {
	LegTimeout        time.Duration `mapstructure:"leg_timeout"`
	UnwindMaxAttempts int           `mapstructure:"unwind_max_attempts"`
	ReconnectBase     time.Duration `mapstructure:"reconnect_base"`
	ReconnectCap      time.Duration `mapstructure:"reconnect_cap"`
	ReconnectRetries  int           `mapstructure:"reconnect_retries"`
}

// AllocationConfig drives the capital allocator.
type AllocationConfig struct {
	BaseWeights       map[string]float64            `mapstructure:"base_weights"`
	MaxStrategyWeight float64                       `mapstructure:"max_strategy_weight"`
	MinStrategyWeight float64                       `mapstructure:"min_strategy_weight"`
	DrawdownThrottle  float64                       `mapstructure:"drawdown_throttle"`
	SharpeFloor       float64                       `mapstructure:"sharpe_floor"`
	CooldownMinutes   int                           `mapstructure:"cooldown_minutes"`
	RiskBiasScalars   map[string]map[string]float64 `mapstructure:"risk_bias_scalars"`
}

// VenueConfig holds per-venue enablement and credentials.
type VenueConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// StorageConfig points at the embedded analytics/audit store.
type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BookConfig declares a capital book to register at startup.
type BookConfig struct {
	Name             string  `mapstructure:"name"`
	Type             string  `mapstructure:"type"`
	CapitalUSD       float64 `mapstructure:"capital_usd"`
	MaxDrawdownLimit float64 `mapstructure:"max_drawdown_limit"`
	RiskTier         int     `mapstructure:"risk_tier"`
}

// Config is the root configuration document.
type Config struct {
	LogLevel    string           `mapstructure:"log_level"`
	Scanner     ScannerConfig    `mapstructure:"scanner"`
	Risk        RiskConfig       `mapstructure:"risk"`
	Executor    ExecutorConfig   `mapstructure:"executor"`
	Allocation  AllocationConfig `mapstructure:"allocation"`
	Venues      []VenueConfig    `mapstructure:"venues"`
	Books       []BookConfig     `mapstructure:"books"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Instruments []string         `mapstructure:"instruments"`
}

// Load reads configuration from the given YAML file (plus ARBCORE_*
// environment overrides), applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ARBCORE")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("scanner.min_spread_bps", 10.0)
	v.SetDefault("scanner.round_trip_cost_bps", 4.0)
	v.SetDefault("scanner.max_quote_age_ms", 2000)
	v.SetDefault("scanner.max_notional_usd", 25000.0)
	v.SetDefault("scanner.min_notional_usd", 100.0)
	v.SetDefault("scanner.scan_interval", 5*time.Second)

	v.SetDefault("risk.max_arb_notional_usd", 50000.0)
	v.SetDefault("risk.max_book_exposure_pct", 0.8)
	v.SetDefault("risk.max_aggregate_arb_usd", 250000.0)
	v.SetDefault("risk.max_venue_exposure_pct", 0.4)
	v.SetDefault("risk.max_cluster_exposure_pct", 0.5)
	v.SetDefault("risk.breaker_max_latency_ms", 1500)
	v.SetDefault("risk.breaker_max_error_rate", 0.1)

	v.SetDefault("executor.leg_timeout", 10*time.Second)
	v.SetDefault("executor.unwind_max_attempts", 3)
	v.SetDefault("executor.reconnect_base", 2*time.Second)
	v.SetDefault("executor.reconnect_cap", 16*time.Second)
	v.SetDefault("executor.reconnect_retries", 8)

	v.SetDefault("allocation.max_strategy_weight", 0.4)
	v.SetDefault("allocation.min_strategy_weight", 0.02)
	v.SetDefault("allocation.drawdown_throttle", 0.15)
	v.SetDefault("allocation.sharpe_floor", 0.5)
	v.SetDefault("allocation.cooldown_minutes", 60)

	v.SetDefault("storage.dsn", "file:arbcore.db?cache=shared")
}

// Validate checks limits for internal consistency. The first violation is
// returned as a ConfigError.
func (c *Config) Validate() error {
	if c.Scanner.MinSpreadBps <= 0 {
		return &ConfigError{Field: "scanner.min_spread_bps", Msg: "must be positive"}
	}
	if c.Scanner.MaxQuoteAgeMS <= 0 {
		return &ConfigError{Field: "scanner.max_quote_age_ms", Msg: "must be positive"}
	}
	if c.Scanner.MaxNotionalUSD <= 0 {
		return &ConfigError{Field: "scanner.max_notional_usd", Msg: "must be positive"}
	}
	if c.Risk.MaxArbNotionalUSD <= 0 {
		return &ConfigError{Field: "risk.max_arb_notional_usd", Msg: "must be positive"}
	}
	if c.Risk.MaxBookExposurePct <= 0 || c.Risk.MaxBookExposurePct > 1 {
		return &ConfigError{Field: "risk.max_book_exposure_pct", Msg: "must be in (0,1]"}
	}
	if c.Risk.MaxVenueExposurePct <= 0 || c.Risk.MaxVenueExposurePct > 1 {
		return &ConfigError{Field: "risk.max_venue_exposure_pct", Msg: "must be in (0,1]"}
	}
	if c.Risk.MaxClusterExposurePct <= 0 || c.Risk.MaxClusterExposurePct > 1 {
		return &ConfigError{Field: "risk.max_cluster_exposure_pct", Msg: "must be in (0,1]"}
	}
	if c.Risk.BreakerMaxErrorRate < 0 || c.Risk.BreakerMaxErrorRate > 1 {
		return &ConfigError{Field: "risk.breaker_max_error_rate", Msg: "must be in [0,1]"}
	}
	if c.Executor.LegTimeout <= 0 {
		return &ConfigError{Field: "executor.leg_timeout", Msg: "must be positive"}
	}
	if c.Executor.UnwindMaxAttempts < 1 {
		return &ConfigError{Field: "executor.unwind_max_attempts", Msg: "must be at least 1"}
	}
	a := c.Allocation
	if a.MinStrategyWeight < 0 || a.MaxStrategyWeight <= 0 {
		return &ConfigError{Field: "allocation.min_strategy_weight", Msg: "weights must be non-negative"}
	}
	if a.MinStrategyWeight >= a.MaxStrategyWeight {
		return &ConfigError{Field: "allocation.min_strategy_weight", Msg: "must be below max_strategy_weight"}
	}
	if a.DrawdownThrottle <= 0 || a.DrawdownThrottle >= 1 {
		return &ConfigError{Field: "allocation.drawdown_throttle", Msg: "must be in (0,1)"}
	}
	if a.CooldownMinutes < 0 {
		return &ConfigError{Field: "allocation.cooldown_minutes", Msg: "must not be negative"}
	}
	for name, w := range a.BaseWeights {
		if w < 0 {
			return &ConfigError{Field: "allocation.base_weights." + name, Msg: "must not be negative"}
		}
	}
	seen := make(map[string]struct{}, len(c.Venues))
	for _, venue := range c.Venues {
		if venue.ID == "" {
			return &ConfigError{Field: "venues.id", Msg: "must not be empty"}
		}
		if _, dup := seen[venue.ID]; dup {
			return &ConfigError{Field: "venues.id", Msg: "duplicate venue id " + venue.ID}
		}
		seen[venue.ID] = struct{}{}
	}
	return nil
}
