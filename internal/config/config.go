package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/davidhsu/execsim/internal/core"
)

// Config is the full configuration surface of a simulation run.
type Config struct {
	// PointValue is the currency amount of one point of price movement.
	PointValue float64 `mapstructure:"point_value"`
	// Commission is charged once per completed trade.
	Commission float64 `mapstructure:"commission"`
	// ForceFlat closes any active trade on the last bar of the session.
	ForceFlat bool `mapstructure:"force_flat"`
	// MaxUnresolvedBars bounds how long an active trade may go without
	// a calendar-spread entry before terminating as unresolvable.
	MaxUnresolvedBars int `mapstructure:"max_unresolved_bars"`

	Fill     FillConfig     `mapstructure:"fill"`
	Exits    ExitsConfig    `mapstructure:"exits"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Data     DataConfig     `mapstructure:"data"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// FillConfig selects the fill policy.
type FillConfig struct {
	Mode        string `mapstructure:"mode"`         // "market" or "limit"
	MarketPrice string `mapstructure:"market_price"` // "open", "close" or "touch"
	TimeoutBars int    `mapstructure:"timeout_bars"`
}

// ExitsConfig selects the exit precedence order. Empty means the
// documented default (favorable outcome first).
type ExitsConfig struct {
	Precedence []string `mapstructure:"precedence"`
}

// StrategyConfig configures the reference breakout strategy.
type StrategyConfig struct {
	Lookback    int            `mapstructure:"lookback"`
	RiskReward  float64        `mapstructure:"risk_reward"`
	MaxHoldBars int            `mapstructure:"max_hold_bars"`
	Trailing    TrailingConfig `mapstructure:"trailing"`
}

// TrailingConfig enables the trailing stop on generated signals.
type TrailingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	TriggerPoints float64 `mapstructure:"trigger_points"`
	OffsetPoints  float64 `mapstructure:"offset_points"`
}

// DataConfig names the input files.
type DataConfig struct {
	Coarse  string `mapstructure:"coarse"`  // signal-resolution candles CSV
	Fine    string `mapstructure:"fine"`    // execution-resolution candles CSV
	Spreads string `mapstructure:"spreads"` // calendar-spread CSV, optional
}

// StorageConfig selects output sinks.
type StorageConfig struct {
	DSN     string        `mapstructure:"dsn"` // SQLite path, empty disables
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig selects the run-artifact backend.
type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs", "s3" or empty
	Path string   `mapstructure:"path"` // for localfs
	S3   S3Config `mapstructure:"s3"`   // for s3
}

// S3Config holds S3 connection settings.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		PointValue:        1,
		Commission:        0,
		MaxUnresolvedBars: 3,
		Fill: FillConfig{
			Mode:        "market",
			MarketPrice: "open",
			TimeoutBars: 10,
		},
		Strategy: StrategyConfig{
			Lookback:   20,
			RiskReward: 2,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Validate checks the configuration for errors. Validation failures
// are run-level fatal: the run aborts before any trade is staged.
func (c *Config) Validate() error {
	if c.PointValue <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("point_value must be positive, got %f", c.PointValue))
	}
	if c.Commission < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission cannot be negative, got %f", c.Commission))
	}
	if c.MaxUnresolvedBars < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_unresolved_bars cannot be negative, got %d", c.MaxUnresolvedBars))
	}
	if c.Fill.TimeoutBars <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fill.timeout_bars must be positive, got %d", c.Fill.TimeoutBars))
	}
	switch c.Fill.Mode {
	case "market", "limit":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fill.mode must be market or limit, got %q", c.Fill.Mode))
	}
	switch c.Fill.MarketPrice {
	case "open", "close", "touch":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fill.market_price must be open, close or touch, got %q", c.Fill.MarketPrice))
	}
	if c.Strategy.Trailing.Enabled {
		if c.Strategy.Trailing.TriggerPoints <= 0 || c.Strategy.Trailing.OffsetPoints <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("trailing trigger_points and offset_points must be positive"))
		}
		if c.Strategy.Trailing.OffsetPoints >= c.Strategy.Trailing.TriggerPoints {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("trailing offset_points must be below trigger_points"))
		}
	}
	if c.Data.Coarse == "" || c.Data.Fine == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("data.coarse and data.fine are required"))
	}
	switch c.Storage.Archive.Type {
	case "", "localfs", "s3":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("storage.archive.type must be localfs or s3, got %q", c.Storage.Archive.Type))
	}
	if c.Storage.Archive.Type == "s3" && c.Storage.Archive.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("storage.archive.s3.bucket required for s3 archive"))
	}
	if c.Storage.Archive.Type == "localfs" && c.Storage.Archive.Path == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("storage.archive.path required for localfs archive"))
	}
	return nil
}
