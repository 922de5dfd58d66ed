package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/davidhsu/execsim/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Data.Coarse = "coarse.csv"
	cfg.Data.Fine = "fine.csv"
	return cfg
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
point_value: 50
commission: 2.5
force_flat: true
fill:
  mode: limit
  market_price: touch
  timeout_bars: 5
exits:
  precedence: [stop_loss, trailing_stop, take_profit, timeout, market_close]
strategy:
  lookback: 10
  risk_reward: 3
  trailing:
    enabled: true
    trigger_points: 10
    offset_points: 4
data:
  coarse: testdata/coarse.csv
  fine: testdata/fine.csv
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PointValue != 50 || cfg.Commission != 2.5 || !cfg.ForceFlat {
		t.Errorf("run settings = %+v", cfg)
	}
	if cfg.Fill.Mode != "limit" || cfg.Fill.MarketPrice != "touch" || cfg.Fill.TimeoutBars != 5 {
		t.Errorf("fill = %+v", cfg.Fill)
	}
	if len(cfg.Exits.Precedence) != 5 || cfg.Exits.Precedence[0] != "stop_loss" {
		t.Errorf("precedence = %v", cfg.Exits.Precedence)
	}
	if !cfg.Strategy.Trailing.Enabled || cfg.Strategy.Trailing.TriggerPoints != 10 {
		t.Errorf("trailing = %+v", cfg.Strategy.Trailing)
	}
	// Defaults survive for keys the file does not set.
	if cfg.MaxUnresolvedBars != 3 {
		t.Errorf("max_unresolved_bars default = %d, want 3", cfg.MaxUnresolvedBars)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("EXECSIM_TEST_BUCKET", "backtests")

	path := writeConfig(t, `
data:
  coarse: coarse.csv
  fine: fine.csv
storage:
  archive:
    type: s3
    s3:
      bucket: ${EXECSIM_TEST_BUCKET}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Archive.S3.Bucket != "backtests" {
		t.Errorf("bucket = %q, want expansion from environment", cfg.Storage.Archive.S3.Bucket)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"non-positive point value", func(c *Config) { c.PointValue = 0 }, core.ErrConfigInvalid},
		{"negative commission", func(c *Config) { c.Commission = -1 }, core.ErrConfigInvalid},
		{"zero fill timeout", func(c *Config) { c.Fill.TimeoutBars = 0 }, core.ErrConfigInvalid},
		{"unknown fill mode", func(c *Config) { c.Fill.Mode = "stop" }, core.ErrConfigInvalid},
		{"unknown market price", func(c *Config) { c.Fill.MarketPrice = "vwap" }, core.ErrConfigInvalid},
		{"missing data files", func(c *Config) { c.Data.Fine = "" }, core.ErrConfigMissing},
		{"unknown archive type", func(c *Config) { c.Storage.Archive.Type = "gcs" }, core.ErrConfigInvalid},
		{
			"s3 archive without bucket",
			func(c *Config) { c.Storage.Archive.Type = "s3" },
			core.ErrConfigMissing,
		},
		{
			"localfs archive without path",
			func(c *Config) { c.Storage.Archive.Type = "localfs" },
			core.ErrConfigMissing,
		},
		{
			"trailing offset at trigger",
			func(c *Config) {
				c.Strategy.Trailing = TrailingConfig{Enabled: true, TriggerPoints: 5, OffsetPoints: 5}
			},
			core.ErrConfigInvalid,
		},
		{
			"trailing disabled skips checks",
			func(c *Config) {
				c.Strategy.Trailing = TrailingConfig{Enabled: false, TriggerPoints: -1}
			},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
