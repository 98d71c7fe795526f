package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10.0, cfg.Scanner.MinSpreadBps)
	assert.Equal(t, 50000.0, cfg.Risk.MaxArbNotionalUSD)
	assert.Equal(t, 3, cfg.Executor.UnwindMaxAttempts)
	assert.Equal(t, 60, cfg.Allocation.CooldownMinutes)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
scanner:
  min_spread_bps: 25
risk:
  max_arb_notional_usd: 10000
venues:
  - id: kraken
    name: Kraken
    enabled: true
  - id: coinbase
    name: Coinbase
    enabled: false
instruments:
  - BTC-USD
  - ETH-USD
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 25.0, cfg.Scanner.MinSpreadBps)
	assert.Equal(t, 10000.0, cfg.Risk.MaxArbNotionalUSD)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4.0, cfg.Scanner.RoundTripCostBps)

	require.Len(t, cfg.Venues, 2)
	assert.True(t, cfg.Venues[0].Enabled)
	assert.False(t, cfg.Venues[1].Enabled)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Instruments)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// Invalid limits must fail the process at startup, never surface
// mid-trade.
func TestValidationFailsFast(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{
			"non-positive spread",
			"scanner:\n  min_spread_bps: 0\n",
			"scanner.min_spread_bps",
		},
		{
			"book exposure over one",
			"risk:\n  max_book_exposure_pct: 1.5\n",
			"risk.max_book_exposure_pct",
		},
		{
			"zero unwind attempts",
			"executor:\n  unwind_max_attempts: 0\n",
			"executor.unwind_max_attempts",
		},
		{
			"min weight above max",
			"allocation:\n  min_strategy_weight: 0.5\n  max_strategy_weight: 0.4\n",
			"allocation.min_strategy_weight",
		},
		{
			"duplicate venue ids",
			"venues:\n  - id: kraken\n  - id: kraken\n",
			"venues.id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestValidateNegativeBaseWeight(t *testing.T) {
	_, err := Load(writeConfig(t, "allocation:\n  base_weights:\n    spot-arb: -0.1\n"))

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "allocation.base_weights.spot-arb", cfgErr.Field)
}
