package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "journal_path: ${TEST_JOURNAL}",
			envVars: map[string]string{
				"TEST_JOURNAL": "/tmp/results.db",
			},
			expected: "journal_path: /tmp/results.db",
		},
		{
			name:     "missing env var returns empty string",
			input:    "data_dir: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "data_dir: ",
		},
		{
			name:  "mixed static and env vars",
			input: "starting_cash: 100000\ndata_dir: ${TEST_DATA_DIR}",
			envVars: map[string]string{
				"TEST_DATA_DIR": "/data/bars",
			},
			expected: "starting_cash: 100000\ndata_dir: /data/bars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateAccountConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Account.Currency = "DOLLARS"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account.currency")

	cfg = DefaultConfig()
	cfg.Account.StartingCash = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account.starting_cash")
}

func TestValidateSecurities(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Securities = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one security")

	cfg = DefaultConfig()
	cfg.Securities = append(cfg.Securities, cfg.Securities[0])
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate symbol")

	cfg = DefaultConfig()
	cfg.Securities[0].Leverage = 0.5
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leverage")

	cfg = DefaultConfig()
	cfg.Securities[0].Type = "FOREX"
	cfg.Securities[0].Symbol = "EUR"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "six-letter")
}

func TestValidateFeedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feed.SourceType = "kafka"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.source_type")

	cfg = DefaultConfig()
	cfg.Feed.DataDir = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.data_dir")

	cfg = DefaultConfig()
	cfg.Feed.SourceType = "stream"
	cfg.Feed.StreamURL = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.stream_url")

	cfg = DefaultConfig()
	cfg.Feed.SourceType = "rest"
	cfg.Feed.RestURL = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.rest_url")

	cfg = DefaultConfig()
	cfg.Feed.BridgeCapacity = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed.bridge_capacity")
}

func TestValidateSystemConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.System.LogLevel = "TRACE"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system.log_level")
}

func TestValidatePortfolioConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Portfolio.MarginWarningBuffer = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "margin_warning_buffer")
}

func TestLoadConfig(t *testing.T) {
	content := `
app:
  name: sample-run
account:
  currency: USD
  starting_cash: 250000
securities:
  - symbol: AAPL
    type: EQUITY
    market: xnys
    resolution: MINUTE
    leverage: 2
  - symbol: EURUSD
    type: FOREX
    market: forex
    resolution: MINUTE
    leverage: 50
    quote_currency: USD
algorithm:
  type: buy_and_hold
  symbol: AAPL
  quantity: 50
feed:
  source_type: csv
  data_dir: ${BT_DATA_DIR}
  bridge_capacity: 32
portfolio:
  margin_warning_buffer: 0.05
system:
  log_level: DEBUG
concurrency:
  journal_pool_size: 2
  journal_pool_buffer: 512
`
	os.Setenv("BT_DATA_DIR", "/data/bars")
	defer os.Unsetenv("BT_DATA_DIR")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sample-run", cfg.App.Name)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 250000.0, cfg.Account.StartingCash)
	require.Len(t, cfg.Securities, 2)
	assert.Equal(t, "EURUSD", cfg.Securities[1].Symbol)
	assert.Equal(t, "buy_and_hold", cfg.Algorithm.Type)
	assert.Equal(t, "/data/bars", cfg.Feed.DataDir)
	assert.Equal(t, 32, cfg.Feed.BridgeCapacity)
	assert.Equal(t, "DEBUG", cfg.System.LogLevel)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
