// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Account     AccountConfig     `yaml:"account"`
	Securities  []SecurityConfig  `yaml:"securities"`
	Algorithm   AlgorithmConfig   `yaml:"algorithm"`
	Feed        FeedConfig        `yaml:"feed"`
	Portfolio   PortfolioConfig   `yaml:"portfolio"`
	Results     ResultsConfig     `yaml:"results"`
	System      SystemConfig      `yaml:"system"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// AppConfig contains run-level settings
type AppConfig struct {
	Name     string `yaml:"name" validate:"required"`
	UTCStart string `yaml:"utc_start"` // RFC 3339; empty means unbounded
	UTCEnd   string `yaml:"utc_end"`
}

// AccountConfig describes the trading account
type AccountConfig struct {
	Currency     string  `yaml:"currency" validate:"required,len=3"`
	StartingCash float64 `yaml:"starting_cash" validate:"required,min=0"`
}

// SecurityConfig describes one instrument in the traded universe
type SecurityConfig struct {
	Symbol        string  `yaml:"symbol" validate:"required"`
	Type          string  `yaml:"type" validate:"oneof=EQUITY FOREX"`
	Market        string  `yaml:"market"`
	Resolution    string  `yaml:"resolution" validate:"oneof=TICK SECOND MINUTE HOUR DAILY"`
	TimeZone      string  `yaml:"time_zone"`
	QuoteCurrency string  `yaml:"quote_currency"`
	Leverage      float64 `yaml:"leverage" validate:"min=1"`
}

// AlgorithmConfig selects the built-in algorithm driving the run
type AlgorithmConfig struct {
	Type     string  `yaml:"type" validate:"oneof=hold buy_and_hold"`
	Symbol   string  `yaml:"symbol"`
	Quantity float64 `yaml:"quantity"`
}

// FeedConfig contains data feed settings
type FeedConfig struct {
	SourceType      string  `yaml:"source_type" validate:"oneof=csv stream rest"`
	DataDir         string  `yaml:"data_dir"`
	StreamURL       string  `yaml:"stream_url"`
	RestURL         string  `yaml:"rest_url"`
	StreamBuffer    int     `yaml:"stream_buffer" validate:"min=0,max=1000000"`
	BridgeCapacity  int     `yaml:"bridge_capacity" validate:"min=1,max=100000"`
	SlicesPerSecond float64 `yaml:"slices_per_second" validate:"min=0"` // 0 = unpaced
}

// PortfolioConfig contains margin and valuation settings
type PortfolioConfig struct {
	MarginWarningBuffer float64 `yaml:"margin_warning_buffer" validate:"min=0,max=1"`
	FeePerOrder         float64 `yaml:"fee_per_order" validate:"min=0"`
}

// ResultsConfig contains result journaling settings
type ResultsConfig struct {
	JournalPath string `yaml:"journal_path"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	JournalPoolSize   int `yaml:"journal_pool_size" validate:"min=1,max=100"`
	JournalPoolBuffer int `yaml:"journal_pool_buffer" validate:"min=1,max=100000"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAppConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateAccountConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSecurities(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateAlgorithmConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateFeedConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validatePortfolioConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateConcurrencyConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	if c.App.Name == "" {
		return ValidationError{
			Field:   "app.name",
			Message: "run name is required",
		}
	}
	return nil
}

func (c *Config) validateAccountConfig() error {
	if len(c.Account.Currency) != 3 {
		return ValidationError{
			Field:   "account.currency",
			Value:   c.Account.Currency,
			Message: "must be a three-letter currency code",
		}
	}
	if c.Account.StartingCash < 0 {
		return ValidationError{
			Field:   "account.starting_cash",
			Value:   c.Account.StartingCash,
			Message: "starting cash cannot be negative",
		}
	}
	return nil
}

func (c *Config) validateSecurities() error {
	validTypes := []string{"EQUITY", "FOREX"}
	validResolutions := []string{"", "TICK", "SECOND", "MINUTE", "HOUR", "DAILY"}

	if len(c.Securities) == 0 {
		return ValidationError{
			Field:   "securities",
			Message: "at least one security must be configured",
		}
	}

	seen := make(map[string]struct{})
	for i, sec := range c.Securities {
		field := fmt.Sprintf("securities[%d]", i)

		if sec.Symbol == "" {
			return ValidationError{
				Field:   field + ".symbol",
				Message: "symbol is required",
			}
		}
		if _, dup := seen[sec.Symbol]; dup {
			return ValidationError{
				Field:   field + ".symbol",
				Value:   sec.Symbol,
				Message: "duplicate symbol",
			}
		}
		seen[sec.Symbol] = struct{}{}

		if !contains(validTypes, strings.ToUpper(sec.Type)) {
			return ValidationError{
				Field:   field + ".type",
				Value:   sec.Type,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(validTypes, ", ")),
			}
		}
		if !contains(validResolutions, strings.ToUpper(sec.Resolution)) {
			return ValidationError{
				Field:   field + ".resolution",
				Value:   sec.Resolution,
				Message: "unknown resolution",
			}
		}
		if sec.Leverage < 1 {
			return ValidationError{
				Field:   field + ".leverage",
				Value:   sec.Leverage,
				Message: "leverage must be at least 1",
			}
		}
		if strings.ToUpper(sec.Type) == "FOREX" && len(sec.Symbol) != 6 {
			return ValidationError{
				Field:   field + ".symbol",
				Value:   sec.Symbol,
				Message: "forex symbols are six-letter currency pairs",
			}
		}
	}
	return nil
}

func (c *Config) validateAlgorithmConfig() error {
	validTypes := []string{"hold", "buy_and_hold"}
	if !contains(validTypes, c.Algorithm.Type) {
		return ValidationError{
			Field:   "algorithm.type",
			Value:   c.Algorithm.Type,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validTypes, ", ")),
		}
	}
	if c.Algorithm.Type == "buy_and_hold" {
		if c.Algorithm.Symbol == "" {
			return ValidationError{
				Field:   "algorithm.symbol",
				Message: "buy_and_hold needs a symbol",
			}
		}
		if c.Algorithm.Quantity == 0 {
			return ValidationError{
				Field:   "algorithm.quantity",
				Value:   c.Algorithm.Quantity,
				Message: "buy_and_hold needs a nonzero quantity",
			}
		}
	}
	return nil
}

func (c *Config) validateFeedConfig() error {
	validSources := []string{"csv", "stream", "rest"}
	if !contains(validSources, c.Feed.SourceType) {
		return ValidationError{
			Field:   "feed.source_type",
			Value:   c.Feed.SourceType,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validSources, ", ")),
		}
	}
	if c.Feed.SourceType == "csv" && c.Feed.DataDir == "" {
		return ValidationError{
			Field:   "feed.data_dir",
			Message: "data directory is required for csv sources",
		}
	}
	if c.Feed.SourceType == "stream" && c.Feed.StreamURL == "" {
		return ValidationError{
			Field:   "feed.stream_url",
			Message: "stream URL is required for stream sources",
		}
	}
	if c.Feed.SourceType == "rest" && c.Feed.RestURL == "" {
		return ValidationError{
			Field:   "feed.rest_url",
			Message: "rest URL is required for rest sources",
		}
	}
	if c.Feed.BridgeCapacity < 1 {
		return ValidationError{
			Field:   "feed.bridge_capacity",
			Value:   c.Feed.BridgeCapacity,
			Message: "bridge capacity must be at least 1",
		}
	}
	if c.Feed.SlicesPerSecond < 0 {
		return ValidationError{
			Field:   "feed.slices_per_second",
			Value:   c.Feed.SlicesPerSecond,
			Message: "pacing cannot be negative",
		}
	}
	return nil
}

func (c *Config) validatePortfolioConfig() error {
	if c.Portfolio.MarginWarningBuffer < 0 || c.Portfolio.MarginWarningBuffer > 1 {
		return ValidationError{
			Field:   "portfolio.margin_warning_buffer",
			Value:   c.Portfolio.MarginWarningBuffer,
			Message: "must be a fraction between 0 and 1",
		}
	}
	if c.Portfolio.FeePerOrder < 0 {
		return ValidationError{
			Field:   "portfolio.fee_per_order",
			Value:   c.Portfolio.FeePerOrder,
			Message: "fee cannot be negative",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateConcurrencyConfig() error {
	if c.Concurrency.JournalPoolSize < 1 {
		return ValidationError{
			Field:   "concurrency.journal_pool_size",
			Value:   c.Concurrency.JournalPoolSize,
			Message: "pool size must be at least 1",
		}
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name: "backtest",
		},
		Account: AccountConfig{
			Currency:     "USD",
			StartingCash: 100000,
		},
		Securities: []SecurityConfig{
			{
				Symbol:     "AAPL",
				Type:       "EQUITY",
				Market:     "xnys",
				Resolution: "MINUTE",
				Leverage:   2,
			},
		},
		Algorithm: AlgorithmConfig{
			Type:     "buy_and_hold",
			Symbol:   "AAPL",
			Quantity: 100,
		},
		Feed: FeedConfig{
			SourceType:      "csv",
			DataDir:         "data",
			BridgeCapacity:  64,
			SlicesPerSecond: 0,
		},
		Portfolio: PortfolioConfig{
			MarginWarningBuffer: 0.05,
			FeePerOrder:         0,
		},
		Results: ResultsConfig{
			JournalPath: "results.db",
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
		},
		Concurrency: ConcurrencyConfig{
			JournalPoolSize:   2,
			JournalPoolBuffer: 1024,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: false,
		},
	}
}
