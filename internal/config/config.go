// Package config handles configuration management with validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the full recognized configuration surface (spec §5
// "Configuration").
type Config struct {
	AssetA              string           `yaml:"assetA" validate:"required"`
	AssetB              string           `yaml:"assetB" validate:"required"`
	AccountID           string           `yaml:"accountId" validate:"required"`
	StartPrice          string           `yaml:"startPrice"` // number or "auto"/"pool"/"market"
	MinPrice            string           `yaml:"minPrice"`   // number, or "percent-off-start" form e.g. "-10%"
	MaxPrice            string           `yaml:"maxPrice"`
	IncrementPercent    float64          `yaml:"incrementPercent" validate:"required"`
	TargetSpreadPercent float64          `yaml:"targetSpreadPercent"`
	ActiveOrders        ActiveOrders     `yaml:"activeOrders"`
	WeightDistribution  WeightDist       `yaml:"weightDistribution"`
	BotFunds            BotFunds         `yaml:"botFunds"`
	PriceMode           string           `yaml:"priceMode"`
	DryRun              bool             `yaml:"dryRun"`
	GridLimits          GridLimits       `yaml:"GRID_LIMITS"`
	System              SystemConfig     `yaml:"system"`
	Concurrency         ConcurrencyConfig `yaml:"concurrency"`
}

// ActiveOrders is the per-side target resting-order count.
type ActiveOrders struct {
	Buy  int `yaml:"buy" validate:"required,min=1"`
	Sell int `yaml:"sell" validate:"required,min=1"`
}

// WeightDist names the per-side weight distribution; "geometric" is the
// only supported value (spec §5).
type WeightDist struct {
	Buy  string `yaml:"buy"`
	Sell string `yaml:"sell"`
}

// FundsAllocation is either a percent (0,100] or an absolute amount.
type FundsAllocation struct {
	Percent  float64 `yaml:"pct"`
	Absolute float64 `yaml:"abs"`
}

// BotFunds is the per-asset capital allocation (spec §5 "botFunds").
type BotFunds struct {
	AssetA FundsAllocation `yaml:"assetA"`
	AssetB FundsAllocation `yaml:"assetB"`
}

// GridLimits are the GRID_LIMITS.* tuning constants (spec §5).
type GridLimits struct {
	MinSpreadFactor               float64 `yaml:"MIN_SPREAD_FACTOR"`
	MinSpreadOrders               int     `yaml:"MIN_SPREAD_ORDERS"`
	GridRegenerationPercentage    float64 `yaml:"GRID_REGENERATION_PERCENTAGE"`
	RMSPercentage                 float64 `yaml:"RMS_PERCENTAGE"`
	PartialDustThresholdPercentage float64 `yaml:"PARTIAL_DUST_THRESHOLD_PERCENTAGE"`
	BTSReservationMultiplier      float64 `yaml:"BTS_RESERVATION_MULTIPLIER"`
	MinIncrementPercent           float64 `yaml:"MIN_INCREMENT_PERCENT"`
	MaxIncrementPercent           float64 `yaml:"MAX_INCREMENT_PERCENT"`
}

// SystemConfig carries ambient, non-domain settings.
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR FATAL"`
}

// ConcurrencyConfig sizes the worker pool used for reconciliation batch
// submission (pkg/concurrency).
type ConcurrencyConfig struct {
	ReconcilePoolSize   int `yaml:"reconcile_pool_size" validate:"min=1,max=100"`
	ReconcilePoolBuffer int `yaml:"reconcile_pool_buffer" validate:"min=1,max=10000"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment
// variable expansion.
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

// Validate performs comprehensive validation of the configuration,
// matching spec §4.D's grid-config checks plus the ambient surface
// (activeOrders, priceMode, log level).
func (c *Config) Validate() error {
	var errs []string

	if c.AssetA == "" || c.AssetB == "" {
		errs = append(errs, "assetA and assetB are required")
	}
	if c.AccountID == "" {
		errs = append(errs, "accountId is required")
	}
	if c.IncrementPercent <= 0 {
		errs = append(errs, "incrementPercent must be positive")
	}
	if c.GridLimits.MinIncrementPercent > 0 || c.GridLimits.MaxIncrementPercent > 0 {
		if c.IncrementPercent < c.GridLimits.MinIncrementPercent || c.IncrementPercent > c.GridLimits.MaxIncrementPercent {
			errs = append(errs, fmt.Sprintf("incrementPercent %.4f outside bounds [%.4f, %.4f]",
				c.IncrementPercent, c.GridLimits.MinIncrementPercent, c.GridLimits.MaxIncrementPercent))
		}
	}
	if c.ActiveOrders.Buy < 1 || c.ActiveOrders.Sell < 1 {
		errs = append(errs, "activeOrders.buy and activeOrders.sell must each be at least 1")
	}
	if c.PriceMode != "" && !contains([]string{"auto", "pool", "market"}, c.PriceMode) {
		errs = append(errs, fmt.Sprintf("priceMode %q must be one of: auto, pool, market", c.PriceMode))
	}
	if c.System.LogLevel != "" && !contains([]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}, strings.ToUpper(c.System.LogLevel)) {
		errs = append(errs, fmt.Sprintf("system.log_level %q invalid", c.System.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

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

// DefaultConfig returns a default configuration suitable for local testing.
func DefaultConfig() *Config {
	return &Config{
		AssetA:              "BTS",
		AssetB:              "USD",
		AccountID:           "1.2.1",
		StartPrice:          "1.0",
		MinPrice:            "0.9",
		MaxPrice:            "1.1",
		IncrementPercent:    0.5,
		TargetSpreadPercent: 2,
		ActiveOrders:        ActiveOrders{Buy: 10, Sell: 10},
		WeightDistribution:  WeightDist{Buy: "geometric", Sell: "geometric"},
		BotFunds:            BotFunds{AssetA: FundsAllocation{Percent: 50}, AssetB: FundsAllocation{Percent: 50}},
		PriceMode:           "auto",
		GridLimits: GridLimits{
			MinSpreadFactor:                2,
			MinSpreadOrders:                2,
			GridRegenerationPercentage:     10,
			RMSPercentage:                  5,
			PartialDustThresholdPercentage: 5,
			BTSReservationMultiplier:       1,
			MinIncrementPercent:            0.1,
			MaxIncrementPercent:            20,
		},
		System: SystemConfig{LogLevel: "INFO"},
	}
}
