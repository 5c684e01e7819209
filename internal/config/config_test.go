package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_ACCOUNT_ID", "1.2.100")
	defer os.Unsetenv("TEST_ACCOUNT_ID")

	got := expandEnvVars("accountId: ${TEST_ACCOUNT_ID}")
	assert.Equal(t, "accountId: 1.2.100", got)
}

func TestExpandEnvVarsMissingVarBecomesEmpty(t *testing.T) {
	got := expandEnvVars("accountId: ${DEFINITELY_MISSING_VAR}")
	assert.Equal(t, "accountId: ", got)
}

func validYAML() string {
	return `
assetA: BTS
assetB: USD
accountId: 1.2.100
startPrice: "1.0"
minPrice: "0.9"
maxPrice: "1.1"
incrementPercent: 0.5
targetSpreadPercent: 2
activeOrders:
  buy: 10
  sell: 10
weightDistribution:
  buy: geometric
  sell: geometric
botFunds:
  assetA:
    pct: 50
  assetB:
    pct: 50
priceMode: auto
GRID_LIMITS:
  MIN_SPREAD_FACTOR: 2
  MIN_SPREAD_ORDERS: 2
  MIN_INCREMENT_PERCENT: 0.1
  MAX_INCREMENT_PERCENT: 20
system:
  log_level: INFO
`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigValidFile(t *testing.T) {
	path := writeTempConfig(t, validYAML())
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "BTS", cfg.AssetA)
	assert.Equal(t, "USD", cfg.AssetB)
	assert.Equal(t, 10, cfg.ActiveOrders.Buy)
	assert.Equal(t, "geometric", cfg.WeightDistribution.Buy)
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	os.Setenv("TEST_ACCOUNT_ID_2", "1.2.200")
	defer os.Unsetenv("TEST_ACCOUNT_ID_2")

	content := strings.Replace(validYAML(), "accountId: 1.2.100", "accountId: ${TEST_ACCOUNT_ID_2}", 1)
	path := writeTempConfig(t, content)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.200", cfg.AccountID)
}

func TestValidateRejectsMissingAssets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetA = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsIncrementOutOfBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncrementPercent = 50
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsInvalidPriceMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriceMode = "nonsense"
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaultConfig(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}
