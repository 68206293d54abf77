package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_AUTH_TOKEN", "secret")
	t.Setenv("TAO_DATA_DIR", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 18, cfg.DefaultNetuid)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, 120*time.Second, cfg.Policy.CacheTTL)
	assert.Equal(t, 50, cfg.Policy.ScanCeiling)
	assert.Equal(t, 20, cfg.Policy.MaxConcurrentWorkflows)
	assert.Equal(t, 10, cfg.Policy.MaxPosts)
	assert.True(t, cfg.Policy.TradeUnit.Equal(decimal.RequireFromString("0.01")))
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_RequiresAuthToken(t *testing.T) {
	t.Setenv("API_AUTH_TOKEN", "")
	t.Setenv("TAO_DATA_DIR", t.TempDir())

	_, err := Load()
	assert.ErrorContains(t, err, "API_AUTH_TOKEN")
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CACHE_TTL", "300")
	t.Setenv("MAX_CONCURRENT_WORKFLOWS", "4")
	t.Setenv("WORKFLOW_TIMEOUT", "90s")
	t.Setenv("MAX_TRADE_AMOUNT", "2.5")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.Policy.CacheTTL)
	assert.Equal(t, 4, cfg.Policy.MaxConcurrentWorkflows)
	assert.Equal(t, 90*time.Second, cfg.Policy.WorkflowTimeout)
	assert.True(t, cfg.Policy.MaxTradeAmount.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoad_InvalidSubtensorURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SUBTENSOR_URL", "http://example.com")

	_, err := Load()
	assert.ErrorContains(t, err, "SUBTENSOR_URL")
}

func TestPolicy_MergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
cache_ttl: 45s
scan_ceiling: 20
max_posts: 25
trade_unit: "0.02"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p := DefaultPolicy()
	require.NoError(t, p.MergeFile(path))

	assert.Equal(t, 45*time.Second, p.CacheTTL)
	assert.Equal(t, 20, p.ScanCeiling)
	assert.Equal(t, 25, p.MaxPosts)
	assert.True(t, p.TradeUnit.Equal(decimal.RequireFromString("0.02")))
	// untouched fields keep their defaults
	assert.Equal(t, 20, p.MaxConcurrentWorkflows)
	assert.NoError(t, p.Validate())
}

func TestPolicy_MergeFileInvalidDecimal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`max_trade_amount: "lots"`), 0644))

	p := DefaultPolicy()
	assert.Error(t, p.MergeFile(path))
}

func TestPolicy_Validate(t *testing.T) {
	p := DefaultPolicy()
	p.MaxConcurrentWorkflows = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.TradeUnit = decimal.Zero
	assert.Error(t, p.Validate())
}
