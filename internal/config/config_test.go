package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/fusion"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "properties.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 10, cfg.Store.TimeoutSecs)
	assert.Equal(t, 10, cfg.Fusion.HistoryLimit)
	assert.Equal(t, fusion.DefaultTiers(), cfg.Fusion.Precedence)
	assert.True(t, cfg.Address.Fallback)
	assert.Equal(t, "none", cfg.Address.Standardizer)
	assert.InDelta(t, 10, cfg.Address.RateLimit, 0.001)
	assert.Equal(t, 5, cfg.Address.TimeoutSecs)
	assert.Equal(t, 5, cfg.Address.BreakerFailures)
	assert.Equal(t, 30, cfg.Address.BreakerResetSecs)
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	assert.Equal(t, 3, cfg.Ingest.RetryAttempts)
	assert.Equal(t, 200, cfg.Ingest.RetryBackoffMs)
	assert.InDelta(t, 0.7, cfg.Lead.Threshold, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/properties
fusion:
  history_limit: 5
  precedence:
    - name: ops
      sources: [manual]
    - name: county
      sources: [county, assessor]
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/properties", cfg.Store.DatabaseURL)
	assert.Equal(t, 5, cfg.Fusion.HistoryLimit)
	assert.Equal(t, []fusion.Tier{
		{Name: "ops", Sources: []string{"manual"}},
		{Name: "county", Sources: []string{"county", "assessor"}},
	}, cfg.Tiers())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PROPERTY_STORE_DRIVER", "postgres")
	t.Setenv("PROPERTY_LOG_LEVEL", "warn")
	t.Setenv("PROPERTY_ADDRESS_FALLBACK", "false")
	t.Setenv("PROPERTY_LEAD_THRESHOLD", "0.55")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Address.Fallback)
	assert.InDelta(t, 0.55, cfg.Lead.Threshold, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: DriverSQLite, DatabaseURL: "properties.db"},
		Fusion: FusionConfig{HistoryLimit: 10},
		Ingest: IngestConfig{Concurrency: 4},
		Lead:   LeadConfig{Threshold: 0.7},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be sqlite or postgres"},
		{"url", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url is required"},
		{"history", func(c *Config) { c.Fusion.HistoryLimit = 0 }, "fusion.history_limit must be >= 1"},
		{"tier", func(c *Config) { c.Fusion.Precedence = []fusion.Tier{{Name: "empty"}} }, "fusion.precedence[0] has no sources"},
		{"standardizer", func(c *Config) { c.Address.Standardizer = "usps" }, "address.standardizer must be none or census"},
		{"concurrency", func(c *Config) { c.Ingest.Concurrency = 0 }, "ingest.concurrency must be between 1 and 64"},
		{"threshold", func(c *Config) { c.Lead.Threshold = 1.5 }, "lead.threshold must be between 0 and 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTiersDefault(t *testing.T) {
	assert.Equal(t, fusion.DefaultTiers(), (&Config{}).Tiers())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
