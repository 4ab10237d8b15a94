// Package config loads property-cli settings from config.yaml and
// PROPERTY_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/property-cli/internal/fusion"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Fusion  FusionConfig  `yaml:"fusion" mapstructure:"fusion"`
	Address AddressConfig `yaml:"address" mapstructure:"address"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Lead    LeadConfig    `yaml:"lead" mapstructure:"lead"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the repository backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FusionConfig configures merge precedence and history retention.
type FusionConfig struct {
	HistoryLimit int           `yaml:"history_limit" mapstructure:"history_limit"`
	Precedence   []fusion.Tier `yaml:"precedence" mapstructure:"precedence"`
}

// AddressConfig configures normalization and the optional standardizer.
type AddressConfig struct {
	Fallback         bool    `yaml:"fallback" mapstructure:"fallback"`
	Standardizer     string  `yaml:"standardizer" mapstructure:"standardizer"`
	GoogleKey        string  `yaml:"google_key" mapstructure:"google_key"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// IngestConfig configures batch ingestion.
type IngestConfig struct {
	Concurrency    int `yaml:"concurrency" mapstructure:"concurrency"`
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// LeadConfig configures lead projection.
type LeadConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Supported store drivers and standardizers.
const (
	DriverSQLite       = "sqlite"
	DriverPostgres     = "postgres"
	StandardizerNone   = "none"
	StandardizerCensus = "census"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPERTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "properties.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.timeout_secs", 10)
	v.SetDefault("fusion.history_limit", 10)
	v.SetDefault("fusion.precedence", tierDefaults(fusion.DefaultTiers()))
	v.SetDefault("address.fallback", true)
	v.SetDefault("address.standardizer", StandardizerNone)
	v.SetDefault("address.rate_limit", 10)
	v.SetDefault("address.timeout_secs", 5)
	v.SetDefault("address.breaker_failures", 5)
	v.SetDefault("address.breaker_reset_secs", 30)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.retry_attempts", 3)
	v.SetDefault("ingest.retry_backoff_ms", 200)
	v.SetDefault("lead.threshold", 0.7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// tierDefaults renders tiers in the shape viper holds for a YAML list of
// maps, so file values replace the default list wholesale.
func tierDefaults(tiers []fusion.Tier) []map[string]any {
	out := make([]map[string]any, len(tiers))
	for i, t := range tiers {
		out[i] = map[string]any{"name": t.Name, "sources": t.Sources}
	}
	return out
}

// Validate checks settings that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Fusion.HistoryLimit < 1 {
		problems = append(problems, "fusion.history_limit must be >= 1")
	}
	for i, t := range c.Fusion.Precedence {
		if len(t.Sources) == 0 {
			problems = append(problems, fmt.Sprintf("fusion.precedence[%d] has no sources", i))
		}
	}
	switch c.Address.Standardizer {
	case StandardizerNone, StandardizerCensus, "":
	default:
		problems = append(problems, "address.standardizer must be none or census")
	}
	if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 64 {
		problems = append(problems, "ingest.concurrency must be between 1 and 64")
	}
	if c.Lead.Threshold < 0 || c.Lead.Threshold > 1 {
		problems = append(problems, "lead.threshold must be between 0 and 1")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Tiers returns the configured precedence, or the defaults when none is set.
func (c *Config) Tiers() []fusion.Tier {
	if len(c.Fusion.Precedence) == 0 {
		return fusion.DefaultTiers()
	}
	return c.Fusion.Precedence
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
