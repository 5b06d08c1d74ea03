// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ImportTeam/extensionBack/internal/engine"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Budget      BudgetConfig   `mapstructure:"budget"`
	Cache       CacheConfig    `mapstructure:"cache"`
	DB          DBConfig       `mapstructure:"db"`
	Crawler     CrawlerConfig  `mapstructure:"crawler"`
	Browser     BrowserConfig  `mapstructure:"browser"`
	Features    FeatureConfig  `mapstructure:"features"`
	Failures    FailureConfig  `mapstructure:"failures"`
	Snapshot    SnapshotConfig `mapstructure:"snapshot"`
	Resources   ResourceConfig `mapstructure:"resources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// BudgetConfig holds the per-stage millisecond overrides.
type BudgetConfig struct {
	TotalMS        int `mapstructure:"total_ms"`
	CacheMS        int `mapstructure:"cache_ms"`
	FastPathMS     int `mapstructure:"fastpath_ms"`
	SlowPathMS     int `mapstructure:"slowpath_ms"`
	MinRemainingMS int `mapstructure:"min_remaining_ms"`
}

// CacheConfig locates the key-value store. An empty URL selects the
// in-process cache.
type CacheConfig struct {
	RedisURL string `mapstructure:"redis_url"`
}

// DBConfig locates the relational store for failure records. An empty
// DSN disables durable failure logging.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// CrawlerConfig governs the aggregator-facing executors.
type CrawlerConfig struct {
	UserAgent  string `mapstructure:"user_agent"`
	Origin     string `mapstructure:"origin"`
	SearchURL  string `mapstructure:"search_url"`
	ProductURL string `mapstructure:"product_url"`
}

// BrowserConfig sizes the headless browser pool.
type BrowserConfig struct {
	MaxPages     int64 `mapstructure:"max_pages"`
	WarmContexts int   `mapstructure:"warm_contexts"`
}

// FeatureConfig holds runtime feature flags.
type FeatureConfig struct {
	SlowPathEnabled bool `mapstructure:"slowpath_enabled"`
}

// FailureConfig tunes the failure recorder.
type FailureConfig struct {
	QueueSize     int    `mapstructure:"queue_size"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// SnapshotConfig locates the page-snapshot archive. Empty bucket
// disables archiving.
type SnapshotConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// ResourceConfig locates the static rule tables.
type ResourceConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("budget.total_ms", 12000)
	v.SetDefault("budget.cache_ms", 500)
	v.SetDefault("budget.fastpath_ms", 4000)
	v.SetDefault("budget.slowpath_ms", 6500)
	v.SetDefault("budget.min_remaining_ms", 1000)
	v.SetDefault("crawler.user_agent", "pricesearch-bot/1.0")
	v.SetDefault("crawler.origin", "search.danawa.com")
	v.SetDefault("browser.max_pages", 4)
	v.SetDefault("browser.warm_contexts", 1)
	v.SetDefault("features.slowpath_enabled", true)
	v.SetDefault("failures.queue_size", 256)
	v.SetDefault("resources.dir", "resources")
}

// Validate enforces required values and the budget-sum invariant.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := c.EngineBudget().Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if c.Features.SlowPathEnabled && c.Browser.MaxPages <= 0 {
		return fmt.Errorf("browser.max_pages must be > 0 when slowpath is enabled")
	}
	if c.Resources.Dir == "" {
		return fmt.Errorf("resources.dir is required")
	}
	return nil
}

// EngineBudget converts the millisecond overrides into the engine's
// budget config.
func (c Config) EngineBudget() engine.BudgetConfig {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return engine.BudgetConfig{
		Total:        ms(c.Budget.TotalMS),
		Cache:        ms(c.Budget.CacheMS),
		FastPath:     ms(c.Budget.FastPathMS),
		SlowPath:     ms(c.Budget.SlowPathMS),
		MinRemaining: ms(c.Budget.MinRemainingMS),
	}
}
