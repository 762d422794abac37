// Package config loads pagedb configuration from defaults, an optional YAML
// file and PAGEDB_* environment variables.
package config

import (
	"fmt"
	"os"
	"pagedb/pkg/execution/extsort"
	"pagedb/pkg/logging"
	"pagedb/pkg/memory"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override configuration,
// as in PAGEDB_STORAGE_DATA_DIR.
const EnvPrefix = "PAGEDB"

// Config holds all configuration for pagedb.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Sort      SortConfig      `mapstructure:"sort"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// StorageConfig holds the data directory and buffer pool sizing.
type StorageConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	PoolPages   int    `mapstructure:"pool_pages"`
	CacheBytes  int64  `mapstructure:"cache_bytes"`
	LoadWorkers int    `mapstructure:"load_workers"`
}

// SortConfig tunes the external sort of the join inputs.
type SortConfig struct {
	RunPages int `mapstructure:"run_pages"`
	FanIn    int `mapstructure:"fan_in"`
}

// AggregateConfig selects the aggregation variants.
type AggregateConfig struct {
	ExactAverages  bool `mapstructure:"exact_averages"`
	HashOnlyGroups bool `mapstructure:"hash_only_groups"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:     "./data",
			PoolPages:   memory.DefaultMaxPinnedPages,
			CacheBytes:  memory.DefaultCacheBytes,
			LoadWorkers: 4,
		},
		Sort: SortConfig{
			RunPages: extsort.DefaultRunPages,
			FanIn:    extsort.DefaultFanIn,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "",
		},
	}
}

// Load reads configuration from configPath, or from pagedb.yaml in the
// working directory or $HOME/.pagedb when configPath is empty. A missing
// search-path file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.pool_pages", cfg.Storage.PoolPages)
	v.SetDefault("storage.cache_bytes", cfg.Storage.CacheBytes)
	v.SetDefault("storage.load_workers", cfg.Storage.LoadWorkers)
	v.SetDefault("sort.run_pages", cfg.Sort.RunPages)
	v.SetDefault("sort.fan_in", cfg.Sort.FanIn)
	v.SetDefault("aggregate.exact_averages", cfg.Aggregate.ExactAverages)
	v.SetDefault("aggregate.hash_only_groups", cfg.Aggregate.HashOnlyGroups)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.output", cfg.Log.Output)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("pagedb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pagedb")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configuration values are sensible.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}
	if c.Storage.PoolPages < 2 {
		return fmt.Errorf("storage.pool_pages must be at least 2, got %d", c.Storage.PoolPages)
	}
	if c.Storage.LoadWorkers < 0 {
		return fmt.Errorf("storage.load_workers must not be negative")
	}
	if c.Sort.RunPages < 1 {
		return fmt.Errorf("sort.run_pages must be at least 1, got %d", c.Sort.RunPages)
	}
	if c.Sort.FanIn < 2 {
		return fmt.Errorf("sort.fan_in must be at least 2, got %d", c.Sort.FanIn)
	}
	// A join merges FanIn runs into one output page while its two input
	// scans and its output page stay pinned.
	if c.Sort.FanIn+3 > c.Storage.PoolPages {
		return fmt.Errorf("sort.fan_in (%d) needs storage.pool_pages of at least %d, got %d",
			c.Sort.FanIn, c.Sort.FanIn+3, c.Storage.PoolPages)
	}
	if c.Sort.RunPages >= c.Storage.PoolPages {
		return fmt.Errorf("sort.run_pages (%d) must be below storage.pool_pages (%d)",
			c.Sort.RunPages, c.Storage.PoolPages)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	return nil
}

// Logging converts the log section into a logging configuration.
func (c *Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.Config{
		Level:      level,
		OutputPath: c.Log.Output,
		Format:     strings.ToLower(c.Log.Format),
	}
}

// Pool converts the storage section into a buffer pool configuration.
func (c *Config) Pool() memory.Config {
	return memory.Config{MaxPinnedPages: c.Storage.PoolPages, CacheBytes: c.Storage.CacheBytes}
}

// CreateDefaultConfig writes a default configuration file.
func CreateDefaultConfig(path, dataDir string) error {
	content := fmt.Sprintf(`# pagedb configuration

storage:
  data_dir: %s
  pool_pages: %d         # pages that may be pinned at once
  cache_bytes: %d     # clean-page cache, negative disables
  load_workers: 4        # concurrent loads

sort:
  run_pages: %d          # pages sorted in memory per run
  fan_in: %d             # runs merged at once

aggregate:
  exact_averages: false
  hash_only_groups: false

log:
  level: info            # debug, info, warn, error
  format: text           # text or json
  output: ""             # empty for stderr, or a file path

metrics:
  listen: ""             # e.g. :9090 serves /metrics
`, dataDir, memory.DefaultMaxPinnedPages, memory.DefaultCacheBytes, extsort.DefaultRunPages, extsort.DefaultFanIn)

	return os.WriteFile(path, []byte(content), 0o644)
}
