package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	if cfg.Storage.PoolPages != 256 {
		t.Errorf("Expected default pool of 256 pages, got %d", cfg.Storage.PoolPages)
	}
	if cfg.Sort.RunPages != 64 || cfg.Sort.FanIn != 16 {
		t.Errorf("Expected default sort 64/16, got %d/%d", cfg.Sort.RunPages, cfg.Sort.FanIn)
	}
	if cfg.Aggregate.ExactAverages || cfg.Aggregate.HashOnlyGroups {
		t.Errorf("Expected aggregation variants off by default, got %+v", cfg.Aggregate)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Log.Level)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		shouldError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = " " }, true},
		{"pool too small", func(c *Config) { c.Storage.PoolPages = 1 }, true},
		{"negative workers", func(c *Config) { c.Storage.LoadWorkers = -1 }, true},
		{"no run pages", func(c *Config) { c.Sort.RunPages = 0 }, true},
		{"fan in of one", func(c *Config) { c.Sort.FanIn = 1 }, true},
		{"runs as large as the pool", func(c *Config) { c.Sort.RunPages = c.Storage.PoolPages }, true},
		{"fan in beyond the pool", func(c *Config) { c.Storage.PoolPages, c.Sort.RunPages, c.Sort.FanIn = 8, 1, 16 }, true},
		{"fan in filling the pool", func(c *Config) { c.Storage.PoolPages, c.Sort.RunPages, c.Sort.FanIn = 8, 1, 5 }, false},
		{"invalid log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"invalid log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"json format", func(c *Config) { c.Log.Format = "JSON" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.shouldError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "pagedb.yaml")

	cfgContent := `
storage:
  data_dir: /tmp/pagedb
  pool_pages: 32
sort:
  run_pages: 4
  fan_in: 3
aggregate:
  exact_averages: true
log:
  level: debug
`
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/pagedb" {
		t.Errorf("Expected data dir /tmp/pagedb, got %s", cfg.Storage.DataDir)
	}
	if cfg.Pool().MaxPinnedPages != 32 {
		t.Errorf("Expected pool of 32 pages, got %d", cfg.Pool().MaxPinnedPages)
	}
	if cfg.Sort.RunPages != 4 || cfg.Sort.FanIn != 3 {
		t.Errorf("Expected sort 4/3, got %d/%d", cfg.Sort.RunPages, cfg.Sort.FanIn)
	}
	if !cfg.Aggregate.ExactAverages {
		t.Error("Expected exact averages")
	}
	if cfg.Logging().Level != "DEBUG" {
		t.Errorf("Expected DEBUG level, got %s", cfg.Logging().Level)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "pagedb.yaml")
	if err := os.WriteFile(cfgPath, []byte("sort:\n  fan_in: 1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Expected validation error for fan_in 1")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAGEDB_SORT_FAN_IN", "8")
	t.Setenv("PAGEDB_STORAGE_DATA_DIR", "/var/lib/pagedb")
	t.Setenv("PAGEDB_AGGREGATE_HASH_ONLY_GROUPS", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Sort.FanIn != 8 {
		t.Errorf("Expected fan in 8 from env, got %d", cfg.Sort.FanIn)
	}
	if cfg.Storage.DataDir != "/var/lib/pagedb" {
		t.Errorf("Expected data dir from env, got %s", cfg.Storage.DataDir)
	}
	if !cfg.Aggregate.HashOnlyGroups {
		t.Error("Expected hash-only groups from env")
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagedb.yaml")
	if err := CreateDefaultConfig(path, "/srv/data"); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}
	if cfg.Storage.DataDir != "/srv/data" {
		t.Errorf("Expected data dir /srv/data, got %s", cfg.Storage.DataDir)
	}
	if cfg.Storage.CacheBytes != 16<<20 {
		t.Errorf("Expected default cache bytes, got %d", cfg.Storage.CacheBytes)
	}
}
