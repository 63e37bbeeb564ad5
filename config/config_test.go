package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Storage.Driver != "sqlite" {
			t.Errorf("Storage.Driver = %s, want sqlite", cfg.Storage.Driver)
		}
		if cfg.Storage.DSN != "file:msrptw.db?_foreign_keys=on" {
			t.Errorf("Storage.DSN = %s", cfg.Storage.DSN)
		}
		if cfg.Storage.MaxConns != 4 {
			t.Errorf("Storage.MaxConns = %d, want 4", cfg.Storage.MaxConns)
		}
		if cfg.Fetch.Workers != 0 {
			t.Errorf("Fetch.Workers = %d, want 0", cfg.Fetch.Workers)
		}
		if cfg.Fetch.Timeout != 30*time.Second {
			t.Errorf("Fetch.Timeout = %v, want 30s", cfg.Fetch.Timeout)
		}
		if cfg.Fetch.Retries != 0 {
			t.Errorf("Fetch.Retries = %d, want 0", cfg.Fetch.Retries)
		}
		if cfg.Fetch.RatePerSecond != 2 {
			t.Errorf("Fetch.RatePerSecond = %v, want 2", cfg.Fetch.RatePerSecond)
		}
		if cfg.Review.Mode != "terminal" {
			t.Errorf("Review.Mode = %s, want terminal", cfg.Review.Mode)
		}
		if cfg.Cache.TTL != 10*time.Minute {
			t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "json" || cfg.Log.Persist {
			t.Errorf("Log = %+v, want info/json/no persist", cfg.Log)
		}
		if len(cfg.Retailers) != 0 {
			t.Errorf("Retailers = %v, want none", cfg.Retailers)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		t.Setenv("MSRPTW_SERVER_PORT", "9090")
		t.Setenv("MSRPTW_STORAGE_DRIVER", "postgres")
		t.Setenv("MSRPTW_STORAGE_DSN", "postgres://localhost/msrptw")
		t.Setenv("MSRPTW_FETCH_WORKERS", "3")
		t.Setenv("MSRPTW_FETCH_TIMEOUT", "5s")
		t.Setenv("MSRPTW_REVIEW_MODE", "skip")
		t.Setenv("MSRPTW_LOG_PERSIST", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Storage.Driver != "postgres" {
			t.Errorf("Storage.Driver = %s, want postgres", cfg.Storage.Driver)
		}
		if cfg.Storage.DSN != "postgres://localhost/msrptw" {
			t.Errorf("Storage.DSN = %s", cfg.Storage.DSN)
		}
		if cfg.Fetch.Workers != 3 {
			t.Errorf("Fetch.Workers = %d, want 3", cfg.Fetch.Workers)
		}
		if cfg.Fetch.Timeout != 5*time.Second {
			t.Errorf("Fetch.Timeout = %v, want 5s", cfg.Fetch.Timeout)
		}
		if cfg.Review.Mode != "skip" {
			t.Errorf("Review.Mode = %s, want skip", cfg.Review.Mode)
		}
		if !cfg.Log.Persist {
			t.Error("Log.Persist = false, want true")
		}
	})

	t.Run("fails validation for unknown storage driver", func(t *testing.T) {
		t.Setenv("MSRPTW_STORAGE_DRIVER", "mysql")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for unknown driver")
		}
	})
}

func TestLoadWithFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.yaml")
	content := `
storage:
  driver: memory
fetch:
  workers: 2
retailers:
  - name: 頂好
    kind: json
    list_url: https://example.test/api?category={selector}
    items_path: data.items
    default_origin: 臺灣
    fields:
      id: sku
      name: title
      price: price.current
    categories:
      豬肉: ["101", "102"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	newFlags := func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("crawl", pflag.ContinueOnError)
		fs.String("config", "", "")
		fs.Int("workers", 0, "")
		fs.String("review", "terminal", "")
		return fs
	}

	t.Run("reads explicit config file", func(t *testing.T) {
		fs := newFlags()
		if err := fs.Parse([]string{"--config", path}); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadWithFlags(fs)
		if err != nil {
			t.Fatalf("LoadWithFlags() error = %v", err)
		}
		if cfg.Storage.Driver != "memory" {
			t.Errorf("Storage.Driver = %s, want memory", cfg.Storage.Driver)
		}
		if cfg.Fetch.Workers != 2 {
			t.Errorf("Fetch.Workers = %d, want 2", cfg.Fetch.Workers)
		}
		if len(cfg.Retailers) != 1 {
			t.Fatalf("Retailers = %d, want 1", len(cfg.Retailers))
		}
		r := cfg.Retailers[0]
		if r.Name != "頂好" || r.Kind != "json" || r.ItemsPath != "data.items" {
			t.Errorf("retailer = %+v", r)
		}
		if r.Fields["price"] != "price.current" {
			t.Errorf("Fields[price] = %s", r.Fields["price"])
		}
		if got := r.Categories["豬肉"]; len(got) != 2 || got[0] != "101" {
			t.Errorf("Categories[豬肉] = %v", got)
		}
	})

	t.Run("flags override file values", func(t *testing.T) {
		fs := newFlags()
		if err := fs.Parse([]string{"--config", path, "--workers", strconv.Itoa(runtime.NumCPU() + 1), "--review", "skip"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadWithFlags(fs)
		if err != nil {
			t.Fatalf("LoadWithFlags() error = %v", err)
		}
		if cfg.Fetch.Workers != runtime.NumCPU()+1 {
			t.Errorf("Fetch.Workers = %d, want %d", cfg.Fetch.Workers, runtime.NumCPU()+1)
		}
		if cfg.Review.Mode != "skip" {
			t.Errorf("Review.Mode = %s, want skip", cfg.Review.Mode)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		fs := newFlags()
		if err := fs.Parse([]string{"--config", filepath.Join(dir, "missing.yaml")}); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadWithFlags(fs); err == nil {
			t.Error("LoadWithFlags() error = nil, want error for missing file")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage: StorageConfig{Driver: "sqlite", DSN: "file:test.db"},
			Fetch:   FetchConfig{Timeout: time.Second},
			Review:  ReviewConfig{Mode: "terminal"},
		}
	}

	t.Run("validates successfully with all required fields", func(t *testing.T) {
		if err := validate(valid()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dsn for sqlite", func(c *Config) { c.Storage.DSN = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "oracle" }},
		{"negative workers", func(c *Config) { c.Fetch.Workers = -1 }},
		{"zero timeout", func(c *Config) { c.Fetch.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Fetch.Retries = -1 }},
		{"unknown review mode", func(c *Config) { c.Review.Mode = "gui" }},
		{"retailer without name", func(c *Config) {
			c.Retailers = []RetailerConfig{{Kind: "html", ListURL: "http://x/{selector}"}}
		}},
		{"retailer with unknown kind", func(c *Config) {
			c.Retailers = []RetailerConfig{{Name: "a", Kind: "xml", ListURL: "http://x/{selector}"}}
		}},
		{"retailer list url without placeholder", func(c *Config) {
			c.Retailers = []RetailerConfig{{Name: "a", Kind: "html", ListURL: "http://x/"}}
		}},
	}

	for _, tt := range tests {
		t.Run("fails for "+tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Error("validate() error = nil, want error")
			}
		})
	}

	t.Run("memory driver needs no dsn", func(t *testing.T) {
		cfg := valid()
		cfg.Storage = StorageConfig{Driver: "memory"}
		if err := validate(cfg); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})
}
