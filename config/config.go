package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Fetch        FetchConfig
	Review       ReviewConfig
	Cache        CacheConfig
	Log          LogConfig
	TaxonomyFile string           `mapstructure:"taxonomy_file"`
	Retailers    []RetailerConfig `mapstructure:"retailers"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig selects and tunes the storage backend
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // "sqlite", "postgres" or "memory"
	DSN        string `mapstructure:"dsn"`
	MaxConns   int32  `mapstructure:"max_conns"`
	ViaBouncer bool   `mapstructure:"via_bouncer"` // pgbouncer in transaction mode needs the simple protocol
}

// FetchConfig tunes the retailer fetch pool
type FetchConfig struct {
	Workers       int           `mapstructure:"workers"` // 0 means one per CPU
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	UserAgent     string        `mapstructure:"user_agent"`
	Retries       int           `mapstructure:"retries"` // extra attempts on 5xx or connection errors
}

// ReviewConfig selects how unmatched products are reviewed
type ReviewConfig struct {
	Mode string `mapstructure:"mode"` // "terminal" or "skip"
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`  // "json" or "console"
	Persist bool   `mapstructure:"persist"` // also write records to the store's logs table
}

// RetailerConfig describes how one retailer's listings are fetched
type RetailerConfig struct {
	Name          string              `mapstructure:"name"`
	Kind          string              `mapstructure:"kind"` // "html" or "json"
	BaseURL       string              `mapstructure:"base_url"`
	ListURL       string              `mapstructure:"list_url"` // contains {selector}
	LinkSelector  string              `mapstructure:"link_selector"`
	ItemsPath     string              `mapstructure:"items_path"`
	IDPattern     string              `mapstructure:"id_pattern"`
	DefaultOrigin string              `mapstructure:"default_origin"`
	Fields        map[string]string   `mapstructure:"fields"`
	Categories    map[string][]string `mapstructure:"categories"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with command line overrides. Recognized flags are
// --config (explicit config file), --workers and --review.
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/msrptw/")

	// Environment variable settings
	v.SetEnvPrefix("MSRPTW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if f := flags.Lookup("config"); f != nil && f.Changed {
		v.SetConfigFile(f.Value.String())
	}

	bindings := map[string]string{
		"workers": "fetch.workers",
		"review":  "review.mode",
	}
	for flag, key := range bindings {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "file:msrptw.db?_foreign_keys=on")
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("storage.via_bouncer", false)

	// Fetch defaults
	v.SetDefault("fetch.workers", 0)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.rate_per_second", 2)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.user_agent", "msrptw/1.0")
	v.SetDefault("fetch.retries", 0)

	v.SetDefault("review.mode", "terminal")

	v.SetDefault("cache.ttl", "10m")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.persist", false)

	v.SetDefault("taxonomy_file", "")
	v.SetDefault("retailers", []RetailerConfig{})
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Storage.Driver {
	case "sqlite", "postgres":
		if config.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for driver %s (set MSRPTW_STORAGE_DSN)", config.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("storage driver must be 'sqlite', 'postgres' or 'memory', got: %s", config.Storage.Driver)
	}

	if config.Fetch.Workers < 0 {
		return fmt.Errorf("fetch workers must not be negative, got: %d", config.Fetch.Workers)
	}

	if config.Fetch.Retries < 0 {
		return fmt.Errorf("fetch retries must not be negative, got: %d", config.Fetch.Retries)
	}

	if config.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got: %s", config.Fetch.Timeout)
	}

	if config.Review.Mode != "terminal" && config.Review.Mode != "skip" {
		return fmt.Errorf("review mode must be 'terminal' or 'skip', got: %s", config.Review.Mode)
	}

	for i, r := range config.Retailers {
		if r.Name == "" {
			return fmt.Errorf("retailer #%d has no name", i)
		}
		if r.Kind != "html" && r.Kind != "json" {
			return fmt.Errorf("retailer %s: kind must be 'html' or 'json', got: %s", r.Name, r.Kind)
		}
		if !strings.Contains(r.ListURL, "{selector}") {
			return fmt.Errorf("retailer %s: list_url must contain {selector}", r.Name)
		}
	}

	return nil
}
