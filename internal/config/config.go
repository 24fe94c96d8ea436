package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the goldenbar pipeline.
type Config struct {
	Storage Storage     `yaml:"storage"`
	Quote   Endpoint    `yaml:"quote"`
	Archive Endpoint    `yaml:"archive"`
	Output  Output      `yaml:"output"`
	Batch   BatchConfig `yaml:"batch"`
	Logging Logging     `yaml:"logging"`
	Debug   bool        `yaml:"debug"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	// ParquetDir, when set, enables the parquet mirror of fetched minute
	// bars alongside the csv.xz caches.
	ParquetDir string `yaml:"parquet_dir"`
}

// Endpoint identifies one remote HTTP service. Port 443 implies HTTPS.
type Endpoint struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BaseURL renders the endpoint as a URL prefix without a trailing slash.
func (e Endpoint) BaseURL() string {
	if e.Port == 443 {
		return "https://" + e.Host
	}
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// Output holds the destination for rendered indicator files.
type Output struct {
	THSDir string `yaml:"ths_dir"`
}

// BatchConfig controls the per-run symbol universe and fetch behaviour.
type BatchConfig struct {
	// Symbols is the universe to update each run.
	Symbols []string `yaml:"symbols"`
	// IndexList marks which symbols are indices; index volumes are stored
	// in lots and indices carry no valuation series.
	IndexList []string `yaml:"index_list"`
	// Lookback is the cache window length in trading sessions.
	Lookback int `yaml:"lookback"`
	// MaxInflight bounds concurrent per-day minute fetches.
	MaxInflight int `yaml:"max_inflight"`
	// ArchivePerMin paces archive-file downloads.
	ArchivePerMin int `yaml:"archive_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOLDENBAR_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("GOLDENBAR_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("GOLDENBAR_THS_DIR"); v != "" {
		cfg.Output.THSDir = v
	}
	if v := os.Getenv("GOLDENBAR_QUOTE_HOST"); v != "" {
		cfg.Quote.Host = v
	}
	if v := os.Getenv("GOLDENBAR_QUOTE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Quote.Port = p
		}
	}
	if v := os.Getenv("GOLDENBAR_ARCHIVE_HOST"); v != "" {
		cfg.Archive.Host = v
	}
	if v := os.Getenv("GOLDENBAR_ARCHIVE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Archive.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills the fields that have sensible fixed defaults.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data_ths"
	}
	if cfg.Batch.Lookback <= 0 {
		cfg.Batch.Lookback = 360
	}
	if cfg.Batch.MaxInflight <= 0 {
		cfg.Batch.MaxInflight = 50
	}
	if cfg.Batch.ArchivePerMin <= 0 {
		cfg.Batch.ArchivePerMin = 120
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// IsIndex reports whether symbol is configured as an index.
func (b BatchConfig) IsIndex(symbol string) bool {
	for _, s := range b.IndexList {
		if s == symbol {
			return true
		}
	}
	return false
}
