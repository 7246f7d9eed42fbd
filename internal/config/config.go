package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"bookstats/internal/analysis"
	"bookstats/internal/ingest"
)

// Snapshot backends
const (
	BackendNone       = "none"
	BackendParquet    = "parquet"
	BackendClickHouse = "clickhouse"
	BackendMock       = "mock"
)

// Config holds the application configuration
type Config struct {
	// DataDir holds the weekly source files
	DataDir string `yaml:"data_dir"`
	// Sheet is the worksheet read from xlsx sources
	Sheet       string `yaml:"sheet"`
	LoadWorkers int    `yaml:"load_workers"`
	WatchData   bool   `yaml:"watch_data_dir"`

	// FocusPublisher selects the catalog of the trend and heatmap views
	FocusPublisher string             `yaml:"focus_publisher"`
	GapPolicy      analysis.GapPolicy `yaml:"gap_policy"`

	// Snapshot configuration
	SnapshotBackend string `yaml:"snapshot_backend"`
	SnapshotPath    string `yaml:"snapshot_path"`

	// ClickHouse configuration
	ClickHouseHost     string `yaml:"clickhouse_host"`
	ClickHousePort     int    `yaml:"clickhouse_port"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`
	ClickHouseUseTLS   bool   `yaml:"clickhouse_use_tls"`

	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		DataDir:            "data",
		Sheet:              ingest.DefaultSheet,
		LoadWorkers:        runtime.NumCPU(),
		FocusPublisher:     "Adelphi",
		GapPolicy:          analysis.GapAnyPrevious,
		SnapshotBackend:    BackendNone,
		SnapshotPath:       "data/snapshot/consolidated.parquet",
		ClickHousePort:     9000, // Default ClickHouse native port
		ClickHouseDatabase: "default",
		ClickHouseUser:     "default",
		Port:               "8080",
		LogLevel:           "info",
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables, reading the
// YAML file named by BOOKSTATS_CONFIG first when it is set
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("BOOKSTATS_CONFIG"))
}

func (c *Config) applyEnv() error {
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.Sheet, "SOURCE_SHEET")
	setString(&c.FocusPublisher, "FOCUS_PUBLISHER")
	setString(&c.SnapshotBackend, "SNAPSHOT_BACKEND")
	setString(&c.SnapshotPath, "SNAPSHOT_PATH")
	setString(&c.ClickHouseHost, "CLICKHOUSE_HOST")
	setString(&c.ClickHouseDatabase, "CLICKHOUSE_DATABASE")
	setString(&c.ClickHouseUser, "CLICKHOUSE_USER")
	setString(&c.ClickHousePassword, "CLICKHOUSE_PASSWORD")
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("GAP_POLICY"); v != "" {
		c.GapPolicy = analysis.GapPolicy(v)
	}

	if v := os.Getenv("LOAD_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LOAD_WORKERS: %w", err)
		}
		c.LoadWorkers = n
	}

	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		c.ClickHousePort = port
	}

	if v := os.Getenv("CLICKHOUSE_USE_TLS"); v != "" {
		c.ClickHouseUseTLS = v == "true"
	}
	if v := os.Getenv("WATCH_DATA_DIR"); v != "" {
		c.WatchData = v == "true"
	}

	// USE_MOCK_DB=true is kept as a shorthand for the in-memory backend
	if os.Getenv("USE_MOCK_DB") == "true" {
		c.SnapshotBackend = BackendMock
	}
	return nil
}

// Validate checks the loaded values and normalises the enumerations
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.LoadWorkers < 1 {
		return fmt.Errorf("LOAD_WORKERS must be at least 1, got %d", c.LoadWorkers)
	}

	policy, err := analysis.ParseGapPolicy(string(c.GapPolicy))
	if err != nil {
		return fmt.Errorf("invalid GAP_POLICY: %w", err)
	}
	c.GapPolicy = policy

	c.SnapshotBackend = strings.ToLower(strings.TrimSpace(c.SnapshotBackend))
	switch c.SnapshotBackend {
	case "":
		c.SnapshotBackend = BackendNone
	case BackendNone, BackendMock:
	case BackendParquet:
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required when SNAPSHOT_BACKEND is parquet")
		}
	case BackendClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when SNAPSHOT_BACKEND is clickhouse")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
