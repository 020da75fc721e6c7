// Package config provides configuration for the scan harness.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/arkilian/scanbench/internal/diskstats"
	scanerrors "github.com/arkilian/scanbench/internal/errors"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "SCANBENCH_"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Storage types.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the configuration of one harness run.
type Config struct {
	// Filter is the threshold in the predicate "<Column> > <Filter>"
	Filter float64 `json:"filter" yaml:"filter"`

	// Jobs is the number of concurrent scans
	Jobs int `json:"jobs" yaml:"jobs"`

	// Devices lists block devices whose counters are sampled around the run
	Devices []string `json:"devices" yaml:"devices"`

	// Table is the table scanned in every file
	Table string `json:"table" yaml:"table"`

	// Column is the column compared against Filter
	Column string `json:"column" yaml:"column"`

	// StagingDir receives the engine's private copies of scanned files
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`

	// ChunkSize bounds the rows per result chunk
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// BlockSize is the read size used while staging a file
	BlockSize int `json:"block_size" yaml:"block_size"`

	// Format selects the report format: text or json
	Format string `json:"format" yaml:"format"`

	// Slowest is the number of slowest scans listed in the report
	Slowest int `json:"slowest" yaml:"slowest"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	// Type is the storage type: local or s3
	Type string `json:"type" yaml:"type"`

	// S3 holds S3-specific configuration
	S3 S3StorageConfig `json:"s3" yaml:"s3"`
}

// S3StorageConfig holds S3 storage configuration.
type S3StorageConfig struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Filter:     0.5,
		Jobs:       32,
		Table:      "particles",
		Column:     "ke",
		StagingDir: "",
		ChunkSize:  2048,
		BlockSize:  64 * 1024,
		Format:     FormatText,
		Slowest:    0,
		Storage: StorageConfig{
			Type: StorageLocal,
			S3: S3StorageConfig{
				Region: "us-east-1",
			},
		},
	}
}

// Resolve fills derived defaults and clamps out-of-range values.
func (c *Config) Resolve() {
	if c.Jobs < 1 {
		c.Jobs = 1
	}
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(os.TempDir(), "scanbench-staging")
	}
	if c.Table == "" {
		c.Table = "particles"
	}
	if c.Column == "" {
		c.Column = "ke"
	}
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageLocal
	}
	if c.Slowest < 0 {
		c.Slowest = 0
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Format != FormatText && c.Format != FormatJSON {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("invalid format: %s (must be text or json)", c.Format))
	}

	if math.IsNaN(c.Filter) || math.IsInf(c.Filter, 0) {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("filter must be a finite number, got %v", c.Filter))
	}

	if c.Storage.Type != StorageLocal && c.Storage.Type != StorageS3 {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("invalid storage type: %s (must be local or s3)", c.Storage.Type))
	}

	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			"s3.bucket is required when storage type is s3")
	}

	if !isIdentifier(c.Table) {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("invalid table name: %q", c.Table))
	}

	if !isIdentifier(c.Column) {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("invalid column name: %q", c.Column))
	}

	if c.ChunkSize < 1 {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("chunk_size must be positive, got %d", c.ChunkSize))
	}

	if c.BlockSize < 1 {
		return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("block_size must be positive, got %d", c.BlockSize))
	}

	return nil
}

// Predicate returns the filter applied to every scan.
func (c *Config) Predicate() string {
	return c.Column + " > " + strconv.FormatFloat(c.Filter, 'g', -1, 64)
}

// isIdentifier reports whether s is a plain SQL identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, scanerrors.NewConfigError(scanerrors.CodeUnsupportedFmt,
			fmt.Sprintf("unsupported config file format: %s", ext))
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment. Variables already set are not overridden. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays environment variables onto cfg.
// Environment variables use the SCANBENCH_ prefix.
func LoadFromEnv(cfg *Config) error {
	if v := getenv("FILTER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return invalidEnv("FILTER", v)
		}
		cfg.Filter = f
	}
	if v := getenv("JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv("JOBS", v)
		}
		cfg.Jobs = n
	}
	if v := getenv("DEVICES"); v != "" {
		cfg.Devices = diskstats.ParseDeviceList(v)
	}
	if v := getenv("TABLE"); v != "" {
		cfg.Table = v
	}
	if v := getenv("COLUMN"); v != "" {
		cfg.Column = v
	}
	if v := getenv("STAGING_DIR"); v != "" {
		cfg.StagingDir = v
	}
	if v := getenv("CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv("CHUNK_SIZE", v)
		}
		cfg.ChunkSize = n
	}
	if v := getenv("BLOCK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv("BLOCK_SIZE", v)
		}
		cfg.BlockSize = n
	}
	if v := getenv("FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := getenv("SLOWEST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalidEnv("SLOWEST", v)
		}
		cfg.Slowest = n
	}

	// Storage configuration
	if v := getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := getenv("S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	return nil
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func invalidEnv(name, value string) error {
	return scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
		fmt.Sprintf("invalid %s%s: %q", EnvPrefix, name, value))
}

// EnsureDirectories creates the directories the run writes to.
func (c *Config) EnsureDirectories() error {
	if c.StagingDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.StagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.StagingDir, err)
	}
	return nil
}
