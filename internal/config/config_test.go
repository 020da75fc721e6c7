package config

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	scanerrors "github.com/arkilian/scanbench/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Filter != 0.5 {
		t.Errorf("Filter = %v, want 0.5", cfg.Filter)
	}
	if cfg.Jobs != 32 {
		t.Errorf("Jobs = %d, want 32", cfg.Jobs)
	}
	if cfg.ChunkSize != 2048 {
		t.Errorf("ChunkSize = %d, want 2048", cfg.ChunkSize)
	}
	if cfg.Format != FormatText || cfg.Storage.Type != StorageLocal {
		t.Errorf("unexpected defaults: format=%s storage=%s", cfg.Format, cfg.Storage.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestPredicate(t *testing.T) {
	tests := []struct {
		column string
		filter float64
		want   string
	}{
		{"ke", 0.5, "ke > 0.5"},
		{"ke", 0, "ke > 0"},
		{"x", 0.125, "x > 0.125"},
		{"uz", -1.5, "uz > -1.5"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Column = tt.column
		cfg.Filter = tt.filter
		if got := cfg.Predicate(); got != tt.want {
			t.Errorf("Predicate() = %q, want %q", got, tt.want)
		}
	}
}

func TestResolve_ClampsJobs(t *testing.T) {
	for _, jobs := range []int{0, -4} {
		cfg := DefaultConfig()
		cfg.Jobs = jobs
		cfg.Resolve()
		if cfg.Jobs != 1 {
			t.Errorf("Jobs %d resolved to %d, want 1", jobs, cfg.Jobs)
		}
	}

	cfg := DefaultConfig()
	cfg.Resolve()
	if cfg.StagingDir == "" {
		t.Error("expected staging dir to be resolved")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"nan filter", func(c *Config) { c.Filter = math.NaN() }},
		{"infinite filter", func(c *Config) { c.Filter = math.Inf(1) }},
		{"negative infinite filter", func(c *Config) { c.Filter = math.Inf(-1) }},
		{"bad storage", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = StorageS3 }},
		{"bad table", func(c *Config) { c.Table = "particles; DROP" }},
		{"bad column", func(c *Config) { c.Column = "1ke" }},
		{"empty column", func(c *Config) { c.Column = "" }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"zero block size", func(c *Config) { c.BlockSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if scanerrors.GetCategory(err) != scanerrors.ErrCategoryConfig {
				t.Errorf("expected CONFIG category, got %s", scanerrors.GetCategory(err))
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Storage.Type = StorageS3
	cfg.Storage.S3.Bucket = "particles"
	if err := cfg.Validate(); err != nil {
		t.Errorf("s3 config with bucket should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCANBENCH_FILTER", "0.75")
	t.Setenv("SCANBENCH_JOBS", "8")
	t.Setenv("SCANBENCH_DEVICES", "sda, nvme0n1,,")
	t.Setenv("SCANBENCH_COLUMN", "ux")
	t.Setenv("SCANBENCH_CHUNK_SIZE", "512")
	t.Setenv("SCANBENCH_FORMAT", "JSON")
	t.Setenv("SCANBENCH_SLOWEST", "5")
	t.Setenv("SCANBENCH_STORAGE_TYPE", "s3")
	t.Setenv("SCANBENCH_S3_BUCKET", "bench")
	t.Setenv("SCANBENCH_S3_ENDPOINT", "http://localhost:9000")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Filter != 0.75 || cfg.Jobs != 8 || cfg.ChunkSize != 512 || cfg.Slowest != 5 {
		t.Errorf("numeric values not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Devices, []string{"sda", "nvme0n1"}) {
		t.Errorf("Devices = %v", cfg.Devices)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("Format = %s, want json", cfg.Format)
	}
	if cfg.Storage.Type != StorageS3 || cfg.Storage.S3.Bucket != "bench" || cfg.Storage.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("storage not applied: %+v", cfg.Storage)
	}
	if got := cfg.Predicate(); got != "ux > 0.75" {
		t.Errorf("Predicate() = %q", got)
	}
}

func TestLoadFromEnv_InvalidNumber(t *testing.T) {
	for _, name := range []string{"SCANBENCH_FILTER", "SCANBENCH_JOBS", "SCANBENCH_CHUNK_SIZE"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "lots")
			err := LoadFromEnv(DefaultConfig())
			if scanerrors.GetCode(err) != scanerrors.CodeInvalidValue {
				t.Errorf("expected INVALID_VALUE, got %v", err)
			}
		})
	}
}

func TestLoadFromEnv_NonFiniteFilterRejected(t *testing.T) {
	for _, v := range []string{"nan", "inf", "-Inf"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("SCANBENCH_FILTER", v)
			cfg := DefaultConfig()
			if err := LoadFromEnv(cfg); err != nil {
				t.Fatalf("LoadFromEnv failed: %v", err)
			}
			err := cfg.Validate()
			if scanerrors.GetCode(err) != scanerrors.CodeInvalidValue {
				t.Errorf("expected INVALID_VALUE for filter %q, got %v", v, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bench.yaml")
	yamlData := "filter: 0.9\njobs: 4\ndevices: [sda, sdb]\nstorage:\n  type: s3\n  s3:\n    bucket: data\n"
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFromFile(yaml) failed: %v", err)
	}
	if cfg.Filter != 0.9 || cfg.Jobs != 4 || len(cfg.Devices) != 2 || cfg.Storage.S3.Bucket != "data" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.Column != "ke" || cfg.ChunkSize != 2048 {
		t.Errorf("defaults lost: column=%s chunk=%d", cfg.Column, cfg.ChunkSize)
	}

	jsonPath := filepath.Join(dir, "bench.json")
	if err := os.WriteFile(jsonPath, []byte(`{"filter": 0.1, "format": "json"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFromFile(json) failed: %v", err)
	}
	if cfg.Filter != 0.1 || cfg.Format != FormatJSON {
		t.Errorf("json values not applied: %+v", cfg)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	tomlPath := filepath.Join(dir, "bench.toml")
	os.WriteFile(tomlPath, []byte("filter = 1"), 0644)
	_, err := LoadFromFile(tomlPath)
	if scanerrors.GetCode(err) != scanerrors.CodeUnsupportedFmt {
		t.Errorf("expected UNSUPPORTED_FORMAT, got %v", err)
	}

	badPath := filepath.Join(dir, "bad.yaml")
	os.WriteFile(badPath, []byte("filter: [unterminated"), 0644)
	if _, err := LoadFromFile(badPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		t.Errorf("missing .env should not be an error: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SCANBENCH_TABLE=events\nSCANBENCH_JOBS=3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Already-set variables win over the file.
	t.Setenv("SCANBENCH_JOBS", "6")
	t.Setenv("SCANBENCH_TABLE", "")
	os.Unsetenv("SCANBENCH_TABLE")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Table != "events" {
		t.Errorf("Table = %s, want events", cfg.Table)
	}
	if cfg.Jobs != 6 {
		t.Errorf("Jobs = %d, want 6", cfg.Jobs)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StagingDir = filepath.Join(t.TempDir(), "a", "b")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.StagingDir); err != nil || !info.IsDir() {
		t.Errorf("staging dir not created: %v", err)
	}
}
