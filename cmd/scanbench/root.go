package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkilian/scanbench/internal/app"
	"github.com/arkilian/scanbench/internal/config"
	"github.com/arkilian/scanbench/internal/diskstats"
)

var (
	version = "dev"
	commit  = "unknown"
)

// options holds the raw command line values.
type options struct {
	configFile  string
	envFile     string
	filter      float64
	jobs        int
	devices     string
	table       string
	column      string
	stagingDir  string
	chunkSize   int
	blockSize   int
	format      string
	slowest     int
	storageType string
	s3Bucket    string
	s3Region    string
	s3Endpoint  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "scanbench [flags] DIR...",
		Short: "Scan partition files in parallel and report I/O behaviour",
		Long: `scanbench runs one filtered scan per file found in the given directories
on a bounded worker pool. It reports the number of matching rows, the read
operations and bytes the engine issued, and the change in block device
counters over the run.

Environment variables (prefix SCANBENCH_) are read after an optional .env
file; command line flags take precedence over both.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				log.Printf("Failed to load configuration: %v", err)
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				log.Printf("Failed to create application: %v", err)
				return err
			}

			if _, err := a.Run(ctx, args, cmd.OutOrStdout()); err != nil {
				log.Printf("Run failed: %v", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file loaded before the environment is read")
	flags.Float64Var(&opts.filter, "filter", 0.5, "Threshold in the predicate <column> > <filter>")
	flags.IntVarP(&opts.jobs, "jobs", "j", 32, "Number of concurrent scans")
	flags.StringVar(&opts.devices, "devices", "", "Comma-separated block devices to sample (e.g. nvme0n1,sda)")
	flags.StringVar(&opts.table, "table", "particles", "Table scanned in every file")
	flags.StringVar(&opts.column, "column", "ke", "Column compared against the filter")
	flags.StringVar(&opts.stagingDir, "staging-dir", "", "Directory for the engine's staging copies")
	flags.IntVar(&opts.chunkSize, "chunk-size", 2048, "Maximum rows per result chunk")
	flags.IntVar(&opts.blockSize, "block-size", 64*1024, "Read size used while staging a file")
	flags.StringVar(&opts.format, "format", config.FormatText, "Report format: text or json")
	flags.IntVar(&opts.slowest, "slowest", 0, "Number of slowest scans to list in the report")
	flags.StringVar(&opts.storageType, "storage", config.StorageLocal, "Storage type: local or s3")
	flags.StringVar(&opts.s3Bucket, "s3-bucket", "", "S3 bucket holding the data directories")
	flags.StringVar(&opts.s3Region, "s3-region", "", "S3 region")
	flags.StringVar(&opts.s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint (MinIO, LocalStack)")

	return cmd
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if opts.configFile != "" {
		cfg, err = config.LoadFromFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply .env and environment variables
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// Apply command line flags (highest priority)
	flags := cmd.Flags()
	if flags.Changed("filter") {
		cfg.Filter = opts.filter
	}
	if flags.Changed("jobs") {
		cfg.Jobs = opts.jobs
	}
	if flags.Changed("devices") {
		cfg.Devices = diskstats.ParseDeviceList(opts.devices)
	}
	if flags.Changed("table") {
		cfg.Table = opts.table
	}
	if flags.Changed("column") {
		cfg.Column = opts.column
	}
	if flags.Changed("staging-dir") {
		cfg.StagingDir = opts.stagingDir
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = opts.chunkSize
	}
	if flags.Changed("block-size") {
		cfg.BlockSize = opts.blockSize
	}
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("slowest") {
		cfg.Slowest = opts.slowest
	}
	if flags.Changed("storage") {
		cfg.Storage.Type = opts.storageType
	}
	if flags.Changed("s3-bucket") {
		cfg.Storage.S3.Bucket = opts.s3Bucket
	}
	if flags.Changed("s3-region") {
		cfg.Storage.S3.Region = opts.s3Region
	}
	if flags.Changed("s3-endpoint") {
		cfg.Storage.S3.Endpoint = opts.s3Endpoint
	}

	return cfg, nil
}
