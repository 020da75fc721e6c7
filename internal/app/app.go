// Package app drives one harness run: it resolves the data directories,
// samples device counters around a parallel scan of every file, and
// renders the report.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arkilian/scanbench/internal/config"
	"github.com/arkilian/scanbench/internal/diskstats"
	"github.com/arkilian/scanbench/internal/engine"
	scanerrors "github.com/arkilian/scanbench/internal/errors"
	"github.com/arkilian/scanbench/internal/observability"
	"github.com/arkilian/scanbench/internal/report"
	"github.com/arkilian/scanbench/internal/scan"
	"github.com/arkilian/scanbench/internal/storage"
)

// Backend is a file-access backend that can also enumerate directories.
type Backend interface {
	storage.FileSystem
	storage.Lister
}

// App runs the harness with a fixed configuration.
type App struct {
	cfg       *config.Config
	backend   Backend
	sampler   *diskstats.Sampler
	supported func() bool
}

// Option configures an App.
type Option func(*App)

// WithBackend replaces the backend derived from the storage configuration.
func WithBackend(b Backend) Option {
	return func(a *App) {
		a.backend = b
	}
}

// WithSampler replaces the device counter sampler.
func WithSampler(s *diskstats.Sampler) Option {
	return func(a *App) {
		a.sampler = s
		a.supported = func() bool { return true }
	}
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	// Resolve defaults and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{
		cfg:       cfg,
		sampler:   diskstats.NewSampler(),
		supported: diskstats.Supported,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Run scans every file in dirs and writes the report to out. It fails
// before scanning anything if a directory cannot be opened.
func (a *App) Run(ctx context.Context, dirs []string, out io.Writer) (*report.Report, error) {
	if len(dirs) == 0 {
		return nil, scanerrors.NewConfigError(scanerrors.CodeInvalidValue, "at least one data directory is required")
	}

	if a.backend == nil {
		backend, err := a.openBackend(ctx)
		if err != nil {
			return nil, err
		}
		a.backend = backend
	}

	files, err := a.listFiles(ctx, dirs)
	if err != nil {
		return nil, err
	}
	log.Printf("app: %d files in %d directories", len(files), len(dirs))

	eng, err := engine.NewSQLiteEngine(engine.SQLiteConfig{
		StagingDir: a.cfg.StagingDir,
		Table:      a.cfg.Table,
		ChunkSize:  a.cfg.ChunkSize,
		BlockSize:  a.cfg.BlockSize,
	})
	if err != nil {
		return nil, scanerrors.NewEngineError(scanerrors.CodeStageFailed, "failed to create engine", err)
	}

	monitor := diskstats.NewMonitor(a.sampler, a.devices())
	recorder := observability.NewScanStats()

	orch, err := scan.New(ctx, scan.Config{
		Engine:     eng,
		FileSystem: a.backend,
		Predicate:  a.cfg.Predicate(),
		Workers:    a.cfg.Jobs,
		Recorder:   recorder,
	})
	if err != nil {
		return nil, scanerrors.NewInternalError("failed to create orchestrator", err)
	}

	monitor.Start()
	start := time.Now()

	for _, f := range files {
		orch.AddTask(f)
	}
	orch.Wait()

	elapsed := time.Since(start)
	deltas, totals := monitor.Stop()
	orch.Close()

	rep := &report.Report{
		RunID:        uuid.New().String(),
		Predicate:    orch.Predicate(),
		Workers:      orch.Workers(),
		Files:        len(files),
		Failed:       orch.Failed(),
		Elapsed:      elapsed,
		TotalRows:    orch.TotalRows(),
		ReadOps:      orch.TotalReadOps(),
		ReadBytes:    orch.TotalReadBytes(),
		Devices:      deltas,
		DeviceTotals: totals,
	}
	if a.cfg.Slowest > 0 {
		rep.Slowest = recorder.GetSlowest(a.cfg.Slowest)
	}

	if out != nil {
		if err := a.write(rep, out); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// devices returns the configured devices, or none when this platform
// exposes no per-device counters.
func (a *App) devices() []string {
	if len(a.cfg.Devices) == 0 {
		return nil
	}
	if !a.supported() {
		log.Printf("app: device statistics are not available on this platform; ignoring %s",
			strings.Join(a.cfg.Devices, ","))
		return nil
	}
	for _, dev := range a.cfg.Devices {
		if _, err := a.sampler.Read(dev); err != nil {
			log.Printf("app: %v; device deltas will read as zero", err)
		}
	}
	return a.cfg.Devices
}

func (a *App) write(rep *report.Report, out io.Writer) error {
	if a.cfg.Format == config.FormatJSON {
		return rep.WriteJSON(out)
	}
	return rep.WriteText(out)
}

// openBackend builds the backend named by the storage configuration.
func (a *App) openBackend(ctx context.Context) (Backend, error) {
	switch a.cfg.Storage.Type {
	case config.StorageS3:
		s3cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3cfg.Region = a.cfg.Storage.S3.Region
		}
		s3cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		s3cfg.UsePathStyle = a.cfg.Storage.S3.Endpoint != ""

		fs, err := storage.NewS3FS(ctx, a.cfg.Storage.S3.Bucket, s3cfg)
		if err != nil {
			return nil, scanerrors.NewStorageError(scanerrors.CodeOpenFailed, "failed to create S3 backend", err)
		}
		log.Printf("app: using S3 bucket %s", a.cfg.Storage.S3.Bucket)
		return fs, nil
	default:
		return storage.NewLocalFS(), nil
	}
}

// listFiles enumerates every directory. Directories may be given as
// s3://bucket/prefix when the backend is S3.
func (a *App) listFiles(ctx context.Context, dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		path, err := a.resolveDir(dir)
		if err != nil {
			return nil, err
		}

		entries, err := a.backend.List(ctx, path)
		if err != nil {
			return nil, scanerrors.NewStorageError(scanerrors.CodeDirectoryOpen,
				fmt.Sprintf("failed to open data directory %s", dir), err)
		}
		files = append(files, entries...)
	}
	return files, nil
}

func (a *App) resolveDir(dir string) (string, error) {
	if !strings.HasPrefix(dir, "s3://") {
		return dir, nil
	}
	if a.cfg.Storage.Type != config.StorageS3 {
		return "", scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("%s requires storage type s3", dir))
	}
	bucket, prefix, ok := storage.ParseS3URI(dir)
	if !ok || bucket != a.cfg.Storage.S3.Bucket {
		return "", scanerrors.NewConfigError(scanerrors.CodeInvalidValue,
			fmt.Sprintf("%s is not in bucket %s", dir, a.cfg.Storage.S3.Bucket))
	}
	return prefix, nil
}
