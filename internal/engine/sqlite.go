package engine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	scanerrors "github.com/arkilian/scanbench/internal/errors"
	"github.com/arkilian/scanbench/internal/storage"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultChunkSize is the maximum number of rows per chunk.
	DefaultChunkSize = 2048

	// DefaultBlockSize is the read size used while staging a file.
	DefaultBlockSize = 64 * 1024

	// DefaultTable is the table scanned in every partition.
	DefaultTable = "particles"

	// CompressedSuffix marks snappy framed partitions.
	CompressedSuffix = ".sz"
)

// SQLiteConfig holds configuration for the SQLite engine.
type SQLiteConfig struct {
	// StagingDir receives the private copies that SQLite opens.
	StagingDir string

	// Table is the table scanned in each file (default: particles).
	Table string

	// ChunkSize bounds the rows returned by one Next call (default: 2048).
	ChunkSize int

	// BlockSize is the length of each ReadAt issued while staging (default: 64KB).
	BlockSize int
}

// DefaultSQLiteConfig returns the default engine configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		StagingDir: filepath.Join(os.TempDir(), "scanbench-staging"),
		Table:      DefaultTable,
		ChunkSize:  DefaultChunkSize,
		BlockSize:  DefaultBlockSize,
	}
}

// SQLiteEngine scans SQLite partition files. Each scan copies the file's
// bytes through the session's FileSystem into a private staging file and
// queries that copy read-only, so every byte the engine consumes is read
// via the pluggable backend.
type SQLiteEngine struct {
	config SQLiteConfig
}

// NewSQLiteEngine creates a new SQLite engine.
func NewSQLiteEngine(config SQLiteConfig) (*SQLiteEngine, error) {
	defaults := DefaultSQLiteConfig()
	if config.StagingDir == "" {
		config.StagingDir = defaults.StagingDir
	}
	if config.Table == "" {
		config.Table = defaults.Table
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.BlockSize <= 0 {
		config.BlockSize = defaults.BlockSize
	}

	if err := os.MkdirAll(config.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: failed to create staging directory: %w", err)
	}

	return &SQLiteEngine{config: config}, nil
}

// Config returns the effective configuration.
func (e *SQLiteEngine) Config() SQLiteConfig {
	return e.config
}

// Open creates a session reading through fs.
func (e *SQLiteEngine) Open(fs storage.FileSystem) (Session, error) {
	if fs == nil {
		return nil, scanerrors.NewInternalError("engine: nil filesystem", nil)
	}
	return &sqliteSession{engine: e, fs: fs}, nil
}

// sqliteSession is a single-scan-at-a-time session.
type sqliteSession struct {
	engine *SQLiteEngine
	fs     storage.FileSystem
	closed bool
}

func (s *sqliteSession) Scan(ctx context.Context, req ScanRequest) (Result, error) {
	if s.closed {
		return nil, scanerrors.NewInternalError("engine: session is closed", nil)
	}

	stagedPath, err := s.stage(ctx, req.Path)
	if err != nil {
		return nil, scanerrors.NewEngineError(scanerrors.CodeStageFailed, "failed to stage "+req.Path, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=true", stagedPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		os.Remove(stagedPath)
		return nil, scanerrors.NewEngineError(scanerrors.CodeQueryFailed, "failed to open "+req.Path, err)
	}
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, s.buildQuery(req.Predicate))
	if err != nil {
		db.Close()
		os.Remove(stagedPath)
		return nil, scanerrors.NewEngineError(scanerrors.CodeQueryFailed, "scan of "+req.Path+" failed", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		db.Close()
		os.Remove(stagedPath)
		return nil, scanerrors.NewEngineError(scanerrors.CodeQueryFailed, "failed to read columns of "+req.Path, err)
	}

	return &sqliteResult{
		path:       req.Path,
		stagedPath: stagedPath,
		db:         db,
		rows:       rows,
		columns:    columns,
		chunkSize:  s.engine.config.ChunkSize,
	}, nil
}

func (s *sqliteSession) Close() error {
	s.closed = true
	return nil
}

// buildQuery builds the SELECT for one file. The predicate is passed
// through verbatim.
func (s *sqliteSession) buildQuery(predicate string) string {
	table := strings.ReplaceAll(s.engine.config.Table, `"`, `""`)
	query := fmt.Sprintf(`SELECT * FROM "%s"`, table)
	if p := strings.TrimSpace(predicate); p != "" {
		query += " WHERE " + p
	}
	return query
}

// stage copies path into a new staging file using block-sized ReadAt calls
// on the session filesystem. Snappy framed files are decoded on the way.
func (s *sqliteSession) stage(ctx context.Context, path string) (string, error) {
	f, err := s.fs.Open(ctx, path, storage.FlagRead)
	if err != nil {
		return "", err
	}
	defer f.Close()

	size, err := f.Size()
	if err != nil {
		return "", fmt.Errorf("engine: failed to stat %s: %w", path, err)
	}

	stagedPath := filepath.Join(s.engine.config.StagingDir, uuid.New().String()+".sqlite")
	dst, err := os.Create(stagedPath)
	if err != nil {
		return "", fmt.Errorf("engine: failed to create staging file: %w", err)
	}

	src := io.Reader(&blockReader{ctx: ctx, f: f, size: size, block: s.engine.config.BlockSize})
	if strings.HasSuffix(path, CompressedSuffix) {
		src = snappy.NewReader(src)
	}

	if err := copyBlocks(dst, src, s.engine.config.BlockSize); err != nil {
		dst.Close()
		os.Remove(stagedPath)
		return "", fmt.Errorf("engine: failed to copy %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(stagedPath)
		return "", fmt.Errorf("engine: failed to finish staging file: %w", err)
	}

	return stagedPath, nil
}

// copyBlocks copies src to dst with reads of exactly block-sized buffers.
func copyBlocks(dst io.Writer, src io.Reader, block int) error {
	buf := make([]byte, block)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// blockReader turns a File into a sequential reader that issues one
// ReadAt of at most block bytes per Read call.
type blockReader struct {
	ctx   context.Context
	f     storage.File
	size  int64
	off   int64
	block int
}

func (r *blockReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if r.off >= r.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if want > int64(r.block) {
		want = int64(r.block)
	}
	if remaining := r.size - r.off; want > remaining {
		want = remaining
	}

	n, err := r.f.ReadAt(p[:want], r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	if n == 0 && err == nil {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// sqliteResult pages through a query in chunks.
type sqliteResult struct {
	path       string
	stagedPath string
	db         *sql.DB
	rows       *sql.Rows
	columns    []string
	chunkSize  int
	done       bool
	closed     bool
}

func (r *sqliteResult) Next(ctx context.Context) (*Chunk, error) {
	if r.done || r.closed {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunk := &Chunk{Columns: r.columns}
	for len(chunk.Rows) < r.chunkSize {
		if !r.rows.Next() {
			r.done = true
			if err := r.rows.Err(); err != nil {
				return nil, scanerrors.NewEngineError(scanerrors.CodeFetchFailed, "fetch from "+r.path+" failed", err)
			}
			break
		}

		values := make([]interface{}, len(r.columns))
		ptrs := make([]interface{}, len(r.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := r.rows.Scan(ptrs...); err != nil {
			r.done = true
			return nil, scanerrors.NewEngineError(scanerrors.CodeFetchFailed, "row decode from "+r.path+" failed", err)
		}
		chunk.Rows = append(chunk.Rows, values)
	}

	if len(chunk.Rows) == 0 {
		return nil, nil
	}
	return chunk, nil
}

func (r *sqliteResult) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var lastErr error
	if err := r.rows.Close(); err != nil {
		lastErr = err
	}
	if err := r.db.Close(); err != nil {
		lastErr = err
	}
	if err := os.Remove(r.stagedPath); err != nil && !os.IsNotExist(err) {
		lastErr = err
	}
	return lastErr
}
