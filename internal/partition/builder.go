// Package partition builds SQLite particle partitions used as scan inputs.
package partition

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// TableName is the table every partition carries.
const TableName = "particles"

// CompressedSuffix marks partitions stored as snappy framed streams.
const CompressedSuffix = ".sz"

// insertBatch is the number of rows inserted per transaction.
const insertBatch = 5000

// Spec describes a partition to build.
type Spec struct {
	// Rows is the number of particles to write.
	Rows int
	// Seed makes the generated values reproducible.
	Seed int64
	// Compress writes the partition as a snappy framed stream with the .sz suffix.
	Compress bool
}

// Info describes a built partition.
type Info struct {
	PartitionID string
	Path        string
	RowCount    int64
	SizeBytes   int64
	Compressed  bool
	Stats       *StatsTracker
	CreatedAt   time.Time
}

// CountAbove returns the number of rows with ke > threshold.
func (i *Info) CountAbove(threshold float64) int64 {
	return i.Stats.CountAbove(threshold)
}

// Builder writes partitions into a directory.
type Builder struct {
	outputDir string
}

// NewBuilder creates a new partition builder.
func NewBuilder(outputDir string) *Builder {
	return &Builder{outputDir: outputDir}
}

// Build creates one partition. Positions are uniform in the unit cube,
// momenta are normal, and ke is uniform in [0,1) so that "ke > t" selects
// roughly (1-t) of the rows.
func (b *Builder) Build(ctx context.Context, spec Spec) (*Info, error) {
	if spec.Rows <= 0 {
		return nil, fmt.Errorf("partition: cannot build partition with %d rows", spec.Rows)
	}

	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("partition: failed to create output directory: %w", err)
	}

	partitionID := fmt.Sprintf("particles-%s", uuid.New().String()[:8])
	sqlitePath := filepath.Clean(filepath.Join(b.outputDir, partitionID+".sqlite"))

	stats, err := b.writeSQLite(ctx, sqlitePath, spec)
	if err != nil {
		os.Remove(sqlitePath)
		return nil, err
	}

	path := sqlitePath
	if spec.Compress {
		path = sqlitePath + CompressedSuffix
		if err := compressFile(sqlitePath, path); err != nil {
			os.Remove(sqlitePath)
			os.Remove(path)
			return nil, err
		}
		if err := os.Remove(sqlitePath); err != nil {
			return nil, fmt.Errorf("partition: failed to remove uncompressed file: %w", err)
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to stat partition file: %w", err)
	}

	return &Info{
		PartitionID: partitionID,
		Path:        path,
		RowCount:    int64(spec.Rows),
		SizeBytes:   fileInfo.Size(),
		Compressed:  spec.Compress,
		Stats:       stats,
		CreatedAt:   time.Now(),
	}, nil
}

func (b *Builder) writeSQLite(ctx context.Context, path string, spec Spec) (*StatsTracker, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to create SQLite database: %w", err)
	}
	defer db.Close()

	createTableSQL := `
		CREATE TABLE particles (
			id INTEGER PRIMARY KEY,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			ux REAL NOT NULL,
			uy REAL NOT NULL,
			uz REAL NOT NULL,
			ke REAL NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("partition: failed to create particles table: %w", err)
	}

	rng := rand.New(rand.NewSource(spec.Seed))
	stats := NewStatsTracker()

	for start := 0; start < spec.Rows; start += insertBatch {
		end := start + insertBatch
		if end > spec.Rows {
			end = spec.Rows
		}
		if err := insertRange(ctx, db, rng, stats, start, end); err != nil {
			return nil, err
		}
	}

	// DELETE journal mode leaves a single self-contained file.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("partition: failed to set journal mode: %w", err)
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("partition: failed to close database: %w", err)
	}
	return stats, nil
}

func insertRange(ctx context.Context, db *sql.DB, rng *rand.Rand, stats *StatsTracker, start, end int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("partition: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO particles (id, x, y, z, ux, uy, uz, ke) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("partition: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for id := start; id < end; id++ {
		ke := rng.Float64()
		if _, err := stmt.ExecContext(ctx, id,
			rng.Float64(), rng.Float64(), rng.Float64(),
			rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(),
			ke,
		); err != nil {
			return fmt.Errorf("partition: failed to insert row: %w", err)
		}
		stats.Update(ke)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("partition: failed to commit rows: %w", err)
	}
	return nil
}

// compressFile writes src to dst as a snappy framed stream.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("partition: failed to open for compression: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("partition: failed to create compressed file: %w", err)
	}
	defer out.Close()

	w := snappy.NewBufferedWriter(out)
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("partition: failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("partition: failed to flush compressed stream: %w", err)
	}
	return out.Close()
}
