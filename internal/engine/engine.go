// Package engine defines the query engine the harness drives and provides
// a SQLite implementation that reads partitions through a storage.FileSystem.
package engine

import (
	"context"

	"github.com/arkilian/scanbench/internal/storage"
)

// Engine opens isolated sessions bound to a file-access backend.
type Engine interface {
	// Open creates a session whose file reads all go through fs.
	Open(fs storage.FileSystem) (Session, error)
}

// Session executes scans. A session is used by one goroutine at a time.
type Session interface {
	// Scan runs a filtered scan over exactly one file.
	Scan(ctx context.Context, req ScanRequest) (Result, error)

	// Close releases the session.
	Close() error
}

// ScanRequest names one file and the filter predicate to apply to it.
type ScanRequest struct {
	Path      string
	Predicate string
}

// Result is a chunked scan result.
type Result interface {
	// Next returns the next chunk, or nil, nil when the result is exhausted.
	Next(ctx context.Context) (*Chunk, error)

	// Close releases the result.
	Close() error
}

// Chunk is a bounded batch of result rows.
type Chunk struct {
	Columns []string
	Rows    [][]interface{}
}

// Size returns the number of rows in the chunk.
func (c *Chunk) Size() int {
	return len(c.Rows)
}
