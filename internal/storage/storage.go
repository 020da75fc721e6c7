// Package storage provides the file-access capability that the scan engine
// reads partitions through. Implementations include the local filesystem and S3.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors for storage operations.
var (
	ErrNotFound    = errors.New("file not found")
	ErrOpenFailed  = errors.New("open failed")
	ErrReadFailed  = errors.New("read failed")
	ErrListFailed  = errors.New("list failed")
	ErrUnsupported = errors.New("unsupported operation")
)

// OpenFlags selects the access mode for Open. Only reading is supported by
// the current backends; the type exists so decorators can forward it unchanged.
type OpenFlags int

const (
	FlagRead OpenFlags = 1 << iota
	FlagDirectIO
)

// FileSystem abstracts open-by-path file access.
type FileSystem interface {
	// Open opens path for reading.
	Open(ctx context.Context, path string, flags OpenFlags) (File, error)

	// Glob returns all paths matching pattern, in lexical order.
	Glob(ctx context.Context, pattern string) ([]string, error)
}

// File is an opened handle returned by FileSystem.Open.
type File interface {
	// ReadAt reads len(p) bytes at offset off. It follows io.ReaderAt:
	// a short read returns a non-nil error.
	io.ReaderAt
	io.Closer

	// Name returns the path the file was opened with.
	Name() string

	// Size returns the file size in bytes.
	Size() (int64, error)

	// CanSeek reports whether random-offset reads are supported.
	CanSeek() bool

	// LastModifiedTime returns the modification time of the file.
	LastModifiedTime() (time.Time, error)

	// OnDiskFile reports whether the file lives on a local disk.
	OnDiskFile() bool
}

// Lister enumerates the files directly under a directory or prefix.
// It fails if the directory itself cannot be opened.
type Lister interface {
	List(ctx context.Context, dir string) ([]string, error)
}
