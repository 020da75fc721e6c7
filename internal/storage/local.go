package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// LocalFS implements FileSystem using the local filesystem.
type LocalFS struct{}

// NewLocalFS creates a new local filesystem backend.
func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

// Open opens a local file for reading.
func (l *LocalFS) Open(ctx context.Context, path string, flags OpenFlags) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	return &localFile{f: f, path: path}, nil
}

// Glob returns the local paths matching pattern.
func (l *LocalFS) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// List returns the regular files directly under dir.
func (l *LocalFS) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// localFile wraps an *os.File.
type localFile struct {
	f    *os.File
	path string
}

func (f *localFile) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *localFile) Close() error {
	return f.f.Close()
}

func (f *localFile) Name() string {
	return f.path
}

func (f *localFile) Size() (int64, error) {
	info, err := f.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (f *localFile) CanSeek() bool {
	return true
}

func (f *localFile) LastModifiedTime() (time.Time, error) {
	info, err := f.f.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (f *localFile) OnDiskFile() bool {
	return true
}
