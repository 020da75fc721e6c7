// Package fsproxy provides a storage.FileSystem decorator that counts the
// reads issued through every handle it opens.
//
// Byte accounting uses the requested read length, not the number of bytes
// actually returned: the quantity of interest is what the engine asked for.
// A short or failed read therefore still adds len(p) bytes.
package fsproxy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkilian/scanbench/internal/storage"
	"github.com/spaolacci/murmur3"
)

// registryShards is the number of independently locked registry stripes.
const registryShards = 16

// ReadStats counts reads on a single handle.
type ReadStats struct {
	Path      string
	readOps   atomic.Uint64
	readBytes atomic.Uint64
}

// ReadOps returns the number of ReadAt calls on the handle.
func (s *ReadStats) ReadOps() uint64 {
	return s.readOps.Load()
}

// ReadBytes returns the total requested length of all ReadAt calls.
func (s *ReadStats) ReadBytes() uint64 {
	return s.readBytes.Load()
}

func (s *ReadStats) record(requested int) {
	s.readOps.Add(1)
	s.readBytes.Add(uint64(requested))
}

// registryShard is an append-only list of stats guarded by its own lock.
type registryShard struct {
	mu    sync.Mutex
	stats []*ReadStats
}

// Proxy wraps a base FileSystem and records per-handle read statistics.
// Stats outlive their handles: closing a file keeps its counters in the
// registry until Release is called.
type Proxy struct {
	base   storage.FileSystem
	shards [registryShards]registryShard
}

// New creates a proxy over base.
func New(base storage.FileSystem) *Proxy {
	return &Proxy{base: base}
}

// Open opens path on the base filesystem and registers a new ReadStats for it.
func (p *Proxy) Open(ctx context.Context, path string, flags storage.OpenFlags) (storage.File, error) {
	f, err := p.base.Open(ctx, path, flags)
	if err != nil {
		return nil, err
	}

	stats := &ReadStats{Path: path}
	shard := &p.shards[murmur3.Sum32([]byte(path))%registryShards]
	shard.mu.Lock()
	shard.stats = append(shard.stats, stats)
	shard.mu.Unlock()

	return &File{base: f, stats: stats}, nil
}

// Glob delegates to the base filesystem.
func (p *Proxy) Glob(ctx context.Context, pattern string) ([]string, error) {
	return p.base.Glob(ctx, pattern)
}

// TotalReadOps sums read operations over every handle ever opened,
// including closed ones.
func (p *Proxy) TotalReadOps() uint64 {
	var total uint64
	p.each(func(s *ReadStats) { total += s.ReadOps() })
	return total
}

// TotalReadBytes sums requested read bytes over every handle ever opened,
// including closed ones.
func (p *Proxy) TotalReadBytes() uint64 {
	var total uint64
	p.each(func(s *ReadStats) { total += s.ReadBytes() })
	return total
}

// Handles returns the number of registered handles.
func (p *Proxy) Handles() int {
	n := 0
	p.each(func(*ReadStats) { n++ })
	return n
}

// Release drops every registered ReadStats. Totals read zero afterwards.
func (p *Proxy) Release() {
	for i := range p.shards {
		shard := &p.shards[i]
		shard.mu.Lock()
		shard.stats = nil
		shard.mu.Unlock()
	}
}

func (p *Proxy) each(fn func(*ReadStats)) {
	for i := range p.shards {
		shard := &p.shards[i]
		shard.mu.Lock()
		for _, s := range shard.stats {
			fn(s)
		}
		shard.mu.Unlock()
	}
}

// File is the handle returned by Proxy.Open. It carries the base handle
// and the ReadStats it reports into.
type File struct {
	base  storage.File
	stats *ReadStats
}

// Stats returns the handle's counters.
func (f *File) Stats() *ReadStats {
	return f.stats
}

// ReadAt delegates to the base handle, then counts one operation of len(p) bytes.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.base.ReadAt(p, off)
	f.stats.record(len(p))
	return n, err
}

// Close closes the base handle. The stats stay registered.
func (f *File) Close() error {
	return f.base.Close()
}

func (f *File) Name() string {
	return f.base.Name()
}

func (f *File) Size() (int64, error) {
	return f.base.Size()
}

func (f *File) CanSeek() bool {
	return f.base.CanSeek()
}

func (f *File) LastModifiedTime() (time.Time, error) {
	return f.base.LastModifiedTime()
}

func (f *File) OnDiskFile() bool {
	return f.base.OnDiskFile()
}
