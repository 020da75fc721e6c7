// Package observability records per-file scan outcomes for reporting.
package observability

import (
	"sort"
	"sync"
	"time"
)

// ScanRecord is the outcome of one file scan.
type ScanRecord struct {
	Path      string        `json:"path"`
	Rows      int64         `json:"rows"`
	ReadOps   uint64        `json:"read_ops"`
	ReadBytes uint64        `json:"read_bytes"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Duration  time.Duration `json:"duration_ns"`
	Err       string        `json:"error,omitempty"`
}

// Failed reports whether the scan errored.
func (r ScanRecord) Failed() bool {
	return r.Err != ""
}

// Overlaps reports whether two scans ran at the same time.
func (r ScanRecord) Overlaps(other ScanRecord) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// ScanStats collects scan records from concurrent workers.
type ScanStats struct {
	mu      sync.RWMutex
	records []ScanRecord
}

// NewScanStats creates an empty collector.
func NewScanStats() *ScanStats {
	return &ScanStats{}
}

// Record appends one scan outcome. Safe for concurrent use.
func (s *ScanStats) Record(r ScanRecord) {
	if r.Duration == 0 && !r.End.IsZero() {
		r.Duration = r.End.Sub(r.Start)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Len returns the number of recorded scans.
func (s *ScanStats) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of all records in recording order.
func (s *ScanStats) Records() []ScanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScanRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Failures returns the records of scans that errored.
func (s *ScanStats) Failures() []ScanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScanRecord
	for _, r := range s.records {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// GetSlowest returns the n longest scans, longest first.
func (s *ScanStats) GetSlowest(n int) []ScanRecord {
	if n <= 0 {
		return []ScanRecord{}
	}

	records := s.Records()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Duration > records[j].Duration
	})

	if n > len(records) {
		n = len(records)
	}
	return records[:n]
}

// MaxConcurrency returns the largest number of scans that were running at
// the same instant.
func (s *ScanStats) MaxConcurrency() int {
	type edge struct {
		at    time.Time
		delta int
	}

	records := s.Records()
	edges := make([]edge, 0, 2*len(records))
	for _, r := range records {
		edges = append(edges, edge{r.Start, 1}, edge{r.End, -1})
	}
	// Ends sort before starts at the same instant: touching windows do not overlap.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	running, peak := 0, 0
	for _, e := range edges {
		running += e.delta
		if running > peak {
			peak = running
		}
	}
	return peak
}
