// Package diskstats samples the kernel's cumulative per-device I/O counters
// and computes before/after deltas.
package diskstats

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	scanerrors "github.com/arkilian/scanbench/internal/errors"
)

// DefaultRoot is where the kernel exposes block device statistics.
const DefaultRoot = "/sys/block"

// statFields is the number of leading counters taken from a stat line.
const statFields = 8

// Sample is one snapshot of a device's counters. Ticks are milliseconds.
type Sample struct {
	Device       string `json:"device"`
	ReadOps      uint64 `json:"read_ops"`
	ReadMerges   uint64 `json:"read_merges"`
	ReadSectors  uint64 `json:"read_sectors"`
	ReadTicks    uint64 `json:"read_ticks_ms"`
	WriteOps     uint64 `json:"write_ops"`
	WriteMerges  uint64 `json:"write_merges"`
	WriteSectors uint64 `json:"write_sectors"`
	WriteTicks   uint64 `json:"write_ticks_ms"`
}

// Sampler reads counters from <Root>/<device>/stat.
type Sampler struct {
	Root string
}

// NewSampler returns a sampler over DefaultRoot.
func NewSampler() *Sampler {
	return &Sampler{Root: DefaultRoot}
}

// Path returns the stat file for device.
func (s *Sampler) Path(device string) string {
	root := s.Root
	if root == "" {
		root = DefaultRoot
	}
	return filepath.Join(root, device, "stat")
}

// Sample reads the current counters for device. A missing or malformed
// stat file yields an all-zero sample.
func (s *Sampler) Sample(device string) Sample {
	sample, err := s.Read(device)
	if err != nil {
		return Sample{Device: device}
	}
	return sample
}

// Read is Sample with the failure reported.
func (s *Sampler) Read(device string) (Sample, error) {
	path := s.Path(device)
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, scanerrors.NewDeviceError(scanerrors.CodeNotFound,
			fmt.Sprintf("no counters for device %s", device), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return Sample{}, scanerrors.NewDeviceError(scanerrors.CodeMalformedCounters,
			fmt.Sprintf("empty counter file %s", path), scanner.Err())
	}

	sample, ok := ParseLine(scanner.Text())
	if !ok {
		return Sample{}, scanerrors.NewDeviceError(scanerrors.CodeMalformedCounters,
			fmt.Sprintf("malformed counter line in %s", path), nil)
	}
	sample.Device = device
	return sample, nil
}

// ParseLine parses the first eight whitespace-separated unsigned integers
// of a stat line. Trailing fields are ignored.
func ParseLine(line string) (Sample, bool) {
	fields := strings.Fields(line)
	if len(fields) < statFields {
		return Sample{}, false
	}

	var v [statFields]uint64
	for i := 0; i < statFields; i++ {
		n, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return Sample{}, false
		}
		v[i] = n
	}

	return Sample{
		ReadOps:      v[0],
		ReadMerges:   v[1],
		ReadSectors:  v[2],
		ReadTicks:    v[3],
		WriteOps:     v[4],
		WriteMerges:  v[5],
		WriteSectors: v[6],
		WriteTicks:   v[7],
	}, true
}

// Delta returns after - before field by field. A counter that went
// backwards (device reset) contributes zero.
func Delta(before, after Sample) Sample {
	device := after.Device
	if device == "" {
		device = before.Device
	}
	return Sample{
		Device:       device,
		ReadOps:      sub(after.ReadOps, before.ReadOps),
		ReadMerges:   sub(after.ReadMerges, before.ReadMerges),
		ReadSectors:  sub(after.ReadSectors, before.ReadSectors),
		ReadTicks:    sub(after.ReadTicks, before.ReadTicks),
		WriteOps:     sub(after.WriteOps, before.WriteOps),
		WriteMerges:  sub(after.WriteMerges, before.WriteMerges),
		WriteSectors: sub(after.WriteSectors, before.WriteSectors),
		WriteTicks:   sub(after.WriteTicks, before.WriteTicks),
	}
}

func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// Totals aggregates read-side deltas across devices.
type Totals struct {
	ReadOps     uint64 `json:"read_ops"`
	ReadSectors uint64 `json:"read_sectors"`
	ReadTicks   uint64 `json:"read_ticks_ms"`
}

// Sum adds the read-side counters of every delta.
func Sum(deltas []Sample) Totals {
	var t Totals
	for _, d := range deltas {
		t.ReadOps += d.ReadOps
		t.ReadSectors += d.ReadSectors
		t.ReadTicks += d.ReadTicks
	}
	return t
}

// ParseDeviceList splits a comma-separated device list, dropping blanks.
func ParseDeviceList(s string) []string {
	var devices []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			devices = append(devices, d)
		}
	}
	return devices
}
