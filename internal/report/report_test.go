package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arkilian/scanbench/internal/diskstats"
	"github.com/arkilian/scanbench/internal/observability"
)

func sampleReport() *Report {
	return &Report{
		RunID:     "run-1",
		Predicate: "ke > 0.5",
		Workers:   32,
		Files:     4,
		Failed:    1,
		Elapsed:   1500 * time.Millisecond,
		TotalRows: 12345,
		ReadOps:   678,
		ReadBytes: 9000,
	}
}

func TestWriteText_WithoutDevices(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"predicate: ke > 0.5\n",
		"workers: 32\n",
		"files: 4 (failed: 1)\n",
		"elapsed: 1.500s\n",
		"total rows: 12345\n",
		"total read ops: 678\n",
		"total read bytes: 9000\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "device") {
		t.Errorf("device section should be omitted:\n%s", out)
	}
	if strings.Contains(out, "slowest") {
		t.Errorf("slowest section should be omitted:\n%s", out)
	}
}

func TestWriteText_WithDevicesAndSlowest(t *testing.T) {
	r := sampleReport()
	r.Devices = []diskstats.Sample{
		{Device: "sda", ReadOps: 10, ReadSectors: 80, ReadTicks: 5},
		{Device: "sdb", ReadOps: 2, ReadSectors: 16, ReadTicks: 1},
	}
	r.DeviceTotals = diskstats.Sum(r.Devices)
	r.Slowest = []observability.ScanRecord{
		{Path: "/data/a.sqlite", Rows: 7, ReadOps: 3, Duration: 250 * time.Millisecond},
		{Path: "/data/b.sqlite", Duration: 100 * time.Millisecond, Err: "boom"},
	}

	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"device sda: read ops 10, read sectors 80, read ticks 5 ms\n",
		"device sdb: read ops 2, read sectors 16, read ticks 1 ms\n",
		"devices total: read ops 12, read sectors 96, read ticks 6 ms\n",
		"slowest scans:\n",
		"  /data/a.sqlite 0.250s rows 7 read ops 3 (ok)\n",
		"(failed: boom)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteText_PropagatesWriteError(t *testing.T) {
	if err := sampleReport().WriteText(failingWriter{}); err == nil {
		t.Error("expected write error")
	}
}

func TestWriteJSON(t *testing.T) {
	r := sampleReport()
	r.Devices = []diskstats.Sample{{Device: "nvme0n1", ReadOps: 4, ReadSectors: 32, ReadTicks: 2}}
	r.DeviceTotals = diskstats.Sum(r.Devices)

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if decoded["predicate"] != "ke > 0.5" {
		t.Errorf("predicate = %v", decoded["predicate"])
	}
	if decoded["total_rows"] != float64(12345) {
		t.Errorf("total_rows = %v", decoded["total_rows"])
	}
	if decoded["elapsed_seconds"] != 1.5 {
		t.Errorf("elapsed_seconds = %v", decoded["elapsed_seconds"])
	}
	totals, ok := decoded["device_totals"].(map[string]interface{})
	if !ok || totals["read_sectors"] != float64(32) {
		t.Errorf("device_totals = %v", decoded["device_totals"])
	}
}

func TestWriteJSON_OmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	for _, key := range []string{`"devices"`, `"device_totals"`, `"slowest"`} {
		if strings.Contains(buf.String(), key) {
			t.Errorf("expected %s to be omitted:\n%s", key, buf.String())
		}
	}
}
