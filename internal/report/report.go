// Package report renders the outcome of a scan run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/arkilian/scanbench/internal/diskstats"
	"github.com/arkilian/scanbench/internal/observability"
)

// Report is the summary of one run.
type Report struct {
	RunID        string
	Predicate    string
	Workers      int
	Files        int
	Failed       int
	Elapsed      time.Duration
	TotalRows    int64
	ReadOps      uint64
	ReadBytes    uint64
	Devices      []diskstats.Sample
	DeviceTotals diskstats.Totals
	Slowest      []observability.ScanRecord
}

// WriteText writes the report as plain-text lines.
func (r *Report) WriteText(w io.Writer) error {
	p := &printer{w: w}

	if r.RunID != "" {
		p.printf("run: %s\n", r.RunID)
	}
	p.printf("predicate: %s\n", r.Predicate)
	p.printf("workers: %d\n", r.Workers)
	p.printf("files: %d (failed: %d)\n", r.Files, r.Failed)
	p.printf("elapsed: %.3fs\n", r.Elapsed.Seconds())
	p.printf("total rows: %d\n", r.TotalRows)
	p.printf("total read ops: %d\n", r.ReadOps)
	p.printf("total read bytes: %d\n", r.ReadBytes)

	if len(r.Devices) > 0 {
		for _, d := range r.Devices {
			p.printf("device %s: read ops %d, read sectors %d, read ticks %d ms\n",
				d.Device, d.ReadOps, d.ReadSectors, d.ReadTicks)
		}
		p.printf("devices total: read ops %d, read sectors %d, read ticks %d ms\n",
			r.DeviceTotals.ReadOps, r.DeviceTotals.ReadSectors, r.DeviceTotals.ReadTicks)
	}

	if len(r.Slowest) > 0 {
		p.printf("slowest scans:\n")
		for _, s := range r.Slowest {
			status := "ok"
			if s.Failed() {
				status = "failed: " + s.Err
			}
			p.printf("  %s %.3fs rows %d read ops %d (%s)\n",
				s.Path, s.Duration.Seconds(), s.Rows, s.ReadOps, status)
		}
	}

	return p.err
}

// jsonReport is the wire shape of WriteJSON.
type jsonReport struct {
	RunID          string                     `json:"run_id,omitempty"`
	Predicate      string                     `json:"predicate"`
	Workers        int                        `json:"workers"`
	Files          int                        `json:"files"`
	Failed         int                        `json:"failed"`
	ElapsedSeconds float64                    `json:"elapsed_seconds"`
	TotalRows      int64                      `json:"total_rows"`
	ReadOps        uint64                     `json:"read_ops"`
	ReadBytes      uint64                     `json:"read_bytes"`
	Devices        []diskstats.Sample         `json:"devices,omitempty"`
	DeviceTotals   *diskstats.Totals          `json:"device_totals,omitempty"`
	Slowest        []observability.ScanRecord `json:"slowest,omitempty"`
}

// WriteJSON writes the report as an indented JSON object.
func (r *Report) WriteJSON(w io.Writer) error {
	out := jsonReport{
		RunID:          r.RunID,
		Predicate:      r.Predicate,
		Workers:        r.Workers,
		Files:          r.Files,
		Failed:         r.Failed,
		ElapsedSeconds: r.Elapsed.Seconds(),
		TotalRows:      r.TotalRows,
		ReadOps:        r.ReadOps,
		ReadBytes:      r.ReadBytes,
		Devices:        r.Devices,
		Slowest:        r.Slowest,
	}
	if len(r.Devices) > 0 {
		totals := r.DeviceTotals
		out.DeviceTotals = &totals
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("report: failed to encode: %w", err)
	}
	return nil
}

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
