// Package scan runs one filtered scan per file on a bounded worker pool and
// folds the per-file results into a single run aggregate.
package scan

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arkilian/scanbench/internal/engine"
	"github.com/arkilian/scanbench/internal/fsproxy"
	"github.com/arkilian/scanbench/internal/observability"
	"github.com/arkilian/scanbench/internal/pool"
	"github.com/arkilian/scanbench/internal/storage"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 32

// RunAggregate holds the totals of a run.
// Completed <= Scheduled at all times.
type RunAggregate struct {
	Rows      int64
	ReadOps   uint64
	ReadBytes uint64
	Scheduled int
	Completed int
	Failed    int
}

// Config holds configuration for an Orchestrator.
type Config struct {
	// Engine executes the scans.
	Engine engine.Engine

	// FileSystem is the base file access wrapped by each task's proxy.
	FileSystem storage.FileSystem

	// Predicate is passed verbatim to every scan.
	Predicate string

	// Workers bounds the number of concurrent scans (default: 32).
	Workers int

	// Recorder receives one record per finished scan. Optional.
	Recorder *observability.ScanStats
}

// Orchestrator schedules scans and aggregates their results.
type Orchestrator struct {
	ctx       context.Context
	engine    engine.Engine
	fs        storage.FileSystem
	predicate string
	workers   int
	recorder  *observability.ScanStats
	pool      *pool.Pool

	// mu guards agg; cond is broadcast on every completion
	mu   sync.Mutex
	cond *sync.Cond
	agg  RunAggregate

	closeOnce sync.Once
}

// task is one scheduled scan.
type task struct {
	path      string
	predicate string
	owner     *Orchestrator
}

// taskResult is what a finished task contributes to the aggregate.
type taskResult struct {
	rows      int64
	readOps   uint64
	readBytes uint64
	err       error
}

// New creates an orchestrator and starts its worker pool.
func New(ctx context.Context, config Config) (*Orchestrator, error) {
	if config.Engine == nil {
		return nil, fmt.Errorf("scan: engine is required")
	}
	if config.FileSystem == nil {
		return nil, fmt.Errorf("scan: filesystem is required")
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}

	o := &Orchestrator{
		ctx:       ctx,
		engine:    config.Engine,
		fs:        config.FileSystem,
		predicate: config.Predicate,
		workers:   config.Workers,
		recorder:  config.Recorder,
		pool:      pool.New(config.Workers),
	}
	o.cond = sync.NewCond(&o.mu)
	return o, nil
}

// Workers returns the pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Predicate returns the filter applied to every scan.
func (o *Orchestrator) Predicate() string {
	return o.predicate
}

// AddTask schedules a scan of path. It never blocks beyond the brief
// critical section that counts the task.
func (o *Orchestrator) AddTask(path string) {
	o.mu.Lock()
	o.agg.Scheduled++
	o.mu.Unlock()

	o.pool.Schedule(runTask, &task{path: path, predicate: o.predicate, owner: o})
}

// Wait blocks until every scheduled task has completed. Tasks added while
// Wait is blocked are waited for as well.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	for o.agg.Completed < o.agg.Scheduled {
		o.cond.Wait()
	}
	o.mu.Unlock()
}

// Snapshot returns a consistent copy of the aggregate at this instant.
func (o *Orchestrator) Snapshot() RunAggregate {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agg
}

// TotalRows returns the summed row count. Valid after Wait.
func (o *Orchestrator) TotalRows() int64 {
	return o.agg.Rows
}

// TotalReadOps returns the summed proxy read operations. Valid after Wait.
func (o *Orchestrator) TotalReadOps() uint64 {
	return o.agg.ReadOps
}

// TotalReadBytes returns the summed proxy read bytes. Valid after Wait.
func (o *Orchestrator) TotalReadBytes() uint64 {
	return o.agg.ReadBytes
}

// Failed returns the number of scans that errored. Valid after Wait.
func (o *Orchestrator) Failed() int {
	return o.agg.Failed
}

// Close waits for quiescence and shuts down the worker pool.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.Wait()
		o.pool.Close()
	})
}

// runTask is the pool entry point for a scheduled scan.
func runTask(arg interface{}) {
	t := arg.(*task)
	t.owner.execute(t)
}

// execute runs one scan and folds its result. It always completes the
// task, even if the engine panics.
func (o *Orchestrator) execute(t *task) {
	start := time.Now()
	px := fsproxy.New(o.fs)
	var res taskResult

	defer func() {
		if r := recover(); r != nil {
			res = taskResult{
				readOps:   px.TotalReadOps(),
				readBytes: px.TotalReadBytes(),
				err:       fmt.Errorf("scan: panic: %v", r),
			}
			log.Printf("scan: %s: %v", t.path, res.err)
		}
		o.complete(t, res, start, time.Now())
		px.Release()
	}()

	rows, err := o.scanFile(px, t)
	if err != nil {
		log.Printf("scan: %s: %v", t.path, err)
		rows = 0
	}

	res = taskResult{
		rows:      rows,
		readOps:   px.TotalReadOps(),
		readBytes: px.TotalReadBytes(),
		err:       err,
	}
}

// scanFile opens an isolated session on px and counts the rows of one
// filtered scan, chunk by chunk.
func (o *Orchestrator) scanFile(px *fsproxy.Proxy, t *task) (int64, error) {
	session, err := o.engine.Open(px)
	if err != nil {
		return 0, err
	}
	defer session.Close()

	result, err := session.Scan(o.ctx, engine.ScanRequest{Path: t.path, Predicate: t.predicate})
	if err != nil {
		return 0, err
	}
	defer result.Close()

	var rows int64
	for {
		chunk, err := result.Next(o.ctx)
		if err != nil {
			return 0, err
		}
		if chunk == nil {
			return rows, nil
		}
		rows += int64(chunk.Size())
	}
}

// complete folds a task result into the aggregate and wakes waiters.
func (o *Orchestrator) complete(t *task, res taskResult, start, end time.Time) {
	if o.recorder != nil {
		rec := observability.ScanRecord{
			Path:      t.path,
			Rows:      res.rows,
			ReadOps:   res.readOps,
			ReadBytes: res.readBytes,
			Start:     start,
			End:       end,
		}
		if res.err != nil {
			rec.Err = res.err.Error()
		}
		o.recorder.Record(rec)
	}

	o.mu.Lock()
	o.agg.Completed++
	o.agg.Rows += res.rows
	o.agg.ReadOps += res.readOps
	o.agg.ReadBytes += res.readBytes
	if res.err != nil {
		o.agg.Failed++
	}
	o.cond.Broadcast()
	o.mu.Unlock()
}
