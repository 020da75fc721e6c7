package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_FIFOWithSingleWorker(t *testing.T) {
	p := New(1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		p.Schedule(func(arg interface{}) {
			mu.Lock()
			order = append(order, arg.(int))
			mu.Unlock()
		}, i)
	}
	p.Close()

	if len(order) != 50 {
		t.Fatalf("expected 50 items to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("item %d ran at position %d", v, i)
		}
	}
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(4)

	var ran atomic.Int64
	release := make(chan struct{})
	for i := 0; i < 200; i++ {
		p.Schedule(func(interface{}) {
			<-release
			ran.Add(1)
		}, nil)
	}

	if p.Pending() == 0 {
		t.Error("expected pending work while workers are blocked")
	}

	close(release)
	p.Close()

	if got := ran.Load(); got != 200 {
		t.Errorf("Close dropped work: ran %d of 200", got)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d after Close", p.Pending())
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	p := New(workers)

	var active, peak atomic.Int64
	for i := 0; i < 30; i++ {
		p.Schedule(func(interface{}) {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		}, nil)
	}
	p.Close()

	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency %d exceeds %d workers", got, workers)
	}
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	p := New(1)

	var ran atomic.Int64
	p.Schedule(func(interface{}) { panic("boom") }, nil)
	p.Schedule(func(interface{}) { ran.Add(1) }, nil)
	p.Close()

	if ran.Load() != 1 {
		t.Error("worker did not continue after a panicking item")
	}
}

func TestPool_WorkersClamp(t *testing.T) {
	p := New(0)
	defer p.Close()

	if p.Workers() != 1 {
		t.Errorf("Workers() = %d, want 1", p.Workers())
	}
}

func TestPool_CloseIdempotent(t *testing.T) {
	p := New(2)
	p.Close()
	p.Close()
}

func TestPool_ScheduleAfterClosePanics(t *testing.T) {
	p := New(1)
	p.Close()

	defer func() {
		if recover() == nil {
			t.Error("expected panic when scheduling on a closed pool")
		}
	}()
	p.Schedule(func(interface{}) {}, nil)
}
