// Package pool provides a fixed-size worker pool fed by an unbounded FIFO queue.
package pool

import (
	"container/list"
	"log"
	"sync"
)

// WorkFunc is a unit of work executed by a pool worker.
type WorkFunc func(arg interface{})

// workItem pairs a function with its argument.
type workItem struct {
	fn  WorkFunc
	arg interface{}
}

// Pool runs submitted work on a fixed number of goroutines.
// Submission never blocks: items are appended to an unbounded queue
// and picked up in FIFO order.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	// queue holds pending *workItem values, front = oldest
	queue *list.List

	workers int
	wg      sync.WaitGroup

	// closing is set by Close; workers exit once the queue is empty
	closing bool
}

// New starts a pool with the given number of workers (at least one).
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		queue:   list.New(),
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}

	return p
}

// Schedule appends work to the queue and returns immediately.
// Scheduling on a closed pool panics.
func (p *Pool) Schedule(fn WorkFunc, arg interface{}) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		panic("pool: schedule on closed pool")
	}
	p.queue.PushBack(&workItem{fn: fn, arg: arg})
	p.mu.Unlock()

	p.cond.Signal()
}

// Close lets every queued item run, then waits for all workers to exit.
// Calling Close more than once is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closing = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Pending returns the number of queued items not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// workerLoop takes the oldest item and runs it, until the pool is
// closing and the queue is drained.
func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closing {
			p.cond.Wait()
		}
		if p.queue.Len() == 0 {
			p.mu.Unlock()
			return
		}
		item := p.queue.Remove(p.queue.Front()).(*workItem)
		p.mu.Unlock()

		p.run(id, item)
	}
}

// run executes one item; a panic is logged and swallowed so the worker survives.
func (p *Pool) run(id int, item *workItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pool: worker %d recovered from panic: %v", id, r)
		}
	}()
	item.fn(item.arg)
}
