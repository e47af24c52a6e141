package executor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/IvanBrykalov/lodcache/pipeline"
)

// Metrics exposes executor-level observability hooks.
type Metrics interface {
	Scheduled(n int)
	Dispatched()
	// Cleared reports executables dropped without running.
	Cleared(n int)
	Completed(d time.Duration)
}

// NoopMetrics is the default Metrics.
type NoopMetrics struct{}

func (NoopMetrics) Scheduled(int)           {}
func (NoopMetrics) Dispatched()             {}
func (NoopMetrics) Cleared(int)             {}
func (NoopMetrics) Completed(time.Duration) {}

var _ Metrics = NoopMetrics{}

// Options configures an Executor. Zero values are safe.
type Options struct {
	Metrics Metrics
	Logger  *slog.Logger
}

type item struct {
	e   pipeline.Executable
	enq time.Time
}

// Executor hands executables to a worker pool once all their preconditions
// are ready.
//
// A dispatcher goroutine sleeps on a condition variable and is woken by the
// precondition futures themselves; it never polls. Ready executables are
// dispatched in submission order. Independent executables then race freely
// across workers.
type Executor struct {
	workers *Workers
	opt     Options
	log     *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []item
	closed bool
	done   chan struct{}
}

// New starts an executor on top of workers. The executor does not own the
// pool; close the pool after the executor.
func New(workers *Workers, opt Options) *Executor {
	if workers == nil {
		panic("executor: nil Workers")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	e := &Executor{
		workers: workers,
		opt:     opt,
		log:     opt.Logger,
		done:    make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.dispatch()
	return e
}

// Schedule queues executables and returns all of their postconditions.
// After Close the executables are flushed instead of queued.
func (e *Executor) Schedule(es ...pipeline.Executable) pipeline.FutureMap {
	var post []pipeline.Future
	for _, x := range es {
		post = append(post, x.Postconditions()...)
	}

	now := time.Now()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Warn("schedule on closed executor", "executables", len(es))
		flushAll(es)
		return pipeline.NewFutureMap(post...)
	}
	for _, x := range es {
		e.queue = append(e.queue, item{e: x, enq: now})
	}
	e.cond.Broadcast()
	e.mu.Unlock()

	e.opt.Metrics.Scheduled(len(es))
	// Callbacks may run inline for ready futures, so register them without
	// holding mu.
	for _, x := range es {
		for _, f := range x.Preconditions() {
			if !f.IsReady() {
				f.OnReady(e.wake)
			}
		}
	}
	return pipeline.NewFutureMap(post...)
}

func (e *Executor) wake() {
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
}

// dispatch moves ready items to the pool, oldest first.
func (e *Executor) dispatch() {
	defer close(e.done)
	for {
		e.mu.Lock()
		var ready []item
		for {
			if e.closed {
				e.mu.Unlock()
				return
			}
			ready = e.takeReadyLocked()
			if len(ready) > 0 {
				break
			}
			e.cond.Wait()
		}
		e.mu.Unlock()

		for _, it := range ready {
			start := time.Now()
			if err := e.workers.submit(it.e, func() {
				e.opt.Metrics.Completed(time.Since(start))
			}); err != nil {
				e.log.Error("dispatch failed", "error", err)
				flush(it.e)
				e.opt.Metrics.Cleared(1)
				continue
			}
			e.opt.Metrics.Dispatched()
			e.log.Debug("dispatched", "queued_for", time.Since(it.enq))
		}
	}
}

func (e *Executor) takeReadyLocked() []item {
	var ready []item
	rest := e.queue[:0]
	for _, it := range e.queue {
		if pipeline.AllReady(it.e.Preconditions()...) {
			ready = append(ready, it)
		} else {
			rest = append(rest, it)
		}
	}
	clear(e.queue[len(rest):])
	e.queue = rest
	return ready
}

// Pending returns the number of queued executables not yet dispatched.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Clear drops every queued executable without running it and flushes its
// postconditions so waiters are released. Work already handed to the pool
// is not affected.
func (e *Executor) Clear() {
	e.mu.Lock()
	dropped := e.queue
	e.queue = nil
	e.mu.Unlock()

	if len(dropped) == 0 {
		return
	}
	for _, it := range dropped {
		flush(it.e)
	}
	e.opt.Metrics.Cleared(len(dropped))
	e.log.Debug("cleared", "executables", len(dropped))
}

// Close clears the queue and stops the dispatcher. Executables already
// running finish on the pool.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.Clear()

	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	<-e.done
	// Anything scheduled between Clear and closed.
	e.Clear()
	return nil
}

func flush(x pipeline.Executable) {
	if fl, ok := x.(pipeline.Flusher); ok {
		fl.Flush()
	}
}

func flushAll(es []pipeline.Executable) {
	for _, x := range es {
		flush(x)
	}
}
