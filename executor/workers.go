package executor

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/lodcache/pipeline"
)

// ErrClosed is returned when submitting to a closed pool or executor.
var ErrClosed = errors.New("executor: closed")

// ContextExecutable is an Executable that wants the worker context, e.g.
// to reach a per-worker upload context. Workers call ExecuteContext instead
// of Execute for it.
type ContextExecutable interface {
	pipeline.Executable
	ExecuteContext(ctx context.Context)
}

type workerKey struct{}

type workerInfo struct {
	id    int
	value any
}

// WorkerID returns the index of the worker running the current execution.
func WorkerID(ctx context.Context) (int, bool) {
	w, ok := ctx.Value(workerKey{}).(workerInfo)
	return w.id, ok
}

// WorkerValue returns the value WorkersOptions.WorkerContext produced for
// the worker running the current execution.
func WorkerValue(ctx context.Context) any {
	w, _ := ctx.Value(workerKey{}).(workerInfo)
	return w.value
}

// WorkersOptions configures a pool. Zero values are safe.
type WorkersOptions struct {
	// QueueSize bounds the work channel; 0 => number of workers.
	QueueSize int
	// WorkerContext builds a value owned by one worker, created on that
	// worker's goroutine before it takes work.
	WorkerContext func(worker int) any
	Logger        *slog.Logger
}

type job struct {
	e    pipeline.Executable
	done func()
}

// Workers is a fixed-size goroutine pool draining one work channel.
type Workers struct {
	n    int
	work chan job
	log  *slog.Logger

	mu     sync.RWMutex
	closed bool
	g      errgroup.Group
}

// NewWorkers starts n workers; n <= 0 means GOMAXPROCS.
func NewWorkers(n int, opt WorkersOptions) *Workers {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = n
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	w := &Workers{
		n:    n,
		work: make(chan job, opt.QueueSize),
		log:  opt.Logger,
	}
	for i := 0; i < n; i++ {
		w.g.Go(func() error { return w.run(i, opt.WorkerContext) })
	}
	return w
}

// run drains the work channel. A panicking executable is logged and
// re-panics: filters fail fast.
func (w *Workers) run(id int, mk func(int) any) error {
	info := workerInfo{id: id}
	if mk != nil {
		info.value = mk(id)
	}
	ctx := context.WithValue(context.Background(), workerKey{}, info)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker panicked", "worker", id, "panic", r)
			panic(r)
		}
	}()
	for j := range w.work {
		if ce, ok := j.e.(ContextExecutable); ok {
			ce.ExecuteContext(ctx)
		} else {
			j.e.Execute()
		}
		if j.done != nil {
			j.done()
		}
	}
	return nil
}

// Size returns the number of workers.
func (w *Workers) Size() int { return w.n }

// Execute queues e for the next free worker. It blocks while the queue is
// full.
func (w *Workers) Execute(e pipeline.Executable) error { return w.submit(e, nil) }

func (w *Workers) submit(e pipeline.Executable, done func()) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	w.work <- job{e: e, done: done}
	return nil
}

// Close stops accepting work, lets queued work finish and joins every
// worker.
func (w *Workers) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.work)
	w.mu.Unlock()
	return w.g.Wait()
}
