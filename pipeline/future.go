package pipeline

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// cell is the single-assignment slot shared by a Promise and its Futures.
// done is closed exactly once, after val is written; readers that observe
// the close also observe val.
type cell struct {
	id   uuid.UUID
	info DataInfo
	done chan struct{}

	mu      sync.Mutex
	val     any
	flushed bool
	waiters []func()
}

func newCell(info DataInfo) *cell {
	return &cell{id: uuid.New(), info: info, done: make(chan struct{})}
}

func (c *cell) ready() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// resolve publishes v and runs the registered callbacks outside the lock.
func (c *cell) resolve(v any, flushed bool) error {
	c.mu.Lock()
	if c.ready() {
		c.mu.Unlock()
		return ErrAlreadySet
	}
	c.val = v
	c.flushed = flushed
	close(c.done)
	cbs := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, fn := range cbs {
		fn()
	}
	return nil
}

func (c *cell) onReady(fn func()) {
	c.mu.Lock()
	if !c.ready() {
		c.waiters = append(c.waiters, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Promise is the write side of a single-assignment value.
//
// A promise moves from empty to set exactly once per arming, either through
// Set or Flush. Reset rearms it with a new cell for the next frame.
type Promise struct {
	mu sync.Mutex
	c  *cell
}

// NewPromise creates an empty promise for a port.
func NewPromise(info DataInfo) *Promise {
	return &Promise{c: newCell(info)}
}

func (p *Promise) cur() *cell {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c
}

// Name returns the port name.
func (p *Promise) Name() string { return p.cur().info.Name }

// Type returns the declared value type.
func (p *Promise) Type() reflect.Type { return p.cur().info.Type }

// Info returns the port declaration.
func (p *Promise) Info() DataInfo { return p.cur().info }

// Set resolves the promise with v and wakes every waiter.
//
// A value of the wrong type panics with ErrTypeMismatch. Setting a resolved
// promise returns ErrAlreadySet and leaves the first value in place.
func (p *Promise) Set(v any) error {
	c := p.cur()
	if !c.info.Accepts(v) {
		panic(typeMismatch(c.info.Name, c.info.Type, reflect.TypeOf(v)))
	}
	return c.resolve(v, false)
}

// Flush resolves the promise without a value if it is still empty.
// It is a no-op on a set promise.
func (p *Promise) Flush() {
	_ = p.cur().resolve(nil, true)
}

// Reset flushes the current cell, so that nobody waits forever on it, and
// rearms the promise with a fresh one. Futures taken before Reset keep
// referring to the old cell.
func (p *Promise) Reset() {
	p.mu.Lock()
	old := p.c
	p.c = newCell(old.info)
	p.mu.Unlock()

	_ = old.resolve(nil, true)
}

// Future returns the read side of the current cell.
func (p *Promise) Future() Future {
	c := p.cur()
	return Future{c: c, name: c.info.Name}
}

// Future is the read side of a promise. Futures are small values; copies
// refer to the same cell.
type Future struct {
	c    *cell
	name string
}

// Name returns the port name this future is known by.
func (f Future) Name() string { return f.name }

// Rename returns a future for the same cell under another name.
func (f Future) Rename(name string) Future { return Future{c: f.c, name: name} }

// ID identifies the underlying cell; renamed copies share it.
func (f Future) ID() uuid.UUID { return f.c.id }

// Type returns the declared value type.
func (f Future) Type() reflect.Type { return f.c.info.Type }

// IsReady reports whether the value was set or flushed. It never blocks.
func (f Future) IsReady() bool { return f.c.ready() }

// Done returns a channel closed once the future is ready.
func (f Future) Done() <-chan struct{} { return f.c.done }

// Wait blocks until the future is ready.
func (f Future) Wait() { <-f.c.done }

// WaitContext blocks until the future is ready or ctx ends. An abandoned
// future is still resolved later by its producer.
func (f Future) WaitContext(ctx context.Context) error {
	select {
	case <-f.c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flushed reports whether the future resolved without a value.
// It blocks until ready.
func (f Future) Flushed() bool {
	f.Wait()
	return f.c.flushed
}

// OnReady calls fn once the future is ready; immediately, on the calling
// goroutine, if it already is. fn must not block.
func (f Future) OnReady(fn func()) { f.c.onReady(fn) }

// Data waits and returns the resolved value with its port.
func (f Future) Data() PortData {
	f.Wait()
	return PortData{Name: f.name, Type: f.c.info.Type, Value: f.c.val, Empty: f.c.flushed}
}

// Get waits for f and returns its value as T.
//
// It panics with ErrTypeMismatch when the value is not a T and with
// ErrFlushed when the producer flushed the port. Use TryGet where a flushed
// input is an expected outcome.
func Get[T any](f Future) T {
	v, err := TryGet[T](f)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet is Get reporting a flushed future as ErrFlushed instead of
// panicking. A type mismatch still panics.
func TryGet[T any](f Future) (T, error) {
	var zero T
	d := f.Data()
	if d.Empty {
		return zero, ErrFlushed
	}
	return DataAs[T](d), nil
}

// WaitForAll blocks until every future is ready.
func WaitForAll(fs ...Future) {
	for _, f := range fs {
		f.Wait()
	}
}

// WaitForAny blocks until at least one future is ready and returns its
// index. It returns -1 for an empty list.
func WaitForAny(fs ...Future) int {
	if len(fs) == 0 {
		return -1
	}
	for i, f := range fs {
		if f.IsReady() {
			return i
		}
	}
	cases := make([]reflect.SelectCase, len(fs))
	for i, f := range fs {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(f.Done())}
	}
	i, _, _ := reflect.Select(cases)
	return i
}

// AllReady reports whether every future is ready.
func AllReady(fs ...Future) bool {
	for _, f := range fs {
		if !f.IsReady() {
			return false
		}
	}
	return true
}
