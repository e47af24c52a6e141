package cache

import "sync/atomic"

// Handle is a counted reference to a cached object.
//
// While a handle is held the object cannot be evicted. Release it as soon as
// the data is no longer read, typically with defer; a renderer must not keep
// handles across a frame boundary if eviction is to reclaim memory for that
// frame. Release is idempotent per handle; use Clone to obtain an extra,
// independently released reference.
//
// A handle for an object that could not be loaded is invalid: Valid reports
// false and Err returns the cause. Invalid handles hold no reference.
type Handle[T any] struct {
	id       ID
	obj      *object[T]
	err      error
	released atomic.Bool
}

func newHandle[T any](o *object[T]) *Handle[T] {
	return &Handle[T]{id: o.id, obj: o}
}

func invalidHandle[T any](id ID, err error) *Handle[T] {
	return &Handle[T]{id: id, err: err}
}

// ID returns the requested id (also for invalid handles).
func (h *Handle[T]) ID() ID {
	if h == nil {
		return InvalidID
	}
	return h.id
}

// Valid reports whether the handle refers to a loaded object.
func (h *Handle[T]) Valid() bool { return h != nil && h.obj != nil }

// Loaded is an alias of Valid: objects are either fully loaded or absent.
func (h *Handle[T]) Loaded() bool { return h.Valid() }

// Err returns why the handle is invalid, or nil.
func (h *Handle[T]) Err() error {
	if h == nil {
		return ErrInvalidID
	}
	return h.err
}

// Value returns the loaded value, or the zero value for invalid handles.
func (h *Handle[T]) Value() T {
	if !h.Valid() {
		var zero T
		return zero
	}
	return h.obj.val
}

// Size returns the object's size in bytes, 0 for invalid handles.
func (h *Handle[T]) Size() int64 {
	if !h.Valid() {
		return 0
	}
	return h.obj.size
}

// Clone acquires another reference to the same object.
func (h *Handle[T]) Clone() *Handle[T] {
	if !h.Valid() {
		return invalidHandle[T](h.ID(), h.Err())
	}
	if h.released.Load() {
		return invalidHandle[T](h.id, ErrReleased)
	}
	h.obj.refs.Add(1)
	return newHandle(h.obj)
}

// Release drops the reference. It never triggers eviction; memory is
// reclaimed by a later GetOrCreate. Calling Release again is a no-op.
func (h *Handle[T]) Release() {
	if !h.Valid() {
		return
	}
	if h.released.CompareAndSwap(false, true) {
		h.obj.refs.Add(-1)
	}
}
