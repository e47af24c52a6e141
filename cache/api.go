package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ID identifies one logical unit of data (an octree node at a given LOD and
// timestep in a volume renderer). It is opaque to the cache.
type ID uint64

// InvalidID never maps to a live entry.
const InvalidID ID = math.MaxUint64

var (
	// ErrLoad is matched (errors.Is) by every *LoadError.
	ErrLoad = errors.New("cache: load failed")
	// ErrInvalidID is carried by handles requested for InvalidID.
	ErrInvalidID = errors.New("cache: invalid id")
	// ErrClosed is carried by handles requested from a closed cache.
	ErrClosed = errors.New("cache: closed")
	// ErrReleased is carried by handles cloned from an already released handle.
	ErrReleased = errors.New("cache: handle already released")
	// ErrNotTunable is returned by the Set* configuration methods when the
	// configured policy does not implement policy.Tunable.
	ErrNotTunable = errors.New("cache: policy is not tunable")
)

// LoadError reports a Loader failure for one id.
type LoadError struct {
	ID  ID
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("cache: load %d: %v", e.ID, e.Err) }

// Unwrap exposes the loader's error.
func (e *LoadError) Unwrap() error { return e.Err }

// Is makes every LoadError match ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Loader materializes the value for an id on a cache miss.
//
// Load is called at most once concurrently per id and never under a cache
// lock. It must be safe to call from any goroutine for distinct ids.
type Loader[T any] interface {
	Load(ctx context.Context, id ID) (T, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc[T any] func(ctx context.Context, id ID) (T, error)

// Load calls f(ctx, id).
func (f LoaderFunc[T]) Load(ctx context.Context, id ID) (T, error) { return f(ctx, id) }

// Sizer is implemented by values that know their own footprint in bytes.
type Sizer interface {
	Size() int64
}

// sizeOf is the fallback when Options.Size is nil.
func sizeOf(v any) int64 {
	switch x := v.(type) {
	case []byte:
		return int64(len(x))
	case string:
		return int64(len(x))
	case Sizer:
		return x.Size()
	default:
		return 0
	}
}
