package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is the assumed CPU cache line width.
const CacheLineSize = 64

// PaddedAtomicUint64 occupies a full cache line so that hot counters updated
// by different goroutines do not share one.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// compile-time size check
var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
