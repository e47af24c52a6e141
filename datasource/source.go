package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IvanBrykalov/lodcache/cache"
)

// ErrNotFound is returned when a source has no data for an id.
var ErrNotFound = errors.New("datasource: not found")

// Source supplies the raw bytes of one object per id.
// Implementations must be safe for concurrent reads of distinct ids.
type Source interface {
	Read(ctx context.Context, id cache.ID) ([]byte, error)
}

// Key is the object name used for id by the file and object-store sources.
func Key(id cache.ID) string { return fmt.Sprintf("%016x", uint64(id)) }

// Memory is an in-process Source, mostly for tests and examples.
type Memory struct {
	mu sync.RWMutex
	m  map[cache.ID][]byte
}

// NewMemory returns an empty memory source.
func NewMemory() *Memory { return &Memory{m: make(map[cache.ID][]byte)} }

// Put stores data for id. The slice is kept, not copied.
func (s *Memory) Put(id cache.ID, data []byte) {
	s.mu.Lock()
	s.m[id] = data
	s.mu.Unlock()
}

// Read returns a copy of the stored bytes.
func (s *Memory) Read(ctx context.Context, id cache.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, uint64(id))
	}
	return append([]byte(nil), data...), nil
}
