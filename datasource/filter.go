package datasource

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/lodcache/cache"
	"github.com/IvanBrykalov/lodcache/pipeline"
)

// Port names of LoadFilter.
const (
	PortIDs     = "ids"
	PortHandles = "handles"
	PortMissing = "missing"
)

// LoadFilter is a pipeline filter that makes a set of ids resident.
//
// Input "ids" ([]cache.ID). Outputs "handles" ([]*cache.Handle[[]byte],
// valid handles in input order, owned and released by the consumer) and
// "missing" ([]cache.ID, ids whose load failed).
type LoadFilter struct {
	c           *cache.Cache[[]byte]
	parallelism int
	log         *slog.Logger
}

// NewLoadFilter loads through c with at most parallelism concurrent
// lookups; parallelism <= 0 means unlimited.
func NewLoadFilter(c *cache.Cache[[]byte], parallelism int, log *slog.Logger) *LoadFilter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &LoadFilter{c: c, parallelism: parallelism, log: log}
}

func (f *LoadFilter) InputInfos() []pipeline.PortInfo {
	return []pipeline.PortInfo{pipeline.NewPortInfo[[]cache.ID](PortIDs)}
}

func (f *LoadFilter) OutputInfos() []pipeline.PortInfo {
	return []pipeline.PortInfo{
		pipeline.NewPortInfo[[]*cache.Handle[[]byte]](PortHandles),
		pipeline.NewPortInfo[[]cache.ID](PortMissing),
	}
}

// Execute leaves its outputs to the PipeFilter's flush when the ids input
// was flushed.
func (f *LoadFilter) Execute(in pipeline.FutureMap, out pipeline.PromiseMap) {
	ids, err := pipeline.TryGet[[]cache.ID](in.Get(PortIDs))
	if err != nil {
		return
	}

	got := make([]*cache.Handle[[]byte], len(ids))
	var g errgroup.Group
	if f.parallelism > 0 {
		g.SetLimit(f.parallelism)
	}
	for i, id := range ids {
		g.Go(func() error {
			got[i] = f.c.GetOrCreate(context.Background(), id)
			return nil
		})
	}
	_ = g.Wait()

	handles := make([]*cache.Handle[[]byte], 0, len(got))
	var missing []cache.ID
	for i, h := range got {
		if h.Valid() {
			handles = append(handles, h)
			continue
		}
		missing = append(missing, ids[i])
	}
	if len(missing) > 0 {
		f.log.Warn("objects not loaded", "missing", len(missing), "requested", len(ids))
	}
	_ = out.Set(PortHandles, handles)
	_ = out.Set(PortMissing, missing)
}

var _ pipeline.Filter = (*LoadFilter)(nil)
