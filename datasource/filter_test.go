package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/lodcache/cache"
	"github.com/IvanBrykalov/lodcache/pipeline"
)

// A visible set feeds the load filter; the consumer gets valid handles for
// the ids that exist and the rest as missing.
func TestLoadFilter_InPipeline(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	for _, id := range []cache.ID{1, 2, 3} {
		m.Put(id, make([]byte, 10))
	}
	c := cache.New(Loader(m), cache.Options[[]byte]{MaxMemory: 1 << 10})
	t.Cleanup(func() { _ = c.Close() })

	p := pipeline.New("frame")
	visible := p.AddFunc("visible", func(_ pipeline.FutureMap, out pipeline.PromiseMap) {
		_ = out.Set(PortIDs, []cache.ID{3, 9, 1})
	}, nil, []pipeline.PortInfo{pipeline.NewPortInfo[[]cache.ID](PortIDs)}, false)
	load := p.Add("load", NewLoadFilter(c, 2, nil), true)
	require.NoError(t, pipeline.Connect(visible, load, PortIDs))

	p.Execute()

	hf, err := load.Future(PortHandles)
	require.NoError(t, err)
	handles := pipeline.Get[[]*cache.Handle[[]byte]](hf)
	require.Len(t, handles, 2)
	assert.Equal(t, cache.ID(3), handles[0].ID())
	assert.Equal(t, cache.ID(1), handles[1].ID())

	mf, err := load.Future(PortMissing)
	require.NoError(t, err)
	assert.Equal(t, []cache.ID{9}, pipeline.Get[[]cache.ID](mf))

	refs, _ := c.RefCount(3)
	assert.Equal(t, int64(1), refs)
	for _, h := range handles {
		h.Release()
	}
	refs, _ = c.RefCount(3)
	assert.Zero(t, refs)
	assert.Equal(t, uint64(1), c.Stats().LoadFailures)
}

// A flushed id list yields flushed outputs, not a hang.
func TestLoadFilter_FlushedInput(t *testing.T) {
	t.Parallel()

	c := cache.New(Loader(NewMemory()), cache.Options[[]byte]{MaxMemory: 1 << 10})
	t.Cleanup(func() { _ = c.Close() })

	ids := pipeline.NewPromise(pipeline.NewPortInfo[[]cache.ID](PortIDs))
	load := pipeline.NewPipeFilter("load", NewLoadFilter(c, 0, nil))
	require.NoError(t, load.SetInput(PortIDs, ids.Future()))
	ids.Flush()

	load.Execute()
	for _, f := range load.Postconditions() {
		assert.True(t, f.Flushed())
	}
}
