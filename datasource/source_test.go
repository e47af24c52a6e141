package datasource

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/lodcache/cache"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Put(1, []byte("abc"))

	got, err := m.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[0] = 'X'
	again, _ := m.Read(context.Background(), 1)
	assert.Equal(t, []byte("abc"), again)

	_, err = m.Read(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Read(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDir(t *testing.T) {
	t.Parallel()

	d := NewDir(t.TempDir())
	require.NoError(t, d.Write(0xabc, []byte("brick")))
	assert.Equal(t, "0000000000000abc", Key(0xabc))

	got, err := d.Read(context.Background(), 0xabc)
	require.NoError(t, err)
	assert.Equal(t, []byte("brick"), got)

	_, err = d.Read(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompressed(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("volume "), 64)
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			block, err := Encode(codec, payload)
			require.NoError(t, err)
			if codec != CodecNone {
				assert.Less(t, len(block), len(payload)+blockHeaderSize)
			}

			m := NewMemory()
			m.Put(1, block)
			got, err := NewCompressed(m, codec).Read(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	// Incompressible input is stored raw and still decodes.
	block, err := Encode(CodecZstd, []byte{1})
	require.NoError(t, err)
	got, err := Decode(CodecZstd, block)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)

	_, err = Decode(CodecLZ4, []byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)
}

// A corrupt header must be rejected before the decoder allocates raw bytes.
func TestDecode_RejectsOversizedHeader(t *testing.T) {
	t.Parallel()

	block := func(raw, stored uint32) []byte {
		b := make([]byte, blockHeaderSize+int(stored))
		binary.LittleEndian.PutUint32(b[0:], raw)
		binary.LittleEndian.PutUint32(b[4:], stored)
		return b
	}

	for _, codec := range []Codec{CodecLZ4, CodecZstd} {
		_, err := Decode(codec, block(math.MaxUint32, 4))
		require.ErrorIs(t, err, ErrCorrupt, codec.String())
		assert.Contains(t, err.Error(), "exceeds limit")
	}

	// Below the global limit but beyond what 4 lz4 bytes can expand to.
	_, err := Decode(CodecLZ4, block(4*lz4MaxRatio+17, 4))
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "too large")
}

func TestParseCodec(t *testing.T) {
	t.Parallel()

	c, err := ParseCodec("zstd")
	require.NoError(t, err)
	assert.Equal(t, CodecZstd, c)
	_, err = ParseCodec("brotli")
	assert.Error(t, err)
}

// slowSource tracks the highest number of concurrent reads.
type slowSource struct {
	cur, peak atomic.Int64
}

func (s *slowSource) Read(context.Context, cache.ID) ([]byte, error) {
	n := s.cur.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	s.cur.Add(-1)
	return []byte("x"), nil
}

func TestThrottled_LimitsConcurrency(t *testing.T) {
	t.Parallel()

	src := &slowSource{}
	th := NewThrottled(src, 2, 0)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := th.Read(context.Background(), cache.ID(i))
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, src.peak.Load(), int64(2))
}

func TestThrottled_RateLimit(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Put(1, make([]byte, 100))
	th := NewThrottled(m, 0, 1000)

	// The first 1000 bytes are the burst; the next 100 cost ~100ms.
	start := time.Now()
	for i := 0; i < 11; i++ {
		_, err := th.Read(context.Background(), 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := th.Read(ctx, 1)
	assert.Error(t, err)
}

// Loader adapts a source and lets the cache size []byte values.
func TestLoader(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Put(3, make([]byte, 30))
	c := cache.New(Loader(m), cache.Options[[]byte]{MaxMemory: 100})
	t.Cleanup(func() { _ = c.Close() })

	h := c.GetOrCreate(context.Background(), 3)
	require.True(t, h.Valid())
	h.Release()
	assert.Equal(t, int64(30), c.Stats().Used)

	bad := c.GetOrCreate(context.Background(), 4)
	assert.ErrorIs(t, bad.Err(), cache.ErrLoad)
	assert.ErrorIs(t, bad.Err(), ErrNotFound)
}
