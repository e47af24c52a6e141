package cache

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
)

// benchmarkHot exercises GetOrCreate/Release against a warm cache whose
// budget holds residentPct percent of the key space. Lower values force
// eviction passes on the hot path.
func benchmarkHot(b *testing.B, residentPct int) {
	const keys = 1 << 16
	const objSize = 64
	c := New[[]byte](LoaderFunc[[]byte](func(context.Context, ID) ([]byte, error) {
		return make([]byte, objSize), nil
	}), Options[[]byte]{
		MaxMemory:    int64(keys * objSize * residentPct / 100),
		CleanupRatio: 0.9,
	})
	b.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	for i := 0; i < keys*residentPct/100; i++ {
		c.GetOrCreate(ctx, ID(i)).Release()
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		for pb.Next() {
			c.GetOrCreate(ctx, ID(r.Intn(keys))).Release()
		}
	})
}

func BenchmarkCache_AllResident(b *testing.B)  { benchmarkHot(b, 100) }
func BenchmarkCache_HalfResident(b *testing.B) { benchmarkHot(b, 50) }

// BenchmarkCache_Hit measures the pure hit path on one id.
func BenchmarkCache_Hit(b *testing.B) {
	c := New[[]byte](LoaderFunc[[]byte](func(context.Context, ID) ([]byte, error) {
		return make([]byte, 8), nil
	}), Options[[]byte]{MaxMemory: 1 << 20})
	b.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	c.GetOrCreate(ctx, 1).Release()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.GetOrCreate(ctx, 1).Release()
		}
	})
}
