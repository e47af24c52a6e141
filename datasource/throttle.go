package datasource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/IvanBrykalov/lodcache/cache"
)

// Throttled limits how hard a source is driven: at most maxInFlight
// concurrent reads and bytesPerSec of payload. Zero disables a limit.
//
// Bytes are charged after the read, in burst-sized chunks, so a large
// object delays its own caller rather than failing.
type Throttled struct {
	src Source
	sem *semaphore.Weighted
	lim *rate.Limiter
}

// NewThrottled wraps src.
func NewThrottled(src Source, maxInFlight int64, bytesPerSec int) *Throttled {
	t := &Throttled{src: src}
	if maxInFlight > 0 {
		t.sem = semaphore.NewWeighted(maxInFlight)
	}
	if bytesPerSec > 0 {
		t.lim = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
	return t
}

func (t *Throttled) Read(ctx context.Context, id cache.ID) ([]byte, error) {
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer t.sem.Release(1)
	}
	data, err := t.src.Read(ctx, id)
	if err != nil || t.lim == nil {
		return data, err
	}
	n := len(data)
	for n > 0 {
		chunk := min(n, t.lim.Burst())
		if err := t.lim.WaitN(ctx, chunk); err != nil {
			return nil, err
		}
		n -= chunk
	}
	return data, nil
}
