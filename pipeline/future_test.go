package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recoverErr runs fn and returns the error it panicked with, if any.
func recoverErr(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.New("non-error panic")
		}
	}()
	fn()
	return nil
}

// A second Set is rejected and keeps the first value.
func TestPromise_SingleAssignment(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[int]("n"))
	f := p.Future()
	assert.False(t, f.IsReady())

	require.NoError(t, p.Set(1))
	assert.ErrorIs(t, p.Set(2), ErrAlreadySet)
	assert.True(t, f.IsReady())
	assert.Equal(t, 1, Get[int](f))
	assert.False(t, f.Flushed())

	// Flush after Set is a no-op.
	p.Flush()
	assert.Equal(t, 1, Get[int](f))
}

// Flush resolves empty; later Set and Wait never block.
func TestPromise_FlushThenSetAndWait(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[string]("s"))
	f := p.Future()
	p.Flush()

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on a flushed future")
	}

	assert.ErrorIs(t, p.Set("late"), ErrAlreadySet)
	assert.True(t, f.Flushed())
	_, err := TryGet[string](f)
	assert.ErrorIs(t, err, ErrFlushed)
	assert.ErrorIs(t, recoverErr(func() { Get[string](f) }), ErrFlushed)
}

func TestPromise_TypeMismatchPanics(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[[]byte]("data"))
	err := recoverErr(func() { _ = p.Set("not bytes") })
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, p.Future().IsReady())

	// nil is fine for a slice port.
	require.NoError(t, p.Set(nil))
	assert.Nil(t, Get[[]byte](p.Future()))

	q := NewPromise(NewPortInfo[int]("n"))
	require.NoError(t, q.Set(3))
	assert.ErrorIs(t, recoverErr(func() { Get[string](q.Future()) }), ErrTypeMismatch)
}

// Set wakes every concurrent waiter with the same value.
func TestFuture_ManyWaiters(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[int]("n"))
	const n = 16
	var wg sync.WaitGroup
	got := make([]int, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			got[i] = Get[int](p.Future())
		}(i)
	}
	require.NoError(t, p.Set(42))
	wg.Wait()
	for _, v := range got {
		assert.Equal(t, 42, v)
	}
}

// Reset releases old waiters and rearms with a new cell.
func TestPromise_Reset(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[int]("n"))
	old := p.Future()
	require.NoError(t, p.Set(1))

	p.Reset()
	cur := p.Future()
	assert.NotEqual(t, old.ID(), cur.ID())
	assert.False(t, cur.IsReady())
	assert.Equal(t, 1, Get[int](old))

	pending := p.Future()
	p.Reset()
	assert.True(t, pending.Flushed())
	require.NoError(t, p.Set(2))
	assert.Equal(t, 2, Get[int](p.Future()))
}

func TestFuture_WaitContext(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[int]("n"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Future().WaitContext(ctx), context.DeadlineExceeded)

	require.NoError(t, p.Set(1))
	assert.NoError(t, p.Future().WaitContext(context.Background()))
}

func TestFuture_OnReadyAndRename(t *testing.T) {
	t.Parallel()

	p := NewPromise(NewPortInfo[int]("n"))
	f := p.Future()
	r := f.Rename("alias")
	assert.Equal(t, "alias", r.Name())
	assert.Equal(t, f.ID(), r.ID())

	calls := 0
	f.OnReady(func() { calls++ })
	assert.Equal(t, 0, calls)
	require.NoError(t, p.Set(5))
	assert.Equal(t, 1, calls)

	// Already ready: runs immediately.
	r.OnReady(func() { calls++ })
	assert.Equal(t, 2, calls)
	d := r.Data()
	assert.Equal(t, "alias", d.Name)
	assert.Equal(t, 5, DataAs[int](d))
}

func TestWaitForAny(t *testing.T) {
	t.Parallel()

	a := NewPromise(NewPortInfo[int]("a"))
	b := NewPromise(NewPortInfo[int]("b"))
	assert.Equal(t, -1, WaitForAny())

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = b.Set(1)
	}()
	assert.Equal(t, 1, WaitForAny(a.Future(), b.Future()))
	assert.False(t, AllReady(a.Future(), b.Future()))

	a.Flush()
	WaitForAll(a.Future(), b.Future())
	assert.True(t, AllReady(a.Future(), b.Future()))
}

func TestFutureMap(t *testing.T) {
	t.Parallel()

	a1 := NewPromise(NewPortInfo[int]("a"))
	a2 := NewPromise(NewPortInfo[int]("a"))
	b := NewPromise(NewPortInfo[string]("b"))
	fm := NewFutureMap(a1.Future(), b.Future(), a2.Future())

	assert.Equal(t, []string{"a", "b"}, fm.Names())
	assert.Equal(t, 3, fm.Len())
	assert.Len(t, fm.Futures("a"), 2)
	assert.Equal(t, a1.Future().ID(), fm.Get("a").ID())

	_, err := fm.Lookup("zzz")
	assert.ErrorIs(t, err, ErrUnknownPort)
	assert.ErrorIs(t, recoverErr(func() { fm.Get("zzz") }), ErrUnknownPort)
	assert.ErrorIs(t, recoverErr(func() { fm.IsReady("zzz") }), ErrUnknownPort)

	_, err = NewUniqueFutureMap(a1.Future(), a2.Future())
	assert.ErrorIs(t, err, ErrDuplicatePort)

	require.NoError(t, b.Set("x"))
	assert.True(t, fm.IsReady("b"))
	assert.False(t, fm.IsReady())
	assert.Equal(t, "b", fm.WaitForAny())

	require.NoError(t, a1.Set(1))
	a2.Flush()
	fm.Wait()
	assert.Equal(t, []int{1}, Values[int](fm, "a"))
	assert.Equal(t, "x", Value[string](fm, "b"))
}

func TestPromiseMap(t *testing.T) {
	t.Parallel()

	pm := NewPromiseMap(NewPromise(NewPortInfo[int]("x")), NewPromise(NewPortInfo[int]("y")))
	require.NoError(t, pm.Set("x", 7))
	assert.ErrorIs(t, recoverErr(func() { _ = pm.Set("nope", 1) }), ErrUnknownPort)

	pm.FlushAll()
	fm := pm.Futures()
	assert.True(t, fm.IsReady())
	assert.Equal(t, 7, Value[int](fm, "x"))
	assert.True(t, fm.Get("y").Flushed())

	pm.ResetAll()
	assert.False(t, pm.Futures().IsReady("x"))
}
