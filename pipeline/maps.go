package pipeline

import "fmt"

// FutureMap groups futures by port name. A name may map to several futures
// (fan-in); Get returns the first, Futures returns all of them.
type FutureMap struct {
	m     map[string][]Future
	order []string
}

// NewFutureMap indexes fs by their names, keeping insertion order.
func NewFutureMap(fs ...Future) FutureMap {
	fm := FutureMap{m: make(map[string][]Future, len(fs))}
	for _, f := range fs {
		fm.add(f)
	}
	return fm
}

// NewUniqueFutureMap is NewFutureMap rejecting repeated names.
func NewUniqueFutureMap(fs ...Future) (FutureMap, error) {
	fm := FutureMap{m: make(map[string][]Future, len(fs))}
	for _, f := range fs {
		if _, dup := fm.m[f.Name()]; dup {
			return FutureMap{}, fmt.Errorf("%w: %q", ErrDuplicatePort, f.Name())
		}
		fm.add(f)
	}
	return fm, nil
}

func (fm *FutureMap) add(f Future) {
	if _, ok := fm.m[f.Name()]; !ok {
		fm.order = append(fm.order, f.Name())
	}
	fm.m[f.Name()] = append(fm.m[f.Name()], f)
}

// Lookup returns the first future named name.
func (fm FutureMap) Lookup(name string) (Future, error) {
	fs := fm.m[name]
	if len(fs) == 0 {
		return Future{}, unknownPort(name)
	}
	return fs[0], nil
}

// Has reports whether name is present.
func (fm FutureMap) Has(name string) bool { return len(fm.m[name]) > 0 }

// Get returns the first future named name and panics with ErrUnknownPort
// if there is none.
func (fm FutureMap) Get(name string) Future {
	f, err := fm.Lookup(name)
	if err != nil {
		panic(err)
	}
	return f
}

// Futures returns every future named name.
func (fm FutureMap) Futures(name string) []Future { return fm.m[name] }

// Names returns the port names in insertion order.
func (fm FutureMap) Names() []string { return fm.order }

// All returns every future, grouped by name in insertion order.
func (fm FutureMap) All() []Future {
	var out []Future
	for _, n := range fm.order {
		out = append(out, fm.m[n]...)
	}
	return out
}

// Len returns the number of futures.
func (fm FutureMap) Len() int {
	n := 0
	for _, fs := range fm.m {
		n += len(fs)
	}
	return n
}

func (fm FutureMap) selected(names []string) []Future {
	if len(names) == 0 {
		return fm.All()
	}
	var out []Future
	for _, n := range names {
		fs := fm.m[n]
		if len(fs) == 0 {
			panic(unknownPort(n))
		}
		out = append(out, fs...)
	}
	return out
}

// IsReady reports whether the named futures (all when none are named)
// are ready.
func (fm FutureMap) IsReady(names ...string) bool { return AllReady(fm.selected(names)...) }

// Wait blocks until the named futures (all when none are named) are ready.
func (fm FutureMap) Wait(names ...string) { WaitForAll(fm.selected(names)...) }

// WaitForAny blocks until one of the named futures is ready and returns
// its name. It returns "" when nothing is selected.
func (fm FutureMap) WaitForAny(names ...string) string {
	fs := fm.selected(names)
	i := WaitForAny(fs...)
	if i < 0 {
		return ""
	}
	return fs[i].Name()
}

// Value waits for the first future named name and returns its value as T.
func Value[T any](fm FutureMap, name string) T { return Get[T](fm.Get(name)) }

// Values waits for every future named name and returns the values that
// were set, skipping flushed ones.
func Values[T any](fm FutureMap, name string) []T {
	fs := fm.Futures(name)
	if len(fs) == 0 {
		panic(unknownPort(name))
	}
	out := make([]T, 0, len(fs))
	for _, f := range fs {
		if v, err := TryGet[T](f); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// PromiseMap gives a filter access to its output promises by name.
type PromiseMap struct {
	m     map[string]*Promise
	order []string
}

// NewPromiseMap indexes ps by name. Later promises with a repeated name
// replace earlier ones.
func NewPromiseMap(ps ...*Promise) PromiseMap {
	pm := PromiseMap{m: make(map[string]*Promise, len(ps))}
	for _, p := range ps {
		if _, ok := pm.m[p.Name()]; !ok {
			pm.order = append(pm.order, p.Name())
		}
		pm.m[p.Name()] = p
	}
	return pm
}

// Lookup returns the promise named name.
func (pm PromiseMap) Lookup(name string) (*Promise, error) {
	p, ok := pm.m[name]
	if !ok {
		return nil, unknownPort(name)
	}
	return p, nil
}

// Promise returns the promise named name and panics with ErrUnknownPort
// if there is none.
func (pm PromiseMap) Promise(name string) *Promise {
	p, err := pm.Lookup(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Set resolves the named promise.
func (pm PromiseMap) Set(name string, v any) error { return pm.Promise(name).Set(v) }

// Flush flushes the named promise.
func (pm PromiseMap) Flush(name string) { pm.Promise(name).Flush() }

// FlushAll flushes every promise that is still empty.
func (pm PromiseMap) FlushAll() {
	for _, n := range pm.order {
		pm.m[n].Flush()
	}
}

// ResetAll rearms every promise.
func (pm PromiseMap) ResetAll() {
	for _, n := range pm.order {
		pm.m[n].Reset()
	}
}

// Names returns the promise names in insertion order.
func (pm PromiseMap) Names() []string { return pm.order }

// Futures returns the current futures of all promises.
func (pm PromiseMap) Futures() FutureMap {
	fm := FutureMap{m: make(map[string][]Future, len(pm.m))}
	for _, n := range pm.order {
		fm.add(pm.m[n].Future())
	}
	return fm
}
