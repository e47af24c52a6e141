package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// Pipeline is an ordered set of executables and is itself an Executable,
// so pipelines nest. Members marked wait contribute their outputs to the
// pipeline's postconditions.
type Pipeline struct {
	name string

	mu      sync.Mutex
	members []Executable
	waited  []Executable
}

// New returns an empty pipeline.
func New(name string) *Pipeline { return &Pipeline{name: name} }

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Add wraps f in a PipeFilter and appends it.
func (p *Pipeline) Add(name string, f Filter, wait bool) *PipeFilter {
	pf := NewPipeFilter(name, f)
	p.add(pf, wait)
	return pf
}

// AddFunc appends a function filter with the given port declarations.
func (p *Pipeline) AddFunc(name string, fn FilterFunc, inputs, outputs []PortInfo, wait bool) *PipeFilter {
	return p.Add(name, NewFuncFilter(fn, inputs, outputs), wait)
}

// AddPipeline appends a nested pipeline. Adding a pipeline to itself is
// ignored.
func (p *Pipeline) AddPipeline(sub *Pipeline, wait bool) {
	if sub == p {
		return
	}
	p.add(sub, wait)
}

// AddExecutable appends any executable.
func (p *Pipeline) AddExecutable(e Executable, wait bool) { p.add(e, wait) }

func (p *Pipeline) add(e Executable, wait bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members = append(p.members, e)
	if wait {
		p.waited = append(p.waited, e)
	}
}

// Executables returns the members in insertion order.
func (p *Pipeline) Executables() []Executable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Executable(nil), p.members...)
}

// Execute runs every member on the calling goroutine, each as soon as its
// preconditions are ready, preferring insertion order. When nothing can run
// it waits for the next external input. Members whose inputs can only come
// from other blocked members (a cycle) are flushed instead of run.
func (p *Pipeline) Execute() {
	pending := p.Executables()
	for len(pending) > 0 {
		i := firstReady(pending)
		if i >= 0 {
			pending[i].Execute()
			pending = append(pending[:i], pending[i+1:]...)
			continue
		}
		ext := externalWaits(pending)
		if len(ext) == 0 {
			for _, e := range pending {
				flush(e)
			}
			return
		}
		WaitForAny(ext...)
	}
}

func firstReady(es []Executable) int {
	for i, e := range es {
		if AllReady(e.Preconditions()...) {
			return i
		}
	}
	return -1
}

// externalWaits returns the unready preconditions of es that none of es
// produces.
func externalWaits(es []Executable) []Future {
	internal := make(map[uuid.UUID]struct{})
	for _, e := range es {
		for _, f := range e.Postconditions() {
			internal[f.ID()] = struct{}{}
		}
	}
	var out []Future
	for _, e := range es {
		for _, f := range e.Preconditions() {
			if _, ok := internal[f.ID()]; ok || f.IsReady() {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}

func flush(e Executable) {
	if fl, ok := e.(Flusher); ok {
		fl.Flush()
	}
}

// Flush resolves the postconditions of every member without running them.
func (p *Pipeline) Flush() {
	for _, e := range p.Executables() {
		flush(e)
	}
}

// Preconditions returns the member preconditions that are not produced
// inside the pipeline.
func (p *Pipeline) Preconditions() []Future {
	members := p.Executables()
	internal := make(map[uuid.UUID]struct{})
	for _, e := range members {
		for _, f := range e.Postconditions() {
			internal[f.ID()] = struct{}{}
		}
	}
	var out []Future
	for _, e := range members {
		for _, f := range e.Preconditions() {
			if _, ok := internal[f.ID()]; !ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// Postconditions returns the outputs of the members added with wait.
func (p *Pipeline) Postconditions() []Future {
	p.mu.Lock()
	waited := append([]Executable(nil), p.waited...)
	p.mu.Unlock()

	var out []Future
	for _, e := range waited {
		out = append(out, e.Postconditions()...)
	}
	return out
}

// Reset rearms every member.
func (p *Pipeline) Reset() {
	for _, e := range p.Executables() {
		e.Reset()
	}
}

// IsInputReady reports whether all external inputs are ready.
func (p *Pipeline) IsInputReady() bool { return AllReady(p.Preconditions()...) }

// WaitForAll blocks until every waited output is ready.
func (p *Pipeline) WaitForAll() { WaitForAll(p.Postconditions()...) }

// WaitForAny blocks until one waited output is ready. It returns false when
// there is nothing to wait for.
func (p *Pipeline) WaitForAny() bool { return WaitForAny(p.Postconditions()...) >= 0 }

var (
	_ Executable = (*Pipeline)(nil)
	_ Flusher    = (*Pipeline)(nil)
)
