package pipeline

// Filter is a unit of work with declared typed ports.
//
// Execute reads its inputs through in (Get blocks until ready) and must have
// set or flushed every declared output by the time it returns. When driven
// by a PipeFilter, outputs left empty are flushed automatically.
type Filter interface {
	Execute(in FutureMap, out PromiseMap)
	InputInfos() []PortInfo
	OutputInfos() []PortInfo
}

// FilterFunc is the body of a FuncFilter.
type FilterFunc func(in FutureMap, out PromiseMap)

// FuncFilter adapts a function with explicit port declarations to Filter.
type FuncFilter struct {
	fn      FilterFunc
	inputs  []PortInfo
	outputs []PortInfo
}

// NewFuncFilter wraps fn.
func NewFuncFilter(fn FilterFunc, inputs, outputs []PortInfo) *FuncFilter {
	return &FuncFilter{fn: fn, inputs: inputs, outputs: outputs}
}

func (f *FuncFilter) Execute(in FutureMap, out PromiseMap) { f.fn(in, out) }
func (f *FuncFilter) InputInfos() []PortInfo               { return f.inputs }
func (f *FuncFilter) OutputInfos() []PortInfo              { return f.outputs }

// Executable is schedulable work gated by futures.
//
// Preconditions must all be ready before Execute runs; Postconditions are
// all ready once Execute returns. Reset rearms the postconditions for the
// next frame.
type Executable interface {
	Execute()
	Preconditions() []Future
	Postconditions() []Future
	Reset()
}

// Flusher is implemented by executables that can resolve their
// postconditions without running, for work that is dropped.
type Flusher interface {
	Flush()
}
