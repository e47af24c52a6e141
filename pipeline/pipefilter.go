package pipeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// inputPort is one declared input and the futures feeding it. Sources are
// resolved at execution time so that a reset upstream promise is picked up.
type inputPort struct {
	info    PortInfo
	sources []func() Future
}

// PipeFilter binds a Filter to concrete ports and is an Executable.
//
// Inputs are fed by Connect or SetInput; outputs are promises owned by the
// PipeFilter. Execute always leaves every output ready.
type PipeFilter struct {
	name   string
	id     uuid.UUID
	filter Filter

	mu      sync.Mutex
	inputs  map[string]*inputPort
	inOrder []string
	outputs PromiseMap
}

// NewPipeFilter builds the ports declared by f. An empty name defaults to
// the filter's id.
func NewPipeFilter(name string, f Filter) *PipeFilter {
	id := uuid.New()
	if name == "" {
		name = id.String()
	}
	p := &PipeFilter{
		name:   name,
		id:     id,
		filter: f,
		inputs: make(map[string]*inputPort),
	}
	for _, info := range f.InputInfos() {
		if _, dup := p.inputs[info.Name]; dup {
			panic(fmt.Errorf("%w: input %q of %s", ErrDuplicatePort, info.Name, name))
		}
		p.inputs[info.Name] = &inputPort{info: info}
		p.inOrder = append(p.inOrder, info.Name)
	}
	outs := make([]*Promise, 0, len(f.OutputInfos()))
	for _, info := range f.OutputInfos() {
		outs = append(outs, NewPromise(info))
	}
	p.outputs = NewPromiseMap(outs...)
	if len(p.outputs.Names()) != len(outs) {
		panic(fmt.Errorf("%w: outputs of %s", ErrDuplicatePort, name))
	}
	return p
}

// Name returns the filter name.
func (p *PipeFilter) Name() string { return p.name }

// ID returns the unique id of this instance.
func (p *PipeFilter) ID() uuid.UUID { return p.id }

// Filter returns the wrapped filter.
func (p *PipeFilter) Filter() Filter { return p.filter }

// Promise returns the output promise named name.
func (p *PipeFilter) Promise(name string) (*Promise, error) { return p.outputs.Lookup(name) }

// Future returns the current future of the output named name.
func (p *PipeFilter) Future(name string) (Future, error) {
	pr, err := p.outputs.Lookup(name)
	if err != nil {
		return Future{}, err
	}
	return pr.Future(), nil
}

// SetInput feeds the input port name from an external future.
func (p *PipeFilter) SetInput(name string, f Future) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.inputs[name]
	if !ok {
		return unknownPort(name)
	}
	src := DataInfo{Name: f.Name(), Type: f.Type()}
	if !src.compatible(in.info) {
		return typeMismatch(name, in.info.Type, f.Type())
	}
	fixed := f.Rename(name)
	in.sources = append(in.sources, func() Future { return fixed })
	return nil
}

func (p *PipeFilter) connectFrom(name string, src *Promise) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.inputs[name]
	if !ok {
		return unknownPort(name)
	}
	if !src.Info().compatible(in.info) {
		return typeMismatch(name, in.info.Type, src.Type())
	}
	in.sources = append(in.sources, func() Future { return src.Future().Rename(name) })
	return nil
}

// Connect wires the output port of src to the input port of the same name
// of dst. Names and types are checked here, not at run time.
func Connect(src, dst *PipeFilter, port string) error {
	return ConnectPorts(src, port, dst, port)
}

// ConnectPorts wires src's output srcPort to dst's input dstPort.
func ConnectPorts(src *PipeFilter, srcPort string, dst *PipeFilter, dstPort string) error {
	out, err := src.outputs.Lookup(srcPort)
	if err != nil {
		return fmt.Errorf("connect %s -> %s: output: %w", src.name, dst.name, err)
	}
	if err := dst.connectFrom(dstPort, out); err != nil {
		return fmt.Errorf("connect %s -> %s: input: %w", src.name, dst.name, err)
	}
	return nil
}

// Inputs returns the current input futures keyed by port name.
// Unconnected ports are absent.
func (p *PipeFilter) Inputs() FutureMap {
	p.mu.Lock()
	defer p.mu.Unlock()

	fm := FutureMap{m: make(map[string][]Future, len(p.inputs))}
	for _, n := range p.inOrder {
		for _, src := range p.inputs[n].sources {
			fm.add(src())
		}
	}
	return fm
}

// Execute runs the filter and then flushes every output left empty, also
// when the filter returns early or panics.
func (p *PipeFilter) Execute() {
	in := p.Inputs()
	defer p.outputs.FlushAll()
	p.filter.Execute(in, p.outputs)
}

// Flush resolves every empty output without running the filter.
func (p *PipeFilter) Flush() { p.outputs.FlushAll() }

// Preconditions returns the futures of all connected inputs.
func (p *PipeFilter) Preconditions() []Future { return p.Inputs().All() }

// Postconditions returns the futures of all outputs.
func (p *PipeFilter) Postconditions() []Future { return p.outputs.Futures().All() }

// IsInputReady reports whether Execute can run without blocking.
func (p *PipeFilter) IsInputReady() bool { return AllReady(p.Preconditions()...) }

// Reset rearms the outputs.
func (p *PipeFilter) Reset() { p.outputs.ResetAll() }

var (
	_ Executable = (*PipeFilter)(nil)
	_ Flusher    = (*PipeFilter)(nil)
)
