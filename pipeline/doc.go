// Package pipeline is a small dataflow layer: filters with typed ports,
// connected through single-assignment promises and futures.
//
// A Promise is written once (Set) or resolved empty (Flush); every Future of
// it then becomes ready and stays ready. A PipeFilter flushes all of its
// outputs when its Filter returns, so a consumer waiting on an output never
// hangs, whatever path the filter took.
//
// Wiring is checked when it is built: Connect fails with ErrUnknownPort or
// ErrTypeMismatch. Reading a value with the wrong type is a programming
// error and panics.
//
//	load := pipeline.NewPipeFilter("load", loadFilter)
//	render := pipeline.NewPipeFilter("render", renderFilter)
//	if err := pipeline.Connect(load, render, "data"); err != nil {
//	    return err
//	}
//	exec.Schedule(load, render)
//
// Ordering comes from the futures only. Executables without a data
// dependency between them may run in any order.
package pipeline
