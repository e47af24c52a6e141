// Package executor runs pipeline executables on a fixed goroutine pool.
//
// Workers is the pool. Executor sits in front of it and releases each
// scheduled executable once its preconditions are ready:
//
//	w := executor.NewWorkers(4, executor.WorkersOptions{})
//	defer w.Close()
//	ex := executor.New(w, executor.Options{})
//	defer ex.Close()
//
//	out := ex.Schedule(load, render)
//	out.Wait("frame")
//
// A per-worker value (an upload context, a scratch buffer) is built by
// WorkersOptions.WorkerContext and reaches executables implementing
// ContextExecutable through WorkerValue.
package executor
