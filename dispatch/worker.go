package dispatch

import (
	"time"

	"github.com/dop251/goja"

	"github.com/golang/glog"
)

// worker owns exactly one goja.Runtime. goja runtimes are not safe for
// concurrent use, so each worker serialises its jobs channel reads: the
// dispatcher is cooperative, not preemptive, matching spec.md §4.3's "JS is
// single-threaded inside each isolate".
type worker struct {
	id        int
	vm        *goja.Runtime
	console   *consoleCapture
	installed int64
	wasm      *wasmHelper
}

func newWorker(id int, cfg Config) *worker {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	console := newConsoleCapture()
	console.install(vm)

	w := &worker{id: id, vm: vm, console: console}

	if cfg.EnableWASMHelper && len(cfg.WASMHelperBlob) > 0 {
		helper, err := newWASMHelper(cfg.WASMHelperBlob)
		if err != nil {
			glog.Warningf("dispatch: worker %d: wasm helper disabled: %v", id, err)
		} else {
			w.wasm = helper
			w.wasm.install(vm)
		}
	}

	return w
}

func (w *worker) run(jobs <-chan job) {
	for j := range jobs {
		j.resultCh <- w.execute(j)
	}
}

func (w *worker) execute(j job) DispatchResult {
	// A timer from a previous job's timeout can fire in the window right
	// around that job's normal return, latching an interrupt this job would
	// otherwise inherit. Clear it before every run.
	w.vm.ClearInterrupt()

	if j.snapshot.version != w.installed {
		if _, err := w.vm.RunProgram(j.snapshot.program); err != nil {
			return DispatchResult{ID: j.req.ID, Err: err}
		}
		w.installed = j.snapshot.version
	}

	w.console.reset()

	fnValue := w.vm.Get(j.req.EntryFunction)
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return DispatchResult{ID: j.req.ID, Err: unknownEntryFunctionError(j.req.EntryFunction), Logs: w.console.lines()}
	}

	args := make([]goja.Value, len(j.req.Args))
	for i, a := range j.req.Args {
		args[i] = w.vm.ToValue(a)
	}

	timeout := resolveTimeout(j.req.TimeoutMS)
	timer := time.AfterFunc(timeout, func() {
		w.vm.Interrupt(ErrDispatchTimeout)
	})
	defer timer.Stop()

	result, err := fn(goja.Undefined(), args...)
	if err != nil {
		if _, isInterrupt := err.(*goja.InterruptedError); isInterrupt {
			w.vm.ClearInterrupt()
			return DispatchResult{ID: j.req.ID, Err: ErrDispatchTimeout, TimedOut: true, Logs: w.console.lines()}
		}
		return DispatchResult{ID: j.req.ID, Err: err, Logs: w.console.lines()}
	}

	return DispatchResult{ID: j.req.ID, Value: result.Export(), Logs: w.console.lines()}
}

type entryFunctionError struct {
	name string
}

func (e *entryFunctionError) Error() string {
	return "dispatch: entry function not found: " + e.name
}

func unknownEntryFunctionError(name string) error {
	return &entryFunctionError{name: name}
}
