package dispatch

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// consoleCapture backs the `console.log`/`console.warn`/`console.error`
// globals injected into every isolate. Wrapper code's log lines are
// collected per dispatch and returned to the reactor rather than written
// anywhere, per spec.md §4.3/§4.4's log-capture requirement.
type consoleCapture struct {
	mu  sync.Mutex
	buf []string
}

func newConsoleCapture() *consoleCapture {
	return &consoleCapture{}
}

func (c *consoleCapture) reset() {
	c.mu.Lock()
	c.buf = c.buf[:0]
	c.mu.Unlock()
}

func (c *consoleCapture) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.buf))
	copy(out, c.buf)
	return out
}

func (c *consoleCapture) log(args ...interface{}) {
	c.mu.Lock()
	c.buf = append(c.buf, fmt.Sprintln(args...))
	c.mu.Unlock()
}

func (c *consoleCapture) install(vm *goja.Runtime) {
	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		c.log(args...)
		return goja.Undefined()
	}
	_ = console.Set("log", logFn)
	_ = console.Set("warn", logFn)
	_ = console.Set("error", logFn)
	_ = vm.Set("console", console)
}
