package dispatch

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// wasmHelper instantiates an optional WASM module alongside a worker's JS
// isolate and exposes its exported numeric functions to JS as
// globalThis.wasmHelper.<name>(...), per spec.md §4.3's WASM helper feature
// flag. It is a narrow numeric bridge, not a general FFI: every exported
// function is assumed to take and return uint64 values, which is sufficient
// for the arithmetic/hashing helpers ad-tech code typically offloads to WASM.
type wasmHelper struct {
	runtime wazero.Runtime
	module  api.Module
}

func newWASMHelper(blob []byte) (*wasmHelper, error) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, blob)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("compile wasm helper module: %w", err)
	}

	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate wasm helper module: %w", err)
	}

	return &wasmHelper{runtime: runtime, module: mod}, nil
}

func (h *wasmHelper) install(vm *goja.Runtime) {
	helper := vm.NewObject()
	for name := range h.module.ExportedFunctionDefinitions() {
		fnName := name
		_ = helper.Set(fnName, func(call goja.FunctionCall) goja.Value {
			fn := h.module.ExportedFunction(fnName)
			if fn == nil {
				panic(vm.NewGoError(fmt.Errorf("wasmHelper: unknown export %s", fnName)))
			}
			args := make([]uint64, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = uint64(a.ToInteger())
			}
			results, err := fn.Call(context.Background(), args...)
			if err != nil {
				panic(vm.NewGoError(fmt.Errorf("wasmHelper: call %s: %w", fnName, err)))
			}
			if len(results) == 0 {
				return goja.Undefined()
			}
			return vm.ToValue(results[0])
		})
	}
	_ = vm.Set("wasmHelper", helper)
}

func (h *wasmHelper) close() {
	_ = h.runtime.Close(context.Background())
}
