package script

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	wasi "github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/signalforge/engine/errors"
)

// Engine is one isolated embedded interpreter: a wazero.Runtime plus the
// host module bound against a single Host, and the compiled guest module
// instantiated on top of it. Every worker owns exactly one Engine; the
// UI thread owns one too, bound against a UIHost. Nothing is shared
// between Engines (spec.md §5 — thread isolation).
type Engine struct {
	runtime  wazero.Runtime
	module   api.Module
	compiled wazero.CompiledModule
	host     Host
}

// New compiles wasmBytes and instantiates it against host's bound
// functions, under module name "env" — mirroring the ptr/len memory
// bridge convention the host's own wasm runtime uses for calling into
// guest exports (alloc a buffer in guest memory, write into it, call the
// guest export, free the buffer), generalized here to a two-way host
// module so the guest can call back into the restricted API as well.
func New(ctx context.Context, wasmBytes []byte, host Host) (*Engine, error) {
	rt := wazero.NewRuntime(ctx)
	e := &Engine{runtime: rt, host: host}

	if _, err := wasi.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, errors.WrapScriptInit(err)
	}

	builder := rt.NewHostModuleBuilder("env")
	bindHost(builder, host, e)
	bindReaders(builder)
	if uiHost, ok := host.(UIHost); ok {
		bindUIHost(builder, uiHost)
		bindUIFrameHooks(builder, uiHost, e)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		rt.Close(ctx)
		return nil, errors.WrapScriptInit(err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.WrapScriptInit(err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, errors.WrapScriptInit(err)
	}

	e.module = mod
	e.compiled = compiled
	return e, nil
}

// CallValue invokes a guest export of shape (t float64) -> (float64, i32)
// — the shape used for packet-callback trampolines registered via
// on_packet, where t is the packet's parsed timestamp and the guest
// returns the derived value plus a validity flag.
func (e *Engine) CallValue(ctx context.Context, name string, t float64) (float64, bool) {
	fn := e.module.ExportedFunction(name)
	if fn == nil {
		return 0, false
	}
	results, err := fn.Call(ctx, api.EncodeF64(t))
	if err != nil || len(results) < 2 {
		return 0, false
	}
	return api.DecodeF64(results[0]), api.DecodeI32(results[1]) != 0
}

// Close tears down the wazero runtime and everything instantiated on it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// CallVoid invokes a zero-arg, zero-result guest export by name — the
// shape used for task bodies, on_frame, on_alert actions and
// on_cleanup. A missing export is not an error: a script that never
// defined "on_frame" simply has nothing to run there.
func (e *Engine) CallVoid(ctx context.Context, name string) error {
	fn := e.module.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	_, err := fn.Call(ctx)
	return err
}

// CallPredicate invokes a guest export of shape (ptr u32, len u32) -> i32
// and reports its boolean result — the shape used for parser entry
// points registered via register_parser. The caller is responsible for
// having written the bytes at ptr into guest memory first (see
// AllocAndWrite).
func (e *Engine) CallPredicate(ctx context.Context, name string, ptr, length uint32) (bool, error) {
	fn := e.module.ExportedFunction(name)
	if fn == nil {
		return false, nil
	}
	results, err := fn.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		return false, nil
	}
	return api.DecodeI32(results[0]) != 0, nil
}

// CallBoolPredicate invokes a zero-arg guest export of shape () -> i32
// and reports its boolean result — the shape used for on_alert condition
// functions, which take no packet/buffer context at all. A missing
// export reports false, not an error.
func (e *Engine) CallBoolPredicate(ctx context.Context, name string) (bool, error) {
	fn := e.module.ExportedFunction(name)
	if fn == nil {
		return false, nil
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		return false, nil
	}
	return api.DecodeI32(results[0]) != 0, nil
}

// AllocAndWrite copies data into freshly allocated guest memory via the
// guest's exported "alloc" function and returns its pointer, mirroring
// the teacher's wasm bridge allocation protocol. Guests not exporting
// "alloc" get ErrScriptNoAlloc.
func (e *Engine) AllocAndWrite(ctx context.Context, data []byte) (uint32, error) {
	alloc := e.module.ExportedFunction("alloc")
	if alloc == nil {
		return 0, errors.ErrScriptNoAlloc
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, err
	}
	ptr := uint32(results[0])
	if len(data) > 0 {
		if !e.module.Memory().Write(ptr, data) {
			return 0, errors.ErrScriptMemoryWrite
		}
	}
	return ptr, nil
}

// Free releases memory previously returned by AllocAndWrite, if the
// guest exports "free"; otherwise it is a no-op (short-lived scripts may
// rely on wazero tearing the whole linear memory down instead).
func (e *Engine) Free(ctx context.Context, ptr, length uint32) {
	free := e.module.ExportedFunction("free")
	if free == nil {
		return
	}
	_, _ = free.Call(ctx, uint64(ptr), uint64(length))
}
