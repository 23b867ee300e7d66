package script

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// UIHost is the superset API available only to the UI thread's script
// engine (spec.md §6) — everything in Host, plus frame/alert hooks and
// read-only plot/frame introspection. worker.Runtime never implements
// this; only the UI-thread runtime does.
type UIHost interface {
	Host

	OnFrame(fn func())
	OnAlert(name string, cooldownSeconds float64, cond func() bool, action func())
	FrameNumber() uint64
	DeltaTime() float64
	PlotCount() int
}

// bindUIHost adds the UI-thread-only host functions on top of bindHost.
// on_frame/on_alert, which register trampolines back into guest exports
// the same way on_packet/on_cleanup do in bindings.go, are bound
// separately by bindUIFrameHooks.
func bindUIHost(b wazero.HostModuleBuilder, host UIHost) {
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint64 { return host.FrameNumber() }).
		Export("get_frame_number")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) float64 { return host.DeltaTime() }).
		Export("get_delta_time")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) int32 { return int32(host.PlotCount()) }).
		Export("get_plot_count")
}

// bindUIFrameHooks wires on_frame/on_alert against e so their guest
// callbacks can be invoked later; split from bindUIHost because it takes
// the Engine, whose module is set only after instantiation (see New).
func bindUIFrameHooks(b wazero.HostModuleBuilder, host UIHost, e *Engine) {
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, fnPtr, fnLen uint32) {
			fnName := readGuestString(mod, fnPtr, fnLen)
			host.OnFrame(func() {
				_ = e.CallVoid(context.Background(), fnName)
			})
		}).
		Export("on_frame")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32, cooldown float64, condFnPtr, condFnLen, actionFnPtr, actionFnLen uint32) {
			name := readGuestString(mod, namePtr, nameLen)
			condFn := readGuestString(mod, condFnPtr, condFnLen)
			actionFn := readGuestString(mod, actionFnPtr, actionFnLen)
			host.OnAlert(name, cooldown, func() bool {
				ok, _ := e.CallBoolPredicate(context.Background(), condFn)
				return ok
			}, func() {
				_ = e.CallVoid(context.Background(), actionFn)
			})
		}).
		Export("on_alert")
}
