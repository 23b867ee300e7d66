package script

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/signalforge/engine/internal/telemetrylog"
)

// guarded wraps a host function body so a panic inside it (a bad script
// argument, an out-of-range title, etc.) is caught, logged, and turned
// into a zero result rather than crashing the worker goroutine — the
// same "script errors never escape" discipline spec.md §7 requires at
// the Go-call-site level, now also enforced at the host-function
// boundary since the guest fully controls the arguments it passes.
func guarded(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetrylog.ScriptErrorw("host call panicked", "fn", name, "recover", r)
		}
	}()
	fn()
}

func readGuestString(mod api.Module, ptr, length uint32) string {
	if length == 0 {
		return ""
	}
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return ""
	}
	return string(buf)
}

func bindHost(b wazero.HostModuleBuilder, host Host, e *Engine) {
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) float64 { return host.CurrentTimeSeconds() }).
		Export("current_time_seconds")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) int32 {
			if host.IsAppRunning() {
				return 1
			}
			return 0
		}).
		Export("is_app_running")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) int32 {
			if s := suspenderFrom(ctx); s != nil {
				if err := s.Yield(); err != nil {
					return 1
				}
			}
			return 0
		}).
		Export("yield")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, seconds float64) int32 {
			if s := suspenderFrom(ctx); s != nil {
				if err := s.SleepSeconds(seconds); err != nil {
					return 1
				}
			}
			return 0
		}).
		Export("sleep_seconds")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, fnPtr, fnLen uint32) int32 {
			var out int32
			guarded("spawn_task", func() {
				name := readGuestString(mod, fnPtr, fnLen)
				if err := host.SpawnTask(name); err != nil {
					telemetrylog.ScriptErrorw("spawn_task failed", "fn", name, "err", err)
					out = 1
				}
			})
			return out
		}).
		Export("spawn_task")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, srcPtr, srcLen uint32) uint64 {
			var id uint64
			guarded("spawn_worker", func() {
				src := readGuestString(mod, srcPtr, srcLen)
				wid, err := host.SpawnWorker(src)
				if err != nil {
					telemetrylog.ScriptErrorw("spawn_worker failed", "source", src, "err", err)
					return
				}
				id = wid
			})
			return id
		}).
		Export("spawn_worker")

	// --- signals ---

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) (uint64, int32) {
			var id uint32
			var ok int32
			guarded("get_signal_id", func() {
				name := readGuestString(mod, namePtr, nameLen)
				v, err := host.GetSignalID(name)
				if err != nil {
					return
				}
				id, ok = v, 1
			})
			return uint64(id), ok
		}).
		Export("get_signal_id")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32, t, v float64) int32 {
			var ok int32
			guarded("update_signal", func() {
				name := readGuestString(mod, namePtr, nameLen)
				if err := host.UpdateSignal(name, t, v); err == nil {
					ok = 1
				}
			})
			return ok
		}).
		Export("update_signal")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, id uint32, t, v float64) int32 {
			var ok int32
			guarded("update_signal_fast", func() {
				if err := host.UpdateSignalFast(id, t, v); err == nil {
					ok = 1
				}
			})
			return ok
		}).
		Export("update_signal_fast")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) (float64, int32) {
			var value float64
			var ok int32
			guarded("get_signal", func() {
				name := readGuestString(mod, namePtr, nameLen)
				v, present := host.GetSignal(name)
				if present {
					value, ok = v, 1
				}
			})
			return value, ok
		}).
		Export("get_signal")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) int32 {
			var exists int32
			guarded("signal_exists", func() {
				if host.SignalExists(readGuestString(mod, namePtr, nameLen)) {
					exists = 1
				}
			})
			return exists
		}).
		Export("signal_exists")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) int32 {
			var ok int32
			guarded("create_signal", func() {
				if err := host.CreateSignal(readGuestString(mod, namePtr, nameLen)); err == nil {
					ok = 1
				}
			})
			return ok
		}).
		Export("create_signal")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32) int32 {
			var active int32
			guarded("is_signal_active", func() {
				if host.IsSignalActive(readGuestString(mod, namePtr, nameLen)) {
					active = 1
				}
			})
			return active
		}).
		Export("is_signal_active")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context) { host.ClearAllSignals() }).
		Export("clear_all_signals")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, live int32) { host.SetDefaultSignalMode(live != 0) }).
		Export("set_default_signal_mode")

	// get_signal_history packs the returned []signal.Point as n
	// consecutive (time, value) float64 pairs, little-endian, into
	// freshly allocated guest memory and returns (ptr, point count) — the
	// guest decodes each pair with two read_double calls at stride 16.
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen uint32, n int32) (uint32, uint32) {
			var ptr, count uint32
			guarded("get_signal_history", func() {
				name := readGuestString(mod, namePtr, nameLen)
				points := host.GetSignalHistory(name, int(n))
				if len(points) == 0 {
					return
				}
				buf := make([]byte, len(points)*16)
				for i, p := range points {
					binary.LittleEndian.PutUint64(buf[i*16:], math.Float64bits(p.Time))
					binary.LittleEndian.PutUint64(buf[i*16+8:], math.Float64bits(p.Value))
				}
				p, written := allocInGuest(ctx, mod, buf)
				if written == 0 {
					return
				}
				ptr, count = p, uint32(len(points))
			})
			return ptr, count
		}).
		Export("get_signal_history")

	// --- packet callbacks ---

	// register_parser installs a guest-defined parser: the host wraps the
	// guest's predicate export in a func(buf []byte) bool that writes buf
	// into fresh guest memory (AllocAndWrite) and calls it through
	// CallPredicate with that (ptr, len).
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, namePtr, nameLen, fnPtr, fnLen uint32) {
			name := readGuestString(mod, namePtr, nameLen)
			fnName := readGuestString(mod, fnPtr, fnLen)
			host.RegisterParser(name, func(buf []byte) bool {
				bgCtx := context.Background()
				ptr, err := e.AllocAndWrite(bgCtx, buf)
				if err != nil {
					telemetrylog.ScriptErrorw("register_parser: guest alloc failed", "parser", name, "err", err)
					return false
				}
				defer e.Free(bgCtx, ptr, uint32(len(buf)))
				ok, err := e.CallPredicate(bgCtx, fnName, ptr, uint32(len(buf)))
				if err != nil {
					telemetrylog.ScriptErrorw("register_parser: guest call failed", "parser", name, "err", err)
					return false
				}
				return ok
			})
		}).
		Export("register_parser")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, kindPtr, kindLen uint32, t float64) {
			guarded("trigger_packet_callbacks", func() {
				host.TriggerPacketCallbacks(readGuestString(mod, kindPtr, kindLen), t)
			})
		}).
		Export("trigger_packet_callbacks")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, kindPtr, kindLen, namePtr, nameLen, fnPtr, fnLen uint32) int32 {
			kind := readGuestString(mod, kindPtr, kindLen)
			name := readGuestString(mod, namePtr, nameLen)
			fnName := readGuestString(mod, fnPtr, fnLen)
			host.OnPacket(kind, name, func(t float64) (float64, bool) {
				return e.CallValue(context.Background(), fnName, t)
			})
			return 1
		}).
		Export("on_packet")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, kindPtr, kindLen uint32) int32 {
			var has int32
			guarded("has_packet_callback", func() {
				if host.HasPacketCallback(readGuestString(mod, kindPtr, kindLen)) {
					has = 1
				}
			})
			return has
		}).
		Export("has_packet_callback")

	// --- UI read / write ---

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, titlePtr, titleLen uint32) int32 {
			var v int32
			guarded("get_toggle_state", func() {
				if host.GetToggleState(readGuestString(mod, titlePtr, titleLen)) {
					v = 1
				}
			})
			return v
		}).
		Export("get_toggle_state")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, titlePtr, titleLen uint32, value int32) {
			guarded("set_toggle_state", func() {
				host.SetToggleState(readGuestString(mod, titlePtr, titleLen), value != 0)
			})
		}).
		Export("set_toggle_state")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, titlePtr, titleLen uint32) (uint32, uint32) {
			var ptr, length uint32
			guarded("get_text_input", func() {
				title := readGuestString(mod, titlePtr, titleLen)
				ptr, length = allocInGuest(ctx, mod, []byte(host.GetTextInput(title)))
			})
			return ptr, length
		}).
		Export("get_text_input")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, titlePtr, titleLen, textPtr, textLen uint32) {
			guarded("set_text_input", func() {
				title := readGuestString(mod, titlePtr, titleLen)
				host.SetTextInput(title, readGuestString(mod, textPtr, textLen))
			})
		}).
		Export("set_text_input")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, titlePtr, titleLen, imgPtr, imgLen uint32) {
			guarded("set_image_buffer", func() {
				title := readGuestString(mod, titlePtr, titleLen)
				img, _ := mod.Memory().Read(imgPtr, imgLen)
				cp := make([]byte, len(img))
				copy(cp, img)
				host.SetImageBuffer(title, cp)
			})
		}).
		Export("set_image_buffer")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, titlePtr, titleLen uint32) int32 {
			var v int32
			guarded("get_button_clicked", func() {
				if host.GetButtonClicked(readGuestString(mod, titlePtr, titleLen)) {
					v = 1
				}
			})
			return v
		}).
		Export("get_button_clicked")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, fnPtr, fnLen uint32) {
			fnName := readGuestString(mod, fnPtr, fnLen)
			host.OnCleanup(func() {
				_ = e.CallVoid(context.Background(), fnName)
			})
		}).
		Export("on_cleanup")
}
