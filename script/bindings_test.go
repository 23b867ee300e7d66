package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/engine/signal"
)

// buildParserGuestModule builds a guest whose start function calls
// env.register_parser("imu", "try_parse"), proving register_parser is
// reachable end to end through a real compiled WASM module — try_parse
// always claims the buffer, so dispatching it through the returned
// callback must report true.
func buildParserGuestModule() []byte {
	spec := wasmModuleSpec{
		types: [][2][]byte{
			{{valI32, valI32, valI32, valI32}, nil}, // register_parser
			{{valI32}, {valI32}},                    // alloc
			{{valI32, valI32}, {valI32}},             // try_parse
			{nil, nil},                               // start
		},
		imports: []wasmImport{
			{module: "env", name: "register_parser", typeIdx: 0},
		},
		funcs: []wasmFunc{
			{
				typeIdx:   1,
				extraI32s: 1,
				body: concatAll(
					globalGet(0), localSet(1),
					localGet(1), localGet(0), opI32Add, globalSet(0),
					localGet(1),
				),
				exportName: "alloc",
			},
			{
				typeIdx:    2,
				body:       i32Const(1),
				exportName: "try_parse",
			},
			{
				typeIdx: 3,
				body: concatAll(
					i32Const(0), i32Const(3), i32Const(3), i32Const(9),
					call(0),
				),
			},
		},
		globals:   []wasmGlobal{{init: 4096}},
		startFunc: 2,
		data:      []byte("imutry_parse"),
	}
	return spec.build()
}

func TestRegisterParserBindingReachesCompiledGuest(t *testing.T) {
	host := newTestHost()
	ctx := context.Background()

	e, err := New(ctx, buildParserGuestModule(), host)
	require.NoError(t, err)
	defer e.Close(ctx)

	call, ok := host.parsers["imu"]
	require.True(t, ok, "start() must have called register_parser")

	assert.True(t, call([]byte("whatever bytes the shared buffer holds")))
}

// buildHostCallsGuestModule exercises read_string, get_signal_history,
// get_text_input, and trigger_packet_callbacks from a single compiled
// guest, storing one piece of evidence per call into a global the test
// reads back through an exported getter.
func buildHostCallsGuestModule() []byte {
	spec := wasmModuleSpec{
		types: [][2][]byte{
			{{valI32}, {valI32}},                                   // 0: alloc
			{{valI32, valI32, valI32, valI32}, {valI32, valI32}},   // 1: read_string
			{{valI32, valI32, valI32}, {valI32, valI32}},           // 2: get_signal_history
			{{valI32, valI32}, {valI32, valI32}},                   // 3: get_text_input
			{{valI32, valI32, valF64}, nil},                        // 4: trigger_packet_callbacks
			{nil, nil},                                             // 5: start
			{nil, {valI32}},                                        // 6: getter
		},
		imports: []wasmImport{
			{module: "env", name: "read_string", typeIdx: 1},
			{module: "env", name: "get_signal_history", typeIdx: 2},
			{module: "env", name: "get_text_input", typeIdx: 3},
			{module: "env", name: "trigger_packet_callbacks", typeIdx: 4},
		},
		funcs: []wasmFunc{
			{
				typeIdx:   0,
				extraI32s: 1,
				body: concatAll(
					globalGet(0), localSet(1),
					localGet(1), localGet(0), opI32Add, globalSet(0),
					localGet(1),
				),
				exportName: "alloc",
			},
			{
				typeIdx: 5,
				body: concatAll(
					// read_string(ptr=0, length=11, offset=0, strLen=3)
					i32Const(0), i32Const(11), i32Const(0), i32Const(3), call(0),
					globalSet(1), opDrop,
					// get_signal_history(namePtr=0, nameLen=5, n=10)
					i32Const(0), i32Const(5), i32Const(10), call(1),
					globalSet(2), opDrop,
					// get_text_input(titlePtr=5, titleLen=3)
					i32Const(5), i32Const(3), call(2),
					globalSet(3), opDrop,
					// trigger_packet_callbacks(kindPtr=8, kindLen=3, t=5.0)
					i32Const(8), i32Const(3), f64Const(5.0), call(3),
					i32Const(42), globalSet(4),
				),
			},
			{typeIdx: 6, body: globalGet(1), exportName: "get_g0"},
			{typeIdx: 6, body: globalGet(2), exportName: "get_g1"},
			{typeIdx: 6, body: globalGet(3), exportName: "get_g2"},
			{typeIdx: 6, body: globalGet(4), exportName: "get_g3"},
		},
		globals:   []wasmGlobal{{init: 4096}, {}, {}, {}, {}},
		startFunc: 1,
		data:      []byte("speedboxpkt"),
	}
	return spec.build()
}

func TestHostBindingsReachCompiledGuest(t *testing.T) {
	host := newTestHost()
	host.signalHistory["speed"] = []signal.Point{{Time: 1, Value: 10}, {Time: 2, Value: 20}}
	host.textInputs["box"] = "hi"

	triggered := false
	host.packetCallbacks["pkt"] = []func(float64) (float64, bool){
		func(t float64) (float64, bool) {
			triggered = true
			return t, true
		},
	}

	ctx := context.Background()
	e, err := New(ctx, buildHostCallsGuestModule(), host)
	require.NoError(t, err)
	defer e.Close(ctx)

	g0, err := e.module.ExportedFunction("get_g0").Call(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, g0[0], "read_string should report strLen=3 bytes present")

	g1, err := e.module.ExportedFunction("get_g1").Call(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, g1[0], "get_signal_history should report 2 points")

	g2, err := e.module.ExportedFunction("get_g2").Call(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, g2[0], `get_text_input should report len("hi")=2`)

	g3, err := e.module.ExportedFunction("get_g3").Call(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, g3[0])
	assert.True(t, triggered, "trigger_packet_callbacks must have invoked the registered callback")
}
