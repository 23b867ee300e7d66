package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAlertGuestModule builds a guest whose start function registers an
// on_alert with a zero-arg condition export — the exact shape that used
// to make CallPredicate's hardcoded (ptr,len) arity fail on every call.
// cond_fn always returns true; action_fn increments a counter the test
// reads back through action_count.
func buildAlertGuestModule() []byte {
	spec := wasmModuleSpec{
		types: [][2][]byte{
			{{valI32, valI32, valF64, valI32, valI32, valI32, valI32}, nil}, // on_alert
			{nil, {valI32}},                                                // cond_fn / action_count
			{nil, nil},                                                     // action_fn / start
		},
		imports: []wasmImport{
			{module: "env", name: "on_alert", typeIdx: 0},
		},
		funcs: []wasmFunc{
			{typeIdx: 1, body: i32Const(1), exportName: "cond_fn"},
			{
				typeIdx:    2,
				body:       concatAll(globalGet(0), i32Const(1), opI32Add, globalSet(0)),
				exportName: "action_fn",
			},
			{typeIdx: 1, body: globalGet(0), exportName: "action_count"},
			{
				typeIdx: 2,
				body: concatAll(
					i32Const(0), i32Const(5), f64Const(5.0),
					i32Const(5), i32Const(7),
					i32Const(12), i32Const(9),
					call(0),
				),
			},
		},
		globals:   []wasmGlobal{{}},
		startFunc: 3,
		data:      []byte("alertcond_fnaction_fn"),
	}
	return spec.build()
}

func TestOnAlertConditionUsesZeroArgCall(t *testing.T) {
	host := newTestHost()
	ctx := context.Background()

	e, err := New(ctx, buildAlertGuestModule(), host)
	require.NoError(t, err)
	defer e.Close(ctx)

	require.Len(t, host.alerts, 1)
	reg := host.alerts[0]
	assert.Equal(t, "alert", reg.name)
	assert.Equal(t, 5.0, reg.cooldown)

	// Before the CallBoolPredicate fix, cond() always failed wazero's
	// arity check and silently reported false.
	for i := 0; i < 3; i++ {
		require.True(t, reg.cond(), "cond() must reach the guest's zero-arg export")
		reg.action()
	}

	result, err := e.module.ExportedFunction("action_count").Call(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, result[0])
}
