package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/engine/signal"
	"github.com/signalforge/engine/snapshot"
)

func testConfig() Config {
	return Config{
		SchedulerIdleSleep: time.Millisecond,
		SharedBufferBytes:  1024,
		SignalQueueCap:     16,
		EventQueueCap:      16,
		PushRetryBudget:    2,
	}
}

func TestRuntimeUpdateSignalRoundTrip(t *testing.T) {
	registry := signal.NewRegistry(64, signal.Live)
	rt := NewRuntime(1, "w1", testConfig(), registry, snapshot.NewBuffer(), nil)

	require.NoError(t, rt.UpdateSignal("accel.x", 1.0, 9.8))

	n := rt.SignalQueue().Drain(0, func(u signal.Update) {
		require.NoError(t, registry.Append(u.SignalID, u.Time, u.Value))
	})
	assert.Equal(t, 1, n)

	v, ok := rt.GetSignal("accel.x")
	assert.True(t, ok)
	assert.Equal(t, 9.8, v)
}

func TestRuntimeUnknownSignalReadIsAbsent(t *testing.T) {
	registry := signal.NewRegistry(64, signal.Live)
	rt := NewRuntime(1, "w1", testConfig(), registry, snapshot.NewBuffer(), nil)

	_, ok := rt.GetSignal("never-created")
	assert.False(t, ok)
}

func TestRuntimePacketCallbackUpdatesDerivedSignal(t *testing.T) {
	registry := signal.NewRegistry(64, signal.Live)
	rt := NewRuntime(1, "w1", testConfig(), registry, snapshot.NewBuffer(), nil)

	rt.OnPacket("imu", "derived.magnitude", func(t float64) (float64, bool) {
		return t * 2, true
	})
	assert.True(t, rt.HasPacketCallback("imu"))

	rt.TriggerPacketCallbacks("imu", 3.0)
	n := rt.SignalQueue().Drain(0, func(u signal.Update) {
		require.NoError(t, registry.Append(u.SignalID, u.Time, u.Value))
	})
	assert.Equal(t, 1, n)

	v, ok := rt.GetSignal("derived.magnitude")
	assert.True(t, ok)
	assert.Equal(t, 6.0, v)
}

func TestRuntimeSpawnWorkerWithoutCallbackFails(t *testing.T) {
	registry := signal.NewRegistry(64, signal.Live)
	rt := NewRuntime(1, "w1", testConfig(), registry, snapshot.NewBuffer(), nil)

	_, err := rt.SpawnWorker("child.wasm")
	assert.Error(t, err)
}

func TestRuntimeUIReadReflectsSnapshot(t *testing.T) {
	registry := signal.NewRegistry(64, signal.Live)
	buf := snapshot.NewBuffer()
	rt := NewRuntime(1, "w1", testConfig(), registry, buf, nil)

	st := &snapshot.State{
		Toggles:           map[string]bool{"recording": true},
		TextInputs:        map[string]string{"label": "hello"},
		ButtonClicked:     map[string]bool{},
		FileDialogResults: map[string]string{},
	}
	buf.Publish(st)

	assert.True(t, rt.GetToggleState("recording"))
	assert.Equal(t, "hello", rt.GetTextInput("label"))
}
