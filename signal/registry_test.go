package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalforge/engine/errors"
)

func TestGetOrCreateIDIdempotentAndInjective(t *testing.T) {
	r := NewRegistry(2000, Live)

	id1, err := r.GetOrCreateIDDefault("IMU.accelX")
	require.NoError(t, err)
	id1Again, err := r.GetOrCreateIDDefault("IMU.accelX")
	require.NoError(t, err)
	assert.Equal(t, id1, id1Again)

	id2, err := r.GetOrCreateIDDefault("IMU.accelY")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestAppendUnknownID(t *testing.T) {
	r := NewRegistry(10, Live)
	err := r.Append(999, 0, 0)
	assert.ErrorIs(t, err, errors.ErrUnknownID)
}

func TestLiveRingEviction(t *testing.T) {
	r := NewRegistry(2, Live)
	id, err := r.GetOrCreateID("s", Live)
	require.NoError(t, err)

	require.NoError(t, r.Append(id, 1, 10))
	require.NoError(t, r.Append(id, 2, 20))
	require.NoError(t, r.Append(id, 3, 30))

	pts := r.SnapshotWindow(id, 10)
	require.Len(t, pts, 2)
	assert.Equal(t, Point{2, 20}, pts[0])
	assert.Equal(t, Point{3, 30}, pts[1])
}

func TestClearAllResetsModeAndData(t *testing.T) {
	r := NewRegistry(5, Live)
	id, err := r.GetOrCreateID("s", Live)
	require.NoError(t, err)
	require.NoError(t, r.Append(id, 1, 1))

	r.ClearAll(Offline)

	pts := r.SnapshotWindow(id, 10)
	assert.Len(t, pts, 0)

	// A signal registered after ClearAll(Offline) via the default-mode
	// path picks up the new default and never evicts.
	id2, err := r.GetOrCreateIDDefault("new-after-clear")
	require.NoError(t, err)
	require.NoError(t, r.Append(id2, 1, 1))
	require.NoError(t, r.Append(id2, 2, 2))
	assert.Len(t, r.SnapshotWindow(id2, 10), 2)
}

func TestSnapshotTail(t *testing.T) {
	r := NewRegistry(5, Live)
	id, _ := r.GetOrCreateID("s", Live)
	_, ok := r.SnapshotTail(id)
	assert.False(t, ok)

	require.NoError(t, r.Append(id, 123.5, 9.81))
	pt, ok := r.SnapshotTail(id)
	require.True(t, ok)
	assert.Equal(t, Point{123.5, 9.81}, pt)
}

func TestIsActive(t *testing.T) {
	r := NewRegistry(5, Live)
	id, _ := r.GetOrCreateID("s", Live)
	assert.False(t, r.IsActive(id))
	r.MarkActive(id)
	assert.True(t, r.IsActive(id))
	r.UnmarkActive(id)
	assert.False(t, r.IsActive(id))
}
