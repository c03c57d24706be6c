package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-technocrane/pkg/kinematics"
)

func openTest(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func testFrame(tick uint64) Frame {
	target := kinematics.TargetFrame{
		Position:      r3.Vector{X: 0, Y: 500, Z: 100},
		TrackPosition: 20,
		RawRotation:   r3.Vector{X: 15, Y: -3, Z: 0},
	}
	res := kinematics.SimulationResult{
		GroundHeight:    100,
		TiltAngle:       -12.5,
		ExtensionLength: 480,
		ColumnYaw:       0,
		Reextended:      true,
	}
	return NewFrame(tick, time.Unix(1700000000, 0).UTC(), target, res)
}

func TestRecord_WithoutTake(t *testing.T) {
	r := openTest(t)

	assert.ErrorIs(t, r.Record(testFrame(1)), ErrNoActiveTake)
	_, err := r.StopTake()
	assert.ErrorIs(t, err, ErrNoActiveTake)
	_, ok := r.Active()
	assert.False(t, ok)
}

func TestTake_Lifecycle(t *testing.T) {
	r := openTest(t)

	take, err := r.StartTake("scene 4", "TechnoDolly")
	require.NoError(t, err)
	assert.Len(t, take.ID, 36)

	for tick := uint64(3); tick > 0; tick-- {
		require.NoError(t, r.Record(testFrame(tick)))
	}

	stopped, err := r.StopTake()
	require.NoError(t, err)
	assert.Equal(t, 3, stopped.FrameCount)
	require.NotNil(t, stopped.StoppedAt)

	got, err := r.Take(take.ID)
	require.NoError(t, err)
	assert.Equal(t, "scene 4", got.Name)
	assert.Equal(t, 3, got.FrameCount)
	assert.NotNil(t, got.StoppedAt)

	frames, err := r.Frames(take.ID)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Tick)
		assert.Equal(t, take.ID, f.TakeID)
	}
	assert.InDelta(t, 500.0, frames[0].TargetY, 1e-9)
	assert.InDelta(t, 15.0, frames[0].Pan, 1e-9)
	assert.InDelta(t, 480.0, frames[0].ExtensionLength, 1e-9)
	assert.True(t, frames[0].Reextended)
}

func TestStartTake_StopsActive(t *testing.T) {
	r := openTest(t)

	first, err := r.StartTake("a", "TechnoDolly")
	require.NoError(t, err)
	require.NoError(t, r.Record(testFrame(1)))

	second, err := r.StartTake("b", "TechnoDolly")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	active, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	got, err := r.Take(first.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.StoppedAt)
	assert.Equal(t, 1, got.FrameCount)

	takes, err := r.Takes()
	require.NoError(t, err)
	assert.Len(t, takes, 2)
}

func TestFrames_UnknownTake(t *testing.T) {
	r := openTest(t)

	_, err := r.Frames("missing")
	assert.ErrorIs(t, err, ErrTakeNotFound)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takes.db")

	r, err := Open(path)
	require.NoError(t, err)
	take, err := r.StartTake("persisted", "SuperTechno 50 Plus")
	require.NoError(t, err)
	require.NoError(t, r.Record(testFrame(1)))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()

	frames, err := r.Frames(take.ID)
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}
