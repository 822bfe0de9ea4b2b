package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadless(t *testing.T) (Engine, device.Recorder) {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeRecording)
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	r, err := renderer.NewRenderer(dev)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return NewEngine(WithRenderer(r)), dev.(device.Recorder)
}

func addColumn(t *testing.T, e Engine, name string, pose PoseFunc) {
	t.Helper()
	mr := e.Renderer().NewModelRenderer(model.NewBendingColumn(name, 6, 4, 2, 2, 0.3))
	require.NoError(t, mr.Upload(nil))
	e.AddActor(Actor{Model: mr, Pose: pose})
}

func TestFrameDrawsEveryActor(t *testing.T) {
	e, rec := newHeadless(t)
	var seen []float32
	addColumn(t, e, "a", StaticPose(model.IdentityBones(2)))
	addColumn(t, e, "b", func(elapsed float32) model.BoneTable {
		seen = append(seen, elapsed)
		return model.SwayPose(2, 2, elapsed)
	})

	e.Advance(0.5)
	require.NoError(t, e.Frame())
	e.SetPaused(true)
	e.Advance(0.5)
	require.NoError(t, e.Frame())

	assert.Equal(t, []float32{0.5, 0.5}, seen)
	assert.Len(t, rec.Draws(), 2*2*7)
}

func TestFrameContinuesPastFailingActor(t *testing.T) {
	e, rec := newHeadless(t)
	addColumn(t, e, "wrong", StaticPose(model.IdentityBones(5)))
	addColumn(t, e, "right", StaticPose(model.IdentityBones(2)))

	require.NoError(t, e.Frame())
	assert.Len(t, rec.Draws(), 2*7)
}

func TestRemoveActor(t *testing.T) {
	e, _ := newHeadless(t)
	addColumn(t, e, "a", StaticPose(model.IdentityBones(2)))
	addColumn(t, e, "b", StaticPose(model.IdentityBones(2)))
	e.RemoveActor("a")
	require.Len(t, e.Actors(), 1)
	assert.Equal(t, "b", e.Actors()[0].Model.Name())
}

func TestHeadlessEngineWithoutRenderer(t *testing.T) {
	e := NewEngine()
	assert.ErrorIs(t, e.Frame(), ErrNoRenderer)
	assert.Error(t, e.Run())
}

func TestLoopFlagsAcrossGoroutines(t *testing.T) {
	eng, _ := newHeadless(t)
	addColumn(t, eng, "a", StaticPose(model.IdentityBones(2)))
	e := eng.(*engine)

	e.running.Store(true)
	e.handle()
	for i := range 50 {
		if i%2 == 0 {
			e.EnableProfiler()
		} else {
			e.DisableProfiler()
		}
		e.SetTickRate(float64(30 + i))
		time.Sleep(time.Millisecond)
	}
	e.Quit()
	e.wg.Wait()

	assert.False(t, e.running.Load())
	assert.False(t, e.profilingEnabled.Load())
	e.Quit()
}
