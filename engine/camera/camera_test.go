package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestTargetProjectsToScreenCenter(t *testing.T) {
	cc := NewCameraController(WithTarget([3]float32{0, 1, 0}), WithRadius(4), WithAzimuth(0.7))
	c := NewCamera(WithController(cc), WithAspect(16.0/9))

	vp := c.ViewProjectionMatrix()
	clip := common.TransformVec4(&vp, [4]float32{0, 1, 0, 1})
	assert.InDelta(t, 0, clip[0]/clip[3], 1e-5)
	assert.InDelta(t, 0, clip[1]/clip[3], 1e-5)
	assert.Positive(t, clip[3])
}

func TestOrbitKeepsRadius(t *testing.T) {
	cc := NewCameraController(WithRadius(3))
	cc.Orbit(120, -40)
	cc.Step(5, 2)

	p, tgt := cc.Position(), cc.Target()
	d := [3]float32{p[0] - tgt[0], p[1] - tgt[1], p[2] - tgt[2]}
	assert.InDelta(t, 3, math32.Sqrt(common.Dot3(d, d)), 1e-5)
}

func TestClamping(t *testing.T) {
	cc := NewCameraController(WithRadiusBounds(1, 10), WithElevationBounds(-1, 1))
	cc.Zoom(1000)
	assert.Equal(t, float32(1), cc.Radius())
	cc.Zoom(-1000)
	assert.Equal(t, float32(10), cc.Radius())
	cc.Step(0, 1000)
	assert.Equal(t, float32(1), cc.Elevation())
}

func TestFrameFitsSphere(t *testing.T) {
	cc := NewCameraController()
	cc.Frame([3]float32{0, 1, 0}, 1, math32.Pi/2)
	assert.Equal(t, [3]float32{0, 1, 0}, cc.Target())
	assert.InDelta(t, math32.Sqrt2, cc.Radius(), 1e-5)
}

func TestPanMovesTargetAndPosition(t *testing.T) {
	cc := NewCameraController(WithRadius(2), WithElevation(0), WithPanSpeed(1))
	before := cc.Position()
	cc.Pan(0.5, 0)

	after := cc.Position()
	assert.InDelta(t, 1, after[0]-before[0], 1e-5)
	assert.InDelta(t, 1, cc.Target()[0], 1e-5)
	assert.InDelta(t, 2, cc.Radius(), 1e-6)
}
