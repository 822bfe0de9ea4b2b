package light

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(m *common.Mat4, p [3]float32) [3]float32 {
	v := common.TransformVec4(m, [4]float32{p[0], p[1], p[2], 1})
	return [3]float32{v[0] / v[3], v[1] / v[3], v[2] / v[3]}
}

func onPlane(rng *rand.Rand, plane [4]float32) [3]float32 {
	n := [3]float32{plane[0], plane[1], plane[2]}
	p := [3]float32{rng.Float32()*10 - 5, rng.Float32()*10 - 5, rng.Float32()*10 - 5}
	// move p along n until a*x+b*y+c*z+d = 0
	t := (common.Dot3(n, p) + plane[3]) / common.Dot3(n, n)
	return [3]float32{p[0] - t*n[0], p[1] - t*n[1], p[2] - t*n[2]}
}

func TestShadowMatrixKeepsPlanePoints(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	planes := [][4]float32{GroundPlane, {0, 1, 0, -0.5}, {0.3, 0.9, 0.1, 2}}
	for _, plane := range planes {
		for i := 0; i < 100; i++ {
			dir := common.Normalize3([3]float32{rng.Float32() - 0.5, -1 - rng.Float32(), rng.Float32() - 0.5})
			m := ShadowMatrix(plane, dir)
			p := onPlane(rng, plane)
			got := project(&m, p)
			for k := range p {
				assert.InDelta(t, p[k], got[k], 1e-3, "plane %v light %v point %v", plane, dir, p)
			}
		}
	}
}

func TestShadowMatrixFlattensOntoPlane(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	plane := [4]float32{0, 1, 0, 0}
	dir := common.Normalize3([3]float32{-0.5, -1, -0.5})
	m := ShadowMatrix(plane, dir)
	for i := 0; i < 100; i++ {
		p := [3]float32{rng.Float32()*4 - 2, rng.Float32() * 4, rng.Float32()*4 - 2}
		got := project(&m, p)
		assert.InDelta(t, 0, got[1], 1e-4)

		// the shadow lies on the line through p along the light direction
		s := p[1] / -dir[1]
		assert.InDelta(t, p[0]+s*dir[0], got[0], 1e-4)
		assert.InDelta(t, p[2]+s*dir[2], got[2], 1e-4)
	}
}

func TestShadowMatrixLayout(t *testing.T) {
	plane := [4]float32{1, 2, 3, 4}
	dir := [3]float32{5, 6, 7}
	m := ShadowMatrix(plane, dir)
	d := -(plane[0]*dir[0] + plane[1]*dir[1] + plane[2]*dir[2])
	l := [4]float32{dir[0], dir[1], dir[2], 0}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := plane[i] * l[j]
			if i == j {
				want += d
			}
			assert.Equal(t, want, m[i*4+j], "M[%d][%d]", i, j)
		}
	}
}

func TestLightDefaultsAndSetters(t *testing.T) {
	l := NewLight(WithColor(1, 0.5, 0.25), WithShadowColor([4]float32{0.1, 0.1, 0.1, 0.3}))
	assert.Equal(t, [3]float32{1, 0.5, 0.25}, l.Color())
	assert.Equal(t, GroundPlane, l.ShadowPlane())
	assert.True(t, l.CastsShadows())
	assert.InDelta(t, 1, common.Dot3(l.Direction(), l.Direction()), 1e-6)

	l.SetDirection(0, 0, 0)
	require.NotEqual(t, [3]float32{}, l.Direction())
	l.SetDirection(0, -2, 0)
	assert.Equal(t, [3]float32{0, -1, 0}, l.Direction())

	m := l.ShadowMatrix()
	assert.Equal(t, ShadowMatrix(GroundPlane, [3]float32{0, -1, 0}), m)

	l.SetCastsShadows(false)
	assert.False(t, l.CastsShadows())
}
