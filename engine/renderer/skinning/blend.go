package skinning

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
)

// blend mixes two bone results with weight w for a and 1-w for b. Every product is rounded to
// float32 before the sum so the compiler cannot fuse it, and adding zero folds -0 into +0 so the
// single-bone paths below produce the same bits.
func blend(a, b [3]float32, w float32) [3]float32 {
	iw := 1 - w
	return [3]float32{
		float32(float32(a[0]*w)+float32(b[0]*iw)) + 0,
		float32(float32(a[1]*w)+float32(b[1]*iw)) + 0,
		float32(float32(a[2]*w)+float32(b[2]*iw)) + 0,
	}
}

func single(a [3]float32) [3]float32 {
	return [3]float32{a[0] + 0, a[1] + 0, a[2] + 0}
}

// toward returns the unit vector pointing at a light that travels along dir.
func toward(dir [3]float32) [3]float32 {
	return common.Normalize3([3]float32{-dir[0], -dir[1], -dir[2]})
}

// skinVertex evaluates one vertex. bone returns the transform of a bone index; it is never called
// when boneCount is zero.
func skinVertex(in *model.GPUSkinInput, boneCount uint32, bone func(uint32) *common.Mat4, edgeSize float32, toLight [3]float32) model.GPUSkinnedVertex {
	var p, n [3]float32
	switch {
	case boneCount == 0:
		p, n = in.Position, in.Normal
	case in.Weight == 1:
		m := bone(in.Bones[0])
		p = single(common.TransformPoint(m, in.Position))
		n = single(common.TransformDirection(m, in.Normal))
	case in.Weight == 0:
		m := bone(in.Bones[1])
		p = single(common.TransformPoint(m, in.Position))
		n = single(common.TransformDirection(m, in.Normal))
	default:
		m0, m1 := bone(in.Bones[0]), bone(in.Bones[1])
		p = blend(common.TransformPoint(m0, in.Position), common.TransformPoint(m1, in.Position), in.Weight)
		n = blend(common.TransformDirection(m0, in.Normal), common.TransformDirection(m1, in.Normal), in.Weight)
	}

	scale := float32(in.EdgeScale * edgeSize)
	return model.GPUSkinnedVertex{
		Position: p,
		Normal:   n,
		Toon:     [2]float32{0, float32(0.5 * float32(1-common.Dot3(n, toLight)))},
		EdgePosition: [3]float32{
			p[0] + float32(n[0]*scale),
			p[1] + float32(n[1]*scale),
			p[2] + float32(n[2]*scale),
		},
	}
}

// putVertex writes v into a float stream at the field offsets of params.
func putVertex(dst []byte, base uint32, params *GPUSkinParams, v *model.GPUSkinnedVertex) {
	put := func(off uint32, fs ...float32) {
		for i, f := range fs {
			at := (base + off + uint32(i)) * 4
			binary.LittleEndian.PutUint32(dst[at:at+4], math.Float32bits(f))
		}
	}
	put(params.PositionOffset, v.Position[:]...)
	put(params.NormalOffset, v.Normal[:]...)
	put(params.ToonOffset, v.Toon[:]...)
	put(params.EdgeOffset, v.EdgePosition[:]...)
}
