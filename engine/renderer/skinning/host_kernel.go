package skinning

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
)

// KernelEntryPoint is the compute entry point of the skinning kernel.
const KernelEntryPoint = "skin_vertices"

// Kernel binding order, matching @group(0) of the skinning kernel.
const (
	bindingInput = iota
	bindingOutput
	bindingBones
	bindingParams
)

// HostKernel is the Go rendition of the skin_vertices kernel, registered with the software
// accelerator backend. It shares the vertex math of the CPU state, so both paths agree bit for bit.
//
// Parameters:
//   - id: the vertex index
//   - b: the kernel buffers in binding order (skin input, output stream, bones, params)
func HostKernel(id uint32, b [][]byte) {
	params := unmarshalSkinParams(b[bindingParams])
	if id >= params.VertexCount {
		return
	}
	in := model.UnmarshalSkinInput(b[bindingInput][id*model.SkinInputStride:])

	bones := b[bindingBones]
	var mats [2]common.Mat4
	used := 0
	bone := func(i uint32) *common.Mat4 {
		m := &mats[used]
		used++
		for k := range m {
			at := i*64 + uint32(k)*4
			m[k] = math.Float32frombits(binary.LittleEndian.Uint32(bones[at : at+4]))
		}
		return m
	}

	v := skinVertex(&in, params.BoneCount, bone, params.EdgeSize, toward(params.LightDirection))
	putVertex(b[bindingOutput], id*params.Stride, &params, &v)
}
