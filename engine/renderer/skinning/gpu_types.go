package skinning

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-skin/engine/model"
)

// GPUSkinParamsSource is the canonical WGSL definition of the SkinParams struct.
// Matches GPUSkinParams layout exactly (48 bytes, uniform aligned).
//
//go:embed assets/skin_params.wgsl
var GPUSkinParamsSource string

// GPUSkinParams is the uniform block of the skinning kernel.
// Size: 48 bytes.
type GPUSkinParams struct {
	VertexCount    uint32     // offset  0
	BoneCount      uint32     // offset  4
	Stride         uint32     // offset  8: output stride in floats
	PositionOffset uint32     // offset 12
	NormalOffset   uint32     // offset 16
	ToonOffset     uint32     // offset 20
	EdgeOffset     uint32     // offset 24
	EdgeSize       float32    // offset 28
	LightDirection [3]float32 // offset 32: direction the light travels
	_pad           float32    // offset 44
}

// Size returns the size of the GPUSkinParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSkinParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *GPUSkinParams) Marshal() []byte {
	buf := make([]byte, 48)
	for i, v := range []uint32{g.VertexCount, g.BoneCount, g.Stride, g.PositionOffset, g.NormalOffset, g.ToonOffset, g.EdgeOffset} {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.EdgeSize))
	for i, f := range g.LightDirection {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[44:48], 0) // _pad
	return buf
}

// unmarshalSkinParams reads the uniform block written by Marshal.
func unmarshalSkinParams(buf []byte) GPUSkinParams {
	var p GPUSkinParams
	for i, v := range []*uint32{&p.VertexCount, &p.BoneCount, &p.Stride, &p.PositionOffset, &p.NormalOffset, &p.ToonOffset, &p.EdgeOffset} {
		*v = binary.LittleEndian.Uint32(buf[i*4:])
	}
	p.EdgeSize = math.Float32frombits(binary.LittleEndian.Uint32(buf[28:32]))
	for i := range p.LightDirection {
		p.LightDirection[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[32+i*4:]))
	}
	return p
}

// newSkinParams fills the layout constants of the dynamic vertex stream.
func newSkinParams(vertexCount, boneCount int, edgeSize float32, lightDirection [3]float32) GPUSkinParams {
	return GPUSkinParams{
		VertexCount:    uint32(vertexCount),
		BoneCount:      uint32(boneCount),
		Stride:         model.SkinnedVertexStrideFloats,
		PositionOffset: model.PositionOffsetFloats,
		NormalOffset:   model.NormalOffsetFloats,
		ToonOffset:     model.ToonOffsetFloats,
		EdgeOffset:     model.EdgeOffsetFloats,
		EdgeSize:       edgeSize,
		LightDirection: lightDirection,
	}
}
