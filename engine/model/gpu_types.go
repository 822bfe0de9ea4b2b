package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// Float offsets of the GPUSkinnedVertex fields, shared by the CPU skinning path, the skinning kernel
// parameters and the render pipeline vertex layouts.
const (
	SkinnedVertexStrideFloats = 12
	PositionOffsetFloats      = 0
	NormalOffsetFloats        = 3
	ToonOffsetFloats          = 6
	EdgeOffsetFloats          = 8

	SkinnedVertexStride = SkinnedVertexStrideFloats * 4
	StaticVertexStride  = 8
	SkinInputStride     = 48
)

// GPUSkinnedVertexSource is the WGSL vertex input struct matching GPUSkinnedVertex plus the static UV stream.
//
//go:embed assets/skinned_vertex.wgsl
var GPUSkinnedVertexSource string

// GPUSkinnedVertex is one element of the dynamic vertex stream produced by skinning.
// Size: 48 bytes.
type GPUSkinnedVertex struct {
	Position     [3]float32 // offset  0
	Normal       [3]float32 // offset 12
	Toon         [2]float32 // offset 24: toon lookup coordinate derived from the light direction
	EdgePosition [3]float32 // offset 32: position extruded along the normal for the outline pass
	_            float32    // offset 44
}

// Size returns the size of the GPUSkinnedVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinnedVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto writes the vertex into buf, which must hold at least SkinnedVertexStride bytes.
//
// Parameters:
//   - buf: destination buffer
func (g *GPUSkinnedVertex) MarshalInto(buf []byte) {
	putVec(buf[0:], g.Position[:])
	putVec(buf[12:], g.Normal[:])
	putVec(buf[24:], g.Toon[:])
	putVec(buf[32:], g.EdgePosition[:])
	binary.LittleEndian.PutUint32(buf[44:48], 0)
}

// Marshal serializes the GPUSkinnedVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *GPUSkinnedVertex) Marshal() []byte {
	buf := make([]byte, SkinnedVertexStride)
	g.MarshalInto(buf)
	return buf
}

// UnmarshalSkinnedVertex reads one vertex from buf.
//
// Parameters:
//   - buf: at least SkinnedVertexStride bytes
//
// Returns:
//   - GPUSkinnedVertex: the decoded vertex
func UnmarshalSkinnedVertex(buf []byte) GPUSkinnedVertex {
	var v GPUSkinnedVertex
	getVec(buf[0:], v.Position[:])
	getVec(buf[12:], v.Normal[:])
	getVec(buf[24:], v.Toon[:])
	getVec(buf[32:], v.EdgePosition[:])
	return v
}

// GPUSkinInputSource is the WGSL definition of the SkinInput struct read by the skinning kernel.
//
//go:embed assets/skin_input.wgsl
var GPUSkinInputSource string

// GPUSkinInput is the bind-pose record the skinning kernel reads per vertex.
// Size: 48 bytes.
type GPUSkinInput struct {
	Position  [3]float32 // offset  0
	EdgeScale float32    // offset 12
	Normal    [3]float32 // offset 16
	Weight    float32    // offset 28
	Bones     [4]uint32  // offset 32: bone 0, bone 1, unused, unused
}

// Size returns the size of the GPUSkinInput struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinInput) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto writes the record into buf, which must hold at least SkinInputStride bytes.
//
// Parameters:
//   - buf: destination buffer
func (g *GPUSkinInput) MarshalInto(buf []byte) {
	putVec(buf[0:], g.Position[:])
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.EdgeScale))
	putVec(buf[16:], g.Normal[:])
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Weight))
	for i, b := range g.Bones {
		binary.LittleEndian.PutUint32(buf[32+i*4:36+i*4], b)
	}
}

// UnmarshalSkinInput reads one record from buf.
//
// Parameters:
//   - buf: at least SkinInputStride bytes
//
// Returns:
//   - GPUSkinInput: the decoded record
func UnmarshalSkinInput(buf []byte) GPUSkinInput {
	var in GPUSkinInput
	getVec(buf[0:], in.Position[:])
	in.EdgeScale = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))
	getVec(buf[16:], in.Normal[:])
	in.Weight = math.Float32frombits(binary.LittleEndian.Uint32(buf[28:32]))
	for i := range in.Bones {
		in.Bones[i] = binary.LittleEndian.Uint32(buf[32+i*4 : 36+i*4])
	}
	return in
}

// SkinInput returns the bind-pose record of vertex i. Rigid models (zero bones) bind every vertex
// fully to bone 0, which the skinning paths treat as identity.
//
// Parameters:
//   - i: the vertex index
//   - boneCount: the model bone count
//
// Returns:
//   - GPUSkinInput: the record
func (g *Geometry) SkinInput(i, boneCount int) GPUSkinInput {
	in := GPUSkinInput{
		Position:  g.Positions[i],
		Normal:    g.Normals[i],
		EdgeScale: g.EdgeScale(i),
		Weight:    1,
	}
	if boneCount > 0 {
		in.Weight = g.Weights[i]
		in.Bones[0] = uint32(g.BoneIndices[i][0])
		in.Bones[1] = uint32(g.BoneIndices[i][1])
	}
	return in
}

// SkinInputStream serializes the bind-pose records of every vertex.
//
// Parameters:
//   - boneCount: the model bone count
//
// Returns:
//   - []byte: VertexCount * SkinInputStride bytes
func (g *Geometry) SkinInputStream(boneCount int) []byte {
	buf := make([]byte, g.VertexCount()*SkinInputStride)
	for i := 0; i < g.VertexCount(); i++ {
		in := g.SkinInput(i, boneCount)
		in.MarshalInto(buf[i*SkinInputStride:])
	}
	return buf
}

// BindPoseStream serializes the unskinned dynamic vertex stream used as the initial frame.
//
// Returns:
//   - []byte: VertexCount * SkinnedVertexStride bytes
func (g *Geometry) BindPoseStream() []byte {
	buf := make([]byte, g.VertexCount()*SkinnedVertexStride)
	for i := 0; i < g.VertexCount(); i++ {
		v := GPUSkinnedVertex{
			Position:     g.Positions[i],
			Normal:       g.Normals[i],
			Toon:         [2]float32{0, 0.5},
			EdgePosition: g.Positions[i],
		}
		v.MarshalInto(buf[i*SkinnedVertexStride:])
	}
	return buf
}

// StaticStream serializes the UV stream, which never changes after upload.
//
// Returns:
//   - []byte: VertexCount * StaticVertexStride bytes
func (g *Geometry) StaticStream() []byte {
	buf := make([]byte, g.VertexCount()*StaticVertexStride)
	for i := 0; i < g.VertexCount(); i++ {
		uv := g.TexCoord(i)
		putVec(buf[i*StaticVertexStride:], uv[:])
	}
	return buf
}

// IndexStream serializes an index list as little-endian uint32.
//
// Parameters:
//   - indices: the index list
//
// Returns:
//   - []byte: 4 bytes per index
func IndexStream(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

func putVec(buf []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(f))
	}
}

func getVec(buf []byte, v []float32) {
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
}
