package device

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-skin/common"
)

// GPUDrawUniformsSource is the WGSL definition of the DrawUniforms struct.
//
//go:embed assets/draw_uniforms.wgsl
var GPUDrawUniformsSource string

// DrawUniformsSize is the size of one uniform slot. Also a valid dynamic offset alignment.
const DrawUniformsSize = 256

// DrawUniforms is the per-draw uniform block shared by every technique.
// Size: 256 bytes.
type DrawUniforms struct {
	ViewProjection common.Mat4 // offset   0
	Shadow         common.Mat4 // offset  64: projective shadow matrix, identity outside the shadow pass
	LightDirection [3]float32  // offset 128: direction the light travels
	EdgeSize       float32     // offset 140
	LightColor     [4]float32  // offset 144
	Ambient        [4]float32  // offset 160
	Diffuse        [4]float32  // offset 176: rgb + opacity
	Specular       [4]float32  // offset 192: rgb + shininess
	EdgeColor      [4]float32  // offset 208
	HasDiffuse     uint32      // offset 224
	SphereMode     SphereMode  // offset 228
	HasToon        uint32      // offset 232
	_              uint32      // offset 236
	_              [4]float32  // offset 240
}

// Size returns the size of the DrawUniforms struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (u *DrawUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// MarshalInto writes the uniforms into buf, which must hold DrawUniformsSize bytes.
//
// Parameters:
//   - buf: destination buffer
func (u *DrawUniforms) MarshalInto(buf []byte) {
	off := 0
	put := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	for _, f := range u.ViewProjection {
		put(f)
	}
	for _, f := range u.Shadow {
		put(f)
	}
	for _, f := range u.LightDirection {
		put(f)
	}
	put(u.EdgeSize)
	for _, v := range [][4]float32{u.LightColor, u.Ambient, u.Diffuse, u.Specular, u.EdgeColor} {
		for _, f := range v {
			put(f)
		}
	}
	for _, v := range []uint32{u.HasDiffuse, uint32(u.SphereMode), u.HasToon, 0} {
		binary.LittleEndian.PutUint32(buf[off:], v)
		off += 4
	}
	clear(buf[off:DrawUniformsSize])
}

// Marshal serializes the DrawUniforms struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 256-byte buffer ready for GPU upload.
func (u *DrawUniforms) Marshal() []byte {
	buf := make([]byte, DrawUniformsSize)
	u.MarshalInto(buf)
	return buf
}
