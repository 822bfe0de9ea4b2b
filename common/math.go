package common

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// Mat4 is a 4x4 float32 matrix stored in column-major order (element (row r, column c) at index c*4+r).
type Mat4 = [16]float32

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	clear(m[:16])
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// IdentityMat4 returns a fresh identity matrix.
func IdentityMat4() Mat4 {
	var m Mat4
	Identity(m[:])
	return m
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// The returned slice shares memory with the input and must not be modified.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}

// Mul4 multiplies two column-major 4x4 matrices: out = a * b.
// out may alias a or b.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			buf[col*4+row] = sum
		}
	}
	copy(out, buf[:])
}

// TransformVec4 multiplies a column-major matrix with a homogeneous vector.
//
// Parameters:
//   - m: column-major matrix
//   - v: homogeneous vector
//
// Returns:
//   - [4]float32: m * v
func TransformVec4(m *Mat4, v [4]float32) [4]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		out[row] = m[row]*v[0] + m[4+row]*v[1] + m[8+row]*v[2] + m[12+row]*v[3]
	}
	return out
}

// TransformPoint applies the full affine transform of m to point p (w = 1).
func TransformPoint(m *Mat4, p [3]float32) [3]float32 {
	return [3]float32{
		float32(m[0]*p[0]) + float32(m[4]*p[1]) + float32(m[8]*p[2]) + m[12],
		float32(m[1]*p[0]) + float32(m[5]*p[1]) + float32(m[9]*p[2]) + m[13],
		float32(m[2]*p[0]) + float32(m[6]*p[1]) + float32(m[10]*p[2]) + m[14],
	}
}

// TransformDirection applies only the upper-left 3x3 (rotation part) of m to direction d.
func TransformDirection(m *Mat4, d [3]float32) [3]float32 {
	return [3]float32{
		float32(m[0]*d[0]) + float32(m[4]*d[1]) + float32(m[8]*d[2]),
		float32(m[1]*d[0]) + float32(m[5]*d[1]) + float32(m[9]*d[2]),
		float32(m[2]*d[0]) + float32(m[6]*d[1]) + float32(m[10]*d[2]),
	}
}

// Dot3 returns the dot product of two 3-vectors.
func Dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Normalize3 returns v scaled to unit length. A zero vector is returned unchanged.
func Normalize3(v [3]float32) [3]float32 {
	l := math32.Sqrt(Dot3(v, v))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

// Perspective creates a perspective projection matrix for the WebGPU clip space depth range [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1 / math32.Tan(fovY/2)
	clear(out[:16])
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1
	out[14] = (near * far) / (near - far)
}

// TRS builds a column-major transform from a translation and Euler rotation (Y * X * Z order).
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - t: translation
//   - r: rotation angles in radians around X, Y and Z
func TRS(out []float32, t, r [3]float32) {
	sx, cx := math32.Sincos(r[0])
	sy, cy := math32.Sincos(r[1])
	sz, cz := math32.Sincos(r[2])

	out[0] = cy*cz + sy*sx*sz
	out[1] = cx * sz
	out[2] = -sy*cz + cy*sx*sz
	out[3] = 0

	out[4] = -cy*sz + sy*sx*cz
	out[5] = cx * cz
	out[6] = sy*sz + cy*sx*cz
	out[7] = 0

	out[8] = sy * cx
	out[9] = -sx
	out[10] = cy * cx
	out[11] = 0

	out[12], out[13], out[14], out[15] = t[0], t[1], t[2], 1
}

// Invert4 inverts a column-major 4x4 matrix by cofactor expansion.
// A singular matrix leaves out untouched and returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was inverted
func Invert4(out, m []float32) bool {
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return false
	}
	inv := 1 / det

	var r Mat4
	r[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * inv
	r[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * inv
	r[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * inv
	r[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * inv
	r[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * inv
	r[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * inv
	r[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * inv
	r[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * inv
	r[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * inv
	r[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * inv
	r[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * inv
	r[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * inv
	r[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * inv
	r[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * inv
	r[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * inv
	r[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * inv
	copy(out, r[:])
	return true
}

// LookAt creates a view matrix looking from eye toward center.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: camera position in world space
//   - center: target point
//   - up: up vector (typically 0,1,0)
func LookAt(out []float32, eye, center, up [3]float32) {
	z := [3]float32{eye[0] - center[0], eye[1] - center[1], eye[2] - center[2]}
	if Dot3(z, z) == 0 {
		z = [3]float32{0, 0, 1}
	}
	z = Normalize3(z)
	x := Normalize3([3]float32{
		up[1]*z[2] - up[2]*z[1],
		up[2]*z[0] - up[0]*z[2],
		up[0]*z[1] - up[1]*z[0],
	})
	y := [3]float32{
		z[1]*x[2] - z[2]*x[1],
		z[2]*x[0] - z[0]*x[2],
		z[0]*x[1] - z[1]*x[0],
	}

	out[0], out[4], out[8], out[12] = x[0], x[1], x[2], -Dot3(x, eye)
	out[1], out[5], out[9], out[13] = y[0], y[1], y[2], -Dot3(y, eye)
	out[2], out[6], out[10], out[14] = z[0], z[1], z[2], -Dot3(z, eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}
