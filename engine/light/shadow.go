package light

import "github.com/Carmen-Shannon/oxy-skin/common"

// GroundPlane is the default shadow plane, y = 0.
var GroundPlane = [4]float32{0, 1, 0, 0}

// ShadowMatrix builds the projective matrix that flattens points onto plane along lightDir.
//
// With L = (lightDir, 0) and column-major storage, element [i][j] (column i, row j) is
// plane[i]*L[j], plus dot(plane, -L) on the diagonal. Points already on the plane map to
// themselves after the perspective divide. A light parallel to the plane makes the matrix
// degenerate.
//
// Parameters:
//   - plane: (a, b, c, d) with a*x + b*y + c*z + d = 0
//   - lightDir: the direction the light travels
//
// Returns:
//   - common.Mat4: the column-major shadow matrix
func ShadowMatrix(plane [4]float32, lightDir [3]float32) common.Mat4 {
	l := [4]float32{lightDir[0], lightDir[1], lightDir[2], 0}
	d := -(plane[0]*l[0] + plane[1]*l[1] + plane[2]*l[2] + plane[3]*l[3])

	var m common.Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i*4+j] = plane[i] * l[j]
			if i == j {
				m[i*4+j] += d
			}
		}
	}
	return m
}
