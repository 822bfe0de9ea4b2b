package model

import (
	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/chewxy/math32"
)

// NewBendingColumn builds a procedural skinned cylinder standing on the ground plane, split into
// an opaque lower material and a translucent sphere-mapped upper material. Bones are stacked along
// the Y axis and each ring blends between the two nearest bones, so rings lying on a joint carry a
// weight of exactly 1.
//
// Parameters:
//   - name: the model name
//   - segments: vertices around the circumference (minimum 3)
//   - rings: rings along the height (minimum 2)
//   - bones: bone count (minimum 1)
//   - height, radius: column dimensions
//
// Returns:
//   - Model: the column model
func NewBendingColumn(name string, segments, rings, bones int, height, radius float32) Model {
	segments = max(segments, 3)
	rings = max(rings, 2)
	bones = max(bones, 1)

	g := &Geometry{}
	segHeight := height / float32(bones)
	for r := 0; r < rings; r++ {
		y := height * float32(r) / float32(rings-1)
		b0, w := ringBinding(y, segHeight, bones)
		for s := 0; s <= segments; s++ {
			a := 2 * math32.Pi * float32(s) / float32(segments)
			sin, cos := math32.Sincos(a)
			g.Positions = append(g.Positions, [3]float32{cos * radius, y, sin * radius})
			g.Normals = append(g.Normals, [3]float32{cos, 0, sin})
			g.TexCoords = append(g.TexCoords, [2]float32{float32(s) / float32(segments), 1 - y/height})
			g.BoneIndices = append(g.BoneIndices, [2]uint16{uint16(b0), uint16(min(b0+1, bones-1))})
			g.Weights = append(g.Weights, w)
			g.EdgeScales = append(g.EdgeScales, 1)
		}
	}

	stride := uint32(segments + 1)
	for r := 0; r < rings-1; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			g.Indices = append(g.Indices, a, b, a+1, a+1, b, b+1)
		}
	}

	split := uint32((rings-1)/2) * uint32(segments) * 6
	total := uint32(len(g.Indices))
	materials := []MaterialDescriptor{
		{
			Name:        "body",
			Opacity:     1,
			Ambient:     [3]float32{0.4, 0.35, 0.35},
			Diffuse:     [3]float32{0.8, 0.7, 0.7},
			Specular:    [3]float32{0.2, 0.2, 0.2},
			Shininess:   16,
			EdgeColor:   [4]float32{0, 0, 0, 1},
			DrawEdge:    true,
			HasMain:     true,
			MainTexture: "body",
			ToonIndex:   0,
			IndexOffset: 0,
			IndexCount:  split,
		},
		{
			Name:          "veil",
			Opacity:       0.6,
			Ambient:       [3]float32{0.3, 0.3, 0.4},
			Diffuse:       [3]float32{0.6, 0.6, 0.9},
			Specular:      [3]float32{0.5, 0.5, 0.5},
			Shininess:     32,
			EdgeColor:     [4]float32{0.1, 0.1, 0.3, 1},
			DrawEdge:      true,
			HasMain:       true,
			MainSphereAdd: true,
			MainTexture:   "sphere",
			ToonIndex:     1,
			IndexOffset:   split,
			IndexCount:    total - split,
		},
	}

	return NewModel(
		WithName(name),
		WithGeometry(g),
		WithMaterials(materials),
		WithBoneCount(bones),
		WithToonTexture(1, "toon01"),
	)
}

// ringBinding returns the lower bone of a ring at height y and the weight of that bone.
func ringBinding(y, segHeight float32, bones int) (int, float32) {
	t := y / segHeight
	b0 := int(math32.Floor(t))
	if b0 >= bones-1 {
		return bones - 1, 1
	}
	f := t - float32(b0)
	return b0, 1 - f
}

// SwayPose bends a stack of bones like NewBendingColumn's skeleton: every joint above the root
// rotates by angle around the Z axis, accumulating up the chain.
//
// Parameters:
//   - bones: bone count
//   - height: total height of the stack
//   - angle: per-joint rotation in radians
//
// Returns:
//   - BoneTable: skinning transforms for the pose
func SwayPose(bones int, height, angle float32) BoneTable {
	table := IdentityBones(bones)
	segHeight := height / float32(max(bones, 1))
	var pivot, unpivot, local common.Mat4
	for i := 1; i < bones; i++ {
		y := segHeight * float32(i)
		common.TRS(pivot[:], [3]float32{0, y, 0}, [3]float32{0, 0, angle})
		common.TRS(unpivot[:], [3]float32{0, -y, 0}, [3]float32{})
		common.Mul4(local[:], pivot[:], unpivot[:])
		common.Mul4(table[i][:], table[i-1][:], local[:])
	}
	return table
}
