package model

import "github.com/Carmen-Shannon/oxy-skin/common"

// ToonTableSize is the fixed number of toon lookup slots per model.
// Slot 0 holds the shared default gradient, slots 1-10 hold the model's own toon textures.
const ToonTableSize = 11

// BoneTable is the per-frame snapshot of bone skinning transforms, one column-major matrix per bone,
// indexed identically to Geometry.BoneIndices. It is produced by the bone evaluation collaborator
// and never mutated by the renderer.
type BoneTable []common.Mat4

// IdentityBones returns a bone table of n identity transforms (the bind pose).
//
// Parameters:
//   - n: the bone count
//
// Returns:
//   - BoneTable: n identity matrices
func IdentityBones(n int) BoneTable {
	t := make(BoneTable, n)
	for i := range t {
		t[i] = common.IdentityMat4()
	}
	return t
}

// Geometry is the immutable bind-pose mesh of a model.
type Geometry struct {
	// Positions are object-space vertex positions before skinning.
	Positions [][3]float32

	// Normals are bind-pose vertex normals, one per position.
	Normals [][3]float32

	// TexCoords are the UV coordinates. Empty means all zero.
	TexCoords [][2]float32

	// BoneIndices holds the two influencing bones of each vertex. Ignored when the model has zero bones.
	BoneIndices [][2]uint16

	// Weights is the blend weight of the first bone of each vertex; the second bone receives 1-w.
	Weights []float32

	// EdgeScales scales the outline extrusion per vertex. Empty means 1 for every vertex.
	EdgeScales []float32

	// Indices is the body triangle list shared by all materials.
	Indices []uint32

	// EdgeIndices is the outline triangle list. Nil means Indices with reversed winding.
	EdgeIndices []uint32
}

// VertexCount returns the number of vertices in the geometry.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// EdgeScale returns the edge scalar of vertex i, defaulting to 1.
func (g *Geometry) EdgeScale(i int) float32 {
	if len(g.EdgeScales) == 0 {
		return 1
	}
	return g.EdgeScales[i]
}

// TexCoord returns the UV of vertex i, defaulting to zero.
func (g *Geometry) TexCoord(i int) [2]float32 {
	if len(g.TexCoords) == 0 {
		return [2]float32{}
	}
	return g.TexCoords[i]
}

// OutlineIndices returns the outline index stream, deriving it from Indices when EdgeIndices is nil.
// The derived stream keeps per-triangle offsets so material index ranges apply to both streams.
func (g *Geometry) OutlineIndices() []uint32 {
	if g.EdgeIndices != nil {
		return g.EdgeIndices
	}
	out := make([]uint32, len(g.Indices))
	for i := 0; i+2 < len(g.Indices); i += 3 {
		out[i], out[i+1], out[i+2] = g.Indices[i], g.Indices[i+2], g.Indices[i+1]
	}
	return out
}

// MaterialDescriptor is the immutable per-material record loaded with the model.
type MaterialDescriptor struct {
	// Name identifies the material in logs.
	Name string

	// Opacity is the material alpha in [0, 1].
	Opacity float32

	// Ambient, Diffuse and Specular are RGB colors.
	Ambient  [3]float32
	Diffuse  [3]float32
	Specular [3]float32

	// Shininess is the specular exponent.
	Shininess float32

	// EdgeColor is the RGBA outline color.
	EdgeColor [4]float32

	// DrawEdge enables the outline for this material.
	DrawEdge bool

	// HasMain and HasSub report whether the primary and secondary texture slots are populated.
	HasMain bool
	HasSub  bool

	// Sphere-map flags per slot. Add and modulate are mutually exclusive within a slot.
	MainSphereAdd      bool
	MainSphereModulate bool
	SubSphereAdd       bool
	SubSphereModulate  bool

	// MainTexture and SubTexture are asset keys of the slot textures.
	MainTexture string
	SubTexture  string

	// ToonIndex selects the toon lookup slot, in [0, ToonTableSize).
	ToonIndex int

	// IndexOffset and IndexCount select this material's range of the shared index stream.
	IndexOffset uint32
	IndexCount  uint32
}

// MainIsSphere reports whether the primary slot is flagged as a sphere map.
func (m *MaterialDescriptor) MainIsSphere() bool {
	return m.HasMain && (m.MainSphereAdd || m.MainSphereModulate)
}

// SubIsSphere reports whether the secondary slot is flagged as a sphere map.
func (m *MaterialDescriptor) SubIsSphere() bool {
	return m.HasSub && (m.SubSphereAdd || m.SubSphereModulate)
}
