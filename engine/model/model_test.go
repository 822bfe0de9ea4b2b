package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() *Geometry {
	return &Geometry{
		Positions:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:     [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		BoneIndices: [][2]uint16{{0, 0}, {0, 0}, {1, 1}, {1, 1}},
		Weights:     []float32{1, 1, 1, 1},
		Indices:     []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestValidateAcceptsWellFormedModel(t *testing.T) {
	m := NewModel(
		WithGeometry(quad()),
		WithBoneCount(2),
		WithMaterials([]MaterialDescriptor{{Name: "a", Opacity: 1, IndexCount: 6}}),
	)
	assert.NoError(t, m.Validate())
}

func TestValidateRejectsBoneIndexOutOfRange(t *testing.T) {
	err := Validate(quad(), nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBoneIndex)
}

func TestValidateRejectsToonIndexOutOfRange(t *testing.T) {
	mats := []MaterialDescriptor{{Name: "bad", IndexCount: 6, ToonIndex: ToonTableSize}}
	err := Validate(quad(), mats, 2)
	assert.ErrorIs(t, err, ErrInvalidToonIndex)
	assert.NotErrorIs(t, err, ErrInvalidBoneIndex)
}

func TestValidateJoinsAllViolations(t *testing.T) {
	g := quad()
	g.Weights[2] = 1.5
	mats := []MaterialDescriptor{{IndexOffset: 3, IndexCount: 6, ToonIndex: -1}}
	err := Validate(g, mats, 1)
	for _, want := range []error{ErrInvalidBoneIndex, ErrInvalidWeight, ErrInvalidToonIndex, ErrInvalidIndexRange} {
		assert.True(t, errors.Is(err, want), "missing %v", want)
	}
}

func TestValidateZeroBonesIgnoresBoneStreams(t *testing.T) {
	g := quad()
	g.BoneIndices = nil
	g.Weights = nil
	assert.NoError(t, Validate(g, nil, 0))
}

func TestValidateStreamLengthsAndEmpty(t *testing.T) {
	g := quad()
	g.Normals = g.Normals[:3]
	assert.ErrorIs(t, Validate(g, nil, 2), ErrStreamLength)
	assert.ErrorIs(t, Validate(&Geometry{}, nil, 0), ErrEmptyGeometry)
}

func TestOutlineIndicesReverseWinding(t *testing.T) {
	g := quad()
	assert.Equal(t, []uint32{0, 2, 1, 0, 3, 2}, g.OutlineIndices())
}

func TestSkinnedVertexRoundTrip(t *testing.T) {
	v := GPUSkinnedVertex{
		Position:     [3]float32{1, 2, 3},
		Normal:       [3]float32{0, 1, 0},
		Toon:         [2]float32{0, 0.25},
		EdgePosition: [3]float32{1, 2.5, 3},
	}
	assert.Equal(t, SkinnedVertexStride, v.Size())
	assert.Equal(t, v, UnmarshalSkinnedVertex(v.Marshal()))
}

func TestSkinInputRigidModelBindsBoneZero(t *testing.T) {
	g := quad()
	in := g.SkinInput(2, 0)
	assert.Equal(t, float32(1), in.Weight)
	assert.Equal(t, [4]uint32{}, in.Bones)
	assert.Equal(t, SkinInputStride, in.Size())
}

func TestBendingColumnIsValid(t *testing.T) {
	m := NewBendingColumn("column", 12, 9, 4, 2, 0.3)
	require.NoError(t, m.Validate())
	assert.Len(t, m.Materials(), 2)
	assert.Equal(t, "toon01", m.ToonTexture(1))

	g := m.Geometry()
	assert.Equal(t, float32(1), g.Weights[0], "root ring sits on a joint")
}

func TestSwayPoseKeepsRootFixed(t *testing.T) {
	pose := SwayPose(3, 3, 0.2)
	require.Len(t, pose, 3)
	assert.Equal(t, IdentityBones(1)[0], pose[0])
	assert.NotEqual(t, pose[0], pose[2])
}

func TestEmptyOptionalStreamsUseDefaults(t *testing.T) {
	g := quad()
	g.TexCoords = [][2]float32{}
	g.EdgeScales = []float32{}
	require.NoError(t, Validate(g, nil, 2))

	assert.Equal(t, [2]float32{}, g.TexCoord(3))
	assert.Equal(t, float32(1), g.EdgeScale(3))
	assert.Len(t, g.StaticStream(), g.VertexCount()*8)
	assert.NotPanics(t, func() { g.SkinInputStream(2) })
}
