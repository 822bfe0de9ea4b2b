package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/light"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/skinning"
	"github.com/Carmen-Shannon/oxy-skin/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (Renderer, device.Recorder) {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeRecording)
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	r, err := NewRenderer(dev, options...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r, dev.(device.Recorder)
}

func columnTextures() texture.Set {
	return texture.Set{"body": texture.White(), "sphere": texture.White(), "toon01": texture.White()}
}

func uploadColumn(t *testing.T, r Renderer, options ...ModelRendererBuilderOption) ModelRenderer {
	t.Helper()
	mr := r.NewModelRenderer(model.NewBendingColumn("column", 8, 6, 3, 2, 0.3), options...)
	require.NoError(t, mr.Upload(columnTextures()))
	require.True(t, mr.Renderable())
	return mr
}

func renderOne(t *testing.T, r Renderer, mr ModelRenderer, bones model.BoneTable) (FrameStats, error) {
	t.Helper()
	require.NoError(t, r.BeginFrame())
	stats, err := mr.RenderFrame(bones)
	require.NoError(t, r.EndFrame())
	return stats, err
}

func labels(rec device.Recorder) []string {
	var out []string
	for _, d := range rec.Draws() {
		out = append(out, d.Call.Label)
	}
	return out
}

func TestRenderFramePassOrder(t *testing.T) {
	r, rec := newTestRenderer(t)
	mr := uploadColumn(t, r)

	stats, err := renderOne(t, r, mr, model.SwayPose(3, 2, 0.2))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"zprepass/veil",
		"shadow/body", "shadow/veil",
		"model/body", "model/veil",
		"edge/body", "edge/veil",
	}, labels(rec))
	assert.Equal(t, 7, stats.Draws())
	assert.Zero(t, stats.Failed())
	assert.Equal(t, skinning.ModeCPU, stats.Mode)
	assert.Equal(t, 1, stats.Passes[material.PassZPrepass].Draws)
}

func TestPassToggles(t *testing.T) {
	r, rec := newTestRenderer(t)
	mr := uploadColumn(t, r, WithPassEnabled(material.PassZPrepass, false))
	mr.SetPassEnabled(material.PassEdge, false)
	assert.False(t, mr.PassEnabled(material.PassEdge))
	assert.True(t, mr.PassEnabled(material.PassModel))

	_, err := renderOne(t, r, mr, model.IdentityBones(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"shadow/body", "shadow/veil", "model/body", "model/veil"}, labels(rec))
}

func TestShadowPassFollowsLight(t *testing.T) {
	r, rec := newTestRenderer(t, WithLight(light.NewLight(light.WithCastsShadows(false))))
	mr := uploadColumn(t, r)

	_, err := renderOne(t, r, mr, model.IdentityBones(3))
	require.NoError(t, err)
	for _, l := range labels(rec) {
		assert.NotContains(t, l, "shadow/")
	}
}

func TestZeroEdgeWidthSkipsEdgePass(t *testing.T) {
	r, rec := newTestRenderer(t)
	mr := uploadColumn(t, r, WithEdgeWidth(1e-8))

	stats, err := renderOne(t, r, mr, model.IdentityBones(3))
	require.NoError(t, err)
	assert.Zero(t, stats.Passes[material.PassEdge].Draws)
	assert.NotContains(t, labels(rec), "edge/body")
}

func TestRenderBeforeUpload(t *testing.T) {
	r, _ := newTestRenderer(t)
	mr := r.NewModelRenderer(model.NewBendingColumn("column", 4, 2, 1, 1, 0.1))
	require.NoError(t, r.BeginFrame())
	defer r.EndFrame()

	_, err := mr.RenderFrame(model.IdentityBones(1))
	assert.ErrorIs(t, err, ErrNotRenderable)
	assert.Equal(t, skinning.ModeCPU, mr.SkinningMode())
}

func TestInvalidModelStaysNonRenderable(t *testing.T) {
	r, rec := newTestRenderer(t)
	g := &model.Geometry{
		Positions:   [][3]float32{{0, 0, 0}},
		Normals:     [][3]float32{{0, 1, 0}},
		BoneIndices: [][2]uint16{{0, 7}},
		Weights:     []float32{1},
		Indices:     []uint32{0, 0, 0},
	}
	m := model.NewModel(model.WithName("broken"), model.WithGeometry(g), model.WithBoneCount(2))
	mr := r.NewModelRenderer(m)

	err := mr.Upload(nil)
	assert.ErrorIs(t, err, model.ErrInvalidBoneIndex)
	assert.False(t, mr.Renderable())
	assert.Zero(t, rec.LiveBuffers())
}

func TestMissingTexturesDegradeToUntextured(t *testing.T) {
	r, rec := newTestRenderer(t)
	mr := uploadColumn(t, r)
	require.NoError(t, mr.Upload(nil))

	_, err := renderOne(t, r, mr, model.IdentityBones(3))
	require.NoError(t, err)
	for _, d := range rec.Draws() {
		if d.State.Technique == device.TechniqueModel {
			assert.Zero(t, d.Call.Textures.Diffuse, d.Call.Label)
			assert.NotZero(t, d.Call.Textures.Toon, d.Call.Label)
		}
	}
}

func TestAcceleratedSkinningOnSharedStream(t *testing.T) {
	r, rec := newTestRenderer(t, WithAcceleratorWorkers(2))
	mr := uploadColumn(t, r, WithAcceleratedSkinning(true))
	require.Equal(t, skinning.ModeAccelerated, mr.SkinningMode())

	cpu := uploadColumn(t, r)
	require.Equal(t, skinning.ModeCPU, cpu.SkinningMode())

	bones := model.SwayPose(3, 2, 0.3)
	for _, m := range []ModelRenderer{mr, cpu} {
		stats, err := renderOne(t, r, m, bones)
		require.NoError(t, err)
		assert.Zero(t, stats.Failed())
	}

	got := rec.BufferBytes(mr.(*modelRenderer).vb.DynamicBuffer())
	want := rec.BufferBytes(cpu.(*modelRenderer).vb.DynamicBuffer())
	require.Len(t, got, len(want))
	for i := 0; i < len(want); i += model.SkinnedVertexStride {
		a, b := model.UnmarshalSkinnedVertex(got[i:]), model.UnmarshalSkinnedVertex(want[i:])
		for k := range 3 {
			assert.InDelta(t, b.Position[k], a.Position[k], 1e-5)
			assert.InDelta(t, b.Normal[k], a.Normal[k], 1e-5)
		}
	}
}

func TestInvalidKernelFallsBackToCPU(t *testing.T) {
	r, _ := newTestRenderer(t, WithKernelSource("@compute @workgroup_size(64) fn skin_vertices( {"))

	var mr ModelRenderer
	assert.NotPanics(t, func() {
		mr = uploadColumn(t, r, WithAcceleratedSkinning(true))
	})
	assert.Equal(t, skinning.ModeCPU, mr.SkinningMode())
	require.NotNil(t, r.Accelerator())
	assert.False(t, r.Accelerator().IsAvailable())

	stats, err := renderOne(t, r, mr, model.SwayPose(3, 2, 0.1))
	require.NoError(t, err)
	assert.Positive(t, stats.Draws())
}

func TestAcceleratorToggleIgnoredAfterUpload(t *testing.T) {
	r, _ := newTestRenderer(t)
	mr := r.NewModelRenderer(model.NewBendingColumn("column", 8, 6, 3, 2, 0.3))
	mr.SetAcceleratorEnabled(true)
	require.NoError(t, mr.Upload(columnTextures()))
	require.Equal(t, skinning.ModeAccelerated, mr.SkinningMode())

	mr.SetAcceleratorEnabled(false)
	assert.True(t, mr.AcceleratorEnabled())
	assert.Equal(t, skinning.ModeAccelerated, mr.SkinningMode())
}

func TestBoneCountMismatchDegradesFrame(t *testing.T) {
	r, rec := newTestRenderer(t)
	mr := uploadColumn(t, r)

	stats, err := renderOne(t, r, mr, model.IdentityBones(2))
	assert.ErrorIs(t, err, ErrFrameDegraded)
	assert.ErrorIs(t, err, skinning.ErrBoneCount)
	assert.Equal(t, 7, stats.Draws())
	assert.Len(t, rec.Draws(), 7)
}

func TestReleaseIsIdempotent(t *testing.T) {
	r, rec := newTestRenderer(t)
	mr := uploadColumn(t, r, WithAcceleratedSkinning(true))
	require.Positive(t, rec.LiveBuffers())
	require.Positive(t, rec.LiveTextures())

	mr.Release()
	mr.Release()
	assert.Zero(t, rec.LiveBuffers())
	assert.Zero(t, rec.LiveTextures())
	assert.ErrorIs(t, mr.Upload(nil), ErrReleased)

	r.Release()
	r.Release()
	assert.ErrorIs(t, r.BeginFrame(), ErrReleased)
}

func TestRendererReleaseReleasesModels(t *testing.T) {
	r, rec := newTestRenderer(t)
	uploadColumn(t, r)
	uploadColumn(t, r, WithAcceleratedSkinning(true))

	r.Release()
	assert.Zero(t, rec.LiveBuffers())
	assert.Zero(t, rec.LiveTextures())
}

// TestTwoBoneBlend skins four vertices against two bones with bone 1 translated along X.
func TestTwoBoneBlend(t *testing.T) {
	r, rec := newTestRenderer(t)
	g := &model.Geometry{
		Positions:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		Normals:     [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		BoneIndices: [][2]uint16{{0, 1}, {0, 1}, {0, 1}, {0, 1}},
		Weights:     []float32{1, 0, 0.5, 1},
		Indices:     []uint32{0, 1, 2, 1, 3, 2},
	}
	m := model.NewModel(
		model.WithName("quad"),
		model.WithGeometry(g),
		model.WithBoneCount(2),
		model.WithMaterials([]model.MaterialDescriptor{{Name: "quad", Opacity: 1, IndexCount: 6, DrawEdge: true}}),
	)
	mr := r.NewModelRenderer(m, WithEdgeWidth(0))
	require.NoError(t, mr.Upload(nil))

	bones := model.IdentityBones(2)
	common.TRS(bones[1][:], [3]float32{2, 0, 0}, [3]float32{})
	stats, err := renderOne(t, r, mr, bones)
	require.NoError(t, err)
	assert.Equal(t, []string{"shadow/quad", "model/quad"}, labels(rec))
	assert.Equal(t, 2, stats.Draws())

	want := [][3]float32{{0, 0, 0}, {3, 0, 0}, {1, 1, 0}, {1, 1, 0}}
	buf := rec.BufferBytes(mr.(*modelRenderer).vb.DynamicBuffer())
	for i, w := range want {
		v := model.UnmarshalSkinnedVertex(buf[i*model.SkinnedVertexStride:])
		for k := range 3 {
			assert.InDelta(t, w[k], v.Position[k], 1e-6, "vertex %d", i)
		}
		assert.Equal(t, [3]float32{0, 0, 1}, v.Normal, "vertex %d", i)
	}
}

func TestEmptyOptionalStreamsUpload(t *testing.T) {
	triangle := func() *model.Geometry {
		return &model.Geometry{
			Positions:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Normals:     [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
			BoneIndices: [][2]uint16{{0, 0}, {0, 0}, {0, 0}},
			Weights:     []float32{1, 1, 1},
			Indices:     []uint32{0, 1, 2},
		}
	}
	noUV := triangle()
	noUV.TexCoords = [][2]float32{}
	noEdge := triangle()
	noEdge.EdgeScales = []float32{}

	for name, g := range map[string]*model.Geometry{"texcoords": noUV, "edge scales": noEdge} {
		t.Run(name, func(t *testing.T) {
			r, _ := newTestRenderer(t)
			m := model.NewModel(model.WithName("tri"), model.WithGeometry(g), model.WithBoneCount(1),
				model.WithMaterials([]model.MaterialDescriptor{{Name: "tri", Opacity: 1, DrawEdge: true, IndexCount: 3}}))
			require.NoError(t, m.Validate())

			mr := r.NewModelRenderer(m)
			require.NotPanics(t, func() { require.NoError(t, mr.Upload(nil)) })
			require.True(t, mr.Renderable())
			_, err := renderOne(t, r, mr, model.IdentityBones(1))
			assert.NoError(t, err)
		})
	}
}
