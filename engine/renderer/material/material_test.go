package material

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T) device.Recorder {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeRecording)
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	for _, tech := range device.Techniques {
		require.NoError(t, dev.RegisterTechnique(tech, "// "+tech.String()))
	}
	return dev.(device.Recorder)
}

func texture(t *testing.T, dev device.Device, label string) device.TextureHandle {
	t.Helper()
	h, err := dev.CreateTexture(label, common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1})
	require.NoError(t, err)
	return h
}

// frame creates streams large enough for n materials of three indices each.
func frame(t *testing.T, dev device.Device, n int) *Frame {
	t.Helper()
	create := func(label string, size uint64) device.BufferHandle {
		h, err := dev.CreateBuffer(device.BufferDescriptor{Label: label, Size: size, Usage: device.BufferUsageVertex | device.BufferUsageIndex})
		require.NoError(t, err)
		return h
	}
	f := &Frame{
		ViewProjection: common.IdentityMat4(),
		Shadow:         common.IdentityMat4(),
		LightDirection: [3]float32{0, -1, 0},
		LightColor:     [3]float32{1, 1, 1},
		ShadowColor:    [4]float32{0, 0, 0, 0.5},
		EdgeWidth:      1,
		Streams: Streams{
			Dynamic:   create("dynamic", 48*3),
			Static:    create("static", 8*3),
			Index:     create("index", uint64(n)*12),
			EdgeIndex: create("edge index", uint64(n)*12),
		},
	}
	f.Shadow[1] = 0.25
	return f
}

func materials(descs ...model.MaterialDescriptor) []Material {
	out := make([]Material, len(descs))
	for i := range descs {
		descs[i].IndexOffset = uint32(i * 3)
		descs[i].IndexCount = 3
		out[i] = NewMaterial(descs[i])
	}
	return out
}

func drawnNames(rec device.Recorder) []string {
	var names []string
	for _, d := range rec.Draws() {
		names = append(names, d.Call.Label)
	}
	return names
}

func TestPrimarySphereSlotWins(t *testing.T) {
	rec := newRecorder(t)
	main, sub := texture(t, rec, "main"), texture(t, rec, "sub")
	toon := texture(t, rec, "toon")

	set := TextureSet{Slots: map[string]device.TextureHandle{"main.spa": main, "sub.sph": sub}}
	set.Toon[2] = toon

	desc := model.MaterialDescriptor{
		Name: "hair", Opacity: 1,
		HasMain: true, MainTexture: "main.spa", MainSphereAdd: true,
		HasSub: true, SubTexture: "sub.sph", SubSphereModulate: true,
		ToonIndex: 2,
	}
	b := ResolveTextureBinding(&desc, set)
	assert.Equal(t, device.TextureBindings{Sphere: main, SphereMode: device.SphereAdd, Toon: toon}, b)

	m := NewMaterial(desc, WithTextures(set))
	u := modelUniforms(m.Descriptor(), m.Textures(), &Frame{})
	assert.Equal(t, device.SphereAdd, u.SphereMode)
	assert.Zero(t, u.HasDiffuse)
	assert.Equal(t, uint32(1), u.HasToon)
}

func TestResolveTextureBinding(t *testing.T) {
	set := TextureSet{Slots: map[string]device.TextureHandle{"a": 1, "b": 2}}
	set.Toon[0] = 9

	cases := []struct {
		name string
		desc model.MaterialDescriptor
		want device.TextureBindings
	}{
		{"untextured", model.MaterialDescriptor{}, device.TextureBindings{Toon: 9}},
		{"main diffuse", model.MaterialDescriptor{HasMain: true, MainTexture: "a"}, device.TextureBindings{Diffuse: 1, Toon: 9}},
		{"main modulate", model.MaterialDescriptor{HasMain: true, MainTexture: "a", MainSphereModulate: true}, device.TextureBindings{Sphere: 1, SphereMode: device.SphereModulate, Toon: 9}},
		{"add beats modulate", model.MaterialDescriptor{HasMain: true, MainTexture: "a", MainSphereAdd: true, MainSphereModulate: true}, device.TextureBindings{Sphere: 1, SphereMode: device.SphereAdd, Toon: 9}},
		{"diffuse plus sub sphere", model.MaterialDescriptor{HasMain: true, MainTexture: "a", HasSub: true, SubTexture: "b", SubSphereModulate: true}, device.TextureBindings{Diffuse: 1, Sphere: 2, SphereMode: device.SphereModulate, Toon: 9}},
		{"sub only", model.MaterialDescriptor{HasSub: true, SubTexture: "b"}, device.TextureBindings{Diffuse: 2, Toon: 9}},
		{"failed upload", model.MaterialDescriptor{HasMain: true, MainTexture: "missing", MainSphereAdd: true}, device.TextureBindings{Toon: 9}},
		{"toon out of range", model.MaterialDescriptor{ToonIndex: model.ToonTableSize}, device.TextureBindings{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ResolveTextureBinding(&c.desc, set))
		})
	}
}

func TestZPrepassOpacityThreshold(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(
		model.MaterialDescriptor{Name: "solid", Opacity: 1},
		model.MaterialDescriptor{Name: "edge-of-opaque", Opacity: DefaultOpaqueThreshold},
		model.MaterialDescriptor{Name: "glass", Opacity: 0.97},
		model.MaterialDescriptor{Name: "veil", Opacity: 0.2},
	)
	f := frame(t, rec, len(mats))
	sm := NewPassStateMachine(rec, mats)

	require.NoError(t, rec.BeginFrame())
	stats := sm.Run(PassZPrepass, f)
	assert.Equal(t, PassStats{Draws: 2}, stats)
	assert.Equal(t, []string{"zprepass/glass", "zprepass/veil"}, drawnNames(rec))
	for _, d := range rec.Draws() {
		assert.True(t, d.State.NoColorWrite)
		assert.False(t, d.State.NoDepthWrite)
		assert.Equal(t, device.TechniqueZPlot, d.State.Technique)
	}
}

func TestZPrepassOpacityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	rec := newRecorder(t)
	require.NoError(t, rec.BeginFrame())

	for i := 0; i < 50; i++ {
		opacity := rng.Float32() * 0.97
		mats := materials(
			model.MaterialDescriptor{Name: "opaque", Opacity: 1},
			model.MaterialDescriptor{Name: "translucent", Opacity: opacity},
		)
		rec.ResetLog()
		NewPassStateMachine(rec, mats).Run(PassZPrepass, frame(t, rec, 2))
		assert.Equal(t, []string{"zprepass/translucent"}, drawnNames(rec), "opacity %v", opacity)
	}
}

func TestWithOpaqueThreshold(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(model.MaterialDescriptor{Name: "glass", Opacity: 0.9})
	f := frame(t, rec, 1)
	require.NoError(t, rec.BeginFrame())

	assert.Equal(t, 1, NewPassStateMachine(rec, mats).Run(PassZPrepass, f).Draws)
	sm := NewPassStateMachine(rec, mats, WithOpaqueThreshold(0.85))
	assert.Equal(t, float32(0.85), sm.OpaqueThreshold())
	assert.Zero(t, sm.Run(PassZPrepass, f).Draws)
	assert.Equal(t, DefaultOpaqueThreshold, NewPassStateMachine(rec, mats, WithOpaqueThreshold(2)).OpaqueThreshold())
}

func TestModelPassIsIdempotent(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(
		model.MaterialDescriptor{Name: "skin", Opacity: 1},
		model.MaterialDescriptor{Name: "lace", Opacity: 0.5},
		model.MaterialDescriptor{Name: "glass", Opacity: 0.3},
		model.MaterialDescriptor{Name: "boots", Opacity: 1},
	)
	f := frame(t, rec, len(mats))
	sm := NewPassStateMachine(rec, mats)
	require.NoError(t, rec.BeginFrame())

	sm.Run(PassModel, f)
	first := rec.State()
	firstDraws := rec.Draws()

	rec.ResetLog()
	sm.Run(PassModel, f)
	assert.Equal(t, first, rec.State())
	assert.Equal(t, device.RenderState{Technique: device.TechniqueModel, Cull: device.CullBack, Blend: true}, rec.State())

	second := rec.Draws()
	require.Len(t, second, len(firstDraws))
	for i := range second {
		assert.Equal(t, firstDraws[i].State, second[i].State)
	}
	assert.Equal(t, device.CullBack, second[0].State.Cull)
	assert.Equal(t, device.CullNone, second[1].State.Cull)
	assert.Equal(t, device.CullNone, second[2].State.Cull)
	assert.Equal(t, device.CullBack, second[3].State.Cull)
}

func TestModelPassTracksCullChanges(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(
		model.MaterialDescriptor{Name: "a", Opacity: 0.5},
		model.MaterialDescriptor{Name: "b", Opacity: 0.4},
	)
	f := frame(t, rec, len(mats))
	require.NoError(t, rec.BeginFrame())
	rec.ResetLog()

	NewPassStateMachine(rec, mats).Run(PassModel, f)
	// back (pass start), none (first translucent), back (restore)
	changes := rec.StateChanges()
	require.Len(t, changes, 3)
	assert.Equal(t, device.CullBack, changes[0].Cull)
	assert.Equal(t, device.CullNone, changes[1].Cull)
	assert.Equal(t, device.CullBack, changes[2].Cull)
}

func TestEdgePass(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(
		model.MaterialDescriptor{Name: "body", Opacity: 1, DrawEdge: true, EdgeColor: [4]float32{0, 0, 0, 1}},
		model.MaterialDescriptor{Name: "eyes", Opacity: 1},
	)
	f := frame(t, rec, len(mats))
	sm := NewPassStateMachine(rec, mats)
	require.NoError(t, rec.BeginFrame())

	f.EdgeWidth = 1e-7
	assert.Equal(t, PassStats{}, sm.Run(PassEdge, f))
	assert.Empty(t, rec.Draws())

	f.EdgeWidth = 1
	assert.Equal(t, PassStats{Draws: 1}, sm.Run(PassEdge, f))
	draws := rec.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "edge/body", draws[0].Call.Label)
	assert.Equal(t, f.Streams.EdgeIndex, draws[0].Call.Index)
	assert.Equal(t, device.CullFront, draws[0].State.Cull)
	assert.Equal(t, device.TechniqueEdge, draws[0].State.Technique)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, draws[0].Call.Uniforms.EdgeColor)
}

func TestShadowPass(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(
		model.MaterialDescriptor{Name: "a", Opacity: 1},
		model.MaterialDescriptor{Name: "b", Opacity: 0.1},
	)
	f := frame(t, rec, len(mats))
	require.NoError(t, rec.BeginFrame())

	assert.Equal(t, PassStats{Draws: 2}, NewPassStateMachine(rec, mats).Run(PassShadow, f))
	for _, d := range rec.Draws() {
		assert.Equal(t, device.TechniqueShadow, d.State.Technique)
		assert.True(t, d.State.Blend)
		assert.True(t, d.State.NoDepthWrite)
		assert.Equal(t, f.Shadow, d.Call.Uniforms.Shadow)
		assert.Equal(t, f.ShadowColor, d.Call.Uniforms.Diffuse)
	}
}

func TestFailedDrawsAreCounted(t *testing.T) {
	rec := newRecorder(t)
	mats := materials(
		model.MaterialDescriptor{Name: "a", Opacity: 1},
		model.MaterialDescriptor{Name: "b", Opacity: 1},
	)
	f := frame(t, rec, len(mats))

	// no frame in progress
	assert.Equal(t, PassStats{Failed: 2}, NewPassStateMachine(rec, mats).Run(PassModel, f))

	require.NoError(t, rec.BeginFrame())
	mats[1] = NewMaterial(model.MaterialDescriptor{Name: "overrun", IndexOffset: 100, IndexCount: 3})
	assert.Equal(t, PassStats{Draws: 1, Failed: 1}, NewPassStateMachine(rec, mats).Run(PassShadow, f))
}
