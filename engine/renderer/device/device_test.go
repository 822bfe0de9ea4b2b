package device

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T, opts ...DeviceBuilderOption) Recorder {
	t.Helper()
	dev, err := NewDevice(BackendTypeRecording, opts...)
	require.NoError(t, err)
	rec, ok := dev.(Recorder)
	require.True(t, ok)
	for _, tech := range Techniques {
		require.NoError(t, rec.RegisterTechnique(tech, "// "+tech.String()))
	}
	return rec
}

func drawable(t *testing.T, rec Recorder) DrawCall {
	t.Helper()
	dyn, err := rec.CreateBuffer(BufferDescriptor{Label: "dynamic", Size: 48 * 3, Usage: BufferUsageVertex})
	require.NoError(t, err)
	idx, err := rec.CreateBuffer(BufferDescriptor{Label: "index", Size: 12, Usage: BufferUsageIndex})
	require.NoError(t, err)
	return DrawCall{Label: "tri", Dynamic: dyn, Index: idx, IndexCount: 3}
}

func TestCreateBufferRejectsOversize(t *testing.T) {
	caps := RecordingCapabilities()
	caps.MaxBufferSize = 64
	rec := newRecorder(t, WithCapabilities(caps))

	_, err := rec.CreateBuffer(BufferDescriptor{Label: "big", Size: 65})
	assert.ErrorIs(t, err, ErrBufferRejected)
	_, err = rec.CreateBuffer(BufferDescriptor{Label: "empty"})
	assert.ErrorIs(t, err, ErrBufferRejected)
	assert.Zero(t, rec.LiveBuffers())
}

func TestWriteBufferBounds(t *testing.T) {
	rec := newRecorder(t)
	h, err := rec.CreateBuffer(BufferDescriptor{Label: "b", Size: 8})
	require.NoError(t, err)

	require.NoError(t, rec.WriteBuffer(h, 4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, rec.BufferBytes(h))
	assert.ErrorIs(t, rec.WriteBuffer(h, 6, []byte{1, 2, 3}), ErrOutOfRange)
	assert.ErrorIs(t, rec.WriteBuffer(99, 0, nil), ErrInvalidHandle)
}

func TestDrawOutsideFrameFails(t *testing.T) {
	rec := newRecorder(t)
	call := drawable(t, rec)
	assert.ErrorIs(t, rec.Draw(call), ErrNoFrame)

	require.NoError(t, rec.BeginFrame())
	require.NoError(t, rec.Draw(call))
	require.NoError(t, rec.EndFrame())
	assert.Len(t, rec.Draws(), 1)
}

func TestDrawRejectsComputeOwnedBuffer(t *testing.T) {
	rec := newRecorder(t)
	call := drawable(t, rec)
	require.NoError(t, rec.SetComputeOwned(call.Dynamic, true))

	require.NoError(t, rec.BeginFrame())
	assert.ErrorIs(t, rec.Draw(call), ErrBufferAcquired)
	require.NoError(t, rec.SetComputeOwned(call.Dynamic, false))
	assert.NoError(t, rec.Draw(call))
	require.NoError(t, rec.EndFrame())
}

func TestDrawValidatesIndexRangeAndTextures(t *testing.T) {
	rec := newRecorder(t)
	call := drawable(t, rec)
	require.NoError(t, rec.BeginFrame())

	over := call
	over.FirstIndex = 1
	assert.ErrorIs(t, rec.Draw(over), ErrOutOfRange)

	missing := call
	missing.Textures.Toon = 7
	assert.ErrorIs(t, rec.Draw(missing), ErrInvalidHandle)
}

func TestDrawNeedsRegisteredTechnique(t *testing.T) {
	dev, err := NewDevice(BackendTypeRecording)
	require.NoError(t, err)
	rec := dev.(Recorder)
	call := drawable(t, rec)

	require.NoError(t, rec.BeginFrame())
	assert.ErrorIs(t, rec.Draw(call), ErrUnknownTechnique)
}

func TestApplyStateRecordsOnlyChanges(t *testing.T) {
	rec := newRecorder(t)
	rec.ApplyState(RenderState{})
	rec.ApplyState(RenderState{Cull: CullNone})
	rec.ApplyState(RenderState{Cull: CullNone})
	rec.ApplyState(RenderState{})

	assert.Equal(t, []RenderState{{Cull: CullNone}, {}}, rec.StateChanges())
	rec.ResetLog()
	assert.Empty(t, rec.StateChanges())
}

func TestTextureLifecycle(t *testing.T) {
	rec := newRecorder(t)
	_, err := rec.CreateTexture("bad", common.TextureStagingData{Width: 2, Height: 2})
	assert.ErrorIs(t, err, ErrTextureRejected)

	h, err := rec.CreateTexture("px", common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.LiveTextures())
	rec.ReleaseTexture(h)
	rec.ReleaseTexture(h)
	assert.Zero(t, rec.LiveTextures())
}

func TestReleaseIsIdempotent(t *testing.T) {
	rec := newRecorder(t)
	drawable(t, rec)
	rec.Release()
	rec.Release()
	assert.Zero(t, rec.LiveBuffers())
	_, err := rec.CreateBuffer(BufferDescriptor{Size: 4})
	assert.ErrorIs(t, err, ErrReleased)
}

func TestCapabilitiesWorkgroups(t *testing.T) {
	caps := RecordingCapabilities()
	n, err := caps.Workgroups(130, 64)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), n)

	caps.MaxComputeWorkgroupsPerDimension = 2
	_, err = caps.Workgroups(130, 64)
	assert.Error(t, err)
	_, err = caps.Workgroups(1, 0)
	assert.Error(t, err)

	assert.True(t, RecordingCapabilities().CanShare(1024))
	caps.SharedBuffers = false
	assert.False(t, caps.CanShare(1024))
}

func TestDrawUniformsLayout(t *testing.T) {
	u := DrawUniforms{ViewProjection: common.IdentityMat4(), SphereMode: SphereModulate}
	assert.Equal(t, DrawUniformsSize, u.Size())
	buf := u.Marshal()
	require.Len(t, buf, DrawUniformsSize)
	assert.Equal(t, byte(SphereModulate), buf[228])
}
