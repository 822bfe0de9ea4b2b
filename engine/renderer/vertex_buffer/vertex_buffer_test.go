package vertex_buffer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() *model.Geometry {
	return &model.Geometry{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		TexCoords: [][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func newRecording(t *testing.T, opts ...device.DeviceBuilderOption) device.Recorder {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeRecording, opts...)
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	return dev.(device.Recorder)
}

func TestAllocateCreatesEveryStream(t *testing.T) {
	dev := newRecording(t)
	vb := NewVertexBuffer(dev, WithLabel("quad"))
	g := quad()
	require.NoError(t, vb.Allocate(g))

	assert.Equal(t, 4, dev.LiveBuffers())
	assert.Equal(t, 4, vb.VertexCount())
	assert.Equal(t, 6, vb.IndexCount())
	assert.Equal(t, 6, vb.EdgeIndexCount())
	assert.False(t, vb.Shared())
	assert.Nil(t, vb.SharedBuffer())

	size, ok := dev.BufferSize(vb.DynamicBuffer())
	require.True(t, ok)
	assert.Equal(t, uint64(4*model.SkinnedVertexStride), size)
	assert.Equal(t, g.BindPoseStream(), dev.BufferBytes(vb.DynamicBuffer()))
	assert.Equal(t, g.StaticStream(), dev.BufferBytes(vb.StaticBuffer()))
	assert.Equal(t, model.IndexStream(g.Indices), dev.BufferBytes(vb.IndexBuffer()))
	assert.Equal(t, model.IndexStream(g.OutlineIndices()), dev.BufferBytes(vb.EdgeIndexBuffer()))
}

func TestAllocateRejectsEmptyGeometry(t *testing.T) {
	dev := newRecording(t)
	vb := NewVertexBuffer(dev)
	assert.ErrorIs(t, vb.Allocate(&model.Geometry{}), model.ErrEmptyGeometry)
	assert.Zero(t, dev.LiveBuffers())
}

func TestAllocateFailureLeavesNothing(t *testing.T) {
	caps := device.RecordingCapabilities()
	caps.MaxBufferSize = 64
	dev := newRecording(t, device.WithCapabilities(caps))
	vb := NewVertexBuffer(dev)

	err := vb.Allocate(quad())
	assert.ErrorIs(t, err, device.ErrBufferRejected)
	assert.Zero(t, dev.LiveBuffers())
	assert.Zero(t, vb.DynamicBuffer())
	assert.ErrorIs(t, vb.UpdateVertices(make([]byte, 48), common.ByteRange{Size: 48}), ErrNotAllocated)
}

func TestReallocateReleasesPreviousStreams(t *testing.T) {
	dev := newRecording(t)
	vb := NewVertexBuffer(dev)
	require.NoError(t, vb.Allocate(quad()))
	first := vb.DynamicBuffer()
	require.NoError(t, vb.Allocate(quad()))

	assert.Equal(t, 4, dev.LiveBuffers())
	_, ok := dev.BufferSize(first)
	assert.False(t, ok)
}

func TestUpdateVertices(t *testing.T) {
	dev := newRecording(t)
	vb := NewVertexBuffer(dev)
	require.NoError(t, vb.Allocate(quad()))

	v := model.GPUSkinnedVertex{Position: [3]float32{5, 6, 7}}
	r := common.ByteRange{Offset: model.SkinnedVertexStride, Size: model.SkinnedVertexStride}
	require.NoError(t, vb.UpdateVertices(v.Marshal(), r))
	got := model.UnmarshalSkinnedVertex(dev.BufferBytes(vb.DynamicBuffer())[r.Offset:])
	assert.Equal(t, v.Position, got.Position)

	assert.ErrorIs(t, vb.UpdateVertices(v.Marshal(), common.ByteRange{Offset: 4 * model.SkinnedVertexStride, Size: model.SkinnedVertexStride}), device.ErrOutOfRange)
	assert.ErrorIs(t, vb.UpdateVertices(v.Marshal(), common.ByteRange{Size: 4}), device.ErrOutOfRange)
}

func TestReleaseIsIdempotent(t *testing.T) {
	dev := newRecording(t)
	vb := NewVertexBuffer(dev)
	vb.Release()
	require.NoError(t, vb.Allocate(quad()))
	vb.Release()
	vb.Release()
	assert.Zero(t, dev.LiveBuffers())
	assert.Zero(t, vb.VertexCount())
	assert.Zero(t, vb.EdgeIndexBuffer())
}

func TestSharedDynamicStream(t *testing.T) {
	dev := newRecording(t)
	acc, err := accelerator.NewAccelerator(accelerator.BackendTypeSoftware, accelerator.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(acc.Shutdown)
	require.NoError(t, acc.Initialize(dev))

	vb := NewVertexBuffer(dev, WithSharedDynamicStream(acc))
	assert.False(t, vb.Shared(), "nothing is shared before allocation")
	require.NoError(t, vb.Allocate(quad()))
	assert.True(t, vb.Shared())
	shared := vb.SharedBuffer()
	require.NotNil(t, shared)
	assert.Equal(t, shared.Graphics(), vb.DynamicBuffer())

	before := dev.BufferBytes(vb.DynamicBuffer())
	require.NoError(t, vb.UpdateVertices(make([]byte, 48), common.ByteRange{Size: 48}))
	assert.Equal(t, before, dev.BufferBytes(vb.DynamicBuffer()), "shared streams are written by the kernel only")

	compute := shared.Compute()
	vb.Release()
	assert.False(t, vb.Shared())
	_, ok := acc.BufferSize(compute)
	assert.False(t, ok)
	assert.Zero(t, dev.LiveBuffers())
}
