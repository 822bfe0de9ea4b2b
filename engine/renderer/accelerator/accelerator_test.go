package accelerator

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doubleKernel = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@group(0) @binding(1) var<uniform> params: vec4<u32>;

@compute @workgroup_size(64)
fn double_values(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.x) {
        return;
    }
    data[id.x] = data[id.x] * 2.0;
}
`

func doubleValues(id uint32, b [][]byte) {
	if id >= binary.LittleEndian.Uint32(b[1]) {
		return
	}
	off := id * 4
	f := math.Float32frombits(binary.LittleEndian.Uint32(b[0][off:]))
	binary.LittleEndian.PutUint32(b[0][off:], math.Float32bits(f*2))
}

func newRecording(t *testing.T, opts ...device.DeviceBuilderOption) device.Recorder {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeRecording, opts...)
	require.NoError(t, err)
	for _, tech := range device.Techniques {
		require.NoError(t, dev.RegisterTechnique(tech, tech.String()))
	}
	return dev.(device.Recorder)
}

func newSoftware(t *testing.T, opts ...AcceleratorBuilderOption) Accelerator {
	t.Helper()
	acc, err := NewAccelerator(BackendTypeSoftware, append([]AcceleratorBuilderOption{
		WithWorkers(2),
		WithHostKernel("double_values", doubleValues),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(acc.Shutdown)
	return acc
}

func ready(t *testing.T) (Accelerator, device.Recorder) {
	t.Helper()
	dev := newRecording(t)
	acc := newSoftware(t)
	require.NoError(t, acc.Initialize(dev))
	require.NoError(t, acc.CompileKernels(doubleKernel, "double_values"))
	require.True(t, acc.IsAvailable())
	return acc, dev
}

func floats(vs ...float32) []byte {
	buf := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func TestShutdownNeverInitialized(t *testing.T) {
	acc, err := NewAccelerator(BackendTypeSoftware)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		acc.Shutdown()
		acc.Shutdown()
	})
	assert.False(t, acc.IsAvailable())
}

func TestInitializeFailsSoftlyWithoutCompute(t *testing.T) {
	caps := device.RecordingCapabilities()
	caps.Compute = false
	dev := newRecording(t, device.WithCapabilities(caps))
	acc := newSoftware(t)

	err := acc.Initialize(dev)
	assert.ErrorIs(t, err, ErrAcceleratorUnavailable)
	assert.False(t, acc.IsAvailable())
	assert.ErrorIs(t, acc.CompileKernels(doubleKernel, "double_values"), ErrAcceleratorUnavailable)
}

func TestInvalidKernelLeavesAcceleratorUnavailable(t *testing.T) {
	dev := newRecording(t)
	acc := newSoftware(t)
	require.NoError(t, acc.Initialize(dev))

	err := acc.CompileKernels("fn broken( {", "double_values")
	assert.ErrorIs(t, err, ErrKernelCompile)
	assert.False(t, acc.IsAvailable())
}

func TestCompileRequiresEntryPointAndHostKernel(t *testing.T) {
	dev := newRecording(t)
	acc := newSoftware(t)
	require.NoError(t, acc.Initialize(dev))
	assert.ErrorIs(t, acc.CompileKernels(doubleKernel, "missing"), ErrKernelCompile)

	bare, err := NewAccelerator(BackendTypeSoftware)
	require.NoError(t, err)
	defer bare.Shutdown()
	require.NoError(t, bare.Initialize(dev))
	assert.ErrorIs(t, bare.CompileKernels(doubleKernel, "double_values"), ErrKernelCompile)
	assert.False(t, bare.IsAvailable())
}

func TestKernelReflection(t *testing.T) {
	acc, _ := ready(t)
	k, ok := acc.Kernel("double_values")
	require.True(t, ok)
	assert.Equal(t, [3]uint32{64, 1, 1}, k.Workgroup)
	assert.Equal(t, uint32(64), k.WorkgroupSize())
	assert.Equal(t, []Binding{
		{Name: "data", Binding: 0, Kind: BindingStorageReadWrite},
		{Name: "params", Binding: 1, Kind: BindingUniform},
	}, k.Bindings)
}

func TestDispatchWritesSharedBuffer(t *testing.T) {
	acc, dev := ready(t)
	const n = 130
	shared, err := NewSharedBuffer(acc, dev, "values", n*4)
	require.NoError(t, err)
	defer shared.Release()

	in := make([]float32, n)
	for i := range in {
		in[i] = float32(i)
	}
	require.NoError(t, dev.WriteBuffer(shared.Graphics(), 0, floats(in...)))
	params, err := acc.CreateBuffer("params", 16)
	require.NoError(t, err)
	require.NoError(t, acc.WriteBuffer(params, 0, floats(math.Float32frombits(n), 0, 0, 0)))

	err = acc.Run([]BufferHandle{shared.Compute()}, func() error {
		return acc.Dispatch("double_values", []BufferHandle{shared.Compute(), params}, n)
	})
	require.NoError(t, err)

	out := dev.BufferBytes(shared.Graphics())
	for i := 0; i < n; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
		require.Equal(t, float32(2*i), got, "element %d", i)
	}
	assert.Equal(t, 1, dev.Flushes())
}

func TestHandshakeOrdering(t *testing.T) {
	acc, dev := ready(t)
	shared, err := NewSharedBuffer(acc, dev, "values", 256)
	require.NoError(t, err)
	params, err := acc.CreateBuffer("params", 16)
	require.NoError(t, err)
	h := shared.Compute()

	assert.ErrorIs(t, acc.ReleaseShared(h), ErrNotAcquired)
	assert.ErrorIs(t, acc.Dispatch("double_values", []BufferHandle{h, params}, 4), ErrNotAcquired)

	require.NoError(t, acc.Acquire(h))
	assert.ErrorIs(t, acc.Acquire(h), ErrAlreadyAcquired)

	idx, err := dev.CreateBuffer(device.BufferDescriptor{Label: "idx", Size: 12})
	require.NoError(t, err)
	require.NoError(t, dev.BeginFrame())
	draw := device.DrawCall{Dynamic: shared.Graphics(), Index: idx, IndexCount: 3}
	assert.ErrorIs(t, dev.Draw(draw), device.ErrBufferAcquired)

	require.NoError(t, acc.ReleaseShared(h))
	assert.NoError(t, dev.Draw(draw))
	require.NoError(t, dev.EndFrame())
}

func TestRunReleasesWhenWorkFails(t *testing.T) {
	acc, dev := ready(t)
	shared, err := NewSharedBuffer(acc, dev, "values", 256)
	require.NoError(t, err)

	err = acc.Run([]BufferHandle{shared.Compute()}, func() error {
		return acc.Dispatch("double_values", []BufferHandle{shared.Compute()}, 4)
	})
	assert.Error(t, err)
	assert.NoError(t, acc.Acquire(shared.Compute()), "release must have run")
	assert.NoError(t, acc.ReleaseShared(shared.Compute()))
	assert.ErrorIs(t, acc.Dispatch("nope", nil, 1), ErrUnknownKernel)
}

func TestSharedBufferReleaseOrder(t *testing.T) {
	acc, dev := ready(t)
	before := dev.LiveBuffers()
	shared, err := NewSharedBuffer(acc, dev, "values", 64)
	require.NoError(t, err)
	assert.Equal(t, before+1, dev.LiveBuffers())

	compute := shared.Compute()
	shared.Release()
	shared.Release()
	assert.Equal(t, before, dev.LiveBuffers())
	_, ok := acc.BufferSize(compute)
	assert.False(t, ok)
}

func TestSharedBufferRejectedLeavesNothing(t *testing.T) {
	caps := device.RecordingCapabilities()
	caps.MaxStorageBufferBindingSize = 32
	dev := newRecording(t, device.WithCapabilities(caps))
	acc := newSoftware(t)
	require.NoError(t, acc.Initialize(dev))

	_, err := NewSharedBuffer(acc, dev, "too big", 64)
	assert.Error(t, err)
	assert.Zero(t, dev.LiveBuffers())
}

func TestShutdownReleasesEverything(t *testing.T) {
	acc, dev := ready(t)
	shared, err := NewSharedBuffer(acc, dev, "values", 64)
	require.NoError(t, err)
	require.NoError(t, acc.Acquire(shared.Compute()))

	acc.Shutdown()
	assert.False(t, acc.IsAvailable())
	_, ok := acc.BufferSize(shared.Compute())
	assert.False(t, ok)

	require.NoError(t, dev.BeginFrame())
	idx, err := dev.CreateBuffer(device.BufferDescriptor{Label: "idx", Size: 12})
	require.NoError(t, err)
	assert.NoError(t, dev.Draw(device.DrawCall{Dynamic: shared.Graphics(), Index: idx, IndexCount: 3}),
		"shutdown hands acquired buffers back to graphics")
}
