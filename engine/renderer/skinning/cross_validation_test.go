package skinning_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/skinning"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/vertex_buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecording(t *testing.T) device.Recorder {
	t.Helper()
	dev, err := device.NewDevice(device.BackendTypeRecording)
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	return dev.(device.Recorder)
}

func newAccelerator(t *testing.T, dev device.Device, source string) (accelerator.Accelerator, error) {
	t.Helper()
	acc, err := accelerator.NewAccelerator(accelerator.BackendTypeSoftware,
		accelerator.WithWorkers(3),
		accelerator.WithHostKernel(skinning.KernelEntryPoint, skinning.HostKernel))
	require.NoError(t, err)
	t.Cleanup(acc.Shutdown)
	require.NoError(t, acc.Initialize(dev))
	return acc, acc.CompileKernels(source, skinning.KernelEntryPoint)
}

func column(segments, bones int) *model.Geometry {
	m := model.NewBendingColumn("column", segments, 12, bones, 2, 0.3)
	return m.Geometry()
}

func floatsOf(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24)
	}
	return out
}

func TestAcceleratedMatchesCPU(t *testing.T) {
	kernel, err := shader.Load(shader.NameSkinVertices, shader.ShaderTypeCompute)
	require.NoError(t, err)

	dev := newRecording(t)
	acc, err := newAccelerator(t, dev, kernel.Source())
	require.NoError(t, err)
	require.True(t, acc.IsAvailable())

	const boneCount = 4
	g := column(16, boneCount)
	light := [3]float32{0.2, -1, -0.4}

	shared := vertex_buffer.NewVertexBuffer(dev, vertex_buffer.WithLabel("gpu"), vertex_buffer.WithSharedDynamicStream(acc))
	require.NoError(t, shared.Allocate(g))
	defer shared.Release()
	require.NotNil(t, shared.SharedBuffer())

	gpu := skinning.NewSkinner(g, shared,
		skinning.WithAccelerator(acc),
		skinning.WithBoneCount(boneCount),
		skinning.WithEdgeSize(0.5),
		skinning.WithLightDirection(light))
	defer gpu.Release()
	require.Equal(t, skinning.ModeAccelerated, gpu.Mode())
	assert.Nil(t, gpu.Staging())

	cpu := skinning.NewSkinner(g, nil,
		skinning.WithBoneCount(boneCount),
		skinning.WithEdgeSize(0.5),
		skinning.WithLightDirection(light))
	defer cpu.Release()

	rng := rand.New(rand.NewSource(17))
	for frame := 0; frame < 5; frame++ {
		bones := model.SwayPose(boneCount, 2, rng.Float32()-0.5)
		common.TRS(bones[boneCount-1][:], [3]float32{rng.Float32(), 0, rng.Float32()}, [3]float32{0, rng.Float32(), 0})

		require.NoError(t, gpu.Update(bones))
		require.NoError(t, cpu.Update(bones))

		want := floatsOf(cpu.Staging())
		got := floatsOf(dev.BufferBytes(shared.SharedBuffer().Graphics()))
		require.Len(t, got, len(want))
		for i := range want {
			require.InDelta(t, want[i], got[i], 1e-5, "frame %d float %d", frame, i)
		}
	}
}

func TestInvalidKernelFallsBackToCPU(t *testing.T) {
	dev := newRecording(t)
	acc, err := newAccelerator(t, dev, "@compute @workgroup_size(64) fn skin_vertices( {")
	require.ErrorIs(t, err, accelerator.ErrKernelCompile)
	assert.False(t, acc.IsAvailable())

	g := column(4, 2)
	vb := vertex_buffer.NewVertexBuffer(dev)
	require.NoError(t, vb.Allocate(g))
	defer vb.Release()

	var s skinning.Skinner
	assert.NotPanics(t, func() {
		s = skinning.NewSkinner(g, vb, skinning.WithAccelerator(acc), skinning.WithBoneCount(2))
	})
	defer s.Release()
	assert.Equal(t, skinning.ModeCPU, s.Mode())
	require.NoError(t, s.Update(model.IdentityBones(2)))
	require.NoError(t, vb.UpdateVertices(s.Staging(), common.ByteRange{Size: uint64(len(s.Staging()))}))
	assert.Equal(t, s.Staging(), dev.BufferBytes(vb.DynamicBuffer()))
}

func TestWGSLKernelMatchesCPU(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a WebGPU adapter")
	}
	dev, err := device.NewDevice(device.BackendTypeWGPU, device.WithSize(16, 16))
	if err != nil {
		t.Skipf("no WebGPU adapter: %v", err)
	}
	t.Cleanup(dev.Release)
	reader, ok := dev.(device.BufferReader)
	require.True(t, ok)

	kernel, err := shader.Load(shader.NameSkinVertices, shader.ShaderTypeCompute)
	require.NoError(t, err)
	acc, err := accelerator.NewAccelerator(accelerator.BackendTypeWGPU)
	require.NoError(t, err)
	t.Cleanup(acc.Shutdown)
	if err := acc.Initialize(dev); err != nil {
		t.Skipf("no compute support: %v", err)
	}
	require.NoError(t, acc.CompileKernels(kernel.Source(), skinning.KernelEntryPoint))

	const boneCount = 3
	g := column(12, boneCount)
	light := [3]float32{-0.3, -1, 0.2}

	vb := vertex_buffer.NewVertexBuffer(dev, vertex_buffer.WithSharedDynamicStream(acc))
	require.NoError(t, vb.Allocate(g))
	defer vb.Release()

	gpu := skinning.NewSkinner(g, vb,
		skinning.WithAccelerator(acc),
		skinning.WithBoneCount(boneCount),
		skinning.WithEdgeSize(0.4),
		skinning.WithLightDirection(light))
	defer gpu.Release()
	require.Equal(t, skinning.ModeAccelerated, gpu.Mode())

	cpu := skinning.NewSkinner(g, nil,
		skinning.WithBoneCount(boneCount),
		skinning.WithEdgeSize(0.4),
		skinning.WithLightDirection(light))
	defer cpu.Release()

	for _, angle := range []float32{0, 0.3, -0.45} {
		bones := model.SwayPose(boneCount, 2, angle)
		common.TRS(bones[1][:], [3]float32{0.1, 0, -0.2}, [3]float32{0, angle, 0})

		require.NoError(t, gpu.Update(bones))
		require.NoError(t, cpu.Update(bones))

		want := floatsOf(cpu.Staging())
		raw, err := reader.ReadBuffer(vb.DynamicBuffer())
		require.NoError(t, err)
		got := floatsOf(raw)
		require.GreaterOrEqual(t, len(got), len(want))
		for i := range want {
			require.InDelta(t, want[i], got[i], 1e-4, "angle %v float %d", angle, i)
		}
	}
}
