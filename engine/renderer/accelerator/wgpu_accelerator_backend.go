package accelerator

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuKernel struct {
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipeline       *wgpu.ComputePipeline
}

type wgpuAcceleratorBackend struct {
	provider device.WGPUProvider
	device   *wgpu.Device
	queue    *wgpu.Queue

	modules []*wgpu.ShaderModule
	kernels map[string]*wgpuKernel
	buffers map[BufferHandle]*wgpu.Buffer
	owned   map[BufferHandle]bool

	encoder  *wgpu.CommandEncoder
	acquired int
}

var _ acceleratorBackend = &wgpuAcceleratorBackend{}

func newWGPUAcceleratorBackend() *wgpuAcceleratorBackend {
	return &wgpuAcceleratorBackend{
		kernels: make(map[string]*wgpuKernel),
		buffers: make(map[BufferHandle]*wgpu.Buffer),
		owned:   make(map[BufferHandle]bool),
	}
}

func (b *wgpuAcceleratorBackend) bind(dev device.Device) error {
	provider, ok := dev.(device.WGPUProvider)
	if !ok {
		return errors.New("device is not a WebGPU device")
	}
	b.provider = provider
	b.device = provider.WGPUDevice()
	b.queue = provider.WGPUQueue()
	if b.device == nil || b.queue == nil {
		return errors.New("WebGPU device has been released")
	}
	return nil
}

func bindingType(k BindingKind) wgpu.BufferBindingType {
	switch k {
	case BindingUniform:
		return wgpu.BufferBindingTypeUniform
	case BindingStorageRead:
		return wgpu.BufferBindingTypeReadOnlyStorage
	default:
		return wgpu.BufferBindingTypeStorage
	}
}

func (b *wgpuAcceleratorBackend) buildKernels(source string, kernels []*Kernel) error {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Kernel Module",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return err
	}

	built := make(map[string]*wgpuKernel, len(kernels))
	for _, k := range kernels {
		entries := make([]wgpu.BindGroupLayoutEntry, len(k.Bindings))
		for i, bd := range k.Bindings {
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    bd.Binding,
				Visibility: wgpu.ShaderStageCompute,
				Buffer:     wgpu.BufferBindingLayout{Type: bindingType(bd.Kind)},
			}
		}
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   k.EntryPoint + " Layout",
			Entries: entries,
		})
		if err != nil {
			releaseKernels(built)
			module.Release()
			return fmt.Errorf("bind group layout for %q: %w", k.EntryPoint, err)
		}
		pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            k.EntryPoint,
			BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
		})
		if err != nil {
			layout.Release()
			releaseKernels(built)
			module.Release()
			return fmt.Errorf("pipeline layout for %q: %w", k.EntryPoint, err)
		}
		pipeline, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  k.EntryPoint + " Compute Pipeline",
			Layout: pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: k.EntryPoint,
			},
		})
		if err != nil {
			pipelineLayout.Release()
			layout.Release()
			releaseKernels(built)
			module.Release()
			return fmt.Errorf("compute pipeline for %q: %w", k.EntryPoint, err)
		}
		built[k.EntryPoint] = &wgpuKernel{layout: layout, pipelineLayout: pipelineLayout, pipeline: pipeline}
	}

	for name, k := range built {
		if old, ok := b.kernels[name]; ok {
			old.release()
		}
		b.kernels[name] = k
	}
	b.modules = append(b.modules, module)
	return nil
}

func (k *wgpuKernel) release() {
	k.pipeline.Release()
	k.pipelineLayout.Release()
	k.layout.Release()
}

func releaseKernels(ks map[string]*wgpuKernel) {
	for _, k := range ks {
		k.release()
	}
}

func (b *wgpuAcceleratorBackend) registerShared(h BufferHandle, graphics device.BufferHandle) error {
	buf, err := b.provider.WGPUBuffer(graphics)
	if err != nil {
		return err
	}
	if buf.GetUsage()&wgpu.BufferUsageStorage == 0 {
		return errors.New("graphics buffer was not created with storage usage")
	}
	b.buffers[h] = buf
	return nil
}

func (b *wgpuAcceleratorBackend) createBuffer(h BufferHandle, label string, size uint64) error {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  common.AlignUp(size, 16),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	b.buffers[h] = buf
	b.owned[h] = true
	return nil
}

func (b *wgpuAcceleratorBackend) writeBuffer(h BufferHandle, offset uint64, data []byte) error {
	if len(data)%4 != 0 {
		padded := make([]byte, common.AlignUp(uint64(len(data)), 4))
		copy(padded, data)
		data = padded
	}
	return b.queue.WriteBuffer(b.buffers[h], offset, data)
}

func (b *wgpuAcceleratorBackend) releaseBuffer(h BufferHandle) {
	buf, ok := b.buffers[h]
	if !ok {
		return
	}
	if b.owned[h] {
		buf.Destroy()
		buf.Release()
	}
	delete(b.buffers, h)
	delete(b.owned, h)
}

func (b *wgpuAcceleratorBackend) acquire(hs []BufferHandle) error {
	if b.encoder == nil {
		encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Compute Encoder"})
		if err != nil {
			return err
		}
		b.encoder = encoder
	}
	b.acquired += len(hs)
	return nil
}

func (b *wgpuAcceleratorBackend) release(hs []BufferHandle) error {
	b.acquired = max(b.acquired-len(hs), 0)
	if b.acquired > 0 || b.encoder == nil {
		return nil
	}
	return b.submit()
}

func (b *wgpuAcceleratorBackend) submit() error {
	encoder := b.encoder
	b.encoder = nil
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuAcceleratorBackend) dispatch(k *Kernel, bindings []BufferHandle, groups, _ uint32) error {
	built, ok := b.kernels[k.EntryPoint]
	if !ok {
		return fmt.Errorf("%w: %q has no pipeline", ErrUnknownKernel, k.EntryPoint)
	}

	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, h := range bindings {
		entries[i] = wgpu.BindGroupEntry{
			Binding: k.Bindings[i].Binding,
			Buffer:  b.buffers[h],
			Size:    wgpu.WholeSize,
		}
	}
	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.EntryPoint + " Bind Group",
		Layout:  built.layout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	defer group.Release()

	oneShot := b.encoder == nil
	if oneShot {
		if err := b.acquire(nil); err != nil {
			return err
		}
	}

	pass := b.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: k.EntryPoint})
	pass.SetPipeline(built.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.DispatchWorkgroups(groups, 1, 1)
	err = pass.End()
	pass.Release()
	if err != nil {
		return err
	}

	if oneShot {
		return b.submit()
	}
	return nil
}

func (b *wgpuAcceleratorBackend) shutdown() {
	if b.encoder != nil {
		b.encoder.Release()
		b.encoder = nil
	}
	b.acquired = 0
	releaseKernels(b.kernels)
	clear(b.kernels)
	for _, m := range b.modules {
		m.Release()
	}
	b.modules = nil
	for h := range b.buffers {
		b.releaseBuffer(h)
	}
	b.provider, b.device, b.queue = nil, nil, nil
}
