package device

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUProvider is implemented by the WebGPU device. The accelerator uses it to run compute work on
// the same device and buffers the renderer draws from.
type WGPUProvider interface {
	// WGPUDevice returns the underlying device.
	WGPUDevice() *wgpu.Device

	// WGPUQueue returns the device queue.
	WGPUQueue() *wgpu.Queue

	// WGPUBuffer resolves a buffer handle to the underlying buffer.
	WGPUBuffer(h BufferHandle) (*wgpu.Buffer, error)
}

// Capturer is implemented by devices that render offscreen and can read the last frame back.
type Capturer interface {
	// Capture copies the last presented frame into host memory.
	//
	// Returns:
	//   - *image.RGBA: the frame
	//   - error: error if the device has no offscreen target or the readback fails
	Capture() (*image.RGBA, error)
}

// BufferReader is implemented by devices that can copy a buffer back into host memory.
type BufferReader interface {
	// ReadBuffer waits for queued GPU work and copies the buffer contents to the host.
	//
	// Parameters:
	//   - h: the buffer to read
	//
	// Returns:
	//   - []byte: a copy of the buffer contents
	//   - error: error if the handle is unknown or the readback fails
	ReadBuffer(h BufferHandle) ([]byte, error)
}

const (
	vertexEntryPoint   = "vs_main"
	fragmentEntryPoint = "fs_main"
	offscreenFormat    = wgpu.TextureFormatRGBA8UnormSrgb
	depthFormat        = wgpu.TextureFormatDepth24Plus
)

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgpuTexture) release() {
	t.view.Release()
	t.texture.Destroy()
	t.texture.Release()
}

type textureKey struct {
	diffuse, sphere, toon TextureHandle
}

type wgpuDeviceBackend struct {
	mu   *sync.Mutex
	caps Capabilities
	log  *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	colorFormat   wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	sampleCount   MSAASampleCount
	clearColor    wgpu.Color
	width, height int

	offscreen     *wgpu.Texture
	offscreenView *wgpu.TextureView
	msaaTexture   *wgpu.Texture
	msaaView      *wgpu.TextureView
	depthTexture  *wgpu.Texture
	depthView     *wgpu.TextureView
	passDesc      *wgpu.RenderPassDescriptor

	nextBuffer  BufferHandle
	buffers     map[BufferHandle]*wgpu.Buffer
	nextTexture TextureHandle
	textures    map[TextureHandle]*wgpuTexture
	white       *wgpuTexture

	sampler          *wgpu.Sampler
	toonSampler      *wgpu.Sampler
	uniformLayout    *wgpu.BindGroupLayout
	textureLayout    *wgpu.BindGroupLayout
	uniformBuffer    *wgpu.Buffer
	uniformBindGroup *wgpu.BindGroup
	uniformSlots     int
	uniformCursor    int
	uniformStaging   []byte

	modules       map[Technique]*wgpu.ShaderModule
	layouts       map[Technique]*wgpu.PipelineLayout
	pipelines     map[RenderState]*wgpu.RenderPipeline
	textureGroups map[textureKey]*wgpu.BindGroup

	state         RenderState
	frameEncoder  *wgpu.CommandEncoder
	framePass     *wgpu.RenderPassEncoder
	frameSurface  *wgpu.Texture
	frameView     *wgpu.TextureView
	boundPipeline *wgpu.RenderPipeline
	released      bool
}

var _ Device = &wgpuDeviceBackend{}
var _ WGPUProvider = &wgpuDeviceBackend{}
var _ Capturer = &wgpuDeviceBackend{}
var _ BufferReader = &wgpuDeviceBackend{}

func newWGPUDeviceBackend(o *deviceOptions) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDeviceBackend{
		mu:            &sync.Mutex{},
		log:           logger.For("device"),
		instance:      wgpu.CreateInstance(nil),
		sampleCount:   o.sampleCount,
		clearColor:    wgpu.Color{R: o.clearColor[0], G: o.clearColor[1], B: o.clearColor[2], A: o.clearColor[3]},
		width:         o.width,
		height:        o.height,
		buffers:       make(map[BufferHandle]*wgpu.Buffer),
		textures:      make(map[TextureHandle]*wgpuTexture),
		uniformSlots:  o.uniformSlots,
		modules:       make(map[Technique]*wgpu.ShaderModule),
		layouts:       make(map[Technique]*wgpu.PipelineLayout),
		pipelines:     make(map[RenderState]*wgpu.RenderPipeline),
		textureGroups: make(map[textureKey]*wgpu.BindGroup),
	}
	switch o.presentMode {
	case PresentModeVSync:
		d.presentMode = wgpu.PresentModeFifo
	default:
		d.presentMode = wgpu.PresentModeImmediate
	}

	if o.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(o.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: o.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("device: request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("device: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.caps = capabilitiesFromLimits(a.GetInfo(), dev.GetLimits().Limits)

	if err := d.initShared(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.configureTargets(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

// initShared creates the resources every technique shares: samplers, bind group layouts, the
// uniform ring and the white fallback texture.
func (d *wgpuDeviceBackend) initShared() error {
	var err error
	d.sampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Material Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("device: material sampler: %w", err)
	}
	d.toonSampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Toon Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("device: toon sampler: %w", err)
	}

	d.uniformLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Draw Uniform Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   DrawUniformsSize,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("device: uniform layout: %w", err)
	}

	textureEntry := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	samplerEntry := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		}
	}
	d.textureLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Material Texture Layout",
		Entries: []wgpu.BindGroupLayoutEntry{textureEntry(0), textureEntry(1), textureEntry(2), samplerEntry(3), samplerEntry(4)},
	})
	if err != nil {
		return fmt.Errorf("device: texture layout: %w", err)
	}

	d.uniformBuffer, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Draw Uniform Ring",
		Size:  uint64(d.uniformSlots) * DrawUniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("device: uniform ring: %w", err)
	}
	d.uniformStaging = make([]byte, DrawUniformsSize)
	d.uniformBindGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Draw Uniform Bind Group",
		Layout: d.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  d.uniformBuffer,
			Offset:  0,
			Size:    DrawUniformsSize,
		}},
	})
	if err != nil {
		return fmt.Errorf("device: uniform bind group: %w", err)
	}

	white := common.TextureStagingData{Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1}
	d.white, err = d.uploadTexture("White", white)
	return err
}

// configureTargets (re)creates the color, MSAA and depth targets for the current size and caches
// the frame's render pass descriptor.
func (d *wgpuDeviceBackend) configureTargets() error {
	d.releaseTargets()

	w, h := uint32(d.width), uint32(d.height)
	if d.surface != nil {
		caps := d.surface.GetCapabilities(d.adapter)
		if len(caps.Formats) == 0 {
			return errors.New("device: surface reports no formats")
		}
		d.colorFormat = caps.Formats[0]
		d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      d.colorFormat,
			Width:       w,
			Height:      h,
			PresentMode: d.presentMode,
			AlphaMode:   caps.AlphaModes[0],
		})
	} else {
		d.colorFormat = offscreenFormat
		tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "Offscreen Target",
			Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        d.colorFormat,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		})
		if err != nil {
			return fmt.Errorf("device: offscreen target: %w", err)
		}
		d.offscreen = tex
		if d.offscreenView, err = tex.CreateView(nil); err != nil {
			return fmt.Errorf("device: offscreen view: %w", err)
		}
	}

	count := uint32(d.sampleCount)
	msaaEnabled := count > 1
	if msaaEnabled {
		tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        d.colorFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("device: msaa target: %w", err)
		}
		d.msaaTexture = tex
		if d.msaaView, err = tex.CreateView(nil); err != nil {
			return fmt.Errorf("device: msaa view: %w", err)
		}
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("device: depth target: %w", err)
	}
	d.depthTexture = tex
	if d.depthView, err = tex.CreateView(nil); err != nil {
		return fmt.Errorf("device: depth view: %w", err)
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	d.passDesc = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       d.msaaView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    storeOp,
			ClearValue: d.clearColor,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

func (d *wgpuDeviceBackend) releaseTargets() {
	for _, v := range []*wgpu.TextureView{d.offscreenView, d.msaaView, d.depthView} {
		if v != nil {
			v.Release()
		}
	}
	for _, t := range []*wgpu.Texture{d.offscreen, d.msaaTexture, d.depthTexture} {
		if t != nil {
			t.Destroy()
			t.Release()
		}
	}
	d.offscreen, d.offscreenView = nil, nil
	d.msaaTexture, d.msaaView = nil, nil
	d.depthTexture, d.depthView = nil, nil
}

func (d *wgpuDeviceBackend) Capabilities() Capabilities {
	return d.caps
}

func (d *wgpuDeviceBackend) RegisterTechnique(t Technique, source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          t.String(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return fmt.Errorf("device: compile %s shader: %w", t, err)
	}

	groups := []*wgpu.BindGroupLayout{d.uniformLayout}
	if t == TechniqueModel {
		groups = append(groups, d.textureLayout)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            t.String(),
		BindGroupLayouts: groups,
	})
	if err != nil {
		module.Release()
		return fmt.Errorf("device: %s pipeline layout: %w", t, err)
	}

	if old, ok := d.modules[t]; ok {
		old.Release()
		d.layouts[t].Release()
		for s, p := range d.pipelines {
			if s.Technique == t {
				p.Release()
				delete(d.pipelines, s)
			}
		}
	}
	d.modules[t] = module
	d.layouts[t] = layout
	return nil
}

// vertexLayouts returns the vertex streams each technique reads. Every technique reads the
// dynamic stream at slot 0; the model technique also reads texture coordinates at slot 1.
func vertexLayouts(t Technique) []wgpu.VertexBufferLayout {
	const dynamicStride = 48
	switch t {
	case TechniqueModel:
		return []wgpu.VertexBufferLayout{
			{
				ArrayStride: dynamicStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 32, ShaderLocation: 3},
				},
			},
			{
				ArrayStride: 8,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 4},
				},
			},
		}
	case TechniqueEdge:
		return []wgpu.VertexBufferLayout{{
			ArrayStride: dynamicStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 32, ShaderLocation: 0},
			},
		}}
	default:
		return []wgpu.VertexBufferLayout{{
			ArrayStride: dynamicStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			},
		}}
	}
}

func cullMode(c CullMode) wgpu.CullMode {
	switch c {
	case CullNone:
		return wgpu.CullModeNone
	case CullFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeBack
	}
}

// pipelineFor returns the render pipeline for a state, creating it on first use.
func (d *wgpuDeviceBackend) pipelineFor(s RenderState) (*wgpu.RenderPipeline, error) {
	if p, ok := d.pipelines[s]; ok {
		return p, nil
	}
	module, ok := d.modules[s.Technique]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTechnique, s.Technique)
	}

	target := wgpu.ColorTargetState{Format: d.colorFormat, WriteMask: wgpu.ColorWriteMaskAll}
	if s.NoColorWrite {
		target.WriteMask = wgpu.ColorWriteMaskNone
	}
	if s.Blend {
		blend := wgpu.BlendStateAlphaBlending
		target.Blend = &blend
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s cull=%d blend=%t Render Pipeline", s.Technique, s.Cull, s.Blend),
		Layout: d.layouts[s.Technique],
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: vertexEntryPoint,
			Buffers:    vertexLayouts(s.Technique),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fragmentEntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(s.Cull),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(d.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: !s.NoDepthWrite,
			DepthCompare:      wgpu.CompareFunctionLessEqual,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("device: create %s pipeline: %w", s.Technique, err)
	}
	d.pipelines[s] = created
	return created, nil
}

func bufferUsage(u BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	for flag, usage := range map[BufferUsage]wgpu.BufferUsage{
		BufferUsageVertex:  wgpu.BufferUsageVertex,
		BufferUsageIndex:   wgpu.BufferUsageIndex,
		BufferUsageUniform: wgpu.BufferUsageUniform,
		BufferUsageStorage: wgpu.BufferUsageStorage,
		BufferUsageCopyDst: wgpu.BufferUsageCopyDst,
		BufferUsageCopySrc: wgpu.BufferUsageCopySrc,
	} {
		if u&flag != 0 {
			out |= usage
		}
	}
	return out
}

func (d *wgpuDeviceBackend) CreateBuffer(desc BufferDescriptor) (BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return 0, ErrReleased
	}
	if desc.Size == 0 || desc.Size > d.caps.MaxBufferSize {
		return 0, fmt.Errorf("%w: %q size %d (max %d)", ErrBufferRejected, desc.Label, desc.Size, d.caps.MaxBufferSize)
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  common.AlignUp(desc.Size, 4),
		Usage: bufferUsage(desc.Usage | BufferUsageCopyDst | BufferUsageCopySrc),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrBufferRejected, desc.Label, err)
	}
	d.nextBuffer++
	d.buffers[d.nextBuffer] = buf
	return d.nextBuffer, nil
}

func (d *wgpuDeviceBackend) WriteBuffer(h BufferHandle, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	if offset+uint64(len(data)) > buf.GetSize() {
		return fmt.Errorf("%w: [%d, %d) of buffer %d (%d bytes)", ErrOutOfRange, offset, offset+uint64(len(data)), h, buf.GetSize())
	}
	if len(data)%4 != 0 {
		padded := make([]byte, common.AlignUp(uint64(len(data)), 4))
		copy(padded, data)
		data = padded
	}
	return d.queue.WriteBuffer(buf, offset, data)
}

func (d *wgpuDeviceBackend) BufferSize(h BufferHandle) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return 0, false
	}
	return buf.GetSize(), true
}

func (d *wgpuDeviceBackend) ReleaseBuffer(h BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return
	}
	delete(d.buffers, h)
	buf.Destroy()
	buf.Release()
}

func (d *wgpuDeviceBackend) uploadTexture(label string, data common.TextureStagingData) (*wgpuTexture, error) {
	size := wgpu.Extent3D{Width: data.Width, Height: data.Height, DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label + " Texture",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrTextureRejected, label, err)
	}
	err = d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex, Aspect: wgpu.TextureAspectAll},
		data.Pixels,
		&wgpu.TextureDataLayout{BytesPerRow: data.Width * 4, RowsPerImage: data.Height},
		&size,
	)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: %q: %w", ErrTextureRejected, label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: %q: %w", ErrTextureRejected, label, err)
	}
	return &wgpuTexture{texture: tex, view: view}, nil
}

func (d *wgpuDeviceBackend) CreateTexture(label string, data common.TextureStagingData) (TextureHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return 0, ErrReleased
	}
	if !data.Valid() {
		return 0, fmt.Errorf("%w: %q %dx%d with %d bytes", ErrTextureRejected, label, data.Width, data.Height, len(data.Pixels))
	}
	tex, err := d.uploadTexture(label, data)
	if err != nil {
		return 0, err
	}
	d.nextTexture++
	d.textures[d.nextTexture] = tex
	return d.nextTexture, nil
}

func (d *wgpuDeviceBackend) ReleaseTexture(h TextureHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[h]
	if !ok {
		return
	}
	delete(d.textures, h)
	for k, bg := range d.textureGroups {
		if k.diffuse == h || k.sphere == h || k.toon == h {
			bg.Release()
			delete(d.textureGroups, k)
		}
	}
	tex.release()
}

func (d *wgpuDeviceBackend) viewFor(h TextureHandle) (*wgpu.TextureView, error) {
	if h == 0 {
		return d.white.view, nil
	}
	tex, ok := d.textures[h]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", ErrInvalidHandle, h)
	}
	return tex.view, nil
}

// textureGroup returns the material bind group for a texture triple, creating it on first use.
func (d *wgpuDeviceBackend) textureGroup(t TextureBindings) (*wgpu.BindGroup, error) {
	key := textureKey{t.Diffuse, t.Sphere, t.Toon}
	if bg, ok := d.textureGroups[key]; ok {
		return bg, nil
	}
	entries := make([]wgpu.BindGroupEntry, 0, 5)
	for i, h := range []TextureHandle{t.Diffuse, t.Sphere, t.Toon} {
		view, err := d.viewFor(h)
		if err != nil {
			return nil, err
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: view})
	}
	entries = append(entries,
		wgpu.BindGroupEntry{Binding: 3, Sampler: d.sampler},
		wgpu.BindGroupEntry{Binding: 4, Sampler: d.toonSampler},
	)
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Material Texture Bind Group",
		Layout:  d.textureLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("device: texture bind group: %w", err)
	}
	d.textureGroups[key] = bg
	return bg, nil
}

func (d *wgpuDeviceBackend) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return ErrReleased
	}
	if d.frameEncoder != nil {
		return errors.New("device: previous frame not ended")
	}

	view := d.offscreenView
	if d.surface != nil {
		surfaceTexture, err := d.surface.GetCurrentTexture()
		if err != nil {
			return fmt.Errorf("device: acquire surface texture: %w", err)
		}
		view, err = surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return fmt.Errorf("device: surface view: %w", err)
		}
		d.frameSurface = surfaceTexture
		d.frameView = view
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		d.releaseFrameSurface()
		return fmt.Errorf("device: command encoder: %w", err)
	}

	if d.sampleCount > 1 {
		d.passDesc.ColorAttachments[0].ResolveTarget = view
	} else {
		d.passDesc.ColorAttachments[0].View = view
	}
	d.frameEncoder = encoder
	d.framePass = encoder.BeginRenderPass(d.passDesc)
	d.boundPipeline = nil
	d.uniformCursor = 0
	return nil
}

func (d *wgpuDeviceBackend) ApplyState(s RenderState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

func (d *wgpuDeviceBackend) State() RenderState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *wgpuDeviceBackend) Draw(call DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.framePass == nil {
		return ErrNoFrame
	}
	if d.uniformCursor >= d.uniformSlots {
		return fmt.Errorf("device: draw %q exceeds %d uniform slots per frame", call.Label, d.uniformSlots)
	}
	pipeline, err := d.pipelineFor(d.state)
	if err != nil {
		return err
	}
	dynamic, ok := d.buffers[call.Dynamic]
	if !ok {
		return fmt.Errorf("%w: draw %q reads buffer %d", ErrInvalidHandle, call.Label, call.Dynamic)
	}
	index, ok := d.buffers[call.Index]
	if !ok {
		return fmt.Errorf("%w: draw %q reads buffer %d", ErrInvalidHandle, call.Label, call.Index)
	}
	if end := uint64(call.FirstIndex+call.IndexCount) * 4; end > index.GetSize() {
		return fmt.Errorf("%w: draw %q index range ends at byte %d", ErrOutOfRange, call.Label, end)
	}

	var textures *wgpu.BindGroup
	var static *wgpu.Buffer
	if d.state.Technique == TechniqueModel {
		if static, ok = d.buffers[call.Static]; !ok {
			return fmt.Errorf("%w: draw %q reads buffer %d", ErrInvalidHandle, call.Label, call.Static)
		}
		if textures, err = d.textureGroup(call.Textures); err != nil {
			return err
		}
	}

	offset := uint32(d.uniformCursor * DrawUniformsSize)
	call.Uniforms.MarshalInto(d.uniformStaging)
	if err := d.queue.WriteBuffer(d.uniformBuffer, uint64(offset), d.uniformStaging); err != nil {
		return fmt.Errorf("device: draw %q uniforms: %w", call.Label, err)
	}
	d.uniformCursor++

	if pipeline != d.boundPipeline {
		d.framePass.SetPipeline(pipeline)
		d.boundPipeline = pipeline
	}
	d.framePass.SetBindGroup(0, d.uniformBindGroup, []uint32{offset})
	d.framePass.SetVertexBuffer(0, dynamic, 0, wgpu.WholeSize)
	if textures != nil {
		d.framePass.SetBindGroup(1, textures, nil)
		d.framePass.SetVertexBuffer(1, static, 0, wgpu.WholeSize)
	}
	d.framePass.SetIndexBuffer(index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	d.framePass.DrawIndexed(call.IndexCount, 1, call.FirstIndex, 0, 0)
	return nil
}

func (d *wgpuDeviceBackend) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return ErrReleased
	}
	d.device.Poll(false, nil)
	return nil
}

func (d *wgpuDeviceBackend) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameEncoder == nil {
		return ErrNoFrame
	}
	defer func() {
		d.frameEncoder.Release()
		d.frameEncoder = nil
		d.framePass = nil
		d.releaseFrameSurface()
	}()

	if err := d.framePass.End(); err != nil {
		return fmt.Errorf("device: end pass: %w", err)
	}
	d.framePass.Release()
	commandBuffer, err := d.frameEncoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("device: finish frame: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	if d.surface != nil {
		d.surface.Present()
	}
	return nil
}

func (d *wgpuDeviceBackend) releaseFrameSurface() {
	if d.frameView != nil {
		d.frameView.Release()
		d.frameView = nil
	}
	if d.frameSurface != nil {
		d.frameSurface.Release()
		d.frameSurface = nil
	}
}

func (d *wgpuDeviceBackend) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if width <= 0 || height <= 0 || (width == d.width && height == d.height) || d.device == nil {
		return
	}
	d.width, d.height = width, height
	if err := d.configureTargets(); err != nil {
		d.log.Warn("resize failed", "width", width, "height", height, "err", err)
	}
}

func (d *wgpuDeviceBackend) Capture() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.offscreen == nil {
		return nil, errors.New("device: capture needs an offscreen target")
	}
	w, h := uint32(d.width), uint32(d.height)
	bytesPerRow := uint32(common.AlignUp(uint64(w)*4, 256))
	size := uint64(bytesPerRow) * uint64(h)

	readback, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Capture Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("device: capture buffer: %w", err)
	}
	defer readback.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("device: capture encoder: %w", err)
	}
	defer encoder.Release()
	err = encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: d.offscreen, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{Buffer: readback, Layout: wgpu.TextureDataLayout{BytesPerRow: bytesPerRow, RowsPerImage: h}},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return nil, fmt.Errorf("device: capture copy: %w", err)
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("device: capture finish: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	mapped, err := d.mapRead(readback, size)
	if err != nil {
		return nil, fmt.Errorf("device: capture: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for y := uint32(0); y < h; y++ {
		copy(img.Pix[int(y)*img.Stride:int(y+1)*img.Stride], mapped[y*bytesPerRow:y*bytesPerRow+w*4])
	}
	return img, nil
}

func (d *wgpuDeviceBackend) ReadBuffer(h BufferHandle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src, ok := d.buffers[h]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	size := src.GetSize()
	readback, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Buffer Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("device: readback buffer: %w", err)
	}
	defer readback.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("device: readback encoder: %w", err)
	}
	defer encoder.Release()
	if err := encoder.CopyBufferToBuffer(src, 0, readback, 0, size); err != nil {
		return nil, fmt.Errorf("device: readback copy: %w", err)
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("device: readback finish: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	out, err := d.mapRead(readback, size)
	if err != nil {
		return nil, fmt.Errorf("device: readback: %w", err)
	}
	return out, nil
}

// mapRead maps a MapRead buffer, blocking on the device until the map completes, and copies it out.
func (d *wgpuDeviceBackend) mapRead(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	status := wgpu.BufferMapAsyncStatusUnknown
	done := false
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status, done = s, true
	}); err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	for !done {
		d.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map status %s", status)
	}
	out := bytes.Clone(buf.GetMappedRange(0, uint(size)))
	if err := buf.Unmap(); err != nil {
		return nil, fmt.Errorf("unmap: %w", err)
	}
	return out, nil
}

func (d *wgpuDeviceBackend) WGPUDevice() *wgpu.Device {
	return d.device
}

func (d *wgpuDeviceBackend) WGPUQueue() *wgpu.Queue {
	return d.queue
}

func (d *wgpuDeviceBackend) WGPUBuffer(h BufferHandle) (*wgpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	return buf, nil
}

func (d *wgpuDeviceBackend) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}
	d.released = true

	for _, p := range d.pipelines {
		p.Release()
	}
	for _, l := range d.layouts {
		l.Release()
	}
	for _, m := range d.modules {
		m.Release()
	}
	for _, bg := range d.textureGroups {
		bg.Release()
	}
	for _, t := range d.textures {
		t.release()
	}
	for _, b := range d.buffers {
		b.Destroy()
		b.Release()
	}
	clear(d.pipelines)
	clear(d.textureGroups)
	clear(d.textures)
	clear(d.buffers)

	if d.white != nil {
		d.white.release()
	}
	if d.uniformBindGroup != nil {
		d.uniformBindGroup.Release()
	}
	if d.uniformBuffer != nil {
		d.uniformBuffer.Release()
	}
	for _, l := range []*wgpu.BindGroupLayout{d.uniformLayout, d.textureLayout} {
		if l != nil {
			l.Release()
		}
	}
	for _, s := range []*wgpu.Sampler{d.sampler, d.toonSampler} {
		if s != nil {
			s.Release()
		}
	}
	d.releaseTargets()
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}
