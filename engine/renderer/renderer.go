// Package renderer is the render engine façade: a Renderer per device and a ModelRenderer per
// skinned model, driving skinning, vertex upload and the material passes once per frame.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/light"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/skinning"
)

var (
	// ErrNotRenderable reports a RenderFrame on a model that was never uploaded or whose upload failed.
	ErrNotRenderable = errors.New("renderer: model is not renderable")

	// ErrFrameDegraded reports a frame that was drawn with a stage skipped, such as failed skinning.
	ErrFrameDegraded = errors.New("renderer: frame degraded")

	// ErrReleased reports a call on a released renderer or model renderer.
	ErrReleased = errors.New("renderer: released")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu  *sync.Mutex
	dev device.Device
	log *slog.Logger

	caps     device.Capabilities
	light    light.Light
	viewProj common.Mat4
	frame    material.Frame

	acc          accelerator.Accelerator
	accResolved  bool
	kernelSource string
	workers      int

	models   []*modelRenderer
	released bool
}

// Renderer owns the per-device state shared by every model: the camera, the light, the frame
// bracket and the lazily created accelerator.
//
// The accelerator is created the first time a model asks for accelerated skinning and is shared by
// all models of this renderer. Kernel compilation failures leave it unavailable, which makes those
// models skin on the CPU; they never fail the model.
type Renderer interface {
	// Device returns the graphics device the renderer draws on.
	//
	// Returns:
	//   - device.Device: the device
	Device() device.Device

	// Capabilities returns the capability-query object of the device.
	//
	// Returns:
	//   - device.Capabilities: the capabilities
	Capabilities() device.Capabilities

	// Accelerator returns the shared accelerator, creating, binding and compiling it on first use.
	//
	// Returns:
	//   - accelerator.Accelerator: the accelerator, possibly unavailable, or nil if it could not be created
	Accelerator() accelerator.Accelerator

	// Light returns the scene light.
	//
	// Returns:
	//   - light.Light: the light
	Light() light.Light

	// SetCamera sets the view-projection matrix used from the next BeginFrame on.
	//
	// Parameters:
	//   - viewProj: the column-major view-projection matrix
	SetCamera(viewProj common.Mat4)

	// NewModelRenderer creates the renderer of one model. The model is not renderable until Upload.
	//
	// Parameters:
	//   - m: the model
	//   - options: a variadic list of ModelRendererBuilderOption functions
	//
	// Returns:
	//   - ModelRenderer: the model renderer
	NewModelRenderer(m model.Model, options ...ModelRendererBuilderOption) ModelRenderer

	// BeginFrame starts a device frame and snapshots the camera and light. The shadow matrix is
	// computed here, once per frame, for every model drawn in it.
	//
	// Returns:
	//   - error: error if the device cannot start a frame
	BeginFrame() error

	// EndFrame submits and presents the frame.
	//
	// Returns:
	//   - error: error if submission fails
	EndFrame() error

	// Resize forwards a surface size change to the device.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	Resize(width, height int)

	// Release releases every model renderer and then shuts the accelerator down. The device is
	// owned by the caller and left alive. Safe to call more than once.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for dev and registers the four render techniques with it.
//
// Parameters:
//   - dev: the graphics device
//   - options: a variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the renderer
//   - error: error if a technique shader fails to load or compile
func NewRenderer(dev device.Device, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:       &sync.Mutex{},
		dev:      dev,
		caps:     dev.Capabilities(),
		viewProj: common.IdentityMat4(),
		workers:  1,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.light == nil {
		r.light = light.NewLight()
	}
	r.log = logger.For("renderer").With("backend", r.caps.Backend)

	for _, tech := range device.Techniques {
		s, err := shader.Load(tech.String(), shader.ShaderTypeRender)
		if err != nil {
			return nil, fmt.Errorf("renderer: technique %s: %w", tech, err)
		}
		if err := dev.RegisterTechnique(tech, s.Source()); err != nil {
			return nil, fmt.Errorf("renderer: technique %s: %w", tech, err)
		}
	}
	r.log.Info("renderer ready", "capabilities", r.caps.String())
	return r, nil
}

func (r *renderer) Device() device.Device {
	return r.dev
}

func (r *renderer) Capabilities() device.Capabilities {
	return r.caps
}

func (r *renderer) Light() light.Light {
	return r.light
}

func (r *renderer) SetCamera(viewProj common.Mat4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewProj = viewProj
}

func (r *renderer) Accelerator() accelerator.Accelerator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accResolved || r.released {
		return r.acc
	}
	r.accResolved = true

	backend := accelerator.BackendTypeWGPU
	opts := []accelerator.AcceleratorBuilderOption{
		accelerator.WithLabel("skinning"),
		accelerator.WithWorkers(r.workers),
	}
	if r.caps.HostVisible {
		backend = accelerator.BackendTypeSoftware
		opts = append(opts, accelerator.WithHostKernel(skinning.KernelEntryPoint, skinning.HostKernel))
	}
	acc, err := accelerator.NewAccelerator(backend, opts...)
	if err != nil {
		r.log.Warn("accelerator could not be created", "backend", backend, "error", err)
		return nil
	}
	r.acc = acc

	if err := acc.Initialize(r.dev); err != nil {
		r.log.Warn("accelerator unavailable", "error", err)
		return acc
	}
	source, err := r.kernel()
	if err != nil {
		r.log.Warn("skinning kernel failed to load", "error", err)
		return acc
	}
	if err := acc.CompileKernels(source, skinning.KernelEntryPoint); err != nil {
		r.log.Warn("skinning kernel failed to compile", "error", err)
	}
	return acc
}

// kernel returns the skinning kernel source. The embedded kernel is validated by naga; a custom
// source is only pre-processed so the accelerator reports its own compile errors.
func (r *renderer) kernel() (string, error) {
	if r.kernelSource == "" {
		s, err := shader.Load(shader.NameSkinVertices, shader.ShaderTypeCompute)
		if err != nil {
			return "", err
		}
		return s.Source(), nil
	}
	return shader.NewPreProcessor().Process(r.kernelSource)
}

func (r *renderer) NewModelRenderer(m model.Model, options ...ModelRendererBuilderOption) ModelRenderer {
	mr := newModelRenderer(r, m, options...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, mr)
	return mr
}

// forget drops a released model renderer from the release list.
func (r *renderer) forget(mr *modelRenderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = slices.DeleteFunc(r.models, func(m *modelRenderer) bool { return m == mr })
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrReleased
	}
	if err := r.dev.BeginFrame(); err != nil {
		return fmt.Errorf("renderer: begin frame: %w", err)
	}
	r.frame = material.Frame{
		ViewProjection: r.viewProj,
		Shadow:         r.light.ShadowMatrix(),
		LightDirection: r.light.Direction(),
		LightColor:     r.light.Color(),
		ShadowColor:    r.light.ShadowColor(),
	}
	return nil
}

// currentFrame returns the snapshot taken by the last BeginFrame.
func (r *renderer) currentFrame() material.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *renderer) EndFrame() error {
	if err := r.dev.EndFrame(); err != nil {
		return fmt.Errorf("renderer: end frame: %w", err)
	}
	return nil
}

func (r *renderer) Resize(width, height int) {
	r.dev.Resize(width, height)
}

func (r *renderer) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	models := slices.Clone(r.models)
	acc := r.acc
	r.mu.Unlock()

	for _, mr := range models {
		mr.Release()
	}
	if acc != nil {
		acc.Shutdown()
	}
	r.log.Info("renderer released", "models", len(models))
}
