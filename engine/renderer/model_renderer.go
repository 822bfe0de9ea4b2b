package renderer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/skinning"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/vertex_buffer"
	"github.com/Carmen-Shannon/oxy-skin/engine/texture"
)

// FrameStats summarizes one RenderFrame call.
type FrameStats struct {
	// Mode is the skinning state of the model.
	Mode skinning.Mode

	// Skinning is the time spent in skinning and vertex upload.
	Skinning time.Duration

	// Passes holds the outcome of each pass, indexed by material.Pass. Disabled passes stay zero.
	Passes [4]material.PassStats
}

// Draws returns the number of draw calls issued across all passes.
func (s FrameStats) Draws() int {
	n := 0
	for _, p := range s.Passes {
		n += p.Draws
	}
	return n
}

// Failed returns the number of draw calls that failed across all passes.
func (s FrameStats) Failed() int {
	n := 0
	for _, p := range s.Passes {
		n += p.Failed
	}
	return n
}

// modelRenderer is the implementation of the ModelRenderer interface.
type modelRenderer struct {
	mu  *sync.Mutex
	r   *renderer
	m   model.Model
	log *slog.Logger

	useAccelerator bool
	edgeWidth      float32
	threshold      float32
	workers        int
	enabled        [4]bool

	uploaded   bool
	renderable bool
	released   bool

	vb       vertex_buffer.VertexBuffer
	skinner  skinning.Skinner
	passes   material.PassStateMachine
	textures []device.TextureHandle
}

// ModelRenderer draws one model. It owns the model's vertex streams, textures and skinning state;
// none of them are shared with other models.
//
// The lifecycle is NewModelRenderer, optional configuration, Upload, any number of RenderFrame
// calls and Release. Whether the model skins on the accelerator is decided once by Upload.
type ModelRenderer interface {
	// Name returns the model name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// SetAcceleratorEnabled requests or declines accelerated skinning. Honored only before Upload;
	// afterwards the call is logged and ignored.
	//
	// Parameters:
	//   - enabled: true to request the accelerator
	SetAcceleratorEnabled(enabled bool)

	// AcceleratorEnabled reports whether accelerated skinning is requested.
	//
	// Returns:
	//   - bool: the request flag
	AcceleratorEnabled() bool

	// Upload validates the model, allocates its vertex streams, uploads its textures and chooses the
	// skinning state. Texture failures degrade the affected materials to untextured and are not
	// returned. Calling Upload again releases the previous device resources first.
	//
	// Parameters:
	//   - textures: decoded textures keyed by the asset keys of the materials and toon table
	//
	// Returns:
	//   - error: validation errors joined together, or the allocation failure; the model stays
	//     non-renderable
	Upload(textures texture.Set) error

	// SetPassEnabled toggles one pass. Disabling a pass has no effect on the others.
	//
	// Parameters:
	//   - pass: the pass
	//   - enabled: true to draw it
	SetPassEnabled(pass material.Pass, enabled bool)

	// PassEnabled reports whether a pass is drawn.
	//
	// Parameters:
	//   - pass: the pass
	//
	// Returns:
	//   - bool: true if the pass is drawn
	PassEnabled(pass material.Pass) bool

	// SetEdgeWidth sets the global outline width. Widths near zero skip the edge pass.
	//
	// Parameters:
	//   - width: the width
	SetEdgeWidth(width float32)

	// RenderFrame skins the model with bones and draws the z-prepass, shadow, model and edge passes
	// in that order, each gated by its toggle. The shadow pass is also gated by the light.
	//
	// Skinning failures keep the previous vertices, the passes are still drawn and the returned
	// error wraps ErrFrameDegraded. Failed draws are counted in the stats. RenderFrame never panics.
	//
	// Parameters:
	//   - bones: one transform per bone of the model
	//
	// Returns:
	//   - FrameStats: the frame statistics
	//   - error: ErrNotRenderable, ErrFrameDegraded, or a recovered panic
	RenderFrame(bones model.BoneTable) (FrameStats, error)

	// Renderable reports whether the last Upload succeeded.
	//
	// Returns:
	//   - bool: true if RenderFrame can draw
	Renderable() bool

	// SkinningMode returns the skinning state chosen by Upload. ModeCPU before Upload.
	//
	// Returns:
	//   - skinning.Mode: the mode
	SkinningMode() skinning.Mode

	// Release frees every device resource of the model. Safe to call more than once.
	Release()
}

var _ ModelRenderer = &modelRenderer{}

func newModelRenderer(r *renderer, m model.Model, options ...ModelRendererBuilderOption) *modelRenderer {
	mr := &modelRenderer{
		mu:        &sync.Mutex{},
		r:         r,
		m:         m,
		edgeWidth: 1,
		threshold: material.DefaultOpaqueThreshold,
		workers:   1,
		enabled:   [4]bool{true, true, true, true},
	}
	for _, opt := range options {
		opt(mr)
	}
	mr.log = logger.For("renderer").With("model", m.Name())
	return mr
}

func (mr *modelRenderer) Name() string {
	return mr.m.Name()
}

func (mr *modelRenderer) SetAcceleratorEnabled(enabled bool) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.uploaded {
		mr.log.Warn("accelerator toggle ignored after upload", "requested", enabled, "mode", mr.skinningMode())
		return
	}
	mr.useAccelerator = enabled
}

func (mr *modelRenderer) AcceleratorEnabled() bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.useAccelerator
}

func (mr *modelRenderer) Upload(textures texture.Set) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	if mr.released {
		return ErrReleased
	}
	mr.releaseResources()
	mr.uploaded, mr.renderable = true, false

	if err := mr.m.Validate(); err != nil {
		mr.log.Warn("model rejected", "error", err)
		return fmt.Errorf("renderer: upload %q: %w", mr.m.Name(), err)
	}
	g := mr.m.Geometry()

	var acc accelerator.Accelerator
	if mr.useAccelerator {
		acc = mr.r.Accelerator()
		size := uint64(g.VertexCount()) * model.SkinnedVertexStride
		switch {
		case acc == nil || !acc.IsAvailable():
			acc = nil
		case !mr.r.caps.CanShare(size):
			mr.log.Warn("vertex stream cannot be shared", "bytes", size)
			acc = nil
		}
	}
	if err := mr.allocate(g, acc); err != nil {
		mr.releaseResources()
		return fmt.Errorf("renderer: upload %q: %w", mr.m.Name(), err)
	}

	set := mr.uploadTextures(textures)
	descs := mr.m.Materials()
	mats := make([]material.Material, len(descs))
	for i, d := range descs {
		mats[i] = material.NewMaterial(d, material.WithTextures(set))
	}
	mr.passes = material.NewPassStateMachine(mr.r.dev, mats,
		material.WithOpaqueThreshold(mr.threshold),
		material.WithLabel(mr.m.Name()))

	skinOpts := []skinning.SkinnerBuilderOption{
		skinning.WithBoneCount(mr.m.BoneCount()),
		skinning.WithEdgeSize(mr.edgeWidth),
		skinning.WithLightDirection(mr.r.light.Direction()),
		skinning.WithParallelism(mr.workers),
	}
	if acc != nil {
		skinOpts = append(skinOpts, skinning.WithAccelerator(acc))
	}
	mr.skinner = skinning.NewSkinner(g, mr.vb, skinOpts...)

	mr.renderable = true
	mr.log.Info("model uploaded",
		"vertices", g.VertexCount(),
		"materials", len(descs),
		"bones", mr.m.BoneCount(),
		"mode", mr.skinner.Mode(),
		"textures", len(mr.textures))
	return nil
}

// allocate creates the vertex streams, shared with acc when it is set. A shared allocation that
// fails is retried unshared.
func (mr *modelRenderer) allocate(g *model.Geometry, acc accelerator.Accelerator) error {
	if acc != nil {
		mr.vb = vertex_buffer.NewVertexBuffer(mr.r.dev,
			vertex_buffer.WithLabel(mr.m.Name()),
			vertex_buffer.WithSharedDynamicStream(acc))
		err := mr.vb.Allocate(g)
		if err == nil {
			return nil
		}
		mr.log.Warn("shared vertex stream failed, allocating unshared", "error", err)
	}
	mr.vb = vertex_buffer.NewVertexBuffer(mr.r.dev, vertex_buffer.WithLabel(mr.m.Name()))
	return mr.vb.Allocate(g)
}

// uploadTextures uploads every texture the materials and toon table reference. Missing or rejected
// textures are logged and resolve to no texture. Toon slots without a usable texture get the default
// gradient.
func (mr *modelRenderer) uploadTextures(textures texture.Set) material.TextureSet {
	set := material.TextureSet{Slots: make(map[string]device.TextureHandle)}
	upload := func(key string) device.TextureHandle {
		data, ok := textures[key]
		if !ok {
			mr.log.Warn("texture missing", "key", key)
			return 0
		}
		h, err := mr.r.dev.CreateTexture(mr.m.Name()+"/"+key, data)
		if err != nil {
			mr.log.Warn("texture upload failed", "key", key, "error", err)
			return 0
		}
		mr.textures = append(mr.textures, h)
		return h
	}

	for _, d := range mr.m.Materials() {
		for _, key := range []string{d.MainTexture, d.SubTexture} {
			if key == "" {
				continue
			}
			if _, done := set.Slots[key]; !done {
				set.Slots[key] = upload(key)
			}
		}
	}

	var gradient device.TextureHandle
	for i := range set.Toon {
		if key := mr.m.ToonTexture(i); key != "" {
			if set.Toon[i] = upload(key); set.Toon[i] != 0 {
				continue
			}
		}
		if gradient == 0 {
			h, err := mr.r.dev.CreateTexture(mr.m.Name()+"/toon", texture.ToonGradient(32, 2, defaultToonShadow))
			if err != nil {
				mr.log.Warn("toon gradient upload failed", "error", err)
				continue
			}
			mr.textures = append(mr.textures, h)
			gradient = h
		}
		set.Toon[i] = gradient
	}
	return set
}

// defaultToonShadow is the shadow band color of the gradient bound to toon slots without a texture.
var defaultToonShadow = [3]uint8{160, 150, 170}

func (mr *modelRenderer) SetPassEnabled(pass material.Pass, enabled bool) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if pass >= 0 && int(pass) < len(mr.enabled) {
		mr.enabled[pass] = enabled
	}
}

func (mr *modelRenderer) PassEnabled(pass material.Pass) bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return pass >= 0 && int(pass) < len(mr.enabled) && mr.enabled[pass]
}

func (mr *modelRenderer) SetEdgeWidth(width float32) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.edgeWidth = width
}

func (mr *modelRenderer) RenderFrame(bones model.BoneTable) (stats FrameStats, err error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer: frame of %q panicked: %v", mr.m.Name(), rec)
			mr.log.Error("frame panicked", "panic", rec)
		}
	}()

	if mr.released {
		return stats, ErrReleased
	}
	if !mr.renderable {
		return stats, ErrNotRenderable
	}

	frame := mr.r.currentFrame()
	frame.EdgeWidth = mr.edgeWidth
	stats.Mode = mr.skinner.Mode()

	start := time.Now()
	skinErr := mr.skin(bones, frame.LightDirection)
	stats.Skinning = time.Since(start)
	if skinErr != nil {
		mr.log.Error("skinning failed, drawing previous vertices", "error", skinErr)
	}

	frame.Streams = material.Streams{
		Dynamic:   mr.vb.DynamicBuffer(),
		Static:    mr.vb.StaticBuffer(),
		Index:     mr.vb.IndexBuffer(),
		EdgeIndex: mr.vb.EdgeIndexBuffer(),
	}
	for _, pass := range material.Passes {
		if !mr.enabled[pass] {
			continue
		}
		if pass == material.PassShadow && !mr.r.light.CastsShadows() {
			continue
		}
		stats.Passes[pass] = mr.passes.Run(pass, &frame)
	}
	if n := stats.Failed(); n > 0 {
		mr.log.Debug("frame drew with failures", "failed", n, "draws", stats.Draws())
	}

	if skinErr != nil {
		return stats, fmt.Errorf("%w: %w", ErrFrameDegraded, skinErr)
	}
	return stats, nil
}

// skin runs the skinning update and, in the CPU state, pushes the staging stream.
func (mr *modelRenderer) skin(bones model.BoneTable, lightDir [3]float32) error {
	mr.skinner.SetLightDirection(lightDir)
	mr.skinner.SetEdgeSize(mr.edgeWidth)
	if err := mr.skinner.Update(bones); err != nil {
		return err
	}
	if mr.skinner.Mode() != skinning.ModeCPU {
		return nil
	}
	staging := mr.skinner.Staging()
	return mr.vb.UpdateVertices(staging, common.ByteRange{Size: uint64(len(staging))})
}

func (mr *modelRenderer) Renderable() bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.renderable
}

func (mr *modelRenderer) SkinningMode() skinning.Mode {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.skinningMode()
}

func (mr *modelRenderer) skinningMode() skinning.Mode {
	if mr.skinner == nil {
		return skinning.ModeCPU
	}
	return mr.skinner.Mode()
}

func (mr *modelRenderer) Release() {
	mr.mu.Lock()
	if mr.released {
		mr.mu.Unlock()
		return
	}
	mr.released = true
	mr.renderable = false
	mr.releaseResources()
	mr.mu.Unlock()

	mr.r.forget(mr)
}

// releaseResources frees the skinner before the vertex streams it writes, then the textures.
func (mr *modelRenderer) releaseResources() {
	if mr.skinner != nil {
		mr.skinner.Release()
		mr.skinner = nil
	}
	if mr.vb != nil {
		mr.vb.Release()
		mr.vb = nil
	}
	for _, h := range mr.textures {
		mr.r.dev.ReleaseTexture(h)
	}
	mr.textures = nil
	mr.passes = nil
}
