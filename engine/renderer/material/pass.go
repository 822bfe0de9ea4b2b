package material

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// DefaultOpaqueThreshold is the opacity at or above which a material counts as fully opaque.
// Opaque materials are skipped by the z-prepass and keep back-face culling in the model pass.
const DefaultOpaqueThreshold float32 = 0.98

// edgeEpsilon is the outline width below which the edge pass draws nothing.
const edgeEpsilon = 1e-6

// Pass identifies one of the render passes a model goes through each frame.
type Pass int

const (
	PassEdge Pass = iota
	PassShadow
	PassZPrepass
	PassModel
)

// Passes lists every pass in the order RenderFrame emits them.
var Passes = []Pass{PassZPrepass, PassShadow, PassModel, PassEdge}

// String returns the pass name used in logs and statistics.
func (p Pass) String() string {
	switch p {
	case PassEdge:
		return "edge"
	case PassShadow:
		return "shadow"
	case PassZPrepass:
		return "zprepass"
	case PassModel:
		return "model"
	default:
		return "unknown"
	}
}

// Streams are the device buffers of one model that every pass draws from.
type Streams struct {
	Dynamic   device.BufferHandle
	Static    device.BufferHandle
	Index     device.BufferHandle
	EdgeIndex device.BufferHandle
}

// Frame is the per-frame input shared by every pass of one model. Shadow is the projective shadow
// matrix, computed once per frame.
type Frame struct {
	ViewProjection common.Mat4
	Shadow         common.Mat4
	LightDirection [3]float32
	LightColor     [3]float32
	ShadowColor    [4]float32
	EdgeWidth      float32
	Streams        Streams
}

// PassStats counts the outcome of one pass.
type PassStats struct {
	Draws  int
	Failed int
}

// passStateMachine is the implementation of the PassStateMachine interface.
type passStateMachine struct {
	dev       device.Device
	materials []Material
	threshold float32
	label     string
	log       *slog.Logger

	// cull is the cull mode last applied by the model pass.
	cull device.CullMode
}

// PassStateMachine issues the draw calls of each pass for the materials of one model.
//
// Each pass is a pure function of the material descriptors, the frame and the pass toggles, and
// leaves the device in the same state whenever it is run with the same input.
type PassStateMachine interface {
	// Run emits one pass over every material in descriptor order.
	//
	// Failed draws are logged and counted; the pass continues with the next material.
	//
	// Parameters:
	//   - pass: the pass to run
	//   - frame: the per-frame input
	//
	// Returns:
	//   - PassStats: the number of draws issued and failed
	Run(pass Pass, frame *Frame) PassStats

	// Materials returns the materials in draw order.
	//
	// Returns:
	//   - []Material: the materials
	Materials() []Material

	// OpaqueThreshold returns the opacity at or above which a material is opaque.
	//
	// Returns:
	//   - float32: the threshold
	OpaqueThreshold() float32
}

var _ PassStateMachine = &passStateMachine{}

// NewPassStateMachine creates a PassStateMachine drawing materials on dev.
//
// Parameters:
//   - dev: the device draws are issued on
//   - materials: the materials of the model in draw order
//   - options: a variadic list of PassStateMachineBuilderOption functions
//
// Returns:
//   - PassStateMachine: the state machine
func NewPassStateMachine(dev device.Device, materials []Material, options ...PassStateMachineBuilderOption) PassStateMachine {
	p := &passStateMachine{
		dev:       dev,
		materials: materials,
		threshold: DefaultOpaqueThreshold,
	}
	for _, opt := range options {
		opt(p)
	}
	p.log = logger.For("material").With("model", p.label)
	return p
}

func (p *passStateMachine) Materials() []Material {
	return p.materials
}

func (p *passStateMachine) OpaqueThreshold() float32 {
	return p.threshold
}

func (p *passStateMachine) Run(pass Pass, frame *Frame) PassStats {
	switch pass {
	case PassEdge:
		return p.runEdge(frame)
	case PassShadow:
		return p.runShadow(frame)
	case PassZPrepass:
		return p.runZPrepass(frame)
	case PassModel:
		return p.runModel(frame)
	default:
		p.log.Warn("unknown pass", "pass", int(pass))
		return PassStats{}
	}
}

func (p *passStateMachine) draw(stats *PassStats, pass Pass, m Material, index device.BufferHandle, textures device.TextureBindings, u device.DrawUniforms, frame *Frame) {
	desc := m.Descriptor()
	err := p.dev.Draw(device.DrawCall{
		Label:      pass.String() + "/" + desc.Name,
		Dynamic:    frame.Streams.Dynamic,
		Static:     frame.Streams.Static,
		Index:      index,
		FirstIndex: desc.IndexOffset,
		IndexCount: desc.IndexCount,
		Textures:   textures,
		Uniforms:   u,
	})
	if err != nil {
		stats.Failed++
		p.log.Warn("draw failed", "pass", pass, "material", desc.Name, "error", err)
		return
	}
	stats.Draws++
}

func (p *passStateMachine) runEdge(frame *Frame) PassStats {
	var stats PassStats
	if frame.EdgeWidth < edgeEpsilon && frame.EdgeWidth > -edgeEpsilon {
		return stats
	}
	p.dev.ApplyState(device.RenderState{Technique: device.TechniqueEdge, Cull: device.CullFront, Blend: true})
	for _, m := range p.materials {
		if !m.Descriptor().DrawEdge {
			continue
		}
		p.draw(&stats, PassEdge, m, frame.Streams.EdgeIndex, device.TextureBindings{}, edgeUniforms(m.Descriptor(), frame), frame)
	}
	return stats
}

func (p *passStateMachine) runShadow(frame *Frame) PassStats {
	var stats PassStats
	p.dev.ApplyState(device.RenderState{Technique: device.TechniqueShadow, Cull: device.CullNone, Blend: true, NoDepthWrite: true})
	u := shadowUniforms(frame)
	for _, m := range p.materials {
		p.draw(&stats, PassShadow, m, frame.Streams.Index, device.TextureBindings{}, u, frame)
	}
	return stats
}

func (p *passStateMachine) runZPrepass(frame *Frame) PassStats {
	var stats PassStats
	p.dev.ApplyState(device.RenderState{Technique: device.TechniqueZPlot, NoColorWrite: true})
	u := baseUniforms(frame)
	for _, m := range p.materials {
		if m.Opaque(p.threshold) {
			continue
		}
		p.draw(&stats, PassZPrepass, m, frame.Streams.Index, device.TextureBindings{}, u, frame)
	}
	return stats
}

func (p *passStateMachine) runModel(frame *Frame) PassStats {
	var stats PassStats
	p.cull = device.CullBack
	state := device.RenderState{Technique: device.TechniqueModel, Cull: p.cull, Blend: true}
	p.dev.ApplyState(state)

	for _, m := range p.materials {
		want := device.CullBack
		if !m.Opaque(p.threshold) {
			want = device.CullNone
		}
		if want != p.cull {
			p.cull = want
			state.Cull = want
			p.dev.ApplyState(state)
		}
		textures := m.Textures()
		p.draw(&stats, PassModel, m, frame.Streams.Index, textures, modelUniforms(m.Descriptor(), textures, frame), frame)
	}

	if p.cull != device.CullBack {
		p.cull = device.CullBack
		state.Cull = device.CullBack
		p.dev.ApplyState(state)
	}
	return stats
}
