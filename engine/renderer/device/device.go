package device

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-skin/common"
)

var (
	// ErrInvalidHandle reports a handle that was never created or has been released.
	ErrInvalidHandle = errors.New("device: invalid handle")

	// ErrBufferRejected reports a buffer the device refused to create.
	ErrBufferRejected = errors.New("device: buffer creation rejected")

	// ErrTextureRejected reports a texture the device refused to create.
	ErrTextureRejected = errors.New("device: texture creation rejected")

	// ErrOutOfRange reports a write that does not fit inside its buffer.
	ErrOutOfRange = errors.New("device: write out of buffer range")

	// ErrNoFrame reports a draw issued outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("device: no frame in progress")

	// ErrBufferAcquired reports a draw that reads a buffer currently owned by the compute side.
	ErrBufferAcquired = errors.New("device: buffer is acquired for compute")

	// ErrUnknownTechnique reports a draw with a technique whose shader was never registered.
	ErrUnknownTechnique = errors.New("device: technique not registered")

	// ErrReleased reports a call on a released device.
	ErrReleased = errors.New("device: released")
)

// BufferHandle is an opaque device buffer name. Zero is never a valid handle.
type BufferHandle uint32

// TextureHandle is an opaque device texture name. Zero means "no texture".
type TextureHandle uint32

// BufferUsage is a bit set of the ways a buffer will be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopyDst
	BufferUsageCopySrc
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Technique selects the shader program of a draw.
type Technique int

const (
	// TechniqueModel is the lit, textured, toon-shaded body.
	TechniqueModel Technique = iota
	// TechniqueEdge is the flat-colored outline drawn from the edge position stream.
	TechniqueEdge
	// TechniqueShadow is the body flattened onto the ground plane by the shadow matrix.
	TechniqueShadow
	// TechniqueZPlot is the depth-only pre-pass.
	TechniqueZPlot
)

// String returns the technique name used for shader lookup and labels.
func (t Technique) String() string {
	switch t {
	case TechniqueModel:
		return "model"
	case TechniqueEdge:
		return "edge"
	case TechniqueShadow:
		return "shadow"
	case TechniqueZPlot:
		return "zplot"
	default:
		return "unknown"
	}
}

// Techniques lists every technique a device must have registered before drawing.
var Techniques = []Technique{TechniqueModel, TechniqueEdge, TechniqueShadow, TechniqueZPlot}

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullBack CullMode = iota
	CullNone
	CullFront
)

// SphereMode selects how a sphere map combines with the lit color.
type SphereMode uint32

const (
	SphereNone SphereMode = iota
	SphereAdd
	SphereModulate
)

// RenderState is the fixed-function state applied to subsequent draws.
// The zero value is the default state: model technique, back-face culling, no blending,
// depth and color writes enabled.
type RenderState struct {
	Technique    Technique
	Cull         CullMode
	Blend        bool
	NoDepthWrite bool
	NoColorWrite bool
}

// TextureBindings are the textures sampled by a draw. Zero handles bind the device's white texture.
type TextureBindings struct {
	Diffuse    TextureHandle
	Sphere     TextureHandle
	SphereMode SphereMode
	Toon       TextureHandle
}

// DrawCall is one indexed draw over a model's vertex streams.
type DrawCall struct {
	Label      string
	Dynamic    BufferHandle
	Static     BufferHandle
	Index      BufferHandle
	FirstIndex uint32
	IndexCount uint32
	Textures   TextureBindings
	Uniforms   DrawUniforms
}

// Device is the graphics API surface the renderer draws through. A Device is driven from a single
// render thread; implementations guard their own state but draws are ordered by the caller.
type Device interface {
	// Capabilities returns the capability-query object built when the device was initialized.
	//
	// Returns:
	//   - Capabilities: the device capabilities
	Capabilities() Capabilities

	// RegisterTechnique compiles the shader source of a technique.
	//
	// Parameters:
	//   - t: the technique
	//   - source: WGSL source with vertex entry point "vs_main" and fragment entry point "fs_main"
	//
	// Returns:
	//   - error: error if the shader cannot be compiled
	RegisterTechnique(t Technique, source string) error

	// CreateBuffer creates a device buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - BufferHandle: the new buffer
	//   - error: an error wrapping ErrBufferRejected if the device refuses the buffer
	CreateBuffer(desc BufferDescriptor) (BufferHandle, error)

	// WriteBuffer copies data into a buffer at offset.
	//
	// Parameters:
	//   - h: the buffer
	//   - offset: byte offset inside the buffer
	//   - data: bytes to write
	//
	// Returns:
	//   - error: ErrInvalidHandle or ErrOutOfRange
	WriteBuffer(h BufferHandle, offset uint64, data []byte) error

	// BufferSize returns the size of a live buffer.
	//
	// Parameters:
	//   - h: the buffer
	//
	// Returns:
	//   - uint64: the size in bytes
	//   - bool: false if the handle is not live
	BufferSize(h BufferHandle) (uint64, bool)

	// ReleaseBuffer destroys a buffer. Releasing an unknown handle is a no-op.
	//
	// Parameters:
	//   - h: the buffer
	ReleaseBuffer(h BufferHandle)

	// CreateTexture uploads RGBA pixel data into a sampled texture.
	//
	// Parameters:
	//   - label: debug label
	//   - data: the pixel data
	//
	// Returns:
	//   - TextureHandle: the new texture
	//   - error: an error wrapping ErrTextureRejected on failure
	CreateTexture(label string, data common.TextureStagingData) (TextureHandle, error)

	// ReleaseTexture destroys a texture. Releasing an unknown handle is a no-op.
	//
	// Parameters:
	//   - h: the texture
	ReleaseTexture(h TextureHandle)

	// BeginFrame starts recording a frame into the current render target.
	//
	// Returns:
	//   - error: error if the render target cannot be acquired
	BeginFrame() error

	// ApplyState sets the render state used by subsequent draws.
	//
	// Parameters:
	//   - s: the new state
	ApplyState(s RenderState)

	// State returns the render state currently applied.
	//
	// Returns:
	//   - RenderState: the current state
	State() RenderState

	// Draw records one indexed draw with the current render state.
	//
	// Parameters:
	//   - call: the draw
	//
	// Returns:
	//   - error: error if the draw cannot be recorded
	Draw(call DrawCall) error

	// Flush submits graphics work recorded outside the frame pass so the compute side observes it.
	//
	// Returns:
	//   - error: error if submission fails
	Flush() error

	// EndFrame submits the frame and presents it.
	//
	// Returns:
	//   - error: error if submission fails
	EndFrame() error

	// Resize changes the render target size.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	Resize(width, height int)

	// Release destroys every resource owned by the device. Safe to call more than once.
	Release()
}

// HostMemory is implemented by devices whose buffers live in host memory. The software
// accelerator maps shared buffers through it.
type HostMemory interface {
	// HostBuffer returns the live backing slice of a buffer.
	HostBuffer(h BufferHandle) ([]byte, error)

	// SetComputeOwned marks a buffer as owned by the compute side; draws reading it fail until cleared.
	SetComputeOwned(h BufferHandle, owned bool) error
}
