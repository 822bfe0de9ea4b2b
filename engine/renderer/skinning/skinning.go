package skinning

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/vertex_buffer"
)

// ErrBoneCount reports a bone table whose length differs from the model's bone count.
var ErrBoneCount = errors.New("skinning: bone table length mismatch")

// Mode identifies which skinning state a Skinner holds.
type Mode int

const (
	// ModeCPU skins on the host into a staging slice pushed through the vertex buffer.
	ModeCPU Mode = iota

	// ModeAccelerated dispatches the skinning kernel straight into the shared vertex stream.
	ModeAccelerated
)

// String returns the mode name used in logs and frame statistics.
func (m Mode) String() string {
	switch m {
	case ModeCPU:
		return "cpu"
	case ModeAccelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// skinner is the implementation of the Skinner interface. Exactly one of cpu and accel is set,
// matching mode.
type skinner struct {
	mu   *sync.Mutex
	mode Mode
	cpu  *cpuState
	acc  *acceleratedState
	log  *slog.Logger

	geometry  *model.Geometry
	boneCount int
	edgeSize  float32
	lightDir  [3]float32
	released  bool
}

// Skinner deforms the bind-pose geometry of one model by a per-frame bone table.
//
// The skinning state is chosen once by NewSkinner and never switches: ModeAccelerated when an
// available accelerator and a shared vertex stream were supplied and the kernel buffers could be
// created, ModeCPU otherwise.
type Skinner interface {
	// Update skins every vertex with the given bones. In ModeCPU the result is left in Staging for
	// the caller to push; in ModeAccelerated the kernel writes the shared vertex stream directly.
	//
	// Parameters:
	//   - bones: one transform per bone, ignored for models with zero bones
	//
	// Returns:
	//   - error: ErrBoneCount, or the wrapped dispatch failure
	Update(bones model.BoneTable) error

	// Staging returns the host vertex stream produced by the last CPU Update.
	//
	// Returns:
	//   - []byte: VertexCount * SkinnedVertexStride bytes, nil in ModeAccelerated
	Staging() []byte

	// Mode returns the skinning state chosen at construction.
	//
	// Returns:
	//   - Mode: ModeCPU or ModeAccelerated
	Mode() Mode

	// SetLightDirection sets the direction the light travels, used for toon coordinates.
	//
	// Parameters:
	//   - dir: the light direction
	SetLightDirection(dir [3]float32)

	// SetEdgeSize sets the global outline width multiplied into every edge scale.
	//
	// Parameters:
	//   - size: the edge width
	SetEdgeSize(size float32)

	// Release frees the worker pool and the device-side mirror buffers. Safe to call more than once.
	Release()
}

var _ Skinner = &skinner{}

// NewSkinner creates a Skinner for a geometry whose dynamic stream lives in vb.
//
// Accelerated skinning is selected only when WithAccelerator supplies an available accelerator,
// vb was allocated with a shared dynamic stream, and the kernel buffers can be created. Any other
// combination falls back to CPU skinning and is logged; the fallback is never an error.
//
// Parameters:
//   - g: the bind-pose geometry
//   - vb: the allocated vertex buffer of the model
//   - options: a variadic list of SkinnerBuilderOption functions
//
// Returns:
//   - Skinner: the skinner
func NewSkinner(g *model.Geometry, vb vertex_buffer.VertexBuffer, options ...SkinnerBuilderOption) Skinner {
	o := &skinnerOptions{
		lightDir: [3]float32{-0.5, -1, -0.5},
		edgeSize: 1,
		workers:  1,
	}
	for _, opt := range options {
		opt(o)
	}

	s := &skinner{
		mu:        &sync.Mutex{},
		geometry:  g,
		boneCount: o.boneCount,
		edgeSize:  o.edgeSize,
		lightDir:  o.lightDir,
		log:       logger.For("skinning").With("vertices", g.VertexCount(), "bones", o.boneCount),
	}

	if o.acc != nil {
		switch {
		case !o.acc.IsAvailable():
			s.log.Warn("accelerator unavailable, skinning on cpu")
		case vb == nil || vb.SharedBuffer() == nil:
			s.log.Warn("vertex stream is not shared, skinning on cpu")
		default:
			st, err := newAcceleratedState(o.acc, g, vb.SharedBuffer(), o.boneCount)
			if err != nil {
				s.log.Warn("accelerated skinning setup failed, skinning on cpu", "error", err)
				break
			}
			s.mode, s.acc = ModeAccelerated, st
		}
	}
	if s.mode == ModeCPU {
		s.cpu = newCPUState(g, o.boneCount, o.workers)
	}
	s.log.Info("skinner ready", "mode", s.mode)
	return s
}

func (s *skinner) Update(bones model.BoneTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return errors.New("skinning: released")
	}
	if s.boneCount > 0 && len(bones) != s.boneCount {
		return fmt.Errorf("%w: got %d, want %d", ErrBoneCount, len(bones), s.boneCount)
	}

	switch s.mode {
	case ModeAccelerated:
		return s.acc.update(bones, s.edgeSize, s.lightDir)
	default:
		return s.cpu.update(bones, s.edgeSize, s.lightDir)
	}
}

func (s *skinner) Staging() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeCPU {
		return nil
	}
	return s.cpu.staging
}

func (s *skinner) Mode() Mode {
	return s.mode
}

func (s *skinner) SetLightDirection(dir [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lightDir = dir
}

func (s *skinner) SetEdgeSize(size float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edgeSize = size
}

func (s *skinner) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.released = true
	switch s.mode {
	case ModeAccelerated:
		s.acc.release()
	default:
		s.cpu.release()
	}
}
