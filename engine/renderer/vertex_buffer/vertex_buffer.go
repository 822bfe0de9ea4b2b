package vertex_buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// ErrNotAllocated reports a call that needs the streams before Allocate succeeded.
var ErrNotAllocated = errors.New("vertex_buffer: not allocated")

// vertexBuffer is the implementation of the VertexBuffer interface.
type vertexBuffer struct {
	mu     *sync.Mutex
	dev    device.Device
	acc    accelerator.Accelerator
	label  string
	log    *slog.Logger
	shared *accelerator.SharedBuffer

	dynamic   device.BufferHandle
	static    device.BufferHandle
	index     device.BufferHandle
	edgeIndex device.BufferHandle

	vertexCount    int
	indexCount     int
	edgeIndexCount int
	dynamicSize    uint64
}

// VertexBuffer owns the device streams of one model: the dynamic skinned vertex stream, the static
// texture coordinate stream, and the body and outline index streams.
//
// In shared mode the dynamic stream is a SharedBuffer written by a compute kernel, and
// UpdateVertices is a no-op.
type VertexBuffer interface {
	// Allocate creates every stream for the geometry and uploads the static streams and the bind
	// pose as the initial frame. Allocating again releases the previous streams first.
	//
	// Parameters:
	//   - g: the geometry
	//
	// Returns:
	//   - error: the wrapped device rejection; nothing stays allocated on failure
	Allocate(g *model.Geometry) error

	// UpdateVertices writes skinned vertex data into the dynamic stream.
	//
	// Parameters:
	//   - data: the vertex bytes, len(data) == byteRange.Size
	//   - byteRange: the destination range inside the dynamic stream
	//
	// Returns:
	//   - error: ErrNotAllocated, device.ErrOutOfRange, or a device write error
	UpdateVertices(data []byte, byteRange common.ByteRange) error

	// Release destroys every stream in reverse creation order. Safe to call more than once.
	Release()

	// DynamicBuffer returns the skinned vertex stream.
	//
	// Returns:
	//   - device.BufferHandle: the stream, zero before Allocate
	DynamicBuffer() device.BufferHandle

	// SharedBuffer returns the shared dynamic stream in shared mode.
	//
	// Returns:
	//   - *accelerator.SharedBuffer: the shared buffer, nil otherwise
	SharedBuffer() *accelerator.SharedBuffer

	// StaticBuffer returns the texture coordinate stream.
	//
	// Returns:
	//   - device.BufferHandle: the stream, zero before Allocate
	StaticBuffer() device.BufferHandle

	// IndexBuffer returns the body index stream.
	//
	// Returns:
	//   - device.BufferHandle: the stream, zero before Allocate
	IndexBuffer() device.BufferHandle

	// EdgeIndexBuffer returns the outline index stream.
	//
	// Returns:
	//   - device.BufferHandle: the stream, zero before Allocate
	EdgeIndexBuffer() device.BufferHandle

	// VertexCount returns the number of vertices allocated.
	VertexCount() int

	// IndexCount returns the number of body indices allocated.
	IndexCount() int

	// EdgeIndexCount returns the number of outline indices allocated.
	EdgeIndexCount() int

	// Shared reports whether the dynamic stream is shared with the accelerator.
	Shared() bool
}

var _ VertexBuffer = &vertexBuffer{}

// NewVertexBuffer creates an empty VertexBuffer on dev. Call Allocate before drawing.
//
// Parameters:
//   - dev: the graphics device
//   - options: a variadic list of VertexBufferBuilderOption functions
//
// Returns:
//   - VertexBuffer: the vertex buffer
func NewVertexBuffer(dev device.Device, options ...VertexBufferBuilderOption) VertexBuffer {
	vb := &vertexBuffer{
		mu:    &sync.Mutex{},
		dev:   dev,
		label: "model",
	}
	for _, opt := range options {
		opt(vb)
	}
	vb.log = logger.For("vertex_buffer").With("label", vb.label)
	return vb
}

func (vb *vertexBuffer) Allocate(g *model.Geometry) (err error) {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	vb.release()
	n := g.VertexCount()
	if n == 0 || len(g.Indices) == 0 {
		return fmt.Errorf("vertex_buffer: %s: %w", vb.label, model.ErrEmptyGeometry)
	}
	defer func() {
		if err != nil {
			vb.release()
		}
	}()

	vb.dynamicSize = uint64(n) * model.SkinnedVertexStride
	if vb.acc != nil {
		vb.shared, err = accelerator.NewSharedBuffer(vb.acc, vb.dev, vb.label+" dynamic", vb.dynamicSize)
		if err != nil {
			return fmt.Errorf("vertex_buffer: %s dynamic stream: %w", vb.label, err)
		}
		vb.dynamic = vb.shared.Graphics()
	} else {
		vb.dynamic, err = vb.dev.CreateBuffer(device.BufferDescriptor{
			Label: vb.label + " dynamic",
			Size:  vb.dynamicSize,
			Usage: device.BufferUsageVertex | device.BufferUsageStorage | device.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("vertex_buffer: %s dynamic stream: %w", vb.label, err)
		}
	}
	if err = vb.dev.WriteBuffer(vb.dynamic, 0, g.BindPoseStream()); err != nil {
		return fmt.Errorf("vertex_buffer: %s bind pose: %w", vb.label, err)
	}

	if vb.static, err = vb.upload("static", device.BufferUsageVertex, g.StaticStream()); err != nil {
		return err
	}
	if vb.index, err = vb.upload("index", device.BufferUsageIndex, model.IndexStream(g.Indices)); err != nil {
		return err
	}
	edges := g.EdgeIndices
	if len(edges) == 0 {
		edges = g.OutlineIndices()
	}
	if vb.edgeIndex, err = vb.upload("edge index", device.BufferUsageIndex, model.IndexStream(edges)); err != nil {
		return err
	}

	vb.vertexCount = n
	vb.indexCount = len(g.Indices)
	vb.edgeIndexCount = len(edges)
	vb.log.Debug("streams allocated", "vertices", n, "indices", vb.indexCount, "shared", vb.shared != nil)
	return nil
}

func (vb *vertexBuffer) upload(name string, usage device.BufferUsage, data []byte) (device.BufferHandle, error) {
	h, err := vb.dev.CreateBuffer(device.BufferDescriptor{
		Label: vb.label + " " + name,
		Size:  uint64(len(data)),
		Usage: usage | device.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("vertex_buffer: %s %s stream: %w", vb.label, name, err)
	}
	if err := vb.dev.WriteBuffer(h, 0, data); err != nil {
		vb.dev.ReleaseBuffer(h)
		return 0, fmt.Errorf("vertex_buffer: %s %s upload: %w", vb.label, name, err)
	}
	return h, nil
}

func (vb *vertexBuffer) UpdateVertices(data []byte, byteRange common.ByteRange) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	if vb.dynamic == 0 {
		return ErrNotAllocated
	}
	if vb.shared != nil {
		return nil
	}
	if uint64(len(data)) != byteRange.Size || byteRange.End() > vb.dynamicSize {
		return fmt.Errorf("%w: %d bytes into [%d, %d) of %d", device.ErrOutOfRange, len(data), byteRange.Offset, byteRange.End(), vb.dynamicSize)
	}
	return vb.dev.WriteBuffer(vb.dynamic, byteRange.Offset, data)
}

func (vb *vertexBuffer) Release() {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	vb.release()
}

func (vb *vertexBuffer) release() {
	for _, h := range []device.BufferHandle{vb.edgeIndex, vb.index, vb.static} {
		if h != 0 {
			vb.dev.ReleaseBuffer(h)
		}
	}
	if vb.shared != nil {
		vb.shared.Release()
		vb.shared = nil
	} else if vb.dynamic != 0 {
		vb.dev.ReleaseBuffer(vb.dynamic)
	}
	vb.dynamic, vb.static, vb.index, vb.edgeIndex = 0, 0, 0, 0
	vb.vertexCount, vb.indexCount, vb.edgeIndexCount, vb.dynamicSize = 0, 0, 0, 0
}

func (vb *vertexBuffer) DynamicBuffer() device.BufferHandle {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.dynamic
}

func (vb *vertexBuffer) SharedBuffer() *accelerator.SharedBuffer {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.shared
}

func (vb *vertexBuffer) StaticBuffer() device.BufferHandle {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.static
}

func (vb *vertexBuffer) IndexBuffer() device.BufferHandle {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.index
}

func (vb *vertexBuffer) EdgeIndexBuffer() device.BufferHandle {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.edgeIndex
}

func (vb *vertexBuffer) VertexCount() int {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.vertexCount
}

func (vb *vertexBuffer) IndexCount() int {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.indexCount
}

func (vb *vertexBuffer) EdgeIndexCount() int {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.edgeIndexCount
}

func (vb *vertexBuffer) Shared() bool {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.shared != nil
}
