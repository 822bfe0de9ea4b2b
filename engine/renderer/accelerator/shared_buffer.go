package accelerator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// SharedBuffer owns a graphics buffer together with its compute registration. The two are created
// together and released in reverse order, so a registration never outlives its buffer and a
// reallocation always gets a fresh registration.
type SharedBuffer struct {
	acc      Accelerator
	dev      device.Device
	graphics device.BufferHandle
	compute  BufferHandle
	size     uint64
}

// NewSharedBuffer creates a vertex/storage buffer on dev and registers it with acc.
//
// Parameters:
//   - acc: an initialized accelerator bound to dev
//   - dev: the graphics device
//   - label: debug label
//   - size: size in bytes
//
// Returns:
//   - *SharedBuffer: the owning wrapper
//   - error: error if either side rejects the buffer; nothing is left allocated on failure
func NewSharedBuffer(acc Accelerator, dev device.Device, label string, size uint64) (*SharedBuffer, error) {
	if acc == nil {
		return nil, ErrAcceleratorUnavailable
	}
	g, err := dev.CreateBuffer(device.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: device.BufferUsageVertex | device.BufferUsageStorage | device.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	c, err := acc.RegisterSharedBuffer(g)
	if err != nil {
		dev.ReleaseBuffer(g)
		return nil, fmt.Errorf("accelerator: share %q: %w", label, err)
	}
	return &SharedBuffer{acc: acc, dev: dev, graphics: g, compute: c, size: size}, nil
}

// Graphics returns the graphics-side buffer drawn from.
func (s *SharedBuffer) Graphics() device.BufferHandle {
	return s.graphics
}

// Compute returns the compute-side registration dispatched against.
func (s *SharedBuffer) Compute() BufferHandle {
	return s.compute
}

// Size returns the buffer size in bytes.
func (s *SharedBuffer) Size() uint64 {
	return s.size
}

// Release unregisters the buffer and then releases the graphics buffer. Safe to call more than once.
func (s *SharedBuffer) Release() {
	if s == nil || s.graphics == 0 {
		return
	}
	s.acc.UnregisterSharedBuffer(s.compute)
	s.dev.ReleaseBuffer(s.graphics)
	s.compute, s.graphics = 0, 0
}
