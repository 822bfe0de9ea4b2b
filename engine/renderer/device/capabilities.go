package device

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Capabilities is the capability-query object of a device. It is built once when the device is
// initialized and handed by value to every component that needs to size or gate work on it.
type Capabilities struct {
	// Backend names the device implementation.
	Backend string

	// Adapter names the physical adapter, when there is one.
	Adapter string

	// MaxBufferSize is the largest buffer the device accepts.
	MaxBufferSize uint64

	// MaxStorageBufferBindingSize is the largest buffer range a compute kernel can bind.
	MaxStorageBufferBindingSize uint64

	// MinUniformBufferOffsetAlignment is the alignment of dynamic uniform offsets.
	MinUniformBufferOffsetAlignment uint32

	// MaxComputeInvocationsPerWorkgroup bounds the kernel workgroup size.
	MaxComputeInvocationsPerWorkgroup uint32

	// MaxComputeWorkgroupsPerDimension bounds a single dispatch.
	MaxComputeWorkgroupsPerDimension uint32

	// Compute reports whether compute kernels can run on this device.
	Compute bool

	// SharedBuffers reports whether one buffer can be bound both as a vertex stream and as a
	// compute storage buffer, the precondition for accelerated skinning.
	SharedBuffers bool

	// HostVisible reports whether buffers live in host memory (see HostMemory).
	HostVisible bool
}

// CanShare reports whether a shared buffer of the given size can be created and bound by a kernel.
//
// Parameters:
//   - size: the buffer size in bytes
//
// Returns:
//   - bool: true if the buffer fits both the vertex and the storage limits
func (c Capabilities) CanShare(size uint64) bool {
	return c.Compute && c.SharedBuffers && size <= c.MaxBufferSize && size <= c.MaxStorageBufferBindingSize
}

// Workgroups returns the number of workgroups needed to cover n invocations.
//
// Parameters:
//   - n: invocation count
//   - size: workgroup size
//
// Returns:
//   - uint32: the workgroup count
//   - error: error if the dispatch exceeds MaxComputeWorkgroupsPerDimension
func (c Capabilities) Workgroups(n, size uint32) (uint32, error) {
	if size == 0 {
		return 0, fmt.Errorf("device: zero workgroup size")
	}
	groups := (n + size - 1) / size
	if c.MaxComputeWorkgroupsPerDimension > 0 && groups > c.MaxComputeWorkgroupsPerDimension {
		return 0, fmt.Errorf("device: %d workgroups exceeds limit %d", groups, c.MaxComputeWorkgroupsPerDimension)
	}
	return groups, nil
}

// String summarizes the capabilities for logs.
func (c Capabilities) String() string {
	return fmt.Sprintf("%s(%s) compute=%t shared=%t maxBuffer=%d", c.Backend, c.Adapter, c.Compute, c.SharedBuffers, c.MaxBufferSize)
}

func capabilitiesFromLimits(info wgpu.AdapterInfo, l wgpu.Limits) Capabilities {
	return Capabilities{
		Backend:                           "wgpu",
		Adapter:                           info.Name,
		MaxBufferSize:                     l.MaxBufferSize,
		MaxStorageBufferBindingSize:       l.MaxStorageBufferBindingSize,
		MinUniformBufferOffsetAlignment:   l.MinUniformBufferOffsetAlignment,
		MaxComputeInvocationsPerWorkgroup: l.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupsPerDimension:  l.MaxComputeWorkgroupsPerDimension,
		Compute:                           l.MaxComputeInvocationsPerWorkgroup > 0,
		SharedBuffers:                     l.MaxStorageBuffersPerShaderStage > 0,
	}
}

// RecordingCapabilities returns the default capabilities of the recording device.
func RecordingCapabilities() Capabilities {
	return Capabilities{
		Backend:                           "recording",
		Adapter:                           "host",
		MaxBufferSize:                     256 << 20,
		MaxStorageBufferBindingSize:       128 << 20,
		MinUniformBufferOffsetAlignment:   256,
		MaxComputeInvocationsPerWorkgroup: 256,
		MaxComputeWorkgroupsPerDimension:  65535,
		Compute:                           true,
		SharedBuffers:                     true,
		HostVisible:                       true,
	}
}
