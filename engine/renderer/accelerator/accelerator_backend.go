package accelerator

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// BackendType identifies the compute backend used by an Accelerator.
type BackendType int

const (
	// BackendTypeWGPU runs kernels as WebGPU compute pipelines on the graphics device's own
	// wgpu device, so shared buffers need no copies.
	BackendTypeWGPU BackendType = iota

	// BackendTypeSoftware runs host kernels on a worker pool over host-visible device memory.
	BackendTypeSoftware
)

// String returns the backend name for logs.
func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// acceleratorBackend is the device-side half of an Accelerator. The accelerator validates every
// call and holds its lock while calling into the backend, so backends keep no locks of their own.
type acceleratorBackend interface {
	bind(dev device.Device) error
	buildKernels(source string, kernels []*Kernel) error
	registerShared(h BufferHandle, graphics device.BufferHandle) error
	createBuffer(h BufferHandle, label string, size uint64) error
	writeBuffer(h BufferHandle, offset uint64, data []byte) error
	releaseBuffer(h BufferHandle)
	acquire(hs []BufferHandle) error
	release(hs []BufferHandle) error
	dispatch(k *Kernel, bindings []BufferHandle, groups, invocations uint32) error
	shutdown()
}

// NewAccelerator creates an uninitialized Accelerator. Call Initialize and CompileKernels before use.
//
// Parameters:
//   - backendType: the compute backend
//   - options: a variadic list of AcceleratorBuilderOption functions
//
// Returns:
//   - Accelerator: the accelerator
//   - error: error if the backend type is unknown
func NewAccelerator(backendType BackendType, options ...AcceleratorBuilderOption) (Accelerator, error) {
	o := &acceleratorOptions{
		workers:     runtime.GOMAXPROCS(0),
		hostKernels: make(map[string]HostKernelFunc),
	}
	for _, opt := range options {
		opt(o)
	}

	a := &accelerator{
		mu:          &sync.Mutex{},
		label:       o.label,
		backendType: backendType,
		log:         newAcceleratorLogger(o.label),
		kernels:     make(map[string]*Kernel),
		buffers:     make(map[BufferHandle]*bufferRecord),
	}
	switch backendType {
	case BackendTypeWGPU:
		a.backend = newWGPUAcceleratorBackend()
	case BackendTypeSoftware:
		a.backend = newSoftwareAcceleratorBackend(o.workers, o.hostKernels, a.log)
	default:
		return nil, fmt.Errorf("accelerator: unknown backend type %d", backendType)
	}
	return a, nil
}
