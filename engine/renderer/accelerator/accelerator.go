package accelerator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

var (
	// ErrAcceleratorUnavailable reports an accelerator that could not bind to its device, or a call
	// that needs an initialized accelerator.
	ErrAcceleratorUnavailable = errors.New("accelerator: unavailable")

	// ErrKernelCompile reports kernel source that failed to parse, lower, validate or build.
	ErrKernelCompile = errors.New("accelerator: kernel compilation failed")

	// ErrNotAcquired reports a shared buffer used or released without being acquired.
	ErrNotAcquired = errors.New("accelerator: shared buffer not acquired")

	// ErrAlreadyAcquired reports a shared buffer acquired twice.
	ErrAlreadyAcquired = errors.New("accelerator: shared buffer already acquired")

	// ErrUnknownKernel reports a dispatch of an entry point that was never compiled.
	ErrUnknownKernel = errors.New("accelerator: unknown kernel")

	// ErrUnknownBuffer reports a handle that was never created or has been released.
	ErrUnknownBuffer = errors.New("accelerator: unknown buffer")
)

// BufferHandle names a compute-side buffer: either a private device buffer or the registration of
// a shared graphics buffer. Zero is never a valid handle.
type BufferHandle uint32

type bufferRecord struct {
	label    string
	size     uint64
	shared   bool
	graphics device.BufferHandle
	acquired bool
}

// accelerator is the implementation of the Accelerator interface. It owns the lifecycle state and
// the buffer table; the backend performs the device work.
type accelerator struct {
	mu          *sync.Mutex
	label       string
	backendType BackendType
	backend     acceleratorBackend
	log         *slog.Logger

	dev         device.Device
	caps        device.Capabilities
	initialized bool
	kernels     map[string]*Kernel

	next    BufferHandle
	buffers map[BufferHandle]*bufferRecord
}

// Accelerator manages a compute context bound to a graphics device: kernel compilation, device
// buffers, shared-buffer registration and the acquire/release handshake that hands shared buffers
// between the graphics and compute sides.
//
// Every failure on the way to availability is soft: the accelerator reports an error, logs it and
// stays unavailable, and callers fall back to CPU work.
type Accelerator interface {
	// Initialize binds the accelerator to the graphics device it will share buffers with.
	//
	// Parameters:
	//   - dev: the graphics device
	//
	// Returns:
	//   - error: an error wrapping ErrAcceleratorUnavailable if the device cannot run kernels
	Initialize(dev device.Device) error

	// CompileKernels compiles WGSL kernel source and builds the named compute entry points.
	// On failure the compiler log is written to the logger and the accelerator stays unavailable.
	//
	// Parameters:
	//   - source: WGSL source
	//   - entryPoints: compute entry points to build
	//
	// Returns:
	//   - error: an error wrapping ErrKernelCompile on failure
	CompileKernels(source string, entryPoints ...string) error

	// IsAvailable reports whether the accelerator is initialized and has compiled kernels.
	//
	// Returns:
	//   - bool: true if kernels can be dispatched
	IsAvailable() bool

	// Capabilities returns the capabilities of the bound device.
	//
	// Returns:
	//   - device.Capabilities: the capabilities, zero before Initialize
	Capabilities() device.Capabilities

	// Kernel returns the reflected description of a compiled entry point.
	//
	// Parameters:
	//   - entryPoint: the entry point name
	//
	// Returns:
	//   - Kernel: the kernel
	//   - bool: false if the entry point was never compiled
	Kernel(entryPoint string) (Kernel, bool)

	// RegisterSharedBuffer registers a graphics buffer for compute access.
	//
	// Parameters:
	//   - h: the graphics buffer
	//
	// Returns:
	//   - BufferHandle: the compute-side registration
	//   - error: error if the buffer is unknown or cannot be shared
	RegisterSharedBuffer(h device.BufferHandle) (BufferHandle, error)

	// UnregisterSharedBuffer drops a registration. Unknown handles are ignored.
	//
	// Parameters:
	//   - h: the registration
	UnregisterSharedBuffer(h BufferHandle)

	// CreateBuffer creates a compute-only device buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - size: size in bytes
	//
	// Returns:
	//   - BufferHandle: the new buffer
	//   - error: error if the accelerator is not initialized or the size is rejected
	CreateBuffer(label string, size uint64) (BufferHandle, error)

	// WriteBuffer copies host data into a compute-only buffer.
	//
	// Parameters:
	//   - h: the buffer
	//   - offset: byte offset
	//   - data: bytes to write
	//
	// Returns:
	//   - error: error if the handle is unknown, shared, or the range does not fit
	WriteBuffer(h BufferHandle, offset uint64, data []byte) error

	// BufferSize returns the size of a buffer or registration.
	//
	// Parameters:
	//   - h: the buffer
	//
	// Returns:
	//   - uint64: the size in bytes
	//   - bool: false if the handle is unknown
	BufferSize(h BufferHandle) (uint64, bool)

	// ReleaseBuffer destroys a compute-only buffer. Unknown handles are ignored.
	//
	// Parameters:
	//   - h: the buffer
	ReleaseBuffer(h BufferHandle)

	// Acquire flushes pending graphics work and hands shared buffers to the compute side.
	//
	// Parameters:
	//   - hs: shared buffer registrations
	//
	// Returns:
	//   - error: ErrAlreadyAcquired, ErrUnknownBuffer, or a flush error
	Acquire(hs ...BufferHandle) error

	// ReleaseShared submits the compute work recorded since Acquire and hands the buffers back to
	// the graphics side.
	//
	// Parameters:
	//   - hs: shared buffer registrations
	//
	// Returns:
	//   - error: ErrNotAcquired or a submission error
	ReleaseShared(hs ...BufferHandle) error

	// Dispatch runs a compiled kernel with one invocation per element.
	// Every shared buffer among the bindings must be acquired.
	//
	// Parameters:
	//   - entryPoint: the kernel entry point
	//   - bindings: one buffer per reflected kernel binding, in binding order
	//   - invocations: the number of invocations
	//
	// Returns:
	//   - error: error if the kernel is unknown, a binding is invalid, or the dispatch is too large
	Dispatch(entryPoint string, bindings []BufferHandle, invocations uint32) error

	// Run flushes, acquires the shared buffers, calls fn and releases them again. The release
	// runs even when fn fails.
	//
	// Parameters:
	//   - shared: shared buffer registrations fn dispatches against
	//   - fn: the compute work
	//
	// Returns:
	//   - error: the joined errors of the acquire, fn and the release
	Run(shared []BufferHandle, fn func() error) error

	// Shutdown releases kernels, device buffers and registrations. Safe to call when never
	// initialized and more than once.
	Shutdown()

	// BackendType returns the backend this accelerator runs on.
	//
	// Returns:
	//   - BackendType: the backend type
	BackendType() BackendType
}

var _ Accelerator = &accelerator{}

func (a *accelerator) Initialize(dev device.Device) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		if dev == a.dev {
			return nil
		}
		return fmt.Errorf("%w: already bound to another device", ErrAcceleratorUnavailable)
	}
	if dev == nil {
		return fmt.Errorf("%w: no device", ErrAcceleratorUnavailable)
	}
	caps := dev.Capabilities()
	if !caps.Compute || !caps.SharedBuffers {
		a.log.Warn("device cannot run kernels", "capabilities", caps.String())
		return fmt.Errorf("%w: device %s has no compute or shared buffers", ErrAcceleratorUnavailable, caps.Backend)
	}
	if err := a.backend.bind(dev); err != nil {
		a.log.Warn("bind failed", "err", err)
		return fmt.Errorf("%w: %w", ErrAcceleratorUnavailable, err)
	}

	a.dev = dev
	a.caps = caps
	a.initialized = true
	a.log.Info("accelerator initialized", "backend", a.backendType.String(), "capabilities", caps.String())
	return nil
}

func (a *accelerator) CompileKernels(source string, entryPoints ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return fmt.Errorf("%w: compile before initialize", ErrAcceleratorUnavailable)
	}
	kernels, compileLog, err := compileKernels(source, entryPoints, a.caps)
	if err != nil {
		a.log.Warn("kernel compilation failed", "entryPoints", entryPoints, "log", compileLog)
		return err
	}
	if err := a.backend.buildKernels(source, kernels); err != nil {
		a.log.Warn("kernel build failed", "entryPoints", entryPoints, "log", err.Error())
		return fmt.Errorf("%w: %w", ErrKernelCompile, err)
	}
	for _, k := range kernels {
		a.kernels[k.EntryPoint] = k
		a.log.Info("kernel compiled", "entryPoint", k.EntryPoint, "workgroup", k.Workgroup, "bindings", describeBindings(k.Bindings))
	}
	return nil
}

func (a *accelerator) IsAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized && len(a.kernels) > 0
}

func (a *accelerator) Capabilities() device.Capabilities {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caps
}

func (a *accelerator) Kernel(entryPoint string) (Kernel, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k, ok := a.kernels[entryPoint]
	if !ok {
		return Kernel{}, false
	}
	return *k, true
}

func (a *accelerator) RegisterSharedBuffer(h device.BufferHandle) (BufferHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return 0, ErrAcceleratorUnavailable
	}
	size, ok := a.dev.BufferSize(h)
	if !ok {
		return 0, fmt.Errorf("%w: graphics buffer %d", device.ErrInvalidHandle, h)
	}
	if !a.caps.CanShare(size) {
		return 0, fmt.Errorf("accelerator: graphics buffer %d (%d bytes) cannot be shared", h, size)
	}
	a.next++
	id := a.next
	if err := a.backend.registerShared(id, h); err != nil {
		return 0, fmt.Errorf("accelerator: register graphics buffer %d: %w", h, err)
	}
	a.buffers[id] = &bufferRecord{label: fmt.Sprintf("shared:%d", h), size: size, shared: true, graphics: h}
	return id, nil
}

func (a *accelerator) UnregisterSharedBuffer(h BufferHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.buffers[h]
	if !ok || !rec.shared {
		return
	}
	if rec.acquired {
		a.log.Warn("unregistering an acquired buffer", "buffer", rec.label)
		if err := a.backend.release([]BufferHandle{h}); err != nil {
			a.log.Warn("release on unregister failed", "buffer", rec.label, "err", err)
		}
	}
	a.backend.releaseBuffer(h)
	delete(a.buffers, h)
}

func (a *accelerator) CreateBuffer(label string, size uint64) (BufferHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return 0, ErrAcceleratorUnavailable
	}
	if size == 0 || size > a.caps.MaxStorageBufferBindingSize {
		return 0, fmt.Errorf("%w: %q size %d (max %d)", device.ErrBufferRejected, label, size, a.caps.MaxStorageBufferBindingSize)
	}
	a.next++
	id := a.next
	if err := a.backend.createBuffer(id, label, size); err != nil {
		return 0, fmt.Errorf("%w: %q: %w", device.ErrBufferRejected, label, err)
	}
	a.buffers[id] = &bufferRecord{label: label, size: size}
	return id, nil
}

func (a *accelerator) WriteBuffer(h BufferHandle, offset uint64, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.buffers[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, h)
	}
	if rec.shared {
		return fmt.Errorf("accelerator: %s is written through the graphics device", rec.label)
	}
	if offset+uint64(len(data)) > rec.size {
		return fmt.Errorf("%w: [%d, %d) of %q (%d bytes)", device.ErrOutOfRange, offset, offset+uint64(len(data)), rec.label, rec.size)
	}
	return a.backend.writeBuffer(h, offset, data)
}

func (a *accelerator) BufferSize(h BufferHandle) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.buffers[h]
	if !ok {
		return 0, false
	}
	return rec.size, true
}

func (a *accelerator) ReleaseBuffer(h BufferHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.buffers[h]
	if !ok || rec.shared {
		return
	}
	a.backend.releaseBuffer(h)
	delete(a.buffers, h)
}

func (a *accelerator) Acquire(hs ...BufferHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return ErrAcceleratorUnavailable
	}
	for _, h := range hs {
		rec, ok := a.buffers[h]
		if !ok || !rec.shared {
			return fmt.Errorf("%w: shared buffer %d", ErrUnknownBuffer, h)
		}
		if rec.acquired {
			return fmt.Errorf("%w: %s", ErrAlreadyAcquired, rec.label)
		}
	}
	if err := a.dev.Flush(); err != nil {
		return fmt.Errorf("accelerator: flush before acquire: %w", err)
	}
	if err := a.backend.acquire(hs); err != nil {
		return fmt.Errorf("accelerator: acquire: %w", err)
	}
	for _, h := range hs {
		a.buffers[h].acquired = true
	}
	return nil
}

func (a *accelerator) ReleaseShared(hs ...BufferHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, h := range hs {
		rec, ok := a.buffers[h]
		if !ok || !rec.shared {
			return fmt.Errorf("%w: shared buffer %d", ErrUnknownBuffer, h)
		}
		if !rec.acquired {
			return fmt.Errorf("%w: %s", ErrNotAcquired, rec.label)
		}
	}
	for _, h := range hs {
		a.buffers[h].acquired = false
	}
	if err := a.backend.release(hs); err != nil {
		return fmt.Errorf("accelerator: release: %w", err)
	}
	return nil
}

func (a *accelerator) Dispatch(entryPoint string, bindings []BufferHandle, invocations uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return ErrAcceleratorUnavailable
	}
	k, ok := a.kernels[entryPoint]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKernel, entryPoint)
	}
	if len(bindings) != len(k.Bindings) {
		return fmt.Errorf("accelerator: %q takes %d bindings, got %d", entryPoint, len(k.Bindings), len(bindings))
	}
	for i, h := range bindings {
		rec, ok := a.buffers[h]
		if !ok {
			return fmt.Errorf("%w: binding %s = %d", ErrUnknownBuffer, k.Bindings[i].Name, h)
		}
		if rec.shared && !rec.acquired {
			return fmt.Errorf("%w: %s bound to %s", ErrNotAcquired, rec.label, k.Bindings[i].Name)
		}
	}
	if invocations == 0 {
		return nil
	}
	groups, err := a.caps.Workgroups(invocations, k.WorkgroupSize())
	if err != nil {
		return fmt.Errorf("accelerator: dispatch %q: %w", entryPoint, err)
	}
	return a.backend.dispatch(k, bindings, groups, invocations)
}

func (a *accelerator) Run(shared []BufferHandle, fn func() error) (err error) {
	if err := a.Acquire(shared...); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.ReleaseShared(shared...))
	}()
	return fn()
}

func (a *accelerator) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return
	}
	var acquired []BufferHandle
	for h, rec := range a.buffers {
		if rec.acquired {
			acquired = append(acquired, h)
		}
	}
	if len(acquired) > 0 {
		if err := a.backend.release(acquired); err != nil {
			a.log.Warn("release on shutdown failed", "err", err)
		}
	}
	for h := range a.buffers {
		a.backend.releaseBuffer(h)
	}
	a.backend.shutdown()

	clear(a.buffers)
	clear(a.kernels)
	a.dev = nil
	a.caps = device.Capabilities{}
	a.initialized = false
	a.log.Info("accelerator shut down")
}

func (a *accelerator) BackendType() BackendType {
	return a.backendType
}

func newAcceleratorLogger(label string) *slog.Logger {
	l := logger.For("accelerator")
	if label != "" {
		l = l.With("label", label)
	}
	return l
}
