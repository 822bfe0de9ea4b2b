package device

import "fmt"

// BackendType identifies the Device implementation created by NewDevice.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU device, rendering to a window surface or an offscreen target.
	BackendTypeWGPU BackendType = iota

	// BackendTypeRecording selects the host-memory device that records state changes and draws
	// instead of rasterizing them.
	BackendTypeRecording
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately. May tear.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing.
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

// NewDevice creates a Device of the given backend type.
//
// Parameters:
//   - backendType: the backend to create
//   - options: a variadic list of DeviceBuilderOption functions
//
// Returns:
//   - Device: the initialized device
//   - error: error if the backend cannot be initialized
func NewDevice(backendType BackendType, options ...DeviceBuilderOption) (Device, error) {
	o := &deviceOptions{
		width:        1280,
		height:       720,
		sampleCount:  MSAA4x,
		presentMode:  PresentModeVSync,
		clearColor:   [4]float64{0.1, 0.1, 0.1, 1},
		uniformSlots: 4096,
	}
	for _, opt := range options {
		opt(o)
	}

	switch backendType {
	case BackendTypeWGPU:
		return newWGPUDeviceBackend(o)
	case BackendTypeRecording:
		return newRecordingDeviceBackend(o), nil
	default:
		return nil, fmt.Errorf("device: unknown backend type %d", backendType)
	}
}
