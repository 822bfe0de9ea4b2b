package device

import "github.com/cogentcore/webgpu/wgpu"

type deviceOptions struct {
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	width, height        int
	forceFallbackAdapter bool
	sampleCount          MSAASampleCount
	presentMode          PresentMode
	clearColor           [4]float64
	capabilities         *Capabilities
	uniformSlots         int
}

// DeviceBuilderOption is a functional option applied to a device during construction via NewDevice.
type DeviceBuilderOption func(*deviceOptions)

// WithSurface renders into a window surface instead of an offscreen target.
//
// Parameters:
//   - desc: the platform surface descriptor, e.g. from the glfw window
//
// Returns:
//   - DeviceBuilderOption: a function that applies the surface option
func WithSurface(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.surfaceDescriptor = desc
	}
}

// WithSize sets the initial render target size in pixels.
//
// Parameters:
//   - width, height: the size
//
// Returns:
//   - DeviceBuilderOption: a function that applies the size option
func WithSize(width, height int) DeviceBuilderOption {
	return func(o *deviceOptions) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithForceSoftwareAdapter forces WGPU to pick a CPU fallback adapter (e.g. lavapipe or SwiftShader).
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the fallback adapter option
func WithForceSoftwareAdapter(force bool) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.forceFallbackAdapter = force
	}
}

// WithMSAA sets the multisample count of the main render target.
//
// Parameters:
//   - count: MSAAOff or MSAA4x
//
// Returns:
//   - DeviceBuilderOption: a function that applies the MSAA option
func WithMSAA(count MSAASampleCount) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.sampleCount = count
	}
}

// WithPresentMode sets the surface present mode.
//
// Parameters:
//   - mode: PresentModeVSync or PresentModeUncapped
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.presentMode = mode
	}
}

// WithClearColor sets the background color of every frame.
//
// Parameters:
//   - rgba: the clear color
//
// Returns:
//   - DeviceBuilderOption: a function that applies the clear color option
func WithClearColor(rgba [4]float64) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.clearColor = rgba
	}
}

// WithCapabilities overrides the capabilities reported by the recording device.
//
// Parameters:
//   - caps: the capabilities to report
//
// Returns:
//   - DeviceBuilderOption: a function that applies the capabilities option
func WithCapabilities(caps Capabilities) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.capabilities = &caps
	}
}

// WithUniformSlots sets how many draws one frame may issue.
//
// Parameters:
//   - n: the number of per-draw uniform slots
//
// Returns:
//   - DeviceBuilderOption: a function that applies the uniform slot option
func WithUniformSlots(n int) DeviceBuilderOption {
	return func(o *deviceOptions) {
		if n > 0 {
			o.uniformSlots = n
		}
	}
}
