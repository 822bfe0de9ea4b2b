package renderer

import "github.com/Carmen-Shannon/oxy-skin/engine/light"

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLight sets the scene light. Defaults to light.NewLight().
//
// Parameters:
//   - l: the light
//
// Returns:
//   - RendererBuilderOption: a function that applies the light option to a renderer
func WithLight(l light.Light) RendererBuilderOption {
	return func(r *renderer) {
		r.light = l
	}
}

// WithKernelSource replaces the embedded skinning kernel with WGSL source that must define the
// skin_vertices entry point over the same bindings.
//
// Parameters:
//   - source: WGSL kernel source
//
// Returns:
//   - RendererBuilderOption: a function that applies the kernel source option to a renderer
func WithKernelSource(source string) RendererBuilderOption {
	return func(r *renderer) {
		r.kernelSource = source
	}
}

// WithAcceleratorWorkers sets the worker count of the software accelerator. Ignored by the WebGPU
// accelerator.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker option to a renderer
func WithAcceleratorWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}
