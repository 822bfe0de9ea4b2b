package renderer

import "github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"

// ModelRendererBuilderOption is a functional option applied to a model renderer during construction
// via Renderer.NewModelRenderer.
type ModelRendererBuilderOption func(*modelRenderer)

// WithAcceleratedSkinning requests skinning on the renderer's accelerator. The request is honored by
// Upload only if the accelerator is available and the vertex stream can be shared.
//
// Parameters:
//   - enabled: true to request the accelerator
//
// Returns:
//   - ModelRendererBuilderOption: a function that applies the accelerator option
func WithAcceleratedSkinning(enabled bool) ModelRendererBuilderOption {
	return func(mr *modelRenderer) {
		mr.useAccelerator = enabled
	}
}

// WithEdgeWidth sets the global outline width. Defaults to 1.
//
// Parameters:
//   - width: the width
//
// Returns:
//   - ModelRendererBuilderOption: a function that applies the edge width option
func WithEdgeWidth(width float32) ModelRendererBuilderOption {
	return func(mr *modelRenderer) {
		mr.edgeWidth = width
	}
}

// WithOpaqueThreshold overrides material.DefaultOpaqueThreshold for this model.
//
// Parameters:
//   - threshold: the opacity at and above which a material counts as opaque
//
// Returns:
//   - ModelRendererBuilderOption: a function that applies the threshold option
func WithOpaqueThreshold(threshold float32) ModelRendererBuilderOption {
	return func(mr *modelRenderer) {
		mr.threshold = threshold
	}
}

// WithPassEnabled sets the initial toggle of one pass. Every pass is enabled by default.
//
// Parameters:
//   - pass: the pass
//   - enabled: true to draw it
//
// Returns:
//   - ModelRendererBuilderOption: a function that applies the pass toggle
func WithPassEnabled(pass material.Pass, enabled bool) ModelRendererBuilderOption {
	return func(mr *modelRenderer) {
		if pass >= 0 && int(pass) < len(mr.enabled) {
			mr.enabled[pass] = enabled
		}
	}
}

// WithParallelism sets the number of goroutines used by CPU skinning.
//
// Parameters:
//   - workers: the worker count, values below 1 are ignored
//
// Returns:
//   - ModelRendererBuilderOption: a function that applies the parallelism option
func WithParallelism(workers int) ModelRendererBuilderOption {
	return func(mr *modelRenderer) {
		if workers > 0 {
			mr.workers = workers
		}
	}
}
