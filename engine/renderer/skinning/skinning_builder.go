package skinning

import "github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"

type skinnerOptions struct {
	acc       accelerator.Accelerator
	boneCount int
	edgeSize  float32
	lightDir  [3]float32
	workers   int
}

// SkinnerBuilderOption is a functional option applied to a skinner during construction via NewSkinner.
type SkinnerBuilderOption func(*skinnerOptions)

// WithAccelerator requests accelerated skinning on acc. The request is honored only when acc has
// compiled the skinning kernel and the vertex stream is shared.
//
// Parameters:
//   - acc: the accelerator, may be nil
//
// Returns:
//   - SkinnerBuilderOption: a function that applies the accelerator option
func WithAccelerator(acc accelerator.Accelerator) SkinnerBuilderOption {
	return func(o *skinnerOptions) {
		o.acc = acc
	}
}

// WithBoneCount sets the number of bones every BoneTable passed to Update carries.
// Zero makes the model rigid and skinning the identity.
//
// Parameters:
//   - n: the bone count
//
// Returns:
//   - SkinnerBuilderOption: a function that applies the bone count option
func WithBoneCount(n int) SkinnerBuilderOption {
	return func(o *skinnerOptions) {
		o.boneCount = max(n, 0)
	}
}

// WithEdgeSize sets the initial global outline width. Defaults to 1.
//
// Parameters:
//   - size: the edge width
//
// Returns:
//   - SkinnerBuilderOption: a function that applies the edge size option
func WithEdgeSize(size float32) SkinnerBuilderOption {
	return func(o *skinnerOptions) {
		o.edgeSize = size
	}
}

// WithLightDirection sets the initial direction the light travels.
//
// Parameters:
//   - dir: the light direction
//
// Returns:
//   - SkinnerBuilderOption: a function that applies the light direction option
func WithLightDirection(dir [3]float32) SkinnerBuilderOption {
	return func(o *skinnerOptions) {
		o.lightDir = dir
	}
}

// WithParallelism sets the number of workers CPU skinning fans out to on large meshes.
// Defaults to 1 (no worker pool).
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - SkinnerBuilderOption: a function that applies the parallelism option
func WithParallelism(workers int) SkinnerBuilderOption {
	return func(o *skinnerOptions) {
		if workers > 0 {
			o.workers = workers
		}
	}
}
