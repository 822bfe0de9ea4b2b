package accelerator

type acceleratorOptions struct {
	label       string
	workers     int
	hostKernels map[string]HostKernelFunc
}

// AcceleratorBuilderOption is a functional option applied to an accelerator during construction
// via NewAccelerator.
type AcceleratorBuilderOption func(*acceleratorOptions)

// WithLabel names the accelerator in logs.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - AcceleratorBuilderOption: a function that applies the label option
func WithLabel(label string) AcceleratorBuilderOption {
	return func(o *acceleratorOptions) {
		o.label = label
	}
}

// WithWorkers sets the worker pool size of the software backend. Defaults to GOMAXPROCS.
//
// Parameters:
//   - n: number of workers
//
// Returns:
//   - AcceleratorBuilderOption: a function that applies the workers option
func WithWorkers(n int) AcceleratorBuilderOption {
	return func(o *acceleratorOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithHostKernel registers the Go implementation of a kernel entry point for the software backend.
// The wgpu backend ignores host kernels.
//
// Parameters:
//   - entryPoint: the WGSL entry point name the function implements
//   - fn: the host kernel
//
// Returns:
//   - AcceleratorBuilderOption: a function that applies the host kernel option
func WithHostKernel(entryPoint string, fn HostKernelFunc) AcceleratorBuilderOption {
	return func(o *acceleratorOptions) {
		if fn != nil {
			o.hostKernels[entryPoint] = fn
		}
	}
}
