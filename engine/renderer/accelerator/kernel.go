package accelerator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// BindingKind is the access a kernel declares on one of its buffers.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingStorageRead
	BindingStorageReadWrite
)

// String returns the WGSL spelling of the binding kind.
func (k BindingKind) String() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingStorageRead:
		return "storage, read"
	default:
		return "storage, read_write"
	}
}

// Binding is one reflected buffer binding of a kernel. Kernels bind group 0 only.
type Binding struct {
	Name    string
	Binding uint32
	Kind    BindingKind
}

// Kernel is a compiled compute entry point with its reflected workgroup size and bindings.
type Kernel struct {
	EntryPoint string
	Workgroup  [3]uint32
	Bindings   []Binding
}

// WorkgroupSize returns the number of invocations in one workgroup.
func (k Kernel) WorkgroupSize() uint32 {
	return k.Workgroup[0] * max(k.Workgroup[1], 1) * max(k.Workgroup[2], 1)
}

// compileKernels parses, lowers and validates WGSL source and reflects the named compute entry
// points. The returned log holds every diagnostic, one per line.
func compileKernels(source string, entryPoints []string, caps device.Capabilities) ([]*Kernel, string, error) {
	fail := func(stage string, errs ...error) ([]*Kernel, string, error) {
		joined := errors.Join(errs...)
		return nil, joined.Error(), fmt.Errorf("%w: %s: %w", ErrKernelCompile, stage, joined)
	}

	if len(entryPoints) == 0 {
		return fail("reflect", errors.New("no entry points requested"))
	}
	ast, err := naga.Parse(source)
	if err != nil {
		return fail("parse", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fail("lower", err)
	}
	diagnostics, err := naga.Validate(module)
	if err != nil {
		return fail("validate", err)
	}
	if len(diagnostics) > 0 {
		errs := make([]error, len(diagnostics))
		for i, d := range diagnostics {
			errs[i] = d
		}
		return fail("validate", errs...)
	}

	bindings, err := reflectBindings(module)
	if err != nil {
		return fail("reflect", err)
	}

	kernels := make([]*Kernel, 0, len(entryPoints))
	var errs []error
	for _, name := range entryPoints {
		i := slices.IndexFunc(module.EntryPoints, func(ep ir.EntryPoint) bool { return ep.Name == name })
		if i < 0 {
			errs = append(errs, fmt.Errorf("entry point %q not found", name))
			continue
		}
		ep := module.EntryPoints[i]
		if ep.Stage != ir.StageCompute {
			errs = append(errs, fmt.Errorf("entry point %q is not a compute entry point", name))
			continue
		}
		k := &Kernel{EntryPoint: name, Workgroup: ep.Workgroup, Bindings: bindings}
		if size := k.WorkgroupSize(); size == 0 {
			errs = append(errs, fmt.Errorf("entry point %q has no workgroup size", name))
			continue
		} else if caps.MaxComputeInvocationsPerWorkgroup > 0 && size > caps.MaxComputeInvocationsPerWorkgroup {
			errs = append(errs, fmt.Errorf("entry point %q workgroup size %d exceeds %d", name, size, caps.MaxComputeInvocationsPerWorkgroup))
			continue
		}
		kernels = append(kernels, k)
	}
	if len(errs) > 0 {
		return fail("reflect", errs...)
	}
	return kernels, "", nil
}

func reflectBindings(module *ir.Module) ([]Binding, error) {
	var out []Binding
	for _, g := range module.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		var kind BindingKind
		switch g.Space {
		case ir.SpaceUniform:
			kind = BindingUniform
		case ir.SpaceStorage:
			kind = BindingStorageReadWrite
			if g.Access == ir.StorageRead {
				kind = BindingStorageRead
			}
		default:
			return nil, fmt.Errorf("binding %q is not a buffer", g.Name)
		}
		if g.Binding.Group != 0 {
			return nil, fmt.Errorf("binding %q uses group %d; kernels bind group 0 only", g.Name, g.Binding.Group)
		}
		out = append(out, Binding{Name: g.Name, Binding: g.Binding.Binding, Kind: kind})
	}
	slices.SortFunc(out, func(a, b Binding) int { return int(a.Binding) - int(b.Binding) })
	for i := 1; i < len(out); i++ {
		if out[i].Binding == out[i-1].Binding {
			return nil, fmt.Errorf("bindings %q and %q share slot %d", out[i-1].Name, out[i].Name, out[i].Binding)
		}
	}
	return out, nil
}

// describeBindings renders the reflected layout for logs.
func describeBindings(bs []Binding) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = fmt.Sprintf("@binding(%d) %s<%s>", b.Binding, b.Name, b.Kind)
	}
	return strings.Join(parts, ", ")
}
