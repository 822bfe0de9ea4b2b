package shader

import (
	"embed"
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

//go:embed assets/*.wgsl
var assets embed.FS

// Names of the shaders shipped with the renderer.
const (
	NameModel         = "model"
	NameEdge          = "edge"
	NameShadow        = "shadow"
	NameZPlot         = "zplot"
	NameSkinVertices  = "skin_vertices"
	renderVertexEntry = "vs_main"
	renderFragEntry   = "fs_main"
)

// ErrInvalidShader wraps every parse, lowering, validation and entry point failure.
var ErrInvalidShader = errors.New("shader: invalid source")

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing at least one @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeRender indicates a shader containing a vs_main vertex and an fs_main fragment entry point.
	ShaderTypeRender
)

// String returns the shader type name.
func (t ShaderType) String() string {
	if t == ShaderTypeCompute {
		return "compute"
	}
	return "render"
}

// Binding is one reflected resource binding of a shader.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoints   []string
	workGroupSize [3]uint32
	bindings      []Binding

	pp PreProcessor
}

// Shader is a pre-processed WGSL source that naga has parsed, lowered and validated, together with
// the entry points and bindings reflected from it.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source, ready for a device or accelerator.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the type of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeRender or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoints returns the names of every entry point in the shader, in declaration order.
	//
	// Returns:
	//   - []string: the entry point names
	EntryPoints() []string

	// WorkgroupSize returns the workgroup size of the first compute entry point.
	// Returns [0, 0, 0] for render shaders.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every resource binding declared by the shader, ordered by group then binding.
	//
	// Returns:
	//   - []Binding: the reflected bindings
	Bindings() []Binding

	// Declarations returns the @oxy:group annotations the pre-processor expanded.
	//
	// Returns:
	//   - []Annotation: the group annotations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and validates a WGSL source.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the type of shader, which decides the entry points it must carry
//   - source: the raw WGSL source with @oxy annotations
//
// Returns:
//   - Shader: the validated shader
//   - error: ErrInvalidShader wrapping the first failing stage
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		pp:         NewPreProcessor(),
	}
	var err error
	if s.source, err = s.pp.Process(source); err != nil {
		return nil, fmt.Errorf("%w: %s: pre-process: %w", ErrInvalidShader, key, err)
	}
	if err = s.reflect(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidShader, key, err)
	}
	return s, nil
}

// Load reads one of the embedded renderer shaders by name and validates it.
//
// Parameters:
//   - name: the shader name, one of the Name constants
//   - shaderType: the expected type of the shader
//
// Returns:
//   - Shader: the validated shader
//   - error: a read failure or ErrInvalidShader
func Load(name string, shaderType ShaderType) (Shader, error) {
	data, err := assets.ReadFile("assets/" + name + ".wgsl")
	if err != nil {
		return nil, fmt.Errorf("shader: %s: %w", name, err)
	}
	return NewShader(name, shaderType, string(data))
}

// RenderShaders lists the render shader names in technique order.
var RenderShaders = []string{NameModel, NameEdge, NameShadow, NameZPlot}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoints() []string {
	return s.entryPoints
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

// reflect runs the source through naga and extracts entry points, workgroup size and bindings.
func (s *shader) reflect() error {
	ast, err := naga.Parse(s.source)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	module, err := naga.LowerWithSource(ast, s.source)
	if err != nil {
		return fmt.Errorf("lower: %w", err)
	}
	diagnostics, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if len(diagnostics) > 0 {
		errs := make([]error, len(diagnostics))
		for i, d := range diagnostics {
			errs[i] = d
		}
		return fmt.Errorf("validate: %w", errors.Join(errs...))
	}

	stages := make(map[string]ir.ShaderStage, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		s.entryPoints = append(s.entryPoints, ep.Name)
		stages[ep.Name] = ep.Stage
		if ep.Stage == ir.StageCompute && s.workGroupSize == [3]uint32{} {
			s.workGroupSize = ep.Workgroup
		}
	}

	switch s.shaderType {
	case ShaderTypeRender:
		if st, ok := stages[renderVertexEntry]; !ok || st != ir.StageVertex {
			return fmt.Errorf("missing @vertex %s", renderVertexEntry)
		}
		if st, ok := stages[renderFragEntry]; !ok || st != ir.StageFragment {
			return fmt.Errorf("missing @fragment %s", renderFragEntry)
		}
	case ShaderTypeCompute:
		if s.workGroupSize == [3]uint32{} {
			return errors.New("no @compute entry point")
		}
	}

	for _, g := range module.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		s.bindings = append(s.bindings, Binding{Group: g.Binding.Group, Binding: g.Binding.Binding, Name: g.Name})
	}
	slices.SortFunc(s.bindings, func(a, b Binding) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Binding) - int(b.Binding)
	})
	return nil
}
