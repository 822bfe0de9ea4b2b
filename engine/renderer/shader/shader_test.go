package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderShadersValidate(t *testing.T) {
	for _, name := range RenderShaders {
		t.Run(name, func(t *testing.T) {
			s, err := Load(name, ShaderTypeRender)
			require.NoError(t, err)
			assert.Contains(t, s.EntryPoints(), "vs_main")
			assert.Contains(t, s.EntryPoints(), "fs_main")
			assert.Equal(t, [3]uint32{}, s.WorkgroupSize())
			assert.NotContains(t, s.Source(), annotationPrefix)

			require.NotEmpty(t, s.Bindings())
			assert.Equal(t, Binding{Group: 0, Binding: 0, Name: "u"}, s.Bindings()[0])
		})
	}
}

func TestSkinKernelReflects(t *testing.T) {
	s, err := Load(NameSkinVertices, ShaderTypeCompute)
	require.NoError(t, err)
	assert.Equal(t, []string{"skin_vertices"}, s.EntryPoints())
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkgroupSize())

	names := make([]string, 0, len(s.Bindings()))
	for _, b := range s.Bindings() {
		assert.Equal(t, uint32(0), b.Group)
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"inputs", "vertices", "bones", "params"}, names)
	assert.Len(t, s.Declarations(), 2)
}

func TestRenderShaderRequiresBothStages(t *testing.T) {
	src := `
@compute @workgroup_size(1)
fn main() {}
`
	_, err := NewShader("bad", ShaderTypeRender, src)
	assert.ErrorIs(t, err, ErrInvalidShader)

	_, err = NewShader("ok", ShaderTypeCompute, src)
	assert.NoError(t, err)
}

func TestInvalidSourceIsRejected(t *testing.T) {
	_, err := NewShader("broken", ShaderTypeCompute, "fn main( {")
	assert.ErrorIs(t, err, ErrInvalidShader)
}

func TestLoadUnknownShader(t *testing.T) {
	_, err := Load("missing", ShaderTypeRender)
	assert.Error(t, err)
}

func TestPreProcessorIncludesOnce(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@oxy:include skin_params\n//@oxy:include skin_params\n")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct SkinParams"))
	assert.Empty(t, pp.Declarations())
}

func TestPreProcessorGroupDeclaration(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@oxy:group 0 0 storage_read inputs array<skin_input>")
	require.NoError(t, err)
	assert.Equal(t, "@group(0) @binding(0) var<storage, read> inputs: array<SkinInput>;", out)

	require.Len(t, pp.Declarations(), 1)
	d := pp.Declarations()[0]
	assert.Equal(t, AnnotationTypeBindingGroup, d.Type)
	assert.Equal(t, 0, *d.Group)
	assert.Equal(t, 0, *d.Binding)
}

func TestParseAnnotationErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "//@oxy:",
		"unknown type":   "//@oxy:provider camera",
		"unknown struct": "//@oxy:include camera",
		"arg count":      "//@oxy:group 0 0 storage_uniform u",
		"bad group":      "//@oxy:group x 0 storage_uniform u draw_uniforms",
		"bad space":      "//@oxy:group 0 0 push_constant u draw_uniforms",
		"bad element":    "//@oxy:group 0 0 storage_read u array<camera>",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			a, err := parseAnnotation(line, 3)
			assert.Nil(t, a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 3")
		})
	}

	a, err := parseAnnotation("let x = 1; // plain comment", 1)
	assert.NoError(t, err)
	assert.Nil(t, a)
}
