package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverridesApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "materials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
materials:
  - name: veil
    opacity: 0.97
    draw_edge: false
    toon: 2
toon:
  2: ramp
textures:
  ramp: ramp.png
sway: 0.5
`), 0o644))

	ov, err := loadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ramp.png"), ov.Textures["ramp"])

	m, err := ov.apply(model.NewBendingColumn("column", 6, 4, 2, 2, 0.3))
	require.NoError(t, err)
	veil := m.Materials()[1]
	assert.Equal(t, float32(0.97), veil.Opacity)
	assert.False(t, veil.DrawEdge)
	assert.Equal(t, 2, veil.ToonIndex)
	assert.Equal(t, "ramp", m.ToonTexture(2))
	assert.Equal(t, "toon01", m.ToonTexture(1))
	assert.Equal(t, float32(1), m.Materials()[0].Opacity)
}

func TestOverridesRejectUnknownMaterial(t *testing.T) {
	ov := overrides{Materials: []materialOverride{{Name: "cape"}}}
	_, err := ov.apply(model.NewBendingColumn("column", 6, 4, 2, 2, 0.3))
	assert.Error(t, err)
}

func TestFramePath(t *testing.T) {
	assert.Equal(t, "out.webp", framePath("out.webp", 0, 1))
	assert.Equal(t, "out-007.webp", framePath("out.webp", 7, 12))
}

func TestBuiltinTexturesCoverDemoMaterials(t *testing.T) {
	set, err := builtinTextures()
	require.NoError(t, err)
	m := model.NewBendingColumn("column", 6, 4, 2, 2, 0.3)
	for _, d := range m.Materials() {
		assert.Contains(t, set, d.MainTexture)
	}
	assert.Contains(t, set, m.ToonTexture(1))
}
