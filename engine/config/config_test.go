package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[render]
width = 640
edge_width = 0.5
opaque_threshold = 0.9

[render.passes]
zprepass = false
shadow = true
model = true
edge = false

[accelerator]
enabled = false

[log]
level = "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Render.Width)
	assert.Equal(t, 720, cfg.Render.Height)
	assert.Equal(t, float32(0.5), cfg.Render.EdgeWidth)
	assert.Equal(t, float32(0.9), cfg.Render.OpaqueThreshold)
	assert.False(t, cfg.Render.Passes.ZPrepass)
	assert.False(t, cfg.Render.Passes.Edge)
	assert.False(t, cfg.Accelerator.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Light.CastsShadows)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[render]\nwidht = 3\n"))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("[render\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestEncodeRoundTripsDefaults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))
	cfg, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestResolveFlags(t *testing.T) {
	cfg := Default()
	off := false
	cfg.Resolve(Flags{Width: 320, Accelerated: &off, Output: "out.webp", Frames: 12})
	assert.Equal(t, 320, cfg.Render.Width)
	assert.Equal(t, 720, cfg.Render.Height)
	assert.False(t, cfg.Accelerator.Enabled)
	assert.Equal(t, "out.webp", cfg.Capture.Output)
	assert.Equal(t, 12, cfg.Capture.Frames)
}

func TestKernelPathIsRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("[accelerator]\nkernel = \"custom.wgsl\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.wgsl"), cfg.Accelerator.Kernel)

	_, err = cfg.RendererOptions()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(cfg.Accelerator.Kernel, []byte("// kernel"), 0o644))
	opts, err := cfg.RendererOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 3)
}

func TestModelOptionsCarryThreshold(t *testing.T) {
	cfg := Default()
	assert.Equal(t, material.DefaultOpaqueThreshold, cfg.Render.OpaqueThreshold)
	assert.Len(t, cfg.ModelOptions(), 8)
}
