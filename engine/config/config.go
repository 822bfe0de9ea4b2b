// Package config loads the engine configuration file (oxy-skin.toml) and translates it into the
// builder options of the device, renderer, model renderer and light.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Carmen-Shannon/oxy-skin/engine/light"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the configuration file name looked up in the working directory.
const DefaultFile = "oxy-skin.toml"

// Config holds every configurable engine setting.
type Config struct {
	Render      Render      `toml:"render"`
	Accelerator Accelerator `toml:"accelerator"`
	Light       Light       `toml:"light"`
	Capture     Capture     `toml:"capture"`
	Log         Log         `toml:"log"`
}

// Render configures the device and the material passes.
type Render struct {
	Width           int        `toml:"width"`
	Height          int        `toml:"height"`
	MSAA            bool       `toml:"msaa"`
	VSync           bool       `toml:"vsync"`
	SoftwareAdapter bool       `toml:"software_adapter"`
	ClearColor      [4]float64 `toml:"clear_color"`
	FrameLimit      float64    `toml:"frame_limit"`
	EdgeWidth       float32    `toml:"edge_width"`
	OpaqueThreshold float32    `toml:"opaque_threshold"`
	Passes          Passes     `toml:"passes"`
}

// Passes holds the initial pass toggles.
type Passes struct {
	ZPrepass bool `toml:"zprepass"`
	Shadow   bool `toml:"shadow"`
	Model    bool `toml:"model"`
	Edge     bool `toml:"edge"`
}

// Accelerator configures accelerated skinning.
type Accelerator struct {
	Enabled bool `toml:"enabled"`
	Workers int  `toml:"workers"`

	// Kernel is an optional path to a WGSL file replacing the embedded skinning kernel.
	Kernel string `toml:"kernel"`
}

// Light configures the scene light.
type Light struct {
	Direction    [3]float32 `toml:"direction"`
	Color        [3]float32 `toml:"color"`
	ShadowColor  [4]float32 `toml:"shadow_color"`
	ShadowPlane  [4]float32 `toml:"shadow_plane"`
	CastsShadows bool       `toml:"casts_shadows"`
}

// Capture configures the offscreen render command.
type Capture struct {
	Output string  `toml:"output"`
	Frames int     `toml:"frames"`
	FPS    float64 `toml:"fps"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Flags holds command line values that override the file. Zero values leave the file untouched.
type Flags struct {
	Width       int
	Height      int
	Accelerated *bool
	Output      string
	Frames      int
	LogLevel    string
}

// Default returns the configuration used when no file exists.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Render: Render{
			Width:           1280,
			Height:          720,
			MSAA:            true,
			VSync:           true,
			ClearColor:      [4]float64{0.16, 0.16, 0.2, 1},
			EdgeWidth:       1,
			OpaqueThreshold: material.DefaultOpaqueThreshold,
			Passes:          Passes{ZPrepass: true, Shadow: true, Model: true, Edge: true},
		},
		Accelerator: Accelerator{
			Enabled: true,
			Workers: runtime.NumCPU(),
		},
		Light: Light{
			Direction:    [3]float32{-0.5, -1, -0.5},
			Color:        [3]float32{0.6, 0.6, 0.6},
			ShadowColor:  [4]float32{0, 0, 0, 0.5},
			ShadowPlane:  light.GroundPlane,
			CastsShadows: true,
		},
		Capture: Capture{
			Output: "frame.webp",
			Frames: 1,
			FPS:    30,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML configuration file over the defaults. A missing file yields the defaults.
// Keys absent from the file keep their default values.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the configuration
//   - error: error if the file cannot be read or parsed
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Accelerator.Kernel != "" && !filepath.IsAbs(cfg.Accelerator.Kernel) {
		cfg.Accelerator.Kernel = filepath.Join(filepath.Dir(path), cfg.Accelerator.Kernel)
	}
	return cfg, nil
}

// Decode parses TOML over the defaults. Unknown keys are rejected.
//
// Parameters:
//   - r: the TOML source
//
// Returns:
//   - Config: the configuration
//   - error: error if the source is not valid TOML or names an unknown key
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes the configuration as TOML.
//
// Parameters:
//   - w: the destination
//
// Returns:
//   - error: error if writing fails
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Resolve applies command line overrides.
//
// Parameters:
//   - flags: the overrides
func (c *Config) Resolve(flags Flags) {
	if flags.Width > 0 {
		c.Render.Width = flags.Width
	}
	if flags.Height > 0 {
		c.Render.Height = flags.Height
	}
	if flags.Accelerated != nil {
		c.Accelerator.Enabled = *flags.Accelerated
	}
	if flags.Output != "" {
		c.Capture.Output = flags.Output
	}
	if flags.Frames > 0 {
		c.Capture.Frames = flags.Frames
	}
	if flags.LogLevel != "" {
		c.Log.Level = flags.LogLevel
	}
}

// Logger builds the process logger described by the [log] table.
//
// Parameters:
//   - w: the log destination
//
// Returns:
//   - *slog.Logger: a text or JSON logger at the configured level
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logger.ParseLevel(c.Log.Level)}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DeviceOptions returns the device builder options of the [render] table.
//
// Returns:
//   - []device.DeviceBuilderOption: the options
func (c Config) DeviceOptions() []device.DeviceBuilderOption {
	msaa, present := device.MSAAOff, device.PresentModeUncapped
	if c.Render.MSAA {
		msaa = device.MSAA4x
	}
	if c.Render.VSync {
		present = device.PresentModeVSync
	}
	return []device.DeviceBuilderOption{
		device.WithSize(c.Render.Width, c.Render.Height),
		device.WithMSAA(msaa),
		device.WithPresentMode(present),
		device.WithClearColor(c.Render.ClearColor),
		device.WithForceSoftwareAdapter(c.Render.SoftwareAdapter),
	}
}

// LightOptions returns the light builder options of the [light] table.
//
// Returns:
//   - []light.LightBuilderOption: the options
func (c Config) LightOptions() []light.LightBuilderOption {
	return []light.LightBuilderOption{
		light.WithDirection(c.Light.Direction[0], c.Light.Direction[1], c.Light.Direction[2]),
		light.WithColor(c.Light.Color[0], c.Light.Color[1], c.Light.Color[2]),
		light.WithShadowColor(c.Light.ShadowColor),
		light.WithShadowPlane(c.Light.ShadowPlane),
		light.WithCastsShadows(c.Light.CastsShadows),
	}
}

// RendererOptions returns the renderer builder options of the [light] and [accelerator] tables.
//
// Returns:
//   - []renderer.RendererBuilderOption: the options
//   - error: error if the kernel file cannot be read
func (c Config) RendererOptions() ([]renderer.RendererBuilderOption, error) {
	opts := []renderer.RendererBuilderOption{
		renderer.WithLight(light.NewLight(c.LightOptions()...)),
		renderer.WithAcceleratorWorkers(c.Accelerator.Workers),
	}
	if c.Accelerator.Kernel != "" {
		src, err := os.ReadFile(c.Accelerator.Kernel)
		if err != nil {
			return nil, fmt.Errorf("config: kernel: %w", err)
		}
		opts = append(opts, renderer.WithKernelSource(string(src)))
	}
	return opts, nil
}

// ModelOptions returns the model renderer builder options of the [render] and [accelerator] tables.
//
// Returns:
//   - []renderer.ModelRendererBuilderOption: the options
func (c Config) ModelOptions() []renderer.ModelRendererBuilderOption {
	return []renderer.ModelRendererBuilderOption{
		renderer.WithAcceleratedSkinning(c.Accelerator.Enabled),
		renderer.WithEdgeWidth(c.Render.EdgeWidth),
		renderer.WithOpaqueThreshold(c.Render.OpaqueThreshold),
		renderer.WithParallelism(c.Accelerator.Workers),
		renderer.WithPassEnabled(material.PassZPrepass, c.Render.Passes.ZPrepass),
		renderer.WithPassEnabled(material.PassShadow, c.Render.Passes.Shadow),
		renderer.WithPassEnabled(material.PassModel, c.Render.Passes.Model),
		renderer.WithPassEnabled(material.PassEdge, c.Render.Passes.Edge),
	}
}
