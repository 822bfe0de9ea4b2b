// Command oxy-skin renders the procedural skinned column through the full material pipeline,
// either offscreen to WebP files (render) or in an interactive window (view).
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-skin/engine/config"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
)

const usage = `usage: oxy-skin <command> [flags]

commands:
  render   render frames offscreen and write them as WebP
  view     open an interactive window
  config   print the effective configuration as TOML
`

// options are the flags shared by every command.
type options struct {
	configPath string
	materials  string
	segments   int
	bones      int
	flags      config.Flags
	cpu        bool
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var o options
	fs.StringVar(&o.configPath, "config", config.DefaultFile, "Path to the TOML engine configuration")
	fs.StringVar(&o.materials, "materials", "", "Path to a YAML material override file")
	fs.IntVar(&o.segments, "segments", 24, "Vertices around the column")
	fs.IntVar(&o.bones, "bones", 4, "Bones along the column")
	fs.IntVar(&o.flags.Width, "width", 0, "Framebuffer width (default: config)")
	fs.IntVar(&o.flags.Height, "height", 0, "Framebuffer height (default: config)")
	fs.IntVar(&o.flags.Frames, "frames", 0, "Frames to render (default: config)")
	fs.StringVar(&o.flags.Output, "out", "", "Output file for render (default: config)")
	fs.StringVar(&o.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default: config)")
	fs.BoolVar(&o.cpu, "cpu", false, "Skin on the CPU even if an accelerator is available")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if o.cpu {
		off := false
		o.flags.Accelerated = &off
	}
	cfg.Resolve(o.flags)
	logger.SetLogger(cfg.Logger(os.Stderr))

	switch cmd {
	case "render":
		err = runRender(cfg, o)
	case "view":
		err = runView(cfg, o)
	case "config":
		err = cfg.Encode(os.Stdout)
	default:
		err = errors.New("unknown command " + cmd)
		fmt.Fprint(os.Stderr, usage)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
