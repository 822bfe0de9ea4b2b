package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-skin/engine"
	"github.com/Carmen-Shannon/oxy-skin/engine/camera"
	"github.com/Carmen-Shannon/oxy-skin/engine/config"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/HugoSmits86/nativewebp"
)

// runRender draws the demo offscreen and writes the last frame, or every frame when more than one
// is requested, as WebP.
func runRender(cfg config.Config, o options) error {
	log := logger.For("render")

	d, err := newDemo(o)
	if err != nil {
		return err
	}
	dev, err := device.NewDevice(device.BackendTypeWGPU, cfg.DeviceOptions()...)
	if err != nil {
		return err
	}
	defer dev.Release()
	capturer, ok := dev.(device.Capturer)
	if !ok {
		return errors.New("device cannot capture frames")
	}

	ropts, err := cfg.RendererOptions()
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(dev, ropts...)
	if err != nil {
		return err
	}
	defer r.Release()

	mr := r.NewModelRenderer(d.model, cfg.ModelOptions()...)
	if err := mr.Upload(d.textures); err != nil {
		return err
	}

	cam := newCamera(cfg, d)
	e := engine.NewEngine(engine.WithRenderer(r), engine.WithCamera(cam), engine.WithActor(engine.Actor{Model: mr, Pose: d.pose}))

	frames := max(cfg.Capture.Frames, 1)
	dt := float32(1 / max(cfg.Capture.FPS, 1))
	for i := range frames {
		if err := e.Frame(); err != nil {
			return err
		}
		if frames > 1 || i == frames-1 {
			img, err := capturer.Capture()
			if err != nil {
				return err
			}
			path := framePath(cfg.Capture.Output, i, frames)
			if err := writeWebP(path, img); err != nil {
				return err
			}
			log.Info("frame written", "path", path, "mode", mr.SkinningMode())
		}
		e.Advance(dt)
	}
	return nil
}

func newCamera(cfg config.Config, d demo) camera.Camera {
	cam := camera.NewCamera(camera.WithAspect(float32(cfg.Render.Width) / float32(max(cfg.Render.Height, 1))))
	ctrl := cam.Controller()
	ctrl.Frame([3]float32{0, d.bounds / 2, 0}, d.bounds*0.75, cam.Fov())
	ctrl.Step(8, 4)
	return cam
}

// framePath numbers the output file when several frames are written.
func framePath(output string, i, frames int) string {
	if frames == 1 {
		return output
	}
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s-%03d%s", strings.TrimSuffix(output, ext), i, ext)
}

func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
