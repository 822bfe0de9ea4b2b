package main

import (
	"github.com/Carmen-Shannon/oxy-skin/engine"
	"github.com/Carmen-Shannon/oxy-skin/engine/config"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-skin/engine/window"
)

// passKeys toggles one pass per key.
var passKeys = map[uint32]material.Pass{
	window.KeyE: material.PassEdge,
	window.KeyX: material.PassShadow,
	window.KeyZ: material.PassZPrepass,
	window.KeyM: material.PassModel,
}

// runView opens a window and animates the demo until it is closed.
//
// Controls: left drag orbits, scroll zooms, right drag pans, arrow keys step the orbit, E/X/Z/M toggle
// the edge/shadow/zprepass/model passes, P pauses the animation. Space requests the other skinning mode,
// which only takes effect on the next upload.
func runView(cfg config.Config, o options) error {
	log := logger.For("view")

	d, err := newDemo(o)
	if err != nil {
		return err
	}
	w, err := window.NewWindow(window.WithTitle("oxy-skin"), window.WithSize(cfg.Render.Width, cfg.Render.Height))
	if err != nil {
		return err
	}
	defer w.Close()

	dopts := append(cfg.DeviceOptions(),
		device.WithSurface(w.SurfaceDescriptor()),
		device.WithSize(w.Width(), w.Height()))
	dev, err := device.NewDevice(device.BackendTypeWGPU, dopts...)
	if err != nil {
		return err
	}
	defer dev.Release()

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
	log.Info("model ready", "mode", mr.SkinningMode())

	e := engine.NewEngine(
		engine.WithWindow(w),
		engine.WithRenderer(r),
		engine.WithCamera(newCamera(cfg, d)),
		engine.WithActor(engine.Actor{Model: mr, Pose: d.pose}),
		engine.WithProfiling(true),
		engine.WithRenderFrameLimit(cfg.Render.FrameLimit),
	)
	bindInput(e, w, mr)
	return e.Run()
}

func bindInput(e engine.Engine, w window.Window, mr renderer.ModelRenderer) {
	ctrl := e.Camera().Controller()
	var orbiting, panning, paused bool
	var lastX, lastY int32

	w.SetMouseButtonCallback(func(b window.MouseButton, pressed bool, x, y int32) {
		switch b {
		case window.MouseButtonLeft:
			orbiting = pressed
		case window.MouseButtonRight, window.MouseButtonMiddle:
			panning = pressed
		}
		lastX, lastY = x, y
	})
	w.SetMouseMoveCallback(func(x, y int32) {
		dx, dy := float32(x-lastX), float32(y-lastY)
		lastX, lastY = x, y
		switch {
		case orbiting:
			ctrl.Orbit(dx, dy)
		case panning:
			ctrl.Pan(-dx*0.01, dy*0.01)
		}
	})
	w.SetScrollCallback(func(delta float32) {
		ctrl.Zoom(delta)
	})
	w.SetKeyDownCallback(func(key uint32) {
		switch key {
		case window.KeyLeft:
			ctrl.Step(-1, 0)
		case window.KeyRight:
			ctrl.Step(1, 0)
		case window.KeyUp:
			ctrl.Step(0, 1)
		case window.KeyDown:
			ctrl.Step(0, -1)
		case window.KeyP:
			paused = !paused
			e.SetPaused(paused)
		case window.KeySpace:
			mr.SetAcceleratorEnabled(!mr.AcceleratorEnabled())
		default:
			if pass, ok := passKeys[key]; ok {
				mr.SetPassEnabled(pass, !mr.PassEnabled(pass))
			}
		}
	})
}
