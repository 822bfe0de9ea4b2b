package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-skin/engine/camera"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	"github.com/Carmen-Shannon/oxy-skin/engine/profiler"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
	"github.com/Carmen-Shannon/oxy-skin/engine/window"
)

// ErrNoRenderer reports a frame requested from an engine built without WithRenderer.
var ErrNoRenderer = errors.New("engine: no renderer")

// engine implements the Engine interface.
// Coordinates the tick and render goroutines and the window thread.
type engine struct {
	mu  *sync.Mutex
	log *slog.Logger

	tickRateChannel chan time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window   window.Window
	renderer renderer.Renderer
	camera   camera.Camera
	actors   []Actor
	elapsed  float32
	paused   bool

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration
}

// Engine drives the frame loop of the viewer: a fixed-rate tick goroutine advancing the animation
// clock and a render goroutine drawing every actor once per frame.
type Engine interface {
	// Window returns the underlying window, nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Camera returns the camera whose view-projection is handed to the renderer each frame.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Profiler returns the frame profiler.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance reports in the log.
	EnableProfiler()

	// DisableProfiler disables performance reports.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, after the clock advanced.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddActor registers an actor. Actors are drawn in registration order.
	//
	// Parameters:
	//   - a: the actor
	AddActor(a Actor)

	// RemoveActor removes every actor whose model has the given name.
	//
	// Parameters:
	//   - name: the model name
	RemoveActor(name string)

	// Actors returns a copy of the registered actors.
	//
	// Returns:
	//   - []Actor: the actors
	Actors() []Actor

	// Advance moves the animation clock forward unless the engine is paused.
	//
	// Parameters:
	//   - dt: seconds to advance
	Advance(dt float32)

	// SetPaused freezes or resumes the animation clock.
	//
	// Parameters:
	//   - paused: true to freeze
	SetPaused(paused bool)

	// Elapsed returns the animation clock in seconds.
	//
	// Returns:
	//   - float32: the clock
	Elapsed() float32

	// Frame renders one frame of every actor synchronously: camera update, BeginFrame, each actor's
	// RenderFrame with its pose at the current clock, EndFrame. Actor failures are logged and
	// recorded by the profiler; they do not stop the remaining actors.
	//
	// Returns:
	//   - error: ErrNoRenderer, or a BeginFrame / EndFrame failure
	Frame() error

	// Run starts the tick and render goroutines and runs the window message loop on the calling
	// goroutine. Blocks until the window closes.
	//
	// Returns:
	//   - error: error if the engine has no window or no renderer
	Run() error

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.Mutex{},
		log:             logger.For("engine"),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.camera == nil {
		e.camera = camera.NewCamera()
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		e.camera.SetAspect(float32(e.window.Width()) / float32(max(e.window.Height(), 1)))
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.Resize(width, height)
			}
			if height > 0 {
				e.camera.SetAspect(float32(width) / float32(height))
			}
		})
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) AddActor(a Actor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actors = append(e.actors, a)
}

func (e *engine) RemoveActor(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actors = slices.DeleteFunc(e.actors, func(a Actor) bool { return a.Model.Name() == name })
}

func (e *engine) Actors() []Actor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.actors)
}

func (e *engine) Advance(dt float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		e.elapsed += dt
	}
}

func (e *engine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
}

func (e *engine) Elapsed() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

func (e *engine) Frame() error {
	if e.renderer == nil {
		return ErrNoRenderer
	}
	e.mu.Lock()
	actors := slices.Clone(e.actors)
	elapsed := e.elapsed
	e.mu.Unlock()

	e.camera.Update()
	e.renderer.SetCamera(e.camera.ViewProjectionMatrix())
	if err := e.renderer.BeginFrame(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	for _, a := range actors {
		stats, err := a.Model.RenderFrame(a.Pose(elapsed))
		if err != nil {
			e.log.Warn("actor frame failed", "model", a.Model.Name(), "error", err)
		}
		e.profiler.Record(stats, err)
	}
	if err := e.renderer.EndFrame(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func (e *engine) Run() error {
	if e.window == nil {
		return errors.New("engine: no window")
	}
	if e.renderer == nil {
		return ErrNoRenderer
	}
	e.running.Store(true)
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	return nil
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop, advancing the animation clock.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.Advance(dt)
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop until quit. A panic quits the engine instead of crashing the process.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := e.Frame(); err != nil {
			e.log.Error("frame failed", "error", err)
		}
		if e.renderCallback != nil {
			e.renderCallback(dt)
		}
		if e.profilingEnabled.Load() {
			e.profiler.Tick()
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(lastRender); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
