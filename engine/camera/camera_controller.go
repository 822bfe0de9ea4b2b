package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/chewxy/math32"
)

// orbitController is the implementation of the CameraController interface.
type orbitController struct {
	mu *sync.Mutex

	target   [3]float32
	position [3]float32

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

// CameraController orbits the camera around a target point using spherical coordinates
// (radius, azimuth, elevation). Panning moves the target and the camera together.
type CameraController interface {
	// Position returns the world-space camera position.
	//
	// Returns:
	//   - [3]float32: the position
	Position() [3]float32

	// Target returns the look-at point.
	//
	// Returns:
	//   - [3]float32: the target
	Target() [3]float32

	// SetTarget moves the pivot point and recomputes the position.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target [3]float32)

	// Frame points the camera at a bounding sphere and backs off until it fits a vertical field of view.
	//
	// Parameters:
	//   - center: sphere center
	//   - radius: sphere radius
	//   - fov: vertical field of view in radians
	Frame(center [3]float32, radius, fov float32)

	// Orbit rotates the camera by a mouse drag delta scaled by the mouse sensitivity.
	// Elevation is clamped to its bounds.
	//
	// Parameters:
	//   - dx, dy: drag delta in pixels
	Orbit(dx, dy float32)

	// Step rotates the camera by whole orbit-speed steps, as driven by the keyboard.
	//
	// Parameters:
	//   - azimuthSteps: steps around the Y axis, positive to the right
	//   - elevationSteps: steps up, positive upward
	Step(azimuthSteps, elevationSteps int)

	// Zoom changes the orbit radius. Positive delta moves closer. The radius is clamped to its bounds.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Pan translates the target and camera along the camera's right and up axes.
	//
	// Parameters:
	//   - right, up: pan amounts scaled by the pan speed
	Pan(right, up float32)

	// Radius returns the current orbit radius.
	//
	// Returns:
	//   - float32: distance from target
	Radius() float32

	// Azimuth returns the horizontal angle around the Y axis in radians.
	//
	// Returns:
	//   - float32: the azimuth
	Azimuth() float32

	// Elevation returns the vertical angle above the horizontal plane in radians.
	//
	// Returns:
	//   - float32: the elevation
	Elevation() float32
}

var _ CameraController = &orbitController{}

// NewCameraController creates an orbit controller looking at the origin.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &orbitController{
		mu:               &sync.Mutex{},
		radius:           5,
		elevation:        math32.Pi / 12,
		minRadius:        0.1,
		maxRadius:        500,
		minElevation:     -math32.Pi/2 + 0.05,
		maxElevation:     math32.Pi/2 - 0.05,
		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.5,
		panSpeed:         0.01,
	}
	for _, option := range options {
		option(cc)
	}
	cc.clamp()
	cc.updatePosition()
	return cc
}

// updatePosition recomputes the position from the spherical coordinates. Caller must hold the mutex.
func (cc *orbitController) updatePosition() {
	sinElev, cosElev := math32.Sincos(cc.elevation)
	sinAzim, cosAzim := math32.Sincos(cc.azimuth)
	cc.position = [3]float32{
		cc.target[0] + cc.radius*cosElev*sinAzim,
		cc.target[1] + cc.radius*sinElev,
		cc.target[2] + cc.radius*cosElev*cosAzim,
	}
}

func (cc *orbitController) clamp() {
	cc.radius = min(max(cc.radius, cc.minRadius), cc.maxRadius)
	cc.elevation = min(max(cc.elevation, cc.minElevation), cc.maxElevation)
}

func (cc *orbitController) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *orbitController) Target() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *orbitController) SetTarget(target [3]float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
	cc.updatePosition()
}

func (cc *orbitController) Frame(center [3]float32, radius, fov float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = center
	if s := math32.Sin(fov / 2); s > 0 {
		cc.radius = radius / s
	}
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Orbit(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth -= dx * cc.mouseSensitivity
	cc.elevation += dy * cc.mouseSensitivity
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Step(azimuthSteps, elevationSteps int) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += float32(azimuthSteps) * cc.orbitSpeed
	cc.elevation += float32(elevationSteps) * cc.orbitSpeed
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius -= delta * cc.zoomSpeed
	cc.clamp()
	cc.updatePosition()
}

func (cc *orbitController) Pan(right, up float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	back := common.Normalize3([3]float32{
		cc.position[0] - cc.target[0],
		cc.position[1] - cc.target[1],
		cc.position[2] - cc.target[2],
	})
	// right = cross(worldUp, back), up = cross(back, right)
	r := common.Normalize3([3]float32{back[2], 0, -back[0]})
	u := [3]float32{
		back[1]*r[2] - back[2]*r[1],
		back[2]*r[0] - back[0]*r[2],
		back[0]*r[1] - back[1]*r[0],
	}
	for i := range 3 {
		d := (r[i]*right + u[i]*up) * cc.panSpeed * cc.radius
		cc.target[i] += d
		cc.position[i] += d
	}
}

func (cc *orbitController) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *orbitController) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *orbitController) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}
