package light

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/common"
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu           *sync.Mutex
	direction    [3]float32
	color        [3]float32
	shadowColor  [4]float32
	shadowPlane  [4]float32
	castsShadows bool
}

// Light is the directional light of a scene. It drives diffuse and specular shading, toon lookup
// coordinates and the projected shadow of every model drawn under it.
type Light interface {
	// Direction returns the normalized direction the light travels.
	//
	// Returns:
	//   - [3]float32: normalized direction as (x, y, z)
	Direction() [3]float32

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - [3]float32: color as (r, g, b)
	Color() [3]float32

	// ShadowColor returns the RGBA color the shadow pass draws with.
	//
	// Returns:
	//   - [4]float32: color as (r, g, b, a)
	ShadowColor() [4]float32

	// ShadowPlane returns the plane shadows are projected onto, as (a, b, c, d) with
	// a*x + b*y + c*z + d = 0.
	//
	// Returns:
	//   - [4]float32: the plane
	ShadowPlane() [4]float32

	// CastsShadows returns whether models under this light draw a shadow pass.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// ShadowMatrix returns the projective matrix flattening geometry onto the shadow plane along
	// the light direction.
	//
	// Returns:
	//   - common.Mat4: the column-major shadow matrix
	ShadowMatrix() common.Mat4

	// SetDirection sets the direction of the light and normalizes it. A zero vector is ignored.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetCastsShadows sets whether this light casts shadows.
	//
	// Parameters:
	//   - castsShadows: true to enable the shadow pass
	SetCastsShadows(castsShadows bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new directional Light with the provided options.
// Defaults: direction (-0.5, -1, -0.5) normalized, color (0.6, 0.6, 0.6), shadow color
// (0, 0, 0, 0.5), shadow plane y = 0, shadows enabled.
//
// Parameters:
//   - options: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(options ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:           &sync.Mutex{},
		direction:    common.Normalize3([3]float32{-0.5, -1, -0.5}),
		color:        [3]float32{0.6, 0.6, 0.6},
		shadowColor:  [4]float32{0, 0, 0, 0.5},
		shadowPlane:  GroundPlane,
		castsShadows: true,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *lightImpl) Direction() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) Color() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) ShadowColor() [4]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadowColor
}

func (l *lightImpl) ShadowPlane() [4]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadowPlane
}

func (l *lightImpl) CastsShadows() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.castsShadows
}

func (l *lightImpl) ShadowMatrix() common.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ShadowMatrix(l.shadowPlane, l.direction)
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := common.Normalize3([3]float32{x, y, z}); d != [3]float32{} {
		l.direction = d
	}
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = [3]float32{r, g, b}
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.castsShadows = castsShadows
}
