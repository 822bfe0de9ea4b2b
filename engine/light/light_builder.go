package light

import "github.com/Carmen-Shannon/oxy-skin/common"

// LightBuilderOption is a function that configures a Light during construction.
type LightBuilderOption func(*lightImpl)

// WithDirection is an option builder that sets the direction the light travels.
// The direction is normalized automatically. A zero vector keeps the default.
//
// Parameters:
//   - x, y, z: direction components
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a light
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		if d := common.Normalize3([3]float32{x, y, z}); d != [3]float32{} {
			l.direction = d
		}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r, g, b: color components in linear space
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a light
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = [3]float32{r, g, b}
	}
}

// WithShadowColor is an option builder that sets the RGBA color of projected shadows.
//
// Parameters:
//   - rgba: the shadow color
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow color option to a light
func WithShadowColor(rgba [4]float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowColor = rgba
	}
}

// WithShadowPlane is an option builder that sets the plane shadows are projected onto.
//
// Parameters:
//   - plane: (a, b, c, d) with a*x + b*y + c*z + d = 0
//
// Returns:
//   - LightBuilderOption: a function that applies the plane option to a light
func WithShadowPlane(plane [4]float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowPlane = plane
	}
}

// WithCastsShadows is an option builder that sets whether the light casts shadows.
//
// Parameters:
//   - castsShadows: true to enable the shadow pass
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow option to a light
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}
