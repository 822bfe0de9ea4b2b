package material

import "github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithTextures is an option builder that resolves the material's texture bindings from set.
//
// Parameters:
//   - set: the uploaded textures of the model
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTextures(set TextureSet) MaterialBuilderOption {
	return func(m *material) {
		m.textures = ResolveTextureBinding(&m.desc, set)
	}
}

// WithTextureBindings is an option builder that sets already resolved texture bindings.
//
// Parameters:
//   - t: the bindings
//
// Returns:
//   - MaterialBuilderOption: a function that applies the bindings to a material
func WithTextureBindings(t device.TextureBindings) MaterialBuilderOption {
	return func(m *material) {
		m.textures = t
	}
}
