package material

import (
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// material is the implementation of the Material interface.
type material struct {
	desc     model.MaterialDescriptor
	textures device.TextureBindings
}

// Material pairs an immutable material descriptor with the device textures it resolved to.
//
// Surface properties come from the descriptor and are read-only through this interface. The
// texture bindings are resolved once, when the model's textures are uploaded, and may be replaced
// if the caller re-uploads them.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Descriptor retrieves the material descriptor.
	//
	// Returns:
	//   - *model.MaterialDescriptor: the descriptor, never nil
	Descriptor() *model.MaterialDescriptor

	// Textures retrieves the resolved texture bindings of the model pass.
	//
	// Returns:
	//   - device.TextureBindings: the bindings, zero handles for empty slots
	Textures() device.TextureBindings

	// SetTextures replaces the resolved texture bindings.
	//
	// Parameters:
	//   - t: the new bindings
	SetTextures(t device.TextureBindings)

	// Opaque reports whether the material counts as fully opaque under threshold.
	//
	// Parameters:
	//   - threshold: the opacity at or above which a material is opaque
	//
	// Returns:
	//   - bool: true if Opacity >= threshold
	Opaque(threshold float32) bool
}

var _ Material = &material{}

// NewMaterial creates a new Material instance for desc configured with the provided options.
//
// Parameters:
//   - desc: the material descriptor
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(desc model.MaterialDescriptor, options ...MaterialBuilderOption) Material {
	m := &material{desc: desc}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.desc.Name
}

func (m *material) Descriptor() *model.MaterialDescriptor {
	return &m.desc
}

func (m *material) Textures() device.TextureBindings {
	return m.textures
}

func (m *material) SetTextures(t device.TextureBindings) {
	m.textures = t
}

func (m *material) Opaque(threshold float32) bool {
	return m.desc.Opacity >= threshold
}
