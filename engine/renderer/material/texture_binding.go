package material

import (
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// TextureSet holds the device textures uploaded for one model. A missing key or a zero handle
// means the upload failed or was never attempted, and the slot renders untextured.
type TextureSet struct {
	// Slots maps main/sub texture asset keys to device textures.
	Slots map[string]device.TextureHandle

	// Toon holds one texture per toon table slot.
	Toon [model.ToonTableSize]device.TextureHandle
}

func (s TextureSet) slot(key string) device.TextureHandle {
	if key == "" {
		return 0
	}
	return s.Slots[key]
}

func sphereMode(add, modulate bool) device.SphereMode {
	switch {
	case add:
		return device.SphereAdd
	case modulate:
		return device.SphereModulate
	default:
		return device.SphereNone
	}
}

// ResolveTextureBinding selects the textures the model pass samples for a material.
//
// A primary slot flagged as a sphere map binds as the sphere texture with its mode, and the sub
// slot is not consulted. Otherwise the primary slot binds as the diffuse texture and a sub slot
// flagged as a sphere map binds as the sphere texture. A sub slot without sphere flags stands in for
// a missing primary slot. Add wins when a slot carries both sphere flags. The toon texture is always
// bound from the toon table.
//
// Parameters:
//   - desc: the material descriptor
//   - set: the uploaded textures of the model
//
// Returns:
//   - device.TextureBindings: the resolved bindings
func ResolveTextureBinding(desc *model.MaterialDescriptor, set TextureSet) device.TextureBindings {
	var b device.TextureBindings
	if desc.ToonIndex >= 0 && desc.ToonIndex < model.ToonTableSize {
		b.Toon = set.Toon[desc.ToonIndex]
	}

	if desc.MainIsSphere() {
		if h := set.slot(desc.MainTexture); h != 0 {
			b.Sphere, b.SphereMode = h, sphereMode(desc.MainSphereAdd, desc.MainSphereModulate)
		}
		return b
	}

	if desc.HasMain {
		b.Diffuse = set.slot(desc.MainTexture)
	}
	switch {
	case desc.SubIsSphere():
		if h := set.slot(desc.SubTexture); h != 0 {
			b.Sphere, b.SphereMode = h, sphereMode(desc.SubSphereAdd, desc.SubSphereModulate)
		}
	case desc.HasSub && !desc.HasMain:
		b.Diffuse = set.slot(desc.SubTexture)
	}
	return b
}
