package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithGeometry is an option builder that sets the bind-pose mesh of the Model.
//
// Parameters:
//   - g: the geometry; the model keeps the pointer and never mutates it
//
// Returns:
//   - ModelBuilderOption: a function that applies the geometry option to a model
func WithGeometry(g *Geometry) ModelBuilderOption {
	return func(m *model) {
		if g != nil {
			m.geometry = g
		}
	}
}

// WithMaterials is an option builder that sets the material table of the Model.
//
// Parameters:
//   - materials: the materials in draw order
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithMaterials(materials []MaterialDescriptor) ModelBuilderOption {
	return func(m *model) {
		m.materials = materials
	}
}

// WithBoneCount is an option builder that declares how many bones the Model is skinned against.
//
// Parameters:
//   - n: the bone count (0 for a rigid mesh)
//
// Returns:
//   - ModelBuilderOption: a function that applies the bone count option to a model
func WithBoneCount(n int) ModelBuilderOption {
	return func(m *model) {
		m.boneCount = n
	}
}

// WithToonTexture is an option builder that assigns a toon texture asset key to a toon table slot.
// Out-of-range slots are ignored here and caught by material validation.
//
// Parameters:
//   - index: the toon table slot (1 to ToonTableSize-1)
//   - key: the texture asset key
//
// Returns:
//   - ModelBuilderOption: a function that applies the toon texture option to a model
func WithToonTexture(index int, key string) ModelBuilderOption {
	return func(m *model) {
		if index >= 0 && index < ToonTableSize {
			m.toonFiles[index] = key
		}
	}
}
