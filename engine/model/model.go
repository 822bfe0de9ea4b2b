package model

// model is the implementation of the Model interface.
type model struct {
	name      string
	geometry  *Geometry
	materials []MaterialDescriptor
	boneCount int
	toonFiles [ToonTableSize]string
}

// Model is an imported character model: immutable geometry, its material table and the declared
// bone count the per-frame BoneTable must match.
// Models are produced by the asset collaborator and consumed read-only by the renderer.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Geometry retrieves the bind-pose mesh.
	//
	// Returns:
	//   - *Geometry: the mesh geometry
	Geometry() *Geometry

	// Materials retrieves the material table in draw order.
	//
	// Returns:
	//   - []MaterialDescriptor: the materials
	Materials() []MaterialDescriptor

	// BoneCount returns the number of bones the model is skinned against. Zero means a rigid mesh.
	//
	// Returns:
	//   - int: the bone count
	BoneCount() int

	// ToonTexture returns the asset key of the toon texture at the given table slot, or "" for the
	// default gradient.
	//
	// Parameters:
	//   - index: the toon table slot
	//
	// Returns:
	//   - string: the asset key
	ToonTexture(index int) string

	// Validate checks the load-time invariants of the model: stream lengths, bone index domain,
	// toon table domain and material index ranges. All violations are joined into one error.
	//
	// Returns:
	//   - error: nil if the model can be rendered
	Validate() error
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{geometry: &Geometry{}}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Geometry() *Geometry {
	return m.geometry
}

func (m *model) Materials() []MaterialDescriptor {
	return m.materials
}

func (m *model) BoneCount() int {
	return m.boneCount
}

func (m *model) ToonTexture(index int) string {
	if index < 0 || index >= ToonTableSize {
		return ""
	}
	return m.toonFiles[index]
}

func (m *model) Validate() error {
	return Validate(m.geometry, m.materials, m.boneCount)
}
