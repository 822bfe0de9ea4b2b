package model

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamLength reports a per-vertex stream whose length differs from the position count.
	ErrStreamLength = errors.New("model: vertex stream length mismatch")

	// ErrInvalidBoneIndex reports a vertex that references a bone outside the bone table.
	ErrInvalidBoneIndex = errors.New("model: bone index out of range")

	// ErrInvalidWeight reports a blend weight outside [0, 1].
	ErrInvalidWeight = errors.New("model: blend weight out of range")

	// ErrInvalidToonIndex reports a material toon index outside the toon table.
	ErrInvalidToonIndex = errors.New("model: toon index out of range")

	// ErrInvalidIndexRange reports a material index range or index value outside the mesh.
	ErrInvalidIndexRange = errors.New("model: index range out of bounds")

	// ErrEmptyGeometry reports a model with no vertices or no triangles.
	ErrEmptyGeometry = errors.New("model: empty geometry")
)

// Validate checks the load-time invariants of a model. Every violated invariant contributes one
// error naming its first offending element; the result is the errors.Join of them, or nil.
//
// A model with zero bones is rigid: its bone index and weight streams are not consulted.
//
// Parameters:
//   - g: the bind-pose geometry
//   - materials: the material table
//   - boneCount: the bone count the per-frame BoneTable will carry
//
// Returns:
//   - error: nil if the model can enter the renderable state
func Validate(g *Geometry, materials []MaterialDescriptor, boneCount int) error {
	if g == nil || g.VertexCount() == 0 || len(g.Indices) == 0 {
		return ErrEmptyGeometry
	}
	var errs []error
	n := g.VertexCount()

	checkLen := func(name string, got int, optional bool) {
		if optional && got == 0 {
			return
		}
		if got != n {
			errs = append(errs, fmt.Errorf("%w: %s has %d entries, want %d", ErrStreamLength, name, got, n))
		}
	}
	checkLen("normals", len(g.Normals), false)
	checkLen("texcoords", len(g.TexCoords), true)
	checkLen("edge scales", len(g.EdgeScales), true)

	if boneCount < 0 {
		errs = append(errs, fmt.Errorf("%w: negative bone count %d", ErrInvalidBoneIndex, boneCount))
	} else if boneCount > 0 {
		checkLen("bone indices", len(g.BoneIndices), false)
		checkLen("weights", len(g.Weights), false)
		if len(g.BoneIndices) == n {
			for i, b := range g.BoneIndices {
				if int(b[0]) >= boneCount || int(b[1]) >= boneCount {
					errs = append(errs, fmt.Errorf("%w: vertex %d references bones (%d, %d), bone count %d",
						ErrInvalidBoneIndex, i, b[0], b[1], boneCount))
					break
				}
			}
		}
		for i, w := range g.Weights {
			if !(w >= 0 && w <= 1) {
				errs = append(errs, fmt.Errorf("%w: vertex %d has weight %v", ErrInvalidWeight, i, w))
				break
			}
		}
	}

	if len(g.Indices)%3 != 0 {
		errs = append(errs, fmt.Errorf("%w: index count %d is not a triangle list", ErrInvalidIndexRange, len(g.Indices)))
	}
	if i, ok := firstOutOfRange(g.Indices, n); !ok {
		errs = append(errs, fmt.Errorf("%w: index %d references vertex %d of %d", ErrInvalidIndexRange, i, g.Indices[i], n))
	}
	if g.EdgeIndices != nil {
		if len(g.EdgeIndices) != len(g.Indices) {
			errs = append(errs, fmt.Errorf("%w: edge index count %d differs from body index count %d",
				ErrInvalidIndexRange, len(g.EdgeIndices), len(g.Indices)))
		} else if i, ok := firstOutOfRange(g.EdgeIndices, n); !ok {
			errs = append(errs, fmt.Errorf("%w: edge index %d references vertex %d of %d", ErrInvalidIndexRange, i, g.EdgeIndices[i], n))
		}
	}

	for i := range materials {
		mat := &materials[i]
		if mat.ToonIndex < 0 || mat.ToonIndex >= ToonTableSize {
			errs = append(errs, fmt.Errorf("%w: material %d (%q) uses toon %d, table size %d",
				ErrInvalidToonIndex, i, mat.Name, mat.ToonIndex, ToonTableSize))
		}
		end := uint64(mat.IndexOffset) + uint64(mat.IndexCount)
		if end > uint64(len(g.Indices)) || mat.IndexOffset%3 != 0 || mat.IndexCount%3 != 0 {
			errs = append(errs, fmt.Errorf("%w: material %d (%q) range [%d, %d) of %d indices",
				ErrInvalidIndexRange, i, mat.Name, mat.IndexOffset, end, len(g.Indices)))
		}
	}

	return errors.Join(errs...)
}

func firstOutOfRange(indices []uint32, vertexCount int) (int, bool) {
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return i, false
		}
	}
	return 0, true
}
