package engine

import (
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer"
)

// PoseFunc evaluates the bone table of a model at an elapsed time in seconds. It stands in for the
// external bone evaluation collaborator.
type PoseFunc func(elapsed float32) model.BoneTable

// Actor pairs an uploaded model renderer with the source of its bone tables.
type Actor struct {
	Model renderer.ModelRenderer
	Pose  PoseFunc
}

// StaticPose returns a PoseFunc that always yields the same table.
//
// Parameters:
//   - bones: the table
//
// Returns:
//   - PoseFunc: the pose source
func StaticPose(bones model.BoneTable) PoseFunc {
	return func(float32) model.BoneTable {
		return bones
	}
}
