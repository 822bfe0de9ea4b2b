package skinning

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/accelerator"
)

const boneStride = 64

type acceleratedState struct {
	acc      accelerator.Accelerator
	shared   *accelerator.SharedBuffer
	params   GPUSkinParams
	input    accelerator.BufferHandle
	bones    accelerator.BufferHandle
	boneSize uint64
	uniform  accelerator.BufferHandle
	vertices uint32
}

func newAcceleratedState(acc accelerator.Accelerator, g *model.Geometry, shared *accelerator.SharedBuffer, boneCount int) (_ *acceleratedState, err error) {
	if _, ok := acc.Kernel(KernelEntryPoint); !ok {
		return nil, fmt.Errorf("%w: %q", accelerator.ErrUnknownKernel, KernelEntryPoint)
	}
	n := g.VertexCount()
	a := &acceleratedState{
		acc:      acc,
		shared:   shared,
		params:   newSkinParams(n, boneCount, 0, [3]float32{}),
		vertices: uint32(n),
	}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	if a.input, err = acc.CreateBuffer("skin input", uint64(n)*model.SkinInputStride); err != nil {
		return nil, err
	}
	if err = acc.WriteBuffer(a.input, 0, g.SkinInputStream(boneCount)); err != nil {
		return nil, err
	}
	if err = a.growBones(max(boneCount, 1)); err != nil {
		return nil, err
	}
	if boneCount == 0 {
		// The kernel never reads the bone table of a rigid model, but the binding must exist.
		if err = acc.WriteBuffer(a.bones, 0, common.SliceToBytes(model.IdentityBones(1))); err != nil {
			return nil, err
		}
	}
	if a.uniform, err = acc.CreateBuffer("skin params", uint64((&GPUSkinParams{}).Size())); err != nil {
		return nil, err
	}
	return a, nil
}

// growBones makes the bone buffer hold at least n matrices.
func (a *acceleratedState) growBones(n int) error {
	size := uint64(n) * boneStride
	if size <= a.boneSize {
		return nil
	}
	h, err := a.acc.CreateBuffer("bones", size)
	if err != nil {
		return err
	}
	if a.bones != 0 {
		a.acc.ReleaseBuffer(a.bones)
	}
	a.bones, a.boneSize = h, size
	return nil
}

func (a *acceleratedState) update(bones model.BoneTable, edgeSize float32, lightDir [3]float32) error {
	if a.params.BoneCount > 0 {
		if err := a.growBones(len(bones)); err != nil {
			return fmt.Errorf("skinning: bone buffer: %w", err)
		}
		if err := a.acc.WriteBuffer(a.bones, 0, common.SliceToBytes(bones)); err != nil {
			return fmt.Errorf("skinning: bone upload: %w", err)
		}
	}
	a.params.EdgeSize = edgeSize
	a.params.LightDirection = lightDir
	if err := a.acc.WriteBuffer(a.uniform, 0, a.params.Marshal()); err != nil {
		return fmt.Errorf("skinning: params upload: %w", err)
	}

	out := a.shared.Compute()
	err := a.acc.Run([]accelerator.BufferHandle{out}, func() error {
		return a.acc.Dispatch(KernelEntryPoint, []accelerator.BufferHandle{a.input, out, a.bones, a.uniform}, a.vertices)
	})
	if err != nil {
		return fmt.Errorf("skinning: dispatch: %w", err)
	}
	return nil
}

func (a *acceleratedState) release() {
	for _, h := range []accelerator.BufferHandle{a.uniform, a.bones, a.input} {
		if h != 0 {
			a.acc.ReleaseBuffer(h)
		}
	}
	a.uniform, a.bones, a.input, a.boneSize = 0, 0, 0, 0
}
