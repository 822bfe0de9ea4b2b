package skinning

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
)

// parallelThreshold is the vertex count from which CPU skinning fans out across the worker pool.
const parallelThreshold = 4096

type cpuState struct {
	inputs    []model.GPUSkinInput
	boneCount uint32
	staging   []byte
	params    GPUSkinParams

	workers int
	pool    worker.DynamicWorkerPool
	taskID  int
}

func newCPUState(g *model.Geometry, boneCount, workers int) *cpuState {
	n := g.VertexCount()
	c := &cpuState{
		inputs:    make([]model.GPUSkinInput, n),
		boneCount: uint32(boneCount),
		staging:   g.BindPoseStream(),
		params:    newSkinParams(n, boneCount, 0, [3]float32{}),
		workers:   workers,
	}
	for i := range c.inputs {
		c.inputs[i] = g.SkinInput(i, boneCount)
	}
	if workers > 1 && n >= parallelThreshold {
		c.pool = worker.NewDynamicWorkerPool(workers, 256, 1*time.Second)
	}
	return c
}

func (c *cpuState) skinRange(bones model.BoneTable, start, end int, toLight [3]float32) {
	bone := func(i uint32) *common.Mat4 { return &bones[i] }
	for i := start; i < end; i++ {
		v := skinVertex(&c.inputs[i], c.boneCount, bone, c.params.EdgeSize, toLight)
		putVertex(c.staging, uint32(i)*c.params.Stride, &c.params, &v)
	}
}

func (c *cpuState) update(bones model.BoneTable, edgeSize float32, lightDir [3]float32) error {
	c.params.EdgeSize = edgeSize
	c.params.LightDirection = lightDir
	toLight := toward(lightDir)

	n := len(c.inputs)
	if c.pool == nil {
		c.skinRange(bones, 0, n, toLight)
		return nil
	}

	per := (n + c.workers - 1) / c.workers
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	for start := 0; start < n; start += per {
		end := min(start+per, n)
		wg.Add(1)
		c.taskID++
		c.pool.SubmitTask(worker.Task{
			ID:      c.taskID,
			Payload: [2]int{start, end},
			Do: func() (_ any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						mu.Lock()
						errs = append(errs, fmt.Errorf("skinning vertices [%d, %d): %v", start, end, r))
						mu.Unlock()
					}
				}()
				c.skinRange(bones, start, end, toLight)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (c *cpuState) release() {
	if c.pool != nil {
		c.pool.Stop()
		c.pool = nil
	}
	c.staging = nil
}
