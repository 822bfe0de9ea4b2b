package accelerator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-skin/engine/renderer/device"
)

// HostKernelFunc is the Go rendition of a compute entry point. It is called once per invocation
// with the invocation index and the bound buffers in binding order. Invocations may run
// concurrently and must only write the elements they own; indices past the element count must
// be ignored, as in the WGSL kernel.
type HostKernelFunc func(invocation uint32, bindings [][]byte)

type softwareAcceleratorBackend struct {
	workers     int
	hostKernels map[string]HostKernelFunc
	log         *slog.Logger

	pool    worker.DynamicWorkerPool
	host    device.HostMemory
	shared  map[BufferHandle]device.BufferHandle
	private map[BufferHandle][]byte
	taskID  int
}

var _ acceleratorBackend = &softwareAcceleratorBackend{}

func newSoftwareAcceleratorBackend(workers int, hostKernels map[string]HostKernelFunc, log *slog.Logger) *softwareAcceleratorBackend {
	return &softwareAcceleratorBackend{
		workers:     workers,
		hostKernels: hostKernels,
		log:         log,
		shared:      make(map[BufferHandle]device.BufferHandle),
		private:     make(map[BufferHandle][]byte),
	}
}

func (b *softwareAcceleratorBackend) bind(dev device.Device) error {
	host, ok := dev.(device.HostMemory)
	if !ok || !dev.Capabilities().HostVisible {
		return errors.New("device memory is not host visible")
	}
	b.host = host
	if b.pool == nil {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	}
	return nil
}

func (b *softwareAcceleratorBackend) buildKernels(_ string, kernels []*Kernel) error {
	var errs []error
	for _, k := range kernels {
		if _, ok := b.hostKernels[k.EntryPoint]; !ok {
			errs = append(errs, fmt.Errorf("no host kernel registered for %q", k.EntryPoint))
		}
	}
	return errors.Join(errs...)
}

func (b *softwareAcceleratorBackend) registerShared(h BufferHandle, graphics device.BufferHandle) error {
	if _, err := b.host.HostBuffer(graphics); err != nil {
		return err
	}
	b.shared[h] = graphics
	return nil
}

func (b *softwareAcceleratorBackend) createBuffer(h BufferHandle, _ string, size uint64) error {
	b.private[h] = make([]byte, size)
	return nil
}

func (b *softwareAcceleratorBackend) writeBuffer(h BufferHandle, offset uint64, data []byte) error {
	copy(b.private[h][offset:], data)
	return nil
}

func (b *softwareAcceleratorBackend) releaseBuffer(h BufferHandle) {
	delete(b.shared, h)
	delete(b.private, h)
}

func (b *softwareAcceleratorBackend) setOwned(hs []BufferHandle, owned bool) error {
	var errs []error
	for _, h := range hs {
		if g, ok := b.shared[h]; ok {
			errs = append(errs, b.host.SetComputeOwned(g, owned))
		}
	}
	return errors.Join(errs...)
}

func (b *softwareAcceleratorBackend) acquire(hs []BufferHandle) error {
	return b.setOwned(hs, true)
}

func (b *softwareAcceleratorBackend) release(hs []BufferHandle) error {
	return b.setOwned(hs, false)
}

func (b *softwareAcceleratorBackend) dispatch(k *Kernel, bindings []BufferHandle, groups, invocations uint32) error {
	fn := b.hostKernels[k.EntryPoint]
	data := make([][]byte, len(bindings))
	for i, h := range bindings {
		if g, ok := b.shared[h]; ok {
			buf, err := b.host.HostBuffer(g)
			if err != nil {
				return err
			}
			data[i] = buf
			continue
		}
		data[i] = b.private[h]
	}

	// Workgroups are batched into contiguous ranges so a large dispatch does not flood the queue.
	size := k.WorkgroupSize()
	tasks := min(groups, uint32(b.workers*4))
	per := (groups + tasks - 1) / tasks

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	for start := uint32(0); start < groups; start += per {
		end := min(start+per, groups)
		wg.Add(1)
		b.taskID++
		b.pool.SubmitTask(worker.Task{
			ID:      b.taskID,
			Payload: [2]uint32{start, end},
			Do: func() (_ any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						mu.Lock()
						errs = append(errs, fmt.Errorf("host kernel %q panicked: %v", k.EntryPoint, r))
						mu.Unlock()
					}
				}()
				for id := start * size; id < end*size; id++ {
					fn(id, data)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (b *softwareAcceleratorBackend) shutdown() {
	if b.pool != nil {
		b.pool.Stop()
		b.pool = nil
	}
	b.host = nil
	clear(b.shared)
	clear(b.private)
}
