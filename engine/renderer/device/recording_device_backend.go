package device

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-skin/common"
)

// DrawRecord is one draw captured by the recording device together with the state it ran under.
type DrawRecord struct {
	Frame uint64
	State RenderState
	Call  DrawCall
}

// Recorder is implemented by the recording device. It exposes the captured command stream and the
// host-side contents of every buffer.
type Recorder interface {
	Device
	HostMemory

	// Draws returns the draws captured since the last ResetLog.
	Draws() []DrawRecord

	// StateChanges returns every state passed to ApplyState that differed from the current state.
	StateChanges() []RenderState

	// Flushes returns the number of Flush calls since the last ResetLog.
	Flushes() int

	// ResetLog clears captured draws, state changes and flush counts.
	ResetLog()

	// BufferBytes returns a copy of a buffer's contents.
	BufferBytes(h BufferHandle) []byte

	// LiveBuffers returns the number of buffers not yet released.
	LiveBuffers() int

	// LiveTextures returns the number of textures not yet released.
	LiveTextures() int
}

type recordedBuffer struct {
	desc         BufferDescriptor
	data         []byte
	computeOwned bool
}

type recordingDeviceBackend struct {
	mu   *sync.Mutex
	caps Capabilities

	nextBuffer  BufferHandle
	nextTexture TextureHandle
	buffers     map[BufferHandle]*recordedBuffer
	textures    map[TextureHandle]common.TextureStagingData
	techniques  map[Technique]string

	state        RenderState
	inFrame      bool
	frame        uint64
	draws        []DrawRecord
	stateChanges []RenderState
	flushes      int

	width, height int
	released      bool
}

var _ Recorder = &recordingDeviceBackend{}

func newRecordingDeviceBackend(o *deviceOptions) *recordingDeviceBackend {
	caps := RecordingCapabilities()
	if o.capabilities != nil {
		caps = *o.capabilities
	}
	return &recordingDeviceBackend{
		mu:         &sync.Mutex{},
		caps:       caps,
		buffers:    make(map[BufferHandle]*recordedBuffer),
		textures:   make(map[TextureHandle]common.TextureStagingData),
		techniques: make(map[Technique]string),
		width:      o.width,
		height:     o.height,
	}
}

func (d *recordingDeviceBackend) Capabilities() Capabilities {
	return d.caps
}

func (d *recordingDeviceBackend) RegisterTechnique(t Technique, source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if source == "" {
		return fmt.Errorf("device: empty %s shader source", t)
	}
	d.techniques[t] = source
	return nil
}

func (d *recordingDeviceBackend) CreateBuffer(desc BufferDescriptor) (BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return 0, ErrReleased
	}
	if desc.Size == 0 || desc.Size > d.caps.MaxBufferSize {
		return 0, fmt.Errorf("%w: %q size %d (max %d)", ErrBufferRejected, desc.Label, desc.Size, d.caps.MaxBufferSize)
	}
	d.nextBuffer++
	d.buffers[d.nextBuffer] = &recordedBuffer{desc: desc, data: make([]byte, desc.Size)}
	return d.nextBuffer, nil
}

func (d *recordingDeviceBackend) WriteBuffer(h BufferHandle, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		return fmt.Errorf("%w: [%d, %d) of %q (%d bytes)", ErrOutOfRange, offset, offset+uint64(len(data)), buf.desc.Label, len(buf.data))
	}
	copy(buf.data[offset:], data)
	return nil
}

func (d *recordingDeviceBackend) BufferSize(h BufferHandle) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return 0, false
	}
	return buf.desc.Size, true
}

func (d *recordingDeviceBackend) ReleaseBuffer(h BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, h)
}

func (d *recordingDeviceBackend) CreateTexture(label string, data common.TextureStagingData) (TextureHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return 0, ErrReleased
	}
	if !data.Valid() {
		return 0, fmt.Errorf("%w: %q %dx%d with %d bytes", ErrTextureRejected, label, data.Width, data.Height, len(data.Pixels))
	}
	d.nextTexture++
	d.textures[d.nextTexture] = data
	return d.nextTexture, nil
}

func (d *recordingDeviceBackend) ReleaseTexture(h TextureHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, h)
}

func (d *recordingDeviceBackend) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return ErrReleased
	}
	if d.inFrame {
		return fmt.Errorf("device: frame %d not ended", d.frame)
	}
	d.inFrame = true
	d.frame++
	return nil
}

func (d *recordingDeviceBackend) ApplyState(s RenderState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s == d.state {
		return
	}
	d.state = s
	d.stateChanges = append(d.stateChanges, s)
}

func (d *recordingDeviceBackend) State() RenderState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *recordingDeviceBackend) Draw(call DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inFrame {
		return ErrNoFrame
	}
	if _, ok := d.techniques[d.state.Technique]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTechnique, d.state.Technique)
	}
	for _, h := range []BufferHandle{call.Dynamic, call.Index} {
		buf, ok := d.buffers[h]
		if !ok {
			return fmt.Errorf("%w: draw %q reads buffer %d", ErrInvalidHandle, call.Label, h)
		}
		if buf.computeOwned {
			return fmt.Errorf("%w: draw %q reads %q", ErrBufferAcquired, call.Label, buf.desc.Label)
		}
	}
	if call.Static != 0 {
		if _, ok := d.buffers[call.Static]; !ok {
			return fmt.Errorf("%w: draw %q reads buffer %d", ErrInvalidHandle, call.Label, call.Static)
		}
	}
	if end := uint64(call.FirstIndex+call.IndexCount) * 4; end > d.buffers[call.Index].desc.Size {
		return fmt.Errorf("%w: draw %q index range ends at byte %d", ErrOutOfRange, call.Label, end)
	}
	for _, t := range []TextureHandle{call.Textures.Diffuse, call.Textures.Sphere, call.Textures.Toon} {
		if _, ok := d.textures[t]; t != 0 && !ok {
			return fmt.Errorf("%w: draw %q samples texture %d", ErrInvalidHandle, call.Label, t)
		}
	}

	d.draws = append(d.draws, DrawRecord{Frame: d.frame, State: d.state, Call: call})
	return nil
}

func (d *recordingDeviceBackend) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	return nil
}

func (d *recordingDeviceBackend) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inFrame {
		return ErrNoFrame
	}
	d.inFrame = false
	return nil
}

func (d *recordingDeviceBackend) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
}

func (d *recordingDeviceBackend) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.released = true
	clear(d.buffers)
	clear(d.textures)
}

func (d *recordingDeviceBackend) HostBuffer(h BufferHandle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	return buf.data, nil
}

func (d *recordingDeviceBackend) SetComputeOwned(h BufferHandle, owned bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	buf.computeOwned = owned
	return nil
}

func (d *recordingDeviceBackend) Draws() []DrawRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawRecord(nil), d.draws...)
}

func (d *recordingDeviceBackend) StateChanges() []RenderState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RenderState(nil), d.stateChanges...)
}

func (d *recordingDeviceBackend) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

func (d *recordingDeviceBackend) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.draws = d.draws[:0]
	d.stateChanges = d.stateChanges[:0]
	d.flushes = 0
}

func (d *recordingDeviceBackend) BufferBytes(h BufferHandle) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return nil
	}
	return append([]byte(nil), buf.data...)
}

func (d *recordingDeviceBackend) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

func (d *recordingDeviceBackend) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}
