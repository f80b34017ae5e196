// Package memdev provides a byte-accurate software implementation of the
// graphics device, used by tests and by runs that need resource lifecycle
// semantics without real hardware. Copies move real bytes, fences signal
// on submit, and released handles are tracked so double release and use
// after release surface as errors.
package memdev

import (
	"fmt"
	"sync"
	"time"

	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model/types"
)

type resource struct {
	kind     graphics.HandleKind
	data     []byte
	released bool
	mapped   bool

	// texture geometry, zero for buffers
	width  uint32
	height uint32

	direction graphics.TransferDirection
	stage     graphics.ShaderStage
}

// Device is an in-memory graphics device. Safe for use from concurrent
// runs; every entry point locks.
type Device struct {
	mux      sync.Mutex
	nextID   uint64
	entries  map[uint64]*resource
	releases []graphics.Handle

	// FailCreates forces creation calls to fail, for error path tests.
	FailCreates bool
}

var _ graphics.Device = (*Device)(nil)

// New creates an empty software device.
func New() *Device {
	return &Device{entries: map[uint64]*resource{}}
}

// Name implements graphics.Device.
func (d *Device) Name() string { return "memdev" }

func (d *Device) allocate(kind graphics.HandleKind, entry *resource) graphics.Handle {
	d.nextID++
	entry.kind = kind
	d.entries[d.nextID] = entry
	return graphics.Handle{ID: d.nextID, Kind: kind}
}

func (d *Device) lookup(h graphics.Handle, kind graphics.HandleKind) (*resource, error) {
	entry, ok := d.entries[h.ID]
	if !ok || entry.kind != kind {
		return nil, types.NewResourceError(types.ReasonDeviceCreate, handleRef(h), fmt.Errorf("unknown %v handle", kind))
	}
	if entry.released {
		return nil, types.NewHandleReleasedError(handleRef(h))
	}
	return entry, nil
}

// CreateShader validates and stores the shader blob.
func (d *Device) CreateShader(desc *graphics.ShaderDescriptor) (graphics.Handle, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.FailCreates {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("creates disabled"))
	}
	if len(desc.Code) == 0 {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("empty shader code"))
	}
	code := make([]byte, len(desc.Code))
	copy(code, desc.Code)
	return d.allocate(graphics.KindShader, &resource{data: code, stage: desc.Stage}), nil
}

// CreatePipeline validates both shader handles are live.
func (d *Device) CreatePipeline(desc *graphics.PipelineDescriptor) (graphics.Handle, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.FailCreates {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("creates disabled"))
	}
	if _, err := d.lookup(desc.VertexShader, graphics.KindShader); err != nil {
		return graphics.Handle{}, err
	}
	if _, err := d.lookup(desc.FragmentShader, graphics.KindShader); err != nil {
		return graphics.Handle{}, err
	}
	return d.allocate(graphics.KindPipeline, &resource{}), nil
}

// CreateBuffer allocates a zeroed device buffer.
func (d *Device) CreateBuffer(desc *graphics.BufferDescriptor) (graphics.Handle, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.FailCreates {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("creates disabled"))
	}
	if desc.Size == 0 {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("zero sized buffer"))
	}
	return d.allocate(graphics.KindBuffer, &resource{data: make([]byte, desc.Size)}), nil
}

// CreateTexture allocates a zeroed RGBA8 texture.
func (d *Device) CreateTexture(desc *graphics.TextureDescriptor) (graphics.Handle, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.FailCreates {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("creates disabled"))
	}
	if desc.Width == 0 || desc.Height == 0 {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("zero sized texture"))
	}
	entry := &resource{
		data:   make([]byte, int(desc.Width)*int(desc.Height)*4),
		width:  desc.Width,
		height: desc.Height,
	}
	return d.allocate(graphics.KindTexture, entry), nil
}

// CreateTransferBuffer allocates a host visible staging buffer.
func (d *Device) CreateTransferBuffer(desc *graphics.TransferBufferDescriptor) (graphics.Handle, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.FailCreates {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("creates disabled"))
	}
	if desc.Size == 0 {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("zero sized transfer buffer"))
	}
	entry := &resource{data: make([]byte, desc.Size), direction: desc.Direction}
	return d.allocate(graphics.KindTransferBuffer, entry), nil
}

// MapTransferBuffer exposes the staging bytes.
func (d *Device) MapTransferBuffer(h graphics.Handle) ([]byte, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	entry, err := d.lookup(h, graphics.KindTransferBuffer)
	if err != nil {
		return nil, err
	}
	entry.mapped = true
	return entry.data, nil
}

// UnmapTransferBuffer ends host access.
func (d *Device) UnmapTransferBuffer(h graphics.Handle) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	entry, err := d.lookup(h, graphics.KindTransferBuffer)
	if err != nil {
		return err
	}
	entry.mapped = false
	return nil
}

// AcquireCommandBuffer starts a new command stream.
func (d *Device) AcquireCommandBuffer() (graphics.CommandBuffer, error) {
	return &commandBuffer{device: d}, nil
}

// WaitFence blocks until the fence signals or the timeout elapses.
func (d *Device) WaitFence(f graphics.Fence, timeout time.Duration) error {
	fence, ok := f.(*memFence)
	if !ok {
		return types.NewResourceError(types.ReasonDeviceCopy, "fence", fmt.Errorf("foreign fence %T", f))
	}
	select {
	case <-fence.done:
		return nil
	case <-time.After(timeout):
		return types.NewTimeoutError("fence", timeout)
	}
}

// Release marks the resource destroyed. A second release fails.
func (d *Device) Release(h graphics.Handle) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	entry, ok := d.entries[h.ID]
	if !ok {
		return types.NewResourceError(types.ReasonDeviceCreate, handleRef(h), fmt.Errorf("unknown handle"))
	}
	if entry.released {
		return types.NewHandleReleasedError(handleRef(h))
	}
	entry.released = true
	d.releases = append(d.releases, h)
	return nil
}

// Destroy invalidates every handle.
func (d *Device) Destroy() {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.entries = map[uint64]*resource{}
}

// LiveCount returns the number of resources not yet released.
func (d *Device) LiveCount() int {
	d.mux.Lock()
	defer d.mux.Unlock()
	live := 0
	for _, entry := range d.entries {
		if !entry.released {
			live++
		}
	}
	return live
}

// Releases returns the handles released so far, in release order.
func (d *Device) Releases() []graphics.Handle {
	d.mux.Lock()
	defer d.mux.Unlock()
	ret := make([]graphics.Handle, len(d.releases))
	copy(ret, d.releases)
	return ret
}

// SeedTexture overwrites a texture's pixel bytes; a test convenience
// standing in for a render pass.
func (d *Device) SeedTexture(h graphics.Handle, data []byte) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	entry, err := d.lookup(h, graphics.KindTexture)
	if err != nil {
		return err
	}
	copy(entry.data, data)
	return nil
}

// BufferData returns a copy of a device buffer's bytes.
func (d *Device) BufferData(h graphics.Handle) ([]byte, error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	entry, err := d.lookup(h, graphics.KindBuffer)
	if err != nil {
		return nil, err
	}
	ret := make([]byte, len(entry.data))
	copy(ret, entry.data)
	return ret, nil
}

func handleRef(h graphics.Handle) string {
	return fmt.Sprintf("%v#%v", h.Kind, h.ID)
}

type memFence struct {
	done chan struct{}
}

// Signaled implements graphics.Fence.
func (f *memFence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type commandBuffer struct {
	device    *Device
	ops       []func() error
	passOpen  bool
	submitted bool
	canceled  bool
}

// BeginCopyPass implements graphics.CommandBuffer.
func (c *commandBuffer) BeginCopyPass() (graphics.CopyPass, error) {
	if c.submitted || c.canceled {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("command buffer already %v", c.state()))
	}
	if c.passOpen {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("copy pass already open"))
	}
	c.passOpen = true
	return &copyPass{buffer: c}, nil
}

// Submit executes the recorded copies and signals completion.
func (c *commandBuffer) Submit() error {
	fence, err := c.SubmitWithFence()
	if err != nil {
		return err
	}
	return c.device.WaitFence(fence, graphics.DefaultFenceTimeout)
}

// SubmitWithFence executes the recorded copies and returns a fence.
func (c *commandBuffer) SubmitWithFence() (graphics.Fence, error) {
	if c.submitted || c.canceled {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("command buffer already %v", c.state()))
	}
	if c.passOpen {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("copy pass still open"))
	}
	c.submitted = true
	for _, op := range c.ops {
		if err := op(); err != nil {
			return nil, err
		}
	}
	fence := &memFence{done: make(chan struct{})}
	close(fence.done)
	return fence, nil
}

// Cancel discards the recorded copies.
func (c *commandBuffer) Cancel() error {
	if c.submitted {
		return types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("command buffer already submitted"))
	}
	c.canceled = true
	c.ops = nil
	c.passOpen = false
	return nil
}

func (c *commandBuffer) state() string {
	if c.canceled {
		return "canceled"
	}
	return "submitted"
}

type copyPass struct {
	buffer *commandBuffer
	ended  bool
}

// UploadToBuffer records a transfer buffer to device buffer copy.
func (p *copyPass) UploadToBuffer(src graphics.TransferLocation, dst graphics.BufferRegion, size uint64) error {
	if p.ended {
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", fmt.Errorf("copy pass ended"))
	}
	device := p.buffer.device
	p.buffer.ops = append(p.buffer.ops, func() error {
		device.mux.Lock()
		defer device.mux.Unlock()
		from, err := device.lookup(src.Buffer, graphics.KindTransferBuffer)
		if err != nil {
			return err
		}
		to, err := device.lookup(dst.Buffer, graphics.KindBuffer)
		if err != nil {
			return err
		}
		if src.Offset+size > uint64(len(from.data)) || dst.Offset+size > uint64(len(to.data)) {
			return types.NewResourceError(types.ReasonDeviceCopy, handleRef(dst.Buffer), fmt.Errorf("copy out of bounds"))
		}
		copy(to.data[dst.Offset:dst.Offset+size], from.data[src.Offset:src.Offset+size])
		return nil
	})
	return nil
}

// DownloadFromTexture records a texture to transfer buffer copy.
func (p *copyPass) DownloadFromTexture(src graphics.Handle, dst graphics.TransferLocation) error {
	if p.ended {
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", fmt.Errorf("copy pass ended"))
	}
	device := p.buffer.device
	p.buffer.ops = append(p.buffer.ops, func() error {
		device.mux.Lock()
		defer device.mux.Unlock()
		from, err := device.lookup(src, graphics.KindTexture)
		if err != nil {
			return err
		}
		to, err := device.lookup(dst.Buffer, graphics.KindTransferBuffer)
		if err != nil {
			return err
		}
		// rows land at the aligned pitch, matching hardware download layout
		alignedRow := uint64(graphics.AlignedBytesPerRow(from.width))
		tightRow := uint64(from.width) * 4
		size := alignedRow * uint64(from.height)
		if dst.Offset+size > uint64(len(to.data)) {
			return types.NewResourceError(types.ReasonDeviceCopy, handleRef(dst.Buffer), fmt.Errorf("download out of bounds"))
		}
		for row := uint64(0); row < uint64(from.height); row++ {
			dstOff := dst.Offset + row*alignedRow
			srcOff := row * tightRow
			copy(to.data[dstOff:dstOff+tightRow], from.data[srcOff:srcOff+tightRow])
		}
		return nil
	})
	return nil
}

// End closes the pass.
func (p *copyPass) End() error {
	if p.ended {
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", fmt.Errorf("copy pass ended twice"))
	}
	p.ended = true
	p.buffer.passOpen = false
	return nil
}
