// Package wgpu adapts a wgpu HAL device to the graphics.Device interface
// so resource lifecycle steps can run against real hardware.
package wgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Vulkan backend registers itself via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model/types"
)

type entry struct {
	kind     graphics.HandleKind
	released bool

	buffer   hal.Buffer
	texture  hal.Texture
	shader   hal.ShaderModule
	pipeline hal.RenderPipeline
	layout   hal.PipelineLayout

	size      uint64
	width     uint32
	height    uint32
	direction graphics.TransferDirection
	shadow    []byte
}

// Device implements graphics.Device over a HAL device and queue.
type Device struct {
	mux      sync.Mutex
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool
	nextID   uint64
	entries  map[uint64]*entry
}

var _ graphics.Device = (*Device)(nil)

// Open creates a standalone Vulkan backed device, preferring a discrete
// adapter over an integrated one.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		entries:  map[uint64]*entry{},
	}, nil
}

// NewWithHAL wraps an externally owned HAL device and queue; Destroy then
// leaves the underlying device alone.
func NewWithHAL(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device:   device,
		queue:    queue,
		external: true,
		entries:  map[uint64]*entry{},
	}
}

// Name implements graphics.Device.
func (d *Device) Name() string { return "wgpu" }

func (d *Device) allocate(kind graphics.HandleKind, e *entry) graphics.Handle {
	d.nextID++
	e.kind = kind
	d.entries[d.nextID] = e
	return graphics.Handle{ID: d.nextID, Kind: kind}
}

func (d *Device) lookup(h graphics.Handle, kind graphics.HandleKind) (*entry, error) {
	e, ok := d.entries[h.ID]
	if !ok || e.kind != kind {
		return nil, types.NewResourceError(types.ReasonDeviceCreate, handleRef(h), fmt.Errorf("unknown %v handle", kind))
	}
	if e.released {
		return nil, types.NewHandleReleasedError(handleRef(h))
	}
	return e, nil
}

// CreateShader compiles WGSL through naga when needed and creates a
// shader module from the SPIR-V words.
func (d *Device) CreateShader(desc *graphics.ShaderDescriptor) (graphics.Handle, error) {
	code := desc.Code
	if desc.Format == "wgsl" {
		compiled, err := naga.Compile(string(code))
		if err != nil {
			return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("compile wgsl: %w", err))
		}
		code = compiled
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, fmt.Errorf("spir-v blob size %v is not a word multiple", len(code)))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, err)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	return d.allocate(graphics.KindShader, &entry{shader: module, size: uint64(len(code))}), nil
}

// CreatePipeline builds a render pipeline from two live shader handles.
func (d *Device) CreatePipeline(desc *graphics.PipelineDescriptor) (graphics.Handle, error) {
	d.mux.Lock()
	vertex, err := d.lookup(desc.VertexShader, graphics.KindShader)
	if err != nil {
		d.mux.Unlock()
		return graphics.Handle{}, err
	}
	fragment, err := d.lookup(desc.FragmentShader, graphics.KindShader)
	if err != nil {
		d.mux.Unlock()
		return graphics.Handle{}, err
	}
	d.mux.Unlock()

	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: desc.Label + "_layout",
	})
	if err != nil {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, err)
	}

	targets := desc.ColorTargets
	if targets <= 0 {
		targets = 1
	}
	colorTargets := make([]gputypes.ColorTargetState, targets)
	for i := range colorTargets {
		colorTargets[i] = gputypes.ColorTargetState{
			Format:    colorFormat(desc.ColorFormat),
			WriteMask: gputypes.ColorWriteMaskAll,
		}
	}

	pipelineDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vertex.shader,
			EntryPoint: "vs_main",
			Buffers:    vertexLayout(desc.VertexLayout),
		},
		Fragment: &hal.FragmentState{
			Module:     fragment.shader,
			EntryPoint: "fs_main",
			Targets:    colorTargets,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: cullMode(desc.CullMode),
		},
	}
	if desc.HasDepth {
		depthCompare := gputypes.CompareFunctionAlways
		if desc.DepthTest {
			depthCompare = gputypes.CompareFunctionLessEqual
		}
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		pipelineDesc.DepthStencil = &hal.DepthStencilState{
			Format:            depthFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      depthCompare,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		}
	}
	pipeline, err := d.device.CreateRenderPipeline(pipelineDesc)
	if err != nil {
		d.device.DestroyPipelineLayout(layout)
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, err)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	return d.allocate(graphics.KindPipeline, &entry{pipeline: pipeline, layout: layout}), nil
}

// CreateBuffer allocates a device local vertex or index buffer.
func (d *Device) CreateBuffer(desc *graphics.BufferDescriptor) (graphics.Handle, error) {
	usage := gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	if desc.Usage == graphics.BufferUsageIndex {
		usage = gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst
	}
	buffer, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, err)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	return d.allocate(graphics.KindBuffer, &entry{buffer: buffer, size: desc.Size}), nil
}

// CreateTexture allocates a 2D RGBA8 texture usable as render target and
// copy source.
func (d *Device) CreateTexture(desc *graphics.TextureDescriptor) (graphics.Handle, error) {
	texture, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, err)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	return d.allocate(graphics.KindTexture, &entry{texture: texture, width: desc.Width, height: desc.Height}), nil
}

// CreateTransferBuffer allocates a host visible staging buffer shadowed
// by a host byte slice.
func (d *Device) CreateTransferBuffer(desc *graphics.TransferBufferDescriptor) (graphics.Handle, error) {
	usage := gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	if desc.Direction == graphics.TransferDownload {
		usage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}
	buffer, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return graphics.Handle{}, types.NewResourceError(types.ReasonDeviceCreate, desc.Label, err)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	e := &entry{
		buffer:    buffer,
		size:      desc.Size,
		direction: desc.Direction,
		shadow:    make([]byte, desc.Size),
	}
	return d.allocate(graphics.KindTransferBuffer, e), nil
}

// MapTransferBuffer exposes the staging bytes. Download buffers read the
// device copy back into the shadow first.
func (d *Device) MapTransferBuffer(h graphics.Handle) ([]byte, error) {
	d.mux.Lock()
	e, err := d.lookup(h, graphics.KindTransferBuffer)
	d.mux.Unlock()
	if err != nil {
		return nil, err
	}
	if e.direction == graphics.TransferDownload {
		if err := d.queue.ReadBuffer(e.buffer, 0, e.shadow); err != nil {
			return nil, types.NewResourceError(types.ReasonDeviceCopy, handleRef(h), err)
		}
	}
	return e.shadow, nil
}

// UnmapTransferBuffer flushes upload buffers to the device.
func (d *Device) UnmapTransferBuffer(h graphics.Handle) error {
	d.mux.Lock()
	e, err := d.lookup(h, graphics.KindTransferBuffer)
	d.mux.Unlock()
	if err != nil {
		return err
	}
	if e.direction == graphics.TransferUpload {
		d.queue.WriteBuffer(e.buffer, 0, e.shadow)
	}
	return nil
}

// AcquireCommandBuffer opens a command encoder.
func (d *Device) AcquireCommandBuffer() (graphics.CommandBuffer, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "renderflow"})
	if err != nil {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	if err := encoder.BeginEncoding("renderflow"); err != nil {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	return &commandBuffer{device: d, encoder: encoder}, nil
}

// WaitFence blocks until the fence signals or timeout elapses.
func (d *Device) WaitFence(f graphics.Fence, timeout time.Duration) error {
	fence, ok := f.(*halFence)
	if !ok {
		return types.NewResourceError(types.ReasonDeviceCopy, "fence", fmt.Errorf("foreign fence %T", f))
	}
	ok, err := d.device.Wait(fence.fence, fence.value, timeout)
	d.device.DestroyFence(fence.fence)
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "fence", err)
	}
	if !ok {
		return types.NewTimeoutError("fence", timeout)
	}
	fence.signaled = true
	return nil
}

// Release destroys the resource behind h. A second release fails.
func (d *Device) Release(h graphics.Handle) error {
	d.mux.Lock()
	defer d.mux.Unlock()
	e, ok := d.entries[h.ID]
	if !ok {
		return types.NewResourceError(types.ReasonDeviceCreate, handleRef(h), fmt.Errorf("unknown handle"))
	}
	if e.released {
		return types.NewHandleReleasedError(handleRef(h))
	}
	e.released = true
	switch e.kind {
	case graphics.KindShader:
		d.device.DestroyShaderModule(e.shader)
	case graphics.KindPipeline:
		d.device.DestroyRenderPipeline(e.pipeline)
		d.device.DestroyPipelineLayout(e.layout)
	case graphics.KindBuffer, graphics.KindTransferBuffer:
		d.device.DestroyBuffer(e.buffer)
	case graphics.KindTexture:
		d.device.DestroyTexture(e.texture)
	}
	return nil
}

// Destroy releases every live resource and, for standalone devices, the
// HAL device and instance.
func (d *Device) Destroy() {
	d.mux.Lock()
	for _, e := range d.entries {
		if e.released {
			continue
		}
		e.released = true
		switch e.kind {
		case graphics.KindShader:
			d.device.DestroyShaderModule(e.shader)
		case graphics.KindPipeline:
			d.device.DestroyRenderPipeline(e.pipeline)
			d.device.DestroyPipelineLayout(e.layout)
		case graphics.KindBuffer, graphics.KindTransferBuffer:
			d.device.DestroyBuffer(e.buffer)
		case graphics.KindTexture:
			d.device.DestroyTexture(e.texture)
		}
	}
	d.entries = map[uint64]*entry{}
	d.mux.Unlock()
	if d.external {
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

func handleRef(h graphics.Handle) string {
	return fmt.Sprintf("%v#%v", h.Kind, h.ID)
}

type halFence struct {
	fence    hal.Fence
	value    uint64
	signaled bool
}

// Signaled implements graphics.Fence.
func (f *halFence) Signaled() bool { return f.signaled }

type commandBuffer struct {
	device    *Device
	encoder   hal.CommandEncoder
	passOpen  bool
	submitted bool
	canceled  bool
}

// BeginCopyPass implements graphics.CommandBuffer.
func (c *commandBuffer) BeginCopyPass() (graphics.CopyPass, error) {
	if c.submitted || c.canceled {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("command buffer closed"))
	}
	if c.passOpen {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("copy pass already open"))
	}
	c.passOpen = true
	return &copyPass{buffer: c}, nil
}

// Submit enqueues the commands and blocks on their fence.
func (c *commandBuffer) Submit() error {
	fence, err := c.SubmitWithFence()
	if err != nil {
		return err
	}
	return c.device.WaitFence(fence, graphics.DefaultFenceTimeout)
}

// SubmitWithFence enqueues the commands and returns the fence to wait on.
func (c *commandBuffer) SubmitWithFence() (graphics.Fence, error) {
	if c.submitted || c.canceled {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("command buffer closed"))
	}
	if c.passOpen {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("copy pass still open"))
	}
	c.submitted = true
	cmdBuf, err := c.encoder.EndEncoding()
	if err != nil {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	defer c.device.device.FreeCommandBuffer(cmdBuf)
	fence, err := c.device.device.CreateFence()
	if err != nil {
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "fence", err)
	}
	if err := c.device.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		c.device.device.DestroyFence(fence)
		return nil, types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	return &halFence{fence: fence, value: 1}, nil
}

// Cancel discards the recorded commands.
func (c *commandBuffer) Cancel() error {
	if c.submitted {
		return types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", fmt.Errorf("command buffer already submitted"))
	}
	c.canceled = true
	c.passOpen = false
	c.encoder.DiscardEncoding()
	return nil
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
	d := p.buffer.device
	d.mux.Lock()
	from, err := d.lookup(src.Buffer, graphics.KindTransferBuffer)
	if err == nil {
		var to *entry
		to, err = d.lookup(dst.Buffer, graphics.KindBuffer)
		if err == nil {
			p.buffer.encoder.CopyBufferToBuffer(from.buffer, to.buffer, []hal.BufferCopy{{
				SrcOffset: src.Offset,
				DstOffset: dst.Offset,
				Size:      size,
			}})
		}
	}
	d.mux.Unlock()
	return err
}

// DownloadFromTexture records a texture to transfer buffer copy at the
// aligned row pitch.
func (p *copyPass) DownloadFromTexture(src graphics.Handle, dst graphics.TransferLocation) error {
	if p.ended {
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", fmt.Errorf("copy pass ended"))
	}
	d := p.buffer.device
	d.mux.Lock()
	defer d.mux.Unlock()
	from, err := d.lookup(src, graphics.KindTexture)
	if err != nil {
		return err
	}
	to, err := d.lookup(dst.Buffer, graphics.KindTransferBuffer)
	if err != nil {
		return err
	}
	// Vulkan and DX12 require the texture in a copy source layout before
	// CopyTextureToBuffer; a no-op on the other backends.
	p.buffer.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: from.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	p.buffer.encoder.CopyTextureToBuffer(from.texture, to.buffer, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       dst.Offset,
			BytesPerRow:  graphics.AlignedBytesPerRow(from.width),
			RowsPerImage: from.height,
		},
		TextureBase: hal.ImageCopyTexture{Texture: from.texture, MipLevel: 0},
		Size:        hal.Extent3D{Width: from.width, Height: from.height, DepthOrArrayLayers: 1},
	}})
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
