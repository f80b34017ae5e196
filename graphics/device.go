// Package graphics defines the device abstraction the resource lifecycle
// steps drive: an externally owned device creating shaders, pipelines,
// buffers and textures referenced through opaque handles. The device owns
// every resource; workflow contexts only hold handles.
package graphics

import "time"

// DefaultFenceTimeout bounds waits on submitted command buffers.
const DefaultFenceTimeout = 5 * time.Second

// rowPitchAlignment is the copy alignment texture downloads require.
const rowPitchAlignment = 256

// AlignedBytesPerRow returns the per row byte count of a texture download,
// padded to the 256 byte pitch copies require.
func AlignedBytesPerRow(width uint32) uint32 {
	bytesPerRow := width * 4
	return (bytesPerRow + rowPitchAlignment - 1) &^ (rowPitchAlignment - 1)
}

// HandleKind identifies the resource class behind a handle.
type HandleKind uint8

const (
	KindUnknown HandleKind = iota
	KindShader
	KindPipeline
	KindBuffer
	KindTexture
	KindTransferBuffer
)

// String returns the kind name.
func (k HandleKind) String() string {
	switch k {
	case KindShader:
		return "shader"
	case KindPipeline:
		return "pipeline"
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindTransferBuffer:
		return "transfer_buffer"
	}
	return "unknown"
}

// Handle is an opaque token for a device owned resource. The zero value
// is invalid. A handle is live from the call that created it until the
// device releases it; the device tracks released state explicitly so a
// double release or use after release fails instead of corrupting.
type Handle struct {
	ID   uint64
	Kind HandleKind
}

// Valid reports whether the handle refers to a resource.
func (h Handle) Valid() bool {
	return h.ID != 0
}

// ShaderStage designates the pipeline stage a shader binds to.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
)

// String returns the stage name.
func (s ShaderStage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// ShaderDescriptor describes a shader object to create.
type ShaderDescriptor struct {
	Label          string
	Stage          ShaderStage
	Format         string // "spirv" or "wgsl"
	Code           []byte
	EntryPoint     string
	UniformBuffers int
	Samplers       int
}

// VertexLayout selects one of the known vertex formats.
type VertexLayout string

const (
	VertexLayoutNone          VertexLayout = "none"
	VertexLayoutPositionColor VertexLayout = "position_color"
	VertexLayoutPositionUV    VertexLayout = "position_uv"
)

// Stride returns the per vertex byte stride of the layout.
func (l VertexLayout) Stride() uint64 {
	switch l {
	case VertexLayoutPositionColor:
		return 16 // float2 position + unorm8x4 color + padding
	case VertexLayoutPositionUV:
		return 20 // float3 position + float2 uv
	}
	return 0
}

// PipelineDescriptor describes a render pipeline combining a vertex and a
// fragment shader.
type PipelineDescriptor struct {
	Label          string
	VertexShader   Handle
	FragmentShader Handle
	VertexLayout   VertexLayout
	DepthTest      bool
	DepthWrite     bool
	HasDepth       bool
	CullMode       string // "back", "front" or "none"
	DepthBias      float64
	DepthBiasSlope float64
	ColorFormat    string
	DepthFormat    string
	ColorTargets   int
}

// BufferUsage designates what a device buffer binds as.
type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
)

// BufferDescriptor describes a device buffer allocation.
type BufferDescriptor struct {
	Label string
	Usage BufferUsage
	Size  uint64
}

// TextureDescriptor describes a 2D texture allocation.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format string
}

// TransferDirection designates which way a transfer buffer moves bytes.
type TransferDirection uint8

const (
	TransferUpload TransferDirection = iota
	TransferDownload
)

// TransferBufferDescriptor describes a host visible staging buffer.
type TransferBufferDescriptor struct {
	Label     string
	Direction TransferDirection
	Size      uint64
}

// BufferRegion addresses a byte range within a device buffer.
type BufferRegion struct {
	Buffer Handle
	Offset uint64
}

// TransferLocation addresses a byte offset within a transfer buffer.
type TransferLocation struct {
	Buffer Handle
	Offset uint64
}

// Fence signals completion of a submitted command buffer.
type Fence interface {
	Signaled() bool
}

// CopyPass records staged copies inside a command buffer. Recorded copies
// execute when the owning command buffer is submitted; the source
// transfer buffer must stay alive until then.
type CopyPass interface {
	// UploadToBuffer copies size bytes from a transfer buffer into a
	// device buffer.
	UploadToBuffer(src TransferLocation, dst BufferRegion, size uint64) error
	// DownloadFromTexture copies a texture's pixels into a download
	// transfer buffer.
	DownloadFromTexture(src Handle, dst TransferLocation) error
	// End closes the pass.
	End() error
}

// CommandBuffer is a single use command stream.
type CommandBuffer interface {
	BeginCopyPass() (CopyPass, error)
	// Submit enqueues the recorded commands and blocks until completion.
	Submit() error
	// SubmitWithFence enqueues the recorded commands and returns a fence
	// to wait on.
	SubmitWithFence() (Fence, error)
	// Cancel discards the recorded commands.
	Cancel() error
}

// Device is the graphics device collaborator. It is placed in a workflow
// context once by a setup step; resource steps are pure consumers and
// never construct it. A device may be shared across runs.
type Device interface {
	Name() string
	CreateShader(desc *ShaderDescriptor) (Handle, error)
	CreatePipeline(desc *PipelineDescriptor) (Handle, error)
	CreateBuffer(desc *BufferDescriptor) (Handle, error)
	CreateTexture(desc *TextureDescriptor) (Handle, error)
	CreateTransferBuffer(desc *TransferBufferDescriptor) (Handle, error)
	// MapTransferBuffer exposes a transfer buffer's bytes to the host.
	MapTransferBuffer(h Handle) ([]byte, error)
	UnmapTransferBuffer(h Handle) error
	AcquireCommandBuffer() (CommandBuffer, error)
	// WaitFence blocks until the fence signals or timeout elapses.
	WaitFence(f Fence, timeout time.Duration) error
	// Release destroys the resource behind h. Releasing twice fails.
	Release(h Handle) error
	// Destroy tears the device down, invalidating all handles.
	Destroy()
}

// ShaderInfo is the metadata a shader compile step publishes alongside
// the handle.
type ShaderInfo struct {
	Stage      string `json:"stage" yaml:"stage"`
	Format     string `json:"format" yaml:"format"`
	CodeSize   int    `json:"code_size" yaml:"code_size"`
	EntryPoint string `json:"entrypoint" yaml:"entrypoint"`
}

// MeshInfo is the metadata a buffer upload step publishes alongside the
// buffer handles.
type MeshInfo struct {
	VertexCount  int    `json:"vertex_count" yaml:"vertex_count"`
	IndexCount   int    `json:"index_count" yaml:"index_count"`
	VertexStride uint64 `json:"vertex_stride" yaml:"vertex_stride"`
}

// FrameInfo is the metadata a framebuffer readback step publishes
// alongside the pixel bytes.
type FrameInfo struct {
	Width       uint32 `json:"width" yaml:"width"`
	Height      uint32 `json:"height" yaml:"height"`
	BytesPerRow uint32 `json:"bytes_per_row" yaml:"bytes_per_row"`
}
