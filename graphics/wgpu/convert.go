package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/renderflow/renderflow/graphics"
)

// vertexLayout maps the workflow level vertex format selector onto wgpu
// vertex buffer layouts.
func vertexLayout(layout graphics.VertexLayout) []gputypes.VertexBufferLayout {
	switch layout {
	case graphics.VertexLayoutPositionColor:
		// float32x3 position + unorm8x4 color
		return []gputypes.VertexBufferLayout{{
			ArrayStride: layout.Stride(),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 12, ShaderLocation: 1},
			},
		}}
	case graphics.VertexLayoutPositionUV:
		// float32x3 position + float32x2 uv
		return []gputypes.VertexBufferLayout{{
			ArrayStride: layout.Stride(),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			},
		}}
	}
	return nil
}

func cullMode(mode string) gputypes.CullMode {
	switch mode {
	case "back":
		return gputypes.CullModeBack
	case "front":
		return gputypes.CullModeFront
	}
	return gputypes.CullModeNone
}

func colorFormat(format string) gputypes.TextureFormat {
	switch format {
	case "r8_unorm":
		return gputypes.TextureFormatR8Unorm
	case "b8g8r8a8_unorm", "swapchain":
		return gputypes.TextureFormatBGRA8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func depthFormat(format string) gputypes.TextureFormat {
	if format == "d24_unorm_s8" {
		return gputypes.TextureFormatDepth24PlusStencil8
	}
	return gputypes.TextureFormatDepth32Float
}
