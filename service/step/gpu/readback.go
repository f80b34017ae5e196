package gpu

import (
	"context"
	"fmt"
	"time"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// ReadbackStep copies a texture's pixels back to the host: it allocates
// a download transfer buffer, records a texture to transfer copy,
// submits with a fence, waits bounded, maps the buffer and strips the
// row padding. Transient resources release in the reverse order of
// acquisition on every exit path, including failures past the first
// device call.
type ReadbackStep struct{}

// TypeID implements extension.Step.
func (s *ReadbackStep) TypeID() string { return "graphics.framebuffer.readback" }

// Execute implements extension.Step.
func (s *ReadbackStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) (retErr error) {
	textureKey, err := stepio.RequiredInput(def, "source_texture")
	if err != nil {
		return err
	}
	widthKey, err := stepio.RequiredInput(def, "width")
	if err != nil {
		return err
	}
	heightKey, err := stepio.RequiredInput(def, "height")
	if err != nil {
		return err
	}
	pixelsOut, err := stepio.RequiredOutput(def, "pixels")
	if err != nil {
		return err
	}
	successOut := stepio.OptionalOutput(def, "success", "readback_success")

	width, err := state.Int(widthKey)
	if err != nil {
		return err
	}
	height, err := state.Int(heightKey)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return types.NewDataError(types.ReasonEmptyFrame, def.Type,
			fmt.Sprintf("readback size %vx%v has no pixels", width, height))
	}
	texture, err := handleAt(state, textureKey, graphics.KindTexture)
	if err != nil {
		return err
	}
	device, err := deviceFrom(def, state)
	if err != nil {
		return err
	}
	defer func() {
		state.Set(successOut, retErr == nil)
	}()

	bytesPerRow := graphics.AlignedBytesPerRow(uint32(width))
	transfer, err := device.CreateTransferBuffer(&graphics.TransferBufferDescriptor{
		Label:     "readback",
		Direction: graphics.TransferDownload,
		Size:      uint64(bytesPerRow) * uint64(height),
	})
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCreate, "transfer_buffer", err)
	}
	defer func() {
		if err := device.Release(transfer); err != nil && retErr == nil {
			retErr = err
		}
	}()

	if err := s.download(def, device, texture, transfer); err != nil {
		return err
	}

	mapped, err := device.MapTransferBuffer(transfer)
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "transfer_buffer", err)
	}
	tightRow := width * 4
	pixels := make([]byte, tightRow*height)
	for row := 0; row < height; row++ {
		copy(pixels[row*tightRow:(row+1)*tightRow], mapped[row*int(bytesPerRow):])
	}
	if err := device.UnmapTransferBuffer(transfer); err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "transfer_buffer", err)
	}

	state.Set(pixelsOut, pixels)
	state.Set(stepio.OptionalOutput(def, "frame_info", "frame_info"), &graphics.FrameInfo{
		Width:       uint32(width),
		Height:      uint32(height),
		BytesPerRow: uint32(tightRow),
	})
	ctxlog.From(ctx).Debug("framebuffer read back",
		"component", "graphics",
		"operation", "framebuffer.readback",
		"width", width,
		"height", height,
		"bytes", len(pixels))
	return nil
}

// download records and submits the texture to transfer copy, waiting on
// the completion fence. The command buffer is the last resource acquired
// and the first one retired: canceled on failure, consumed by submit on
// success.
func (s *ReadbackStep) download(def *model.StepDefinition, device graphics.Device, texture, transfer graphics.Handle) error {
	cmd, err := device.AcquireCommandBuffer()
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	pass, err := cmd.BeginCopyPass()
	if err != nil {
		_ = cmd.Cancel()
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", err)
	}
	if err := pass.DownloadFromTexture(texture, graphics.TransferLocation{Buffer: transfer}); err != nil {
		_ = cmd.Cancel()
		return types.NewResourceError(types.ReasonDeviceCopy, "source_texture", err)
	}
	if err := pass.End(); err != nil {
		_ = cmd.Cancel()
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", err)
	}
	fence, err := cmd.SubmitWithFence()
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	timeout := graphics.DefaultFenceTimeout
	if ms := def.IntParameter("timeout_ms", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	return device.WaitFence(fence, timeout)
}
