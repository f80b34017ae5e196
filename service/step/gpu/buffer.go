package gpu

import (
	"context"
	"fmt"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

const indexStride = 2 // uint16 indices

// UploadStep stages vertex and optional index bytes through a single
// transfer buffer and copies both into device buffers in one copy pass.
// The transfer buffer outlives the submit and is released only after the
// copies complete; on any failure every resource created so far is
// released before returning.
type UploadStep struct{}

// TypeID implements extension.Step.
func (s *UploadStep) TypeID() string { return "graphics.buffer.upload" }

// Execute implements extension.Step.
func (s *UploadStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	vertexKey, err := stepio.RequiredInput(def, "vertex_data")
	if err != nil {
		return err
	}
	vertexOut, err := stepio.RequiredOutput(def, "vertex_buffer")
	if err != nil {
		return err
	}
	indexKey := stepio.OptionalInput(def, "index_data", "")
	indexOut := ""
	if indexKey != "" {
		if indexOut, err = stepio.RequiredOutput(def, "index_buffer"); err != nil {
			return err
		}
	}
	vertexData, err := state.Bytes(vertexKey)
	if err != nil {
		return err
	}
	stride := uint64(def.IntParameter("vertex_stride", 16))
	if err := validateGeometry(vertexKey, vertexData, stride); err != nil {
		return err
	}
	var indexData []byte
	if indexKey != "" {
		if indexData, err = state.Bytes(indexKey); err != nil {
			return err
		}
		if err := validateGeometry(indexKey, indexData, indexStride); err != nil {
			return err
		}
	}
	device, err := deviceFrom(def, state)
	if err != nil {
		return err
	}

	var created []graphics.Handle
	releaseCreated := func() {
		for i := len(created) - 1; i >= 0; i-- {
			_ = device.Release(created[i])
		}
	}
	vertexBuffer, err := device.CreateBuffer(&graphics.BufferDescriptor{
		Label: def.StringParameter("label", "mesh") + ".vertex",
		Usage: graphics.BufferUsageVertex,
		Size:  uint64(len(vertexData)),
	})
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCreate, vertexKey, err)
	}
	created = append(created, vertexBuffer)

	indexBuffer := graphics.Handle{}
	if len(indexData) > 0 {
		if indexBuffer, err = device.CreateBuffer(&graphics.BufferDescriptor{
			Label: def.StringParameter("label", "mesh") + ".index",
			Usage: graphics.BufferUsageIndex,
			Size:  uint64(len(indexData)),
		}); err != nil {
			releaseCreated()
			return types.NewResourceError(types.ReasonDeviceCreate, indexKey, err)
		}
		created = append(created, indexBuffer)
	}

	transfer, err := device.CreateTransferBuffer(&graphics.TransferBufferDescriptor{
		Label:     "upload",
		Direction: graphics.TransferUpload,
		Size:      uint64(len(vertexData) + len(indexData)),
	})
	if err != nil {
		releaseCreated()
		return types.NewResourceError(types.ReasonDeviceCreate, "transfer_buffer", err)
	}
	created = append(created, transfer)

	if err := s.stage(device, transfer, vertexData, indexData); err != nil {
		releaseCreated()
		return err
	}
	if err := s.copy(device, transfer, vertexBuffer, indexBuffer, uint64(len(vertexData)), uint64(len(indexData))); err != nil {
		releaseCreated()
		return err
	}
	// Copies have completed; only now may the staging memory go away.
	if err := device.Release(transfer); err != nil {
		return err
	}

	state.Set(vertexOut, vertexBuffer)
	if indexOut != "" {
		state.Set(indexOut, indexBuffer)
	}
	info := &graphics.MeshInfo{
		VertexCount:  len(vertexData) / int(stride),
		IndexCount:   len(indexData) / indexStride,
		VertexStride: stride,
	}
	state.Set(stepio.OptionalOutput(def, "mesh_info", "mesh_info"), info)
	ctxlog.From(ctx).Debug("mesh uploaded",
		"component", "graphics",
		"operation", "buffer.upload",
		"vertices", info.VertexCount,
		"indices", info.IndexCount)
	return nil
}

func (s *UploadStep) stage(device graphics.Device, transfer graphics.Handle, vertexData, indexData []byte) error {
	mapped, err := device.MapTransferBuffer(transfer)
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "transfer_buffer", err)
	}
	copy(mapped, vertexData)
	copy(mapped[len(vertexData):], indexData)
	if err := device.UnmapTransferBuffer(transfer); err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "transfer_buffer", err)
	}
	return nil
}

func (s *UploadStep) copy(device graphics.Device, transfer, vertexBuffer, indexBuffer graphics.Handle, vertexSize, indexSize uint64) error {
	cmd, err := device.AcquireCommandBuffer()
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	pass, err := cmd.BeginCopyPass()
	if err != nil {
		_ = cmd.Cancel()
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", err)
	}
	if err := pass.UploadToBuffer(
		graphics.TransferLocation{Buffer: transfer},
		graphics.BufferRegion{Buffer: vertexBuffer},
		vertexSize); err != nil {
		_ = cmd.Cancel()
		return types.NewResourceError(types.ReasonDeviceCopy, "vertex_buffer", err)
	}
	if indexSize > 0 {
		if err := pass.UploadToBuffer(
			graphics.TransferLocation{Buffer: transfer, Offset: vertexSize},
			graphics.BufferRegion{Buffer: indexBuffer},
			indexSize); err != nil {
			_ = cmd.Cancel()
			return types.NewResourceError(types.ReasonDeviceCopy, "index_buffer", err)
		}
	}
	if err := pass.End(); err != nil {
		_ = cmd.Cancel()
		return types.NewResourceError(types.ReasonDeviceCopy, "copy_pass", err)
	}
	if err := cmd.Submit(); err != nil {
		return types.NewResourceError(types.ReasonDeviceCopy, "command_buffer", err)
	}
	return nil
}

func validateGeometry(key string, data []byte, stride uint64) error {
	if len(data) == 0 {
		return types.NewDataError(types.ReasonInvalidGeometry, key, "geometry data is empty")
	}
	if uint64(len(data))%stride != 0 {
		return types.NewDataError(types.ReasonInvalidGeometry, key,
			fmt.Sprintf("%v bytes is not a multiple of stride %v", len(data), stride))
	}
	return nil
}
