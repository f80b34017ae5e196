package wgpu

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHALDevice overrides only the fence methods; everything else panics
// through the embedded nil interface if touched.
type fakeHALDevice struct {
	hal.Device
	waitOK          bool
	waitErr         error
	destroyedFences int
}

func (d *fakeHALDevice) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	return d.waitOK, d.waitErr
}

func (d *fakeHALDevice) DestroyFence(_ hal.Fence) {
	d.destroyedFences++
}

type fakeEncoder struct {
	hal.CommandEncoder
	calls []string
}

func (e *fakeEncoder) TransitionTextures(_ []hal.TextureBarrier) {
	e.calls = append(e.calls, "transition")
}

func (e *fakeEncoder) CopyTextureToBuffer(_ hal.Texture, _ hal.Buffer, _ []hal.BufferTextureCopy) {
	e.calls = append(e.calls, "copy")
}

func TestWaitFenceDestroysFenceOnEveryExit(t *testing.T) {
	halDev := &fakeHALDevice{}
	device := NewWithHAL(halDev, nil)

	halDev.waitOK = false
	err := device.WaitFence(&halFence{value: 1}, time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTimeout))
	assert.Equal(t, 1, halDev.destroyedFences)

	halDev.waitErr = fmt.Errorf("device lost")
	err = device.WaitFence(&halFence{value: 1}, time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrResource))
	assert.Equal(t, 2, halDev.destroyedFences)

	halDev.waitOK, halDev.waitErr = true, nil
	fence := &halFence{value: 1}
	require.NoError(t, device.WaitFence(fence, time.Millisecond))
	assert.True(t, fence.Signaled())
	assert.Equal(t, 3, halDev.destroyedFences)
}

func TestDownloadFromTextureTransitionsBeforeCopy(t *testing.T) {
	device := NewWithHAL(&fakeHALDevice{}, nil)
	device.entries[1] = &entry{kind: graphics.KindTexture, width: 2, height: 2}
	device.entries[2] = &entry{kind: graphics.KindTransferBuffer, direction: graphics.TransferDownload}

	encoder := &fakeEncoder{}
	pass := &copyPass{buffer: &commandBuffer{device: device, encoder: encoder}}
	require.NoError(t, pass.DownloadFromTexture(
		graphics.Handle{ID: 1, Kind: graphics.KindTexture},
		graphics.TransferLocation{Buffer: graphics.Handle{ID: 2, Kind: graphics.KindTransferBuffer}},
	))
	assert.Equal(t, []string{"transition", "copy"}, encoder.calls)
}
