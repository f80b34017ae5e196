// Package gpu implements the resource lifecycle steps: shader compile,
// pipeline create, buffer upload and framebuffer readback, plus the
// device acquire/release pair. Steps never construct a device; they
// consume the one a setup step placed into the context.
package gpu

import (
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// DefaultDeviceKey is the context key resource steps read the device
// from when a definition leaves the device port unbound.
const DefaultDeviceKey = "gpu.device"

// Steps returns the graphics family implementations. Provider is only
// consulted by graphics.device.acquire; it may be nil when workflows
// acquire the device elsewhere.
func Steps(provider Provider) []extension.Step {
	return []extension.Step{
		NewAcquireStep(provider),
		&ReleaseStep{},
		NewCompileStep(),
		&PipelineStep{},
		&UploadStep{},
		&ReadbackStep{},
	}
}

// GeometrySteps returns the geometry family implementations.
func GeometrySteps() []extension.Step {
	return []extension.Step{
		&QuadStep{},
	}
}

func deviceFrom(def *model.StepDefinition, state *execution.Context) (graphics.Device, error) {
	key := stepio.OptionalInput(def, "device", DefaultDeviceKey)
	value, err := state.GetRequired(key)
	if err != nil {
		return nil, err
	}
	device, ok := value.(graphics.Device)
	if !ok {
		return nil, types.NewTypeMismatchError(key, "graphics.Device", value)
	}
	return device, nil
}

func handleAt(state *execution.Context, key string, kind graphics.HandleKind) (graphics.Handle, error) {
	value, err := state.GetRequired(key)
	if err != nil {
		return graphics.Handle{}, err
	}
	handle, ok := value.(graphics.Handle)
	if !ok {
		return graphics.Handle{}, types.NewTypeMismatchError(key, "graphics.Handle", value)
	}
	if handle.Kind != kind {
		return graphics.Handle{}, types.NewTypeMismatchError(key, kind.String()+" handle", handle.Kind.String())
	}
	return handle, nil
}
