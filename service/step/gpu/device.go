package gpu

import (
	"context"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// Provider opens or hands out a graphics device for a run.
type Provider func(ctx context.Context) (graphics.Device, error)

// AcquireStep obtains a device from the provider and publishes it under
// the output port key, defaulting to gpu.device.
type AcquireStep struct {
	provider Provider
}

// NewAcquireStep creates the device acquisition step.
func NewAcquireStep(provider Provider) *AcquireStep {
	return &AcquireStep{provider: provider}
}

// TypeID implements extension.Step.
func (s *AcquireStep) TypeID() string { return "graphics.device.acquire" }

// Execute implements extension.Step.
func (s *AcquireStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	if s.provider == nil {
		return types.NewConfigurationError(types.ReasonInvalidParameter, def.Type, "no device provider configured")
	}
	device, err := s.provider(ctx)
	if err != nil {
		return types.NewResourceError(types.ReasonDeviceCreate, def.Type, err)
	}
	key := stepio.OptionalOutput(def, "device", DefaultDeviceKey)
	state.Set(key, device)
	ctxlog.From(ctx).Debug("device acquired",
		"component", "graphics",
		"operation", "device.acquire",
		"detail", device.Name())
	return nil
}

// ReleaseStep destroys the device in context, invalidating all handles
// it issued.
type ReleaseStep struct{}

// TypeID implements extension.Step.
func (s *ReleaseStep) TypeID() string { return "graphics.device.release" }

// Execute implements extension.Step.
func (s *ReleaseStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	device, err := deviceFrom(def, state)
	if err != nil {
		return err
	}
	device.Destroy()
	state.Remove(stepio.OptionalInput(def, "device", DefaultDeviceKey))
	ctxlog.From(ctx).Debug("device released",
		"component", "graphics",
		"operation", "device.release",
		"detail", device.Name())
	return nil
}
