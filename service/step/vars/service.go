// Package vars implements the value family: setting, reading and copying
// context values, plus a type assertion backed by the data type registry.
package vars

import (
	"context"
	"reflect"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// Steps returns the value family implementations.
func Steps(goTypes *extension.Types) []extension.Step {
	return []extension.Step{
		&SetStep{},
		&GetStep{},
		&CopyStep{},
		&AssertTypeStep{types: goTypes},
	}
}

// SetStep writes a static parameter value, with $key references expanded
// against the context, under the output port key.
type SetStep struct{}

// TypeID implements extension.Step.
func (s *SetStep) TypeID() string { return "value.set" }

// Execute implements extension.Step.
func (s *SetStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	outKey, err := stepio.RequiredOutput(def, "value")
	if err != nil {
		return err
	}
	value, ok := def.Parameter("value")
	if !ok {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "value", "value.set requires a value parameter")
	}
	state.Set(outKey, state.Expand(value))
	return nil
}

// GetStep reads the input port key and republishes the value under the
// output port key, failing when the source key is unset.
type GetStep struct{}

// TypeID implements extension.Step.
func (s *GetStep) TypeID() string { return "value.get" }

// Execute implements extension.Step.
func (s *GetStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "value")
	if err != nil {
		return err
	}
	outKey, err := stepio.RequiredOutput(def, "result")
	if err != nil {
		return err
	}
	value, err := state.GetRequired(inKey)
	if err != nil {
		return err
	}
	state.Set(outKey, value)
	return nil
}

// CopyStep copies the value under the source port key to the target port
// key.
type CopyStep struct{}

// TypeID implements extension.Step.
func (s *CopyStep) TypeID() string { return "value.copy" }

// Execute implements extension.Step.
func (s *CopyStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	sourceKey, err := stepio.RequiredInput(def, "source")
	if err != nil {
		return err
	}
	targetKey, err := stepio.RequiredOutput(def, "target")
	if err != nil {
		return err
	}
	value, err := state.GetRequired(sourceKey)
	if err != nil {
		return err
	}
	state.Set(targetKey, value)
	return nil
}

// AssertTypeStep verifies the input value's Go type against a dotted
// type name resolved through the registry.
type AssertTypeStep struct {
	types *extension.Types
}

// TypeID implements extension.Step.
func (s *AssertTypeStep) TypeID() string { return "value.assert.type" }

// Execute implements extension.Step.
func (s *AssertTypeStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "value")
	if err != nil {
		return err
	}
	typeName := def.StringParameter("type", "")
	if typeName == "" {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "type", "value.assert.type requires a type parameter")
	}
	registered := s.types.Lookup(typeName)
	if registered == nil {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "type", "unknown data type "+typeName)
	}
	value, err := state.GetRequired(inKey)
	if err != nil {
		return err
	}
	actual := reflect.TypeOf(value)
	if actual != registered.Type && actual != reflect.PointerTo(registered.Type) {
		return types.NewTypeMismatchError(inKey, typeName, value)
	}
	return nil
}
