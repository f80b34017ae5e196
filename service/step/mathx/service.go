// Package mathx implements the number family of arithmetic steps.
package mathx

import (
	"context"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// Steps returns the number family implementations.
func Steps() []extension.Step {
	return []extension.Step{
		&BinaryStep{typeID: "number.add", apply: func(a, b float64) (float64, error) { return a + b, nil }},
		&BinaryStep{typeID: "number.subtract", apply: func(a, b float64) (float64, error) { return a - b, nil }},
		&BinaryStep{typeID: "number.multiply", apply: func(a, b float64) (float64, error) { return a * b, nil }},
		&BinaryStep{typeID: "number.divide", apply: divide},
		&ClampStep{},
	}
}

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, types.NewDataError(types.ReasonInvalidParameter, "b", "division by zero")
	}
	return a / b, nil
}

// BinaryStep applies a binary operation to the numeric values under the
// a and b input port keys, publishing the result port key.
type BinaryStep struct {
	typeID string
	apply  func(a, b float64) (float64, error)
}

// TypeID implements extension.Step.
func (s *BinaryStep) TypeID() string { return s.typeID }

// Execute implements extension.Step.
func (s *BinaryStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	aKey, err := stepio.RequiredInput(def, "a")
	if err != nil {
		return err
	}
	bKey, err := stepio.RequiredInput(def, "b")
	if err != nil {
		return err
	}
	outKey, err := stepio.RequiredOutput(def, "result")
	if err != nil {
		return err
	}
	a, err := state.Float(aKey)
	if err != nil {
		return err
	}
	b, err := state.Float(bKey)
	if err != nil {
		return err
	}
	result, err := s.apply(a, b)
	if err != nil {
		return err
	}
	state.Set(outKey, result)
	return nil
}

// ClampStep bounds the numeric value under the value port key by the min
// and max parameters.
type ClampStep struct{}

// TypeID implements extension.Step.
func (s *ClampStep) TypeID() string { return "number.clamp" }

// Execute implements extension.Step.
func (s *ClampStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "value")
	if err != nil {
		return err
	}
	outKey, err := stepio.RequiredOutput(def, "result")
	if err != nil {
		return err
	}
	min := def.FloatParameter("min", 0)
	max := def.FloatParameter("max", 1)
	if max < min {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "max", "clamp max is below min")
	}
	value, err := state.Float(inKey)
	if err != nil {
		return err
	}
	switch {
	case value < min:
		value = min
	case value > max:
		value = max
	}
	state.Set(outKey, value)
	return nil
}
