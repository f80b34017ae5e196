// Package text implements the string family of steps.
package text

import (
	"context"
	"strings"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
	"github.com/viant/toolbox"
)

// Steps returns the string family implementations.
func Steps() []extension.Step {
	return []extension.Step{
		&ConcatStep{},
		&FormatStep{},
		&CaseStep{typeID: "string.upper", apply: strings.ToUpper},
		&CaseStep{typeID: "string.lower", apply: strings.ToLower},
	}
}

// ConcatStep joins the values parameter, each expanded against the
// context, with an optional separator.
type ConcatStep struct{}

// TypeID implements extension.Step.
func (s *ConcatStep) TypeID() string { return "string.concat" }

// Execute implements extension.Step.
func (s *ConcatStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	outKey, err := stepio.RequiredOutput(def, "result")
	if err != nil {
		return err
	}
	raw, ok := def.Parameter("values")
	if !ok {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "values", "string.concat requires a values parameter")
	}
	items, ok := raw.([]interface{})
	if !ok {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "values", "string.concat values must be a list")
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, toolbox.AsString(state.Expand(item)))
	}
	state.Set(outKey, strings.Join(parts, def.StringParameter("separator", "")))
	return nil
}

// FormatStep renders the format parameter with $key references expanded
// against the context.
type FormatStep struct{}

// TypeID implements extension.Step.
func (s *FormatStep) TypeID() string { return "string.format" }

// Execute implements extension.Step.
func (s *FormatStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	outKey, err := stepio.RequiredOutput(def, "result")
	if err != nil {
		return err
	}
	format := def.StringParameter("format", "")
	if format == "" {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "format", "string.format requires a format parameter")
	}
	state.Set(outKey, toolbox.AsString(state.Expand(format)))
	return nil
}

// CaseStep transforms the string under the value port key.
type CaseStep struct {
	typeID string
	apply  func(string) string
}

// TypeID implements extension.Step.
func (s *CaseStep) TypeID() string { return s.typeID }

// Execute implements extension.Step.
func (s *CaseStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "value")
	if err != nil {
		return err
	}
	outKey, err := stepio.RequiredOutput(def, "result")
	if err != nil {
		return err
	}
	value, err := state.Render(inKey)
	if err != nil {
		return err
	}
	state.Set(outKey, s.apply(value))
	return nil
}
