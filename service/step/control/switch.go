package control

import (
	"context"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// SwitchStep reads a discriminant from context and executes exactly one
// named branch's step list, or the default branch, in the same context.
type SwitchStep struct {
	runner extension.Runner
}

// NewSwitchStep creates the branch step.
func NewSwitchStep(runner extension.Runner) *SwitchStep {
	return &SwitchStep{runner: runner}
}

// TypeID implements extension.Step.
func (s *SwitchStep) TypeID() string {
	return extension.TypeConditionSwitch
}

// Execute implements extension.Step.
func (s *SwitchStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	valueKey, err := stepio.RequiredInput(def, "value")
	if err != nil {
		return err
	}
	discriminant, err := state.Render(valueKey)
	if err != nil {
		return err
	}
	branch, err := s.selectBranch(def, discriminant)
	if err != nil {
		return err
	}
	steps, err := model.StepDefinitionsFromValue(branch)
	if err != nil {
		return err
	}
	return s.runner.RunSteps(ctx, steps, state)
}

func (s *SwitchStep) selectBranch(def *model.StepDefinition, discriminant string) (interface{}, error) {
	if raw, ok := def.Parameter("cases"); ok {
		cases, ok := raw.(map[string]interface{})
		if !ok {
			return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "cases", "switch cases must be a mapping of branch name to step list")
		}
		if branch, ok := cases[discriminant]; ok {
			return branch, nil
		}
	}
	if fallback, ok := def.Parameter("default"); ok {
		return fallback, nil
	}
	return nil, types.NewNoBranchError(discriminant)
}
