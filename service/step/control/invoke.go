package control

import (
	"context"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
)

// InvokeStep loads a named child workflow from the package store and
// executes it. By default the child borrows the parent context; with
// isolate the child runs on a fresh context seeded from the step's input
// mappings and results copy back per the output mappings. The choice is
// always explicit on the definition, never implicit aliasing.
type InvokeStep struct {
	runner extension.Runner
}

// NewInvokeStep creates the sub workflow step.
func NewInvokeStep(runner extension.Runner) *InvokeStep {
	return &InvokeStep{runner: runner}
}

// TypeID implements extension.Step.
func (s *InvokeStep) TypeID() string {
	return extension.TypeWorkflowExecute
}

// Execute implements extension.Step.
func (s *InvokeStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	pkg := def.StringParameter("package", "")
	name := def.StringParameter("workflow", "")
	if name == "" {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "workflow", "workflow.execute requires a workflow parameter")
	}
	if !def.BoolParameter("isolate", false) {
		return s.runner.RunWorkflow(ctx, pkg, name, state)
	}

	child := execution.NewContext()
	for port, key := range def.Inputs {
		value, err := state.GetRequired(key)
		if err != nil {
			return err
		}
		child.Set(port, value)
	}
	if err := s.runner.RunWorkflow(ctx, pkg, name, child); err != nil {
		return err
	}
	for port, key := range def.Outputs {
		value, err := child.GetRequired(port)
		if err != nil {
			return err
		}
		state.Set(key, value)
	}
	return nil
}
