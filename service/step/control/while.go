// Package control implements the control flow steps: conditional branch,
// bounded loop and sub workflow invocation. All three recurse through the
// executor via extension.Runner, sharing the run's context unless a step
// explicitly isolates it.
package control

import (
	"context"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// DefaultLoopCeiling bounds loop iterations when a definition does not
// set max_iterations. Exceeding the ceiling is fatal, never a silent
// truncation.
const DefaultLoopCeiling = 1000

// IterationKey is the context key the loop writes its iteration index to
// before each body run.
const IterationKey = "loop.iteration"

// WhileStep re-evaluates a boolean context key before each iteration and
// executes a named child workflow against the same context, so body
// mutations are visible to the next condition check.
type WhileStep struct {
	runner  extension.Runner
	ceiling int
}

// NewWhileStep creates the loop step. A non positive ceiling falls back
// to DefaultLoopCeiling.
func NewWhileStep(runner extension.Runner, ceiling int) *WhileStep {
	if ceiling <= 0 {
		ceiling = DefaultLoopCeiling
	}
	return &WhileStep{runner: runner, ceiling: ceiling}
}

// TypeID implements extension.Step.
func (s *WhileStep) TypeID() string {
	return extension.TypeLoopWhile
}

// Execute implements extension.Step.
func (s *WhileStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	conditionKey, err := stepio.RequiredInput(def, "condition")
	if err != nil {
		return err
	}
	pkg := def.StringParameter("package", "")
	name := def.StringParameter("workflow", "")
	if name == "" {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "workflow", "loop requires a workflow parameter naming its body")
	}
	ceiling := def.IntParameter("max_iterations", s.ceiling)
	if ceiling <= 0 {
		ceiling = s.ceiling
	}
	logger := ctxlog.From(ctx)
	for iteration := 0; ; iteration++ {
		proceed, err := state.Bool(conditionKey)
		if err != nil {
			return err
		}
		if !proceed {
			logger.Debug("loop finished",
				"component", "control",
				"operation", "while",
				"detail", name,
				"iterations", iteration)
			return nil
		}
		if iteration >= ceiling {
			return types.NewLoopOverrunError(def.Type, ceiling)
		}
		state.Set(IterationKey, iteration)
		if err := s.runner.RunWorkflow(ctx, pkg, name, state); err != nil {
			return err
		}
	}
}
