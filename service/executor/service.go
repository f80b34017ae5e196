// Package executor walks a workflow's step list in order, dispatching
// each definition through the step registry against the run's context.
// Execution is single threaded per run; control flow steps recurse back
// into the executor through the extension.Runner interface.
package executor

import (
	"context"
	"errors"
	"strconv"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/tracing"
)

// Service executes workflows against a step registry.
type Service struct {
	registry *extension.Registry
	loader   extension.Loader
}

var _ extension.Runner = (*Service)(nil)

// Option customizes the executor.
type Option func(*Service)

// WithLoader sets the package store used to resolve named child workflows.
func WithLoader(loader extension.Loader) Option {
	return func(s *Service) {
		s.loader = loader
	}
}

// New creates an executor over the supplied registry.
func New(registry *extension.Registry, options ...Option) *Service {
	ret := &Service{registry: registry}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// SetRegistry swaps the registry; used when the registry is built after
// the executor because control flow steps hold the executor as runner.
func (s *Service) SetRegistry(registry *extension.Registry) {
	s.registry = registry
}

// Execute runs the workflow to a terminal state. The returned process
// carries the failing step's type id and position when the run failed.
func (s *Service) Execute(ctx context.Context, workflow *model.Workflow, state *execution.Context) *execution.Process {
	process := execution.NewProcess(workflow.Name)
	process.Start()
	ctx, span := tracing.StartSpan(ctx, "workflow."+workflow.Name)
	span.WithAttributes(map[string]string{"workflow.name": workflow.Name, "process.id": process.ID})

	err := s.RunSteps(ctx, workflow.Steps, state)
	tracing.EndSpan(span, err)
	if err == nil {
		process.Complete()
		return process
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		process.Fail(stepErr.TypeID, stepErr.Position, err)
	} else {
		process.Fail("", -1, err)
	}
	ctxlog.From(ctx).Error("workflow run failed",
		"component", "executor",
		"operation", "Execute",
		"workflow", workflow.Name,
		"step", process.FailedType,
		"position", process.FailedPosition,
		"error", err)
	return process
}

// RunSteps executes a step list in order against state. The first failure
// aborts the remaining steps and is returned wrapped as a *StepError; a
// failure inside a nested branch or sub workflow keeps its innermost
// step attribution.
func (s *Service) RunSteps(ctx context.Context, steps []*model.StepDefinition, state *execution.Context) error {
	logger := ctxlog.From(ctx)
	for position, def := range steps {
		step, ok := s.registry.Lookup(def.Type)
		if !ok {
			return &StepError{TypeID: def.Type, Position: position, Err: types.NewUnknownStepError(def.Type)}
		}
		stepCtx, span := tracing.StartSpan(ctx, "step."+def.Type)
		span.WithAttributes(map[string]string{"step.type": def.Type, "step.position": strconv.Itoa(position)})
		logger.Debug("executing step",
			"component", "executor",
			"operation", "RunSteps",
			"detail", def.Type,
			"position", position)
		err := step.Execute(stepCtx, def, state)
		tracing.EndSpan(span, err)
		if err == nil {
			continue
		}
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			return err
		}
		return &StepError{TypeID: def.Type, Position: position, Err: err}
	}
	return nil
}

// RunWorkflow loads a named workflow from the package store and executes
// its steps against state.
func (s *Service) RunWorkflow(ctx context.Context, pkg, name string, state *execution.Context) error {
	if s.loader == nil {
		return types.NewWorkflowNotFoundError(pkg, name)
	}
	workflow, err := s.loader.Load(ctx, pkg, name)
	if err != nil {
		return err
	}
	return s.RunSteps(ctx, workflow.Steps, state)
}
