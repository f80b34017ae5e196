package extension

import (
	"context"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/runtime/execution"
)

// Step is the capability every step implementation exposes: a stable
// namespace.verb type identifier and an execute over one definition and
// the run's context. Constructing a step has no external effect; effects
// happen only in Execute.
type Step interface {
	TypeID() string
	Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error
}

// Runner executes step lists and named workflows on behalf of control
// flow steps. The workflow executor implements it.
type Runner interface {
	RunSteps(ctx context.Context, steps []*model.StepDefinition, state *execution.Context) error
	RunWorkflow(ctx context.Context, pkg, name string, state *execution.Context) error
}

// Loader resolves (package, name) to a workflow definition. The package
// store implements it.
type Loader interface {
	Load(ctx context.Context, pkg, name string) (*model.Workflow, error)
}
