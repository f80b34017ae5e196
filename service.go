package renderflow

import (
	"context"
	"reflect"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/graphics"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/service/dao/workflow"
	"github.com/renderflow/renderflow/service/executor"
	"github.com/renderflow/renderflow/service/step/control"
	"github.com/renderflow/renderflow/service/step/debug"
	"github.com/renderflow/renderflow/service/step/gpu"
	"github.com/renderflow/renderflow/service/step/input"
	"github.com/renderflow/renderflow/service/step/list"
	"github.com/renderflow/renderflow/service/step/mathx"
	"github.com/renderflow/renderflow/service/step/scene"
	"github.com/renderflow/renderflow/service/step/system"
	"github.com/renderflow/renderflow/service/step/text"
	"github.com/renderflow/renderflow/service/step/vars"
	"github.com/viant/x"
)

// Service is the engine facade: it owns the package store, the data type
// registry and the step family factories, and builds a per run registry
// and executor for every workflow it runs.
type Service struct {
	store          *workflow.Service
	storeOptions   []workflow.Option
	types          *extension.Types
	extensionTypes []*x.Type
	families       map[string]extension.Factory
	deviceProvider gpu.Provider
	loopCeiling    int
}

// New creates the engine.
func New(options ...Option) *Service {
	ret := &Service{
		families:    map[string]extension.Factory{},
		loopCeiling: control.DefaultLoopCeiling,
	}
	for _, option := range options {
		option(ret)
	}
	ret.init()
	return ret
}

func (s *Service) init() {
	if s.store == nil {
		s.store = workflow.New(s.storeOptions...)
	}
	s.types = extension.NewTypes()
	s.types.Register(x.NewType(reflect.TypeOf(scene.Scene{})))
	s.types.Register(x.NewType(reflect.TypeOf(graphics.ShaderInfo{})))
	s.types.Register(x.NewType(reflect.TypeOf(graphics.MeshInfo{})))
	s.types.Register(x.NewType(reflect.TypeOf(graphics.FrameInfo{})))
	s.types.Register(x.NewType(reflect.TypeOf(graphics.Handle{})))
	for _, t := range s.extensionTypes {
		s.types.Register(t)
	}
}

// Store returns the workflow package store.
func (s *Service) Store() *workflow.Service {
	return s.store
}

// Types returns the data type registry.
func (s *Service) Types() *extension.Types {
	return s.types
}

// Upsert registers a workflow programmatically under pkg. An unnamed or
// structurally invalid workflow is rejected.
func (s *Service) Upsert(pkg string, aWorkflow *model.Workflow) error {
	return s.store.Upsert(pkg, aWorkflow)
}

// RegisterExtensionType adds a data type usable by value.assert.type.
func (s *Service) RegisterExtensionType(t *x.Type) {
	s.types.Register(t)
}

// RegisterFamily binds a custom step family factory, overriding a built
// in family of the same name.
func (s *Service) RegisterFamily(family string, factory extension.Factory) {
	s.families[family] = factory
}

// Load resolves a workflow from the package store.
func (s *Service) Load(ctx context.Context, pkg, name string) (*model.Workflow, error) {
	return s.store.Load(ctx, pkg, name)
}

// Run executes a named workflow from the package store against state and
// returns the terminal process. Each run gets its own registry and
// executor, so concurrent runs never share mutable dispatch state.
func (s *Service) Run(ctx context.Context, pkg, name string, state *execution.Context) (*execution.Process, error) {
	aWorkflow, err := s.store.Load(ctx, pkg, name)
	if err != nil {
		return nil, err
	}
	return s.RunWorkflow(ctx, aWorkflow, state)
}

// RunWorkflow executes an already loaded workflow against state.
func (s *Service) RunWorkflow(ctx context.Context, aWorkflow *model.Workflow, state *execution.Context) (*execution.Process, error) {
	exec := executor.New(nil, executor.WithLoader(s.store))
	registrar := s.newRegistrar(exec)
	registry, err := registrar.Build(ctx, aWorkflow)
	if err != nil {
		return nil, err
	}
	exec.SetRegistry(registry)
	return exec.Execute(ctx, aWorkflow, state), nil
}

// newRegistrar wires the built in families around the run's executor,
// then overlays any caller supplied factories.
func (s *Service) newRegistrar(runner extension.Runner) *extension.Registrar {
	registrar := extension.NewRegistrar(s.store)
	registrar.RegisterFamily("control", func() ([]extension.Step, error) {
		return control.Steps(runner, s.loopCeiling), nil
	})
	registrar.RegisterFamily("workflow", func() ([]extension.Step, error) {
		return control.WorkflowSteps(runner), nil
	})
	registrar.RegisterFamily("scene", func() ([]extension.Step, error) {
		return scene.Steps(), nil
	})
	registrar.RegisterFamily("graphics", func() ([]extension.Step, error) {
		return gpu.Steps(s.deviceProvider), nil
	})
	registrar.RegisterFamily("geometry", func() ([]extension.Step, error) {
		return gpu.GeometrySteps(), nil
	})
	registrar.RegisterFamily("input", func() ([]extension.Step, error) {
		return input.Steps(), nil
	})
	registrar.RegisterFamily("value", func() ([]extension.Step, error) {
		return vars.Steps(s.types), nil
	})
	registrar.RegisterFamily("number", func() ([]extension.Step, error) {
		return mathx.Steps(), nil
	})
	registrar.RegisterFamily("string", func() ([]extension.Step, error) {
		return text.Steps(), nil
	})
	registrar.RegisterFamily("list", func() ([]extension.Step, error) {
		return list.Steps(), nil
	})
	registrar.RegisterFamily("debug", func() ([]extension.Step, error) {
		return debug.Steps(), nil
	})
	registrar.RegisterFamily("system", func() ([]extension.Step, error) {
		return system.Steps(), nil
	})
	for family, factory := range s.families {
		registrar.RegisterFamily(family, factory)
	}
	return registrar
}
