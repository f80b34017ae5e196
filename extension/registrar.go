package extension

import (
	"context"
	"sort"
	"strings"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
)

// Control flow type identifiers the registrar follows while scanning.
const (
	TypeWorkflowExecute = "workflow.execute"
	TypeLoopWhile       = "control.loop.while"
	TypeConditionSwitch = "control.condition.switch"
)

// Factory instantiates the step implementations of one domain family.
// Factories run lazily so a family needing an unavailable collaborator,
// such as a graphics device, is never constructed for workflows that do
// not reference it.
type Factory func() ([]Step, error)

// Registrar builds a per-run registry by scanning every type id a
// workflow references, transitively through sub workflow invocations,
// loop bodies and branch step lists, and registering exactly the
// referenced steps.
type Registrar struct {
	loader    Loader
	factories map[string]Factory
}

// NewRegistrar creates a registrar resolving child workflows via loader.
func NewRegistrar(loader Loader) *Registrar {
	return &Registrar{loader: loader, factories: make(map[string]Factory)}
}

// RegisterFamily binds a step family, the first segment of a type id, to
// the factory producing its implementations.
func (r *Registrar) RegisterFamily(family string, factory Factory) {
	r.factories[family] = factory
}

// Build scans the workflow and returns a registry holding exactly the
// referenced step implementations. A referenced type id no factory can
// supply fails the build.
func (r *Registrar) Build(ctx context.Context, workflow *model.Workflow) (*Registry, error) {
	if err := workflow.Validate(); err != nil {
		return nil, err
	}
	referenced := make(map[string]bool)
	visited := make(map[string]bool)
	if err := r.scanSteps(ctx, workflow.Steps, referenced, visited); err != nil {
		return nil, err
	}

	families := make(map[string]bool)
	for typeID := range referenced {
		families[familyOf(typeID)] = true
	}
	registry := NewRegistry()
	for _, family := range sortedKeys(families) {
		factory, ok := r.factories[family]
		if !ok {
			continue
		}
		steps, err := factory()
		if err != nil {
			return nil, err
		}
		for _, step := range steps {
			if !referenced[step.TypeID()] {
				continue
			}
			if err := registry.Register(step); err != nil {
				return nil, err
			}
		}
	}
	for _, typeID := range sortedKeys(referenced) {
		if _, ok := registry.Lookup(typeID); !ok {
			return nil, types.NewUnknownStepError(typeID)
		}
	}
	return registry, nil
}

func (r *Registrar) scanSteps(ctx context.Context, steps []*model.StepDefinition, referenced map[string]bool, visited map[string]bool) error {
	for _, def := range steps {
		referenced[def.Type] = true
		switch def.Type {
		case TypeWorkflowExecute, TypeLoopWhile:
			if err := r.scanChildWorkflow(ctx, def, referenced, visited); err != nil {
				return err
			}
		case TypeConditionSwitch:
			if err := r.scanBranches(ctx, def, referenced, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registrar) scanChildWorkflow(ctx context.Context, def *model.StepDefinition, referenced map[string]bool, visited map[string]bool) error {
	pkg := def.StringParameter("package", "")
	name := def.StringParameter("workflow", "")
	if name == "" {
		return nil
	}
	key := pkg + "/" + name
	if visited[key] {
		return nil
	}
	visited[key] = true
	child, err := r.loader.Load(ctx, pkg, name)
	if err != nil {
		return err
	}
	return r.scanSteps(ctx, child.Steps, referenced, visited)
}

func (r *Registrar) scanBranches(ctx context.Context, def *model.StepDefinition, referenced map[string]bool, visited map[string]bool) error {
	if cases, ok := def.Parameter("cases"); ok {
		branches, ok := cases.(map[string]interface{})
		if !ok {
			return types.NewConfigurationError(types.ReasonInvalidParameter, "cases", "switch cases must be a mapping of branch name to step list")
		}
		for _, branch := range branches {
			if err := r.scanEmbedded(ctx, branch, referenced, visited); err != nil {
				return err
			}
		}
	}
	if fallback, ok := def.Parameter("default"); ok {
		return r.scanEmbedded(ctx, fallback, referenced, visited)
	}
	return nil
}

func (r *Registrar) scanEmbedded(ctx context.Context, value interface{}, referenced map[string]bool, visited map[string]bool) error {
	steps, err := model.StepDefinitionsFromValue(value)
	if err != nil {
		return err
	}
	return r.scanSteps(ctx, steps, referenced, visited)
}

func familyOf(typeID string) string {
	if idx := strings.Index(typeID, "."); idx > 0 {
		return typeID[:idx]
	}
	return typeID
}

func sortedKeys(set map[string]bool) []string {
	ret := make([]string, 0, len(set))
	for k := range set {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
