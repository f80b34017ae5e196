// Package scene implements the representative scene mutation steps.
package scene

import (
	"context"

	"github.com/google/uuid"
	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// Scene is the context value a scene.create step publishes next to the
// scene id.
type Scene struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Objects []string `json:"objects,omitempty" yaml:"objects,omitempty"`
}

// Steps returns the scene family implementations.
func Steps() []extension.Step {
	return []extension.Step{
		&CreateStep{},
		&AddObjectStep{},
		&ClearStep{},
	}
}

// CreateStep creates a scene with a unique id.
type CreateStep struct{}

// TypeID implements extension.Step.
func (s *CreateStep) TypeID() string { return "scene.create" }

// Execute implements extension.Step.
func (s *CreateStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	outKey, err := stepio.RequiredOutput(def, "scene_id")
	if err != nil {
		return err
	}
	id := uuid.New().String()
	state.Set(outKey, id)
	state.Set(sceneKey(id), &Scene{ID: id, Name: def.StringParameter("name", "")})
	ctxlog.From(ctx).Debug("scene created",
		"component", "scene",
		"operation", "create",
		"detail", id)
	return nil
}

// AddObjectStep appends a named object to a scene.
type AddObjectStep struct{}

// TypeID implements extension.Step.
func (s *AddObjectStep) TypeID() string { return "scene.add_object" }

// Execute implements extension.Step.
func (s *AddObjectStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	idKey, err := stepio.RequiredInput(def, "scene_id")
	if err != nil {
		return err
	}
	object := def.StringParameter("object", "")
	if object == "" {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "object", "scene.add_object requires an object parameter")
	}
	scene, err := lookupScene(state, idKey)
	if err != nil {
		return err
	}
	scene.Objects = append(scene.Objects, object)
	return nil
}

// ClearStep removes every object from a scene.
type ClearStep struct{}

// TypeID implements extension.Step.
func (s *ClearStep) TypeID() string { return "scene.clear" }

// Execute implements extension.Step.
func (s *ClearStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	idKey, err := stepio.RequiredInput(def, "scene_id")
	if err != nil {
		return err
	}
	scene, err := lookupScene(state, idKey)
	if err != nil {
		return err
	}
	scene.Objects = nil
	return nil
}

func lookupScene(state *execution.Context, idKey string) (*Scene, error) {
	id, err := state.String(idKey)
	if err != nil {
		return nil, err
	}
	value, err := state.GetRequired(sceneKey(id))
	if err != nil {
		return nil, err
	}
	scene, ok := value.(*Scene)
	if !ok {
		return nil, types.NewTypeMismatchError(sceneKey(id), "*scene.Scene", value)
	}
	return scene, nil
}

func sceneKey(id string) string {
	return "scene." + id
}
