package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader map[string]*model.Workflow

func (l mapLoader) Load(ctx context.Context, pkg, name string) (*model.Workflow, error) {
	if workflow, ok := l[pkg+"/"+name]; ok {
		return workflow, nil
	}
	return nil, types.NewWorkflowNotFoundError(pkg, name)
}

func TestRegistrarBuildScansTransitively(t *testing.T) {
	child := model.New("child")
	child.AddStep(&model.StepDefinition{
		ID:      "log",
		Type:    "debug.log",
		Outputs: nil,
	})

	root := model.New("root")
	root.AddStep(&model.StepDefinition{
		ID:      "create",
		Type:    "scene.create",
		Outputs: map[string]string{"scene_id": "scene_id"},
	})
	root.AddStep(&model.StepDefinition{
		ID:   "dispatch",
		Type: TypeConditionSwitch,
		Parameters: map[string]interface{}{
			"cases": map[string]interface{}{
				"fast": []interface{}{
					map[string]interface{}{"type": "value.set", "outputs": map[string]interface{}{"value": "mode"}},
				},
			},
		},
		Inputs: map[string]string{"value": "mode"},
	})
	root.AddStep(&model.StepDefinition{
		ID:         "invoke",
		Type:       TypeWorkflowExecute,
		Parameters: map[string]interface{}{"workflow": "child"},
	})

	instantiated := map[string]int{}
	factory := func(family string, typeIDs ...string) Factory {
		return func() ([]Step, error) {
			instantiated[family]++
			steps := make([]Step, 0, len(typeIDs))
			for _, typeID := range typeIDs {
				steps = append(steps, &fakeStep{typeID: typeID})
			}
			return steps, nil
		}
	}
	registrar := NewRegistrar(mapLoader{"/child": child})
	registrar.RegisterFamily("scene", factory("scene", "scene.create", "scene.clear"))
	registrar.RegisterFamily("control", factory("control", TypeConditionSwitch, TypeLoopWhile))
	registrar.RegisterFamily("workflow", factory("workflow", TypeWorkflowExecute))
	registrar.RegisterFamily("value", factory("value", "value.set"))
	registrar.RegisterFamily("debug", factory("debug", "debug.log"))
	registrar.RegisterFamily("graphics", factory("graphics", "graphics.buffer.upload"))

	registry, err := registrar.Build(context.Background(), root)
	require.NoError(t, err)

	// referenced ids resolve, transitively through branch and child workflow
	expected := []string{
		TypeConditionSwitch,
		"debug.log",
		"scene.create",
		"value.set",
		TypeWorkflowExecute,
	}
	assert.Equal(t, expected, registry.TypeIDs())

	// unreferenced ids from an instantiated family are not registered
	_, ok := registry.Lookup("scene.clear")
	assert.False(t, ok)

	// a family never referenced is never instantiated
	assert.Zero(t, instantiated["graphics"])
	for _, family := range []string{"scene", "control", "workflow", "value", "debug"} {
		assert.Equal(t, 1, instantiated[family], family)
	}
}

func TestRegistrarBuildUnknownStep(t *testing.T) {
	root := model.New("root")
	root.AddStep(&model.StepDefinition{ID: "mystery", Type: "audio.play"})

	registrar := NewRegistrar(mapLoader{})
	_, err := registrar.Build(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindConfiguration, Reason: types.ReasonUnknownStep, Subject: "audio.play"}))
}

func TestRegistrarBuildDuplicateImplementation(t *testing.T) {
	root := model.New("root")
	root.AddStep(&model.StepDefinition{ID: "a", Type: "scene.create"})

	registrar := NewRegistrar(mapLoader{})
	registrar.RegisterFamily("scene", func() ([]Step, error) {
		// two distinct implementations under one type id
		return []Step{
			&fakeStep{typeID: "scene.create"},
			&fakeStep{typeID: "scene.create"},
		}, nil
	})
	_, err := registrar.Build(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindConfiguration, Reason: types.ReasonDuplicateStep}))
}

func TestRegistrarBuildMissingChildWorkflow(t *testing.T) {
	root := model.New("root")
	root.AddStep(&model.StepDefinition{
		ID:         "invoke",
		Type:       TypeWorkflowExecute,
		Parameters: map[string]interface{}{"workflow": "nowhere"},
	})
	registrar := NewRegistrar(mapLoader{})
	_, err := registrar.Build(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindControlFlow, Reason: types.ReasonWorkflowNotFound}))
}
