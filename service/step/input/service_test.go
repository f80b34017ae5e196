package input

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func moveConfig() *AggregationConfig {
	return &AggregationConfig{
		InputBindings: Bindings{
			Axes: map[string]Binding{
				"move_x": {
					Sources: []Source{
						{Type: "key", Key: "d"},
						{Type: "key", Key: "a", Scale: -1},
						{Type: "gamepad_axis", Axis: "left_x", Deadzone: 0.2},
					},
					Outputs: []string{"player.move_x"},
				},
			},
			Buttons: map[string]Binding{
				"jump": {
					Sources: []Source{
						{Type: "key", Key: "space"},
						{Type: "gamepad_button", Button: "a"},
					},
					Outputs: []string{"player.jump"},
				},
				"fire": {
					Sources: []Source{
						{Type: "mouse_button", Button: "left"},
						{Type: "gamepad_button", Button: "trigger_right"},
					},
					Outputs: []string{"player.fire"},
				},
			},
		},
	}
}

func TestApplyDeadzone(t *testing.T) {
	testCases := []struct {
		value    float64
		deadzone float64
		expect   float64
	}{
		{value: 0.1, deadzone: 0.2, expect: 0},
		{value: -0.1, deadzone: 0.2, expect: 0},
		{value: 0.6, deadzone: 0.2, expect: 0.5},
		{value: -0.6, deadzone: 0.2, expect: -0.5},
		{value: 1, deadzone: 0.2, expect: 1},
		{value: 2, deadzone: 0, expect: 1},
		{value: -2, deadzone: 0, expect: -1},
		{value: 0.9, deadzone: 1, expect: 0},
	}
	for _, testCase := range testCases {
		assert.InDelta(t, testCase.expect, ApplyDeadzone(testCase.value, testCase.deadzone), 1e-9)
	}
}

func TestAxisCombineOpposingKeys(t *testing.T) {
	state := execution.NewContextWith(map[string]interface{}{
		ConfigKey:        moveConfig(),
		KeyboardStateKey: map[string]interface{}{"a": true, "d": true},
	})
	step := &AxisCombineStep{fs: afs.New()}
	def := &model.StepDefinition{Type: step.TypeID()}
	require.NoError(t, step.Execute(context.Background(), def, state))
	value, err := state.Float("player.move_x")
	require.NoError(t, err)
	assert.Equal(t, 0.0, value, "opposing keys cancel")
}

func TestAxisCombineGamepadDeadzone(t *testing.T) {
	state := execution.NewContextWith(map[string]interface{}{
		ConfigKey:           moveConfig(),
		GamepadConnectedKey: true,
		"input.gamepad.left_x": 0.6,
	})
	step := &AxisCombineStep{fs: afs.New()}
	def := &model.StepDefinition{Type: step.TypeID()}
	require.NoError(t, step.Execute(context.Background(), def, state))
	value, err := state.Float("player.move_x")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, value, 1e-9, "deadzone rescales the remaining range")

	// a disconnected gamepad contributes nothing
	idle := execution.NewContextWith(map[string]interface{}{
		ConfigKey:            moveConfig(),
		"input.gamepad.left_x": 0.6,
	})
	require.NoError(t, step.Execute(context.Background(), def, idle))
	value, err = idle.Float("player.move_x")
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)
}

func TestAxisCombineClampsAccumulation(t *testing.T) {
	config := &AggregationConfig{
		InputBindings: Bindings{
			Axes: map[string]Binding{
				"boost": {
					Sources: []Source{
						{Type: "key", Key: "w", Scale: 2},
						{Type: "key", Key: "shift", Scale: 2},
					},
					Outputs: []string{"player.boost", "camera.boost"},
				},
			},
		},
	}
	state := execution.NewContextWith(map[string]interface{}{
		ConfigKey:        config,
		KeyboardStateKey: map[string]interface{}{"w": true, "shift": true},
	})
	step := &AxisCombineStep{fs: afs.New()}
	require.NoError(t, step.Execute(context.Background(), &model.StepDefinition{Type: step.TypeID()}, state))
	for _, key := range []string{"player.boost", "camera.boost"} {
		value, err := state.Float(key)
		require.NoError(t, err)
		assert.Equal(t, 1.0, value, key)
	}
}

func TestButtonCombineSources(t *testing.T) {
	step := &ButtonCombineStep{fs: afs.New()}
	def := &model.StepDefinition{Type: step.TypeID()}

	keyboard := execution.NewContextWith(map[string]interface{}{
		ConfigKey:        moveConfig(),
		KeyboardStateKey: map[string]interface{}{"space": true},
	})
	require.NoError(t, step.Execute(context.Background(), def, keyboard))
	pressed, err := keyboard.Bool("player.jump")
	require.NoError(t, err)
	assert.True(t, pressed)
	fired, err := keyboard.Bool("player.fire")
	require.NoError(t, err)
	assert.False(t, fired)

	trigger := execution.NewContextWith(map[string]interface{}{
		ConfigKey:                    moveConfig(),
		GamepadConnectedKey:          true,
		"input.gamepad.trigger_right": 0.7,
	})
	require.NoError(t, step.Execute(context.Background(), def, trigger))
	fired, err = trigger.Bool("player.fire")
	require.NoError(t, err)
	assert.True(t, fired, "trigger above default threshold presses the button")

	soft := execution.NewContextWith(map[string]interface{}{
		ConfigKey:                    moveConfig(),
		GamepadConnectedKey:          true,
		"input.gamepad.trigger_right": 0.3,
	})
	require.NoError(t, step.Execute(context.Background(), def, soft))
	fired, err = soft.Bool("player.fire")
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestLoadConfigFromURL(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	document := `
inputBindings:
  axes:
    move_x:
      sources:
        - type: key
          key: d
      outputs: [player.move_x]
`
	require.NoError(t, fs.Upload(ctx, "mem://localhost/input/aggregation.yaml", file.DefaultFileOsMode,
		strings.NewReader(document)))

	step := &AxisCombineStep{fs: fs}
	state := execution.NewContextWith(map[string]interface{}{
		KeyboardStateKey: map[string]interface{}{"d": true},
	})
	def := &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"config_path": "mem://localhost/input/aggregation.yaml"},
	}
	require.NoError(t, step.Execute(ctx, def, state))
	value, err := state.Float("player.move_x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, value)
}

func TestLoadConfigFailures(t *testing.T) {
	step := &ButtonCombineStep{fs: afs.New()}

	err := step.Execute(context.Background(), &model.StepDefinition{Type: step.TypeID()}, execution.NewContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	err = step.Execute(context.Background(), &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"config_path": "mem://localhost/input/missing.yaml"},
	}, execution.NewContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindResource, Reason: types.ReasonResourceLoad}))

	state := execution.NewContextWith(map[string]interface{}{ConfigKey: 42})
	err = step.Execute(context.Background(), &model.StepDefinition{Type: step.TypeID()}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindData, Reason: types.ReasonTypeMismatch}))
}

func TestCombineThroughGenericConfigMap(t *testing.T) {
	state := execution.NewContextWith(map[string]interface{}{
		ConfigKey: map[string]interface{}{
			"inputBindings": map[string]interface{}{
				"buttons": map[string]interface{}{
					"pause": map[string]interface{}{
						"sources": []interface{}{
							map[string]interface{}{"type": "key", "key": "escape"},
						},
						"outputs": []interface{}{"game.paused"},
					},
				},
			},
		},
		KeyboardStateKey: map[string]interface{}{"escape": true},
	})
	step := &ButtonCombineStep{fs: afs.New()}
	require.NoError(t, step.Execute(context.Background(), &model.StepDefinition{Type: step.TypeID()}, state))
	pressed, err := state.Bool("game.paused")
	require.NoError(t, err)
	assert.True(t, pressed)
}
