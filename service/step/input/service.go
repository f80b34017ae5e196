// Package input implements the input family: combining raw device state
// already present in the context (keyboard, mouse, gamepad) into named
// logical axes and buttons according to a binding configuration.
package input

import (
	"context"
	"math"

	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
	"github.com/viant/afs"
	"github.com/viant/toolbox"
	"gopkg.in/yaml.v3"
)

// ConfigKey is the context key holding an aggregation config placed there
// by an earlier step; when absent the config loads from the config_path
// parameter.
const ConfigKey = "input.aggregation.config"

// Context keys the combine steps read raw device state from.
const (
	KeyboardStateKey    = "input.keyboard.state"
	GamepadConnectedKey = "input.gamepad.connected"
)

// AggregationConfig maps raw input sources onto logical axes and buttons.
type AggregationConfig struct {
	InputBindings Bindings `yaml:"inputBindings" json:"inputBindings"`
}

// Bindings holds the axis and button binding tables.
type Bindings struct {
	Axes    map[string]Binding `yaml:"axes" json:"axes"`
	Buttons map[string]Binding `yaml:"buttons" json:"buttons"`
}

// Binding combines one or more sources into every listed output key.
type Binding struct {
	Sources []Source `yaml:"sources" json:"sources"`
	Outputs []string `yaml:"outputs" json:"outputs"`
}

// Source describes one raw input contributing to a binding. Type is one
// of key, mouse, mouse_button, gamepad_axis or gamepad_button.
type Source struct {
	Type      string  `yaml:"type" json:"type"`
	Key       string  `yaml:"key,omitempty" json:"key,omitempty"`
	Axis      string  `yaml:"axis,omitempty" json:"axis,omitempty"`
	Button    string  `yaml:"button,omitempty" json:"button,omitempty"`
	Scale     float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Invert    bool    `yaml:"invert,omitempty" json:"invert,omitempty"`
	Deadzone  float64 `yaml:"deadzone,omitempty" json:"deadzone,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// Steps returns the input family implementations.
func Steps() []extension.Step {
	fs := afs.New()
	return []extension.Step{
		&AxisCombineStep{fs: fs},
		&ButtonCombineStep{fs: fs},
	}
}

// ApplyDeadzone zeroes values inside the deadzone and rescales the
// remaining range so the output still spans [-1, 1].
func ApplyDeadzone(value, deadzone float64) float64 {
	clamped := math.Max(-1, math.Min(1, value))
	if deadzone <= 0 {
		return clamped
	}
	if deadzone >= 1 || math.Abs(clamped) < deadzone {
		return 0
	}
	if clamped > 0 {
		return (clamped - deadzone) / (1 - deadzone)
	}
	return (clamped + deadzone) / (1 - deadzone)
}

// AxisCombineStep accumulates scaled, deadzone-filtered source values into
// each configured axis and writes the clamped result to its output keys.
type AxisCombineStep struct {
	fs afs.Service
}

// TypeID implements extension.Step.
func (s *AxisCombineStep) TypeID() string { return "input.axis.combine" }

// Execute implements extension.Step.
func (s *AxisCombineStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	config, err := loadConfig(ctx, s.fs, def, state)
	if err != nil {
		return err
	}
	logger := ctxlog.From(ctx)
	if len(config.InputBindings.Axes) == 0 {
		logger.Debug("no axis bindings",
			"component", "input",
			"operation", "axis.combine")
		return nil
	}
	keyState := keyboardState(state)
	gamepad := boolAt(state, GamepadConnectedKey)
	for name, binding := range config.InputBindings.Axes {
		combined := 0.0
		for _, source := range binding.Sources {
			value := axisSourceValue(state, source, keyState, gamepad)
			if source.Invert {
				value = -value
			}
			value = ApplyDeadzone(value, source.Deadzone)
			combined += value * scaleOf(source)
		}
		combined = math.Max(-1, math.Min(1, combined))
		for _, key := range binding.Outputs {
			state.Set(key, combined)
		}
		logger.Debug("axis combined",
			"component", "input",
			"operation", "axis.combine",
			"detail", name,
			"value", combined)
	}
	return nil
}

func axisSourceValue(state *execution.Context, source Source, keyState map[string]interface{}, gamepad bool) float64 {
	switch source.Type {
	case "key":
		if keyPressed(keyState, source.Key) {
			return 1
		}
	case "mouse":
		switch source.Axis {
		case "x":
			return floatAt(state, "input.mouse.x")
		case "y":
			return floatAt(state, "input.mouse.y")
		}
	case "gamepad_axis":
		if gamepad {
			return floatAt(state, "input.gamepad."+source.Axis)
		}
	}
	return 0
}

// ButtonCombineStep ORs the configured sources into each logical button
// and writes the pressed state to its output keys.
type ButtonCombineStep struct {
	fs afs.Service
}

// TypeID implements extension.Step.
func (s *ButtonCombineStep) TypeID() string { return "input.button.combine" }

// Execute implements extension.Step.
func (s *ButtonCombineStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	config, err := loadConfig(ctx, s.fs, def, state)
	if err != nil {
		return err
	}
	logger := ctxlog.From(ctx)
	if len(config.InputBindings.Buttons) == 0 {
		logger.Debug("no button bindings",
			"component", "input",
			"operation", "button.combine")
		return nil
	}
	keyState := keyboardState(state)
	gamepad := boolAt(state, GamepadConnectedKey)
	for name, binding := range config.InputBindings.Buttons {
		pressed := false
		for _, source := range binding.Sources {
			if buttonSourcePressed(state, source, keyState, gamepad) {
				pressed = true
				break
			}
		}
		for _, key := range binding.Outputs {
			state.Set(key, pressed)
		}
		if pressed {
			logger.Debug("button pressed",
				"component", "input",
				"operation", "button.combine",
				"detail", name)
		}
	}
	return nil
}

// gamepadButtonKeys maps binding button names onto raw context keys.
var gamepadButtonKeys = map[string]string{
	"a":     "input.gamepad.button_south",
	"b":     "input.gamepad.button_east",
	"x":     "input.gamepad.button_west",
	"y":     "input.gamepad.button_north",
	"lb":    "input.gamepad.button_left_shoulder",
	"rb":    "input.gamepad.button_right_shoulder",
	"back":  "input.gamepad.button_back",
	"start": "input.gamepad.button_start",
}

func buttonSourcePressed(state *execution.Context, source Source, keyState map[string]interface{}, gamepad bool) bool {
	switch source.Type {
	case "key":
		return keyPressed(keyState, source.Key)
	case "mouse_button":
		switch source.Button {
		case "left", "right", "middle":
			return boolAt(state, "input.mouse."+source.Button)
		}
	case "gamepad_button":
		if !gamepad {
			return false
		}
		if key, ok := gamepadButtonKeys[source.Button]; ok {
			return boolAt(state, key)
		}
		switch source.Button {
		case "trigger_left", "trigger_right":
			threshold := source.Threshold
			if threshold == 0 {
				threshold = 0.5
			}
			return floatAt(state, "input.gamepad."+source.Button) >= threshold
		}
	}
	return false
}

// loadConfig resolves the aggregation config: a value already in the
// context wins, otherwise the config_path parameter is loaded and parsed.
func loadConfig(ctx context.Context, fs afs.Service, def *model.StepDefinition, state *execution.Context) (*AggregationConfig, error) {
	if value, ok := state.Lookup(ConfigKey); ok {
		switch actual := value.(type) {
		case *AggregationConfig:
			return actual, nil
		case AggregationConfig:
			return &actual, nil
		case map[string]interface{}:
			config := &AggregationConfig{}
			if err := stepio.Bind(actual, config); err != nil {
				return nil, err
			}
			return config, nil
		}
		return nil, types.NewTypeMismatchError(ConfigKey, "aggregation config", value)
	}
	configPath := def.StringParameter("config_path", "")
	if configPath == "" {
		return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "config_path",
			"no aggregation config in context and no config_path parameter")
	}
	data, err := fs.DownloadWithURL(ctx, configPath)
	if err != nil {
		return nil, types.NewResourceError(types.ReasonResourceLoad, configPath, err)
	}
	config := &AggregationConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.NewDataError(types.ReasonInvalidParameter, configPath, err.Error())
	}
	return config, nil
}

func keyboardState(state *execution.Context) map[string]interface{} {
	if value, ok := state.Lookup(KeyboardStateKey); ok {
		if keys, ok := value.(map[string]interface{}); ok {
			return keys
		}
	}
	return nil
}

func keyPressed(keyState map[string]interface{}, key string) bool {
	if len(keyState) == 0 || key == "" {
		return false
	}
	value, ok := keyState[key]
	return ok && toolbox.AsBoolean(value)
}

func scaleOf(source Source) float64 {
	if source.Scale == 0 {
		return 1
	}
	return source.Scale
}

func floatAt(state *execution.Context, key string) float64 {
	if value, ok := state.Lookup(key); ok {
		return toolbox.AsFloat(value)
	}
	return 0
}

func boolAt(state *execution.Context, key string) bool {
	if value, ok := state.Lookup(key); ok {
		return toolbox.AsBoolean(value)
	}
	return false
}
