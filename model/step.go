package model

import (
	"github.com/renderflow/renderflow/model/types"
	"github.com/viant/toolbox"
)

// StepDefinition is the static description of one step: a namespaced type
// identifier (namespace.verb), static parameters, and logical port to
// context key bindings. Definitions are immutable once loaded.
type StepDefinition struct {
	ID         string                 `yaml:"id,omitempty" json:"id,omitempty"`
	Name       string                 `yaml:"name,omitempty" json:"name,omitempty"`
	Type       string                 `yaml:"type" json:"type"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Inputs     map[string]string      `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs    map[string]string      `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// Parameter returns a raw parameter value.
func (d *StepDefinition) Parameter(name string) (interface{}, bool) {
	if len(d.Parameters) == 0 {
		return nil, false
	}
	value, ok := d.Parameters[name]
	return value, ok
}

// StringParameter returns a parameter rendered as string, or defaultValue
// when absent. Parameters coerce freely, unlike context values.
func (d *StepDefinition) StringParameter(name, defaultValue string) string {
	value, ok := d.Parameter(name)
	if !ok || value == nil {
		return defaultValue
	}
	return toolbox.AsString(value)
}

// IntParameter returns a parameter as int, or defaultValue when absent.
func (d *StepDefinition) IntParameter(name string, defaultValue int) int {
	value, ok := d.Parameter(name)
	if !ok || value == nil {
		return defaultValue
	}
	return toolbox.AsInt(value)
}

// FloatParameter returns a parameter as float64, or defaultValue when absent.
func (d *StepDefinition) FloatParameter(name string, defaultValue float64) float64 {
	value, ok := d.Parameter(name)
	if !ok || value == nil {
		return defaultValue
	}
	return toolbox.AsFloat(value)
}

// BoolParameter returns a parameter as bool, or defaultValue when absent.
func (d *StepDefinition) BoolParameter(name string, defaultValue bool) bool {
	value, ok := d.Parameter(name)
	if !ok || value == nil {
		return defaultValue
	}
	return toolbox.AsBoolean(value)
}

// StepDefinitionsFromValue converts an embedded step list, as found in
// branch parameters, into step definitions.
func StepDefinitionsFromValue(value interface{}) ([]*StepDefinition, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "steps", "embedded step list must be a sequence")
	}
	ret := make([]*StepDefinition, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "steps", "embedded step must be a mapping")
		}
		def := &StepDefinition{}
		if value, ok := entry["id"]; ok {
			def.ID = toolbox.AsString(value)
		}
		if value, ok := entry["name"]; ok {
			def.Name = toolbox.AsString(value)
		}
		if value, ok := entry["type"]; ok {
			def.Type = toolbox.AsString(value)
		}
		if value, ok := entry["parameters"]; ok {
			if parameters, ok := value.(map[string]interface{}); ok {
				def.Parameters = parameters
			}
		}
		def.Inputs = stringMap(entry["inputs"])
		def.Outputs = stringMap(entry["outputs"])
		if def.Type == "" {
			return nil, types.NewConfigurationError(types.ReasonInvalidParameter, "steps", "embedded step has no type")
		}
		ret = append(ret, def)
	}
	return ret, nil
}

func stringMap(value interface{}) map[string]string {
	entries, ok := value.(map[string]interface{})
	if !ok || len(entries) == 0 {
		return nil
	}
	ret := make(map[string]string, len(entries))
	for k, v := range entries {
		ret[k] = toolbox.AsString(v)
	}
	return ret
}
