// Package stepio resolves a step definition's logical input and output
// ports to concrete context keys, and binds static parameters into typed
// parameter structs. Steps call it once per port at the start of Execute
// so a malformed definition fails before any side effect.
package stepio

import (
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
)

// RequiredInput resolves a required logical input port to its context key.
func RequiredInput(def *model.StepDefinition, port string) (string, error) {
	if key, ok := def.Inputs[port]; ok && key != "" {
		return key, nil
	}
	return "", types.NewMissingInputError(port)
}

// RequiredOutput resolves a required logical output port to its context key.
func RequiredOutput(def *model.StepDefinition, port string) (string, error) {
	if key, ok := def.Outputs[port]; ok && key != "" {
		return key, nil
	}
	return "", types.NewMissingOutputError(port)
}

// OptionalInput resolves an input port, falling back to defaultKey when
// the definition leaves the port unbound.
func OptionalInput(def *model.StepDefinition, port, defaultKey string) string {
	if key, ok := def.Inputs[port]; ok && key != "" {
		return key
	}
	return defaultKey
}

// OptionalOutput resolves an output port, falling back to defaultKey when
// the definition leaves the port unbound.
func OptionalOutput(def *model.StepDefinition, port, defaultKey string) string {
	if key, ok := def.Outputs[port]; ok && key != "" {
		return key
	}
	return defaultKey
}
