// Package debug implements the debug family: structured trace logging
// and a value assertion with unified diff output.
package debug

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/renderflow/renderflow/ctxlog"
	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
	"github.com/viant/toolbox"
	"gopkg.in/yaml.v3"
)

// Steps returns the debug family implementations.
func Steps() []extension.Step {
	return []extension.Step{
		&LogStep{},
		&AssertStep{},
	}
}

// LogStep emits a structured trace record. Logging is best effort and
// never fails the step.
type LogStep struct{}

// TypeID implements extension.Step.
func (s *LogStep) TypeID() string { return "debug.log" }

// Execute implements extension.Step.
func (s *LogStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	message := toolbox.AsString(state.Expand(def.StringParameter("message", "")))
	ctxlog.From(ctx).Info(message,
		"component", def.StringParameter("component", "debug"),
		"operation", def.StringParameter("operation", "log"),
		"detail", toolbox.AsString(state.Expand(def.StringParameter("detail", ""))))
	return nil
}

// AssertStep compares the values under the actual and expected port keys
// and fails with a unified diff when they differ.
type AssertStep struct{}

// TypeID implements extension.Step.
func (s *AssertStep) TypeID() string { return "debug.assert" }

// Execute implements extension.Step.
func (s *AssertStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	actualKey, err := stepio.RequiredInput(def, "actual")
	if err != nil {
		return err
	}
	expectedKey, err := stepio.RequiredInput(def, "expected")
	if err != nil {
		return err
	}
	actual, err := state.GetRequired(actualKey)
	if err != nil {
		return err
	}
	expected, err := state.GetRequired(expectedKey)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(actual, expected) {
		return nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(render(expected)),
		B:        difflib.SplitLines(render(actual)),
		FromFile: "expected " + expectedKey,
		ToFile:   "actual " + actualKey,
		Context:  3,
	})
	if err != nil {
		return types.NewDataError(types.ReasonTypeMismatch, actualKey, "values differ")
	}
	return types.NewDataError(types.ReasonTypeMismatch, actualKey, "values differ:\n"+diff)
}

func render(value interface{}) string {
	switch actual := value.(type) {
	case string:
		return actual
	case []byte:
		return fmt.Sprintf("% x", actual)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return toolbox.AsString(value)
	}
	return string(data)
}
