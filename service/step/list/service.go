// Package list implements the list family of steps over []interface{}
// context values.
package list

import (
	"context"
	"fmt"

	"github.com/renderflow/renderflow/extension"
	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/renderflow/renderflow/stepio"
)

// Steps returns the list family implementations.
func Steps() []extension.Step {
	return []extension.Step{
		&CreateStep{},
		&AppendStep{},
		&CountStep{},
		&GetStep{},
	}
}

func listAt(state *execution.Context, key string) ([]interface{}, error) {
	value, err := state.GetRequired(key)
	if err != nil {
		return nil, err
	}
	items, ok := value.([]interface{})
	if !ok {
		return nil, types.NewTypeMismatchError(key, "[]interface{}", value)
	}
	return items, nil
}

// CreateStep publishes a list seeded from the items parameter, each item
// expanded against the context.
type CreateStep struct{}

// TypeID implements extension.Step.
func (s *CreateStep) TypeID() string { return "list.create" }

// Execute implements extension.Step.
func (s *CreateStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	outKey, err := stepio.RequiredOutput(def, "list")
	if err != nil {
		return err
	}
	items := []interface{}{}
	if raw, ok := def.Parameter("items"); ok {
		seed, ok := raw.([]interface{})
		if !ok {
			return types.NewConfigurationError(types.ReasonInvalidParameter, "items", "list.create items must be a list")
		}
		for _, item := range seed {
			items = append(items, state.Expand(item))
		}
	}
	state.Set(outKey, items)
	return nil
}

// AppendStep appends the expanded item parameter to the list under the
// list port key, writing the grown list back.
type AppendStep struct{}

// TypeID implements extension.Step.
func (s *AppendStep) TypeID() string { return "list.append" }

// Execute implements extension.Step.
func (s *AppendStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "list")
	if err != nil {
		return err
	}
	item, ok := def.Parameter("item")
	if !ok {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "item", "list.append requires an item parameter")
	}
	items, err := listAt(state, inKey)
	if err != nil {
		return err
	}
	state.Set(stepio.OptionalOutput(def, "list", inKey), append(items, state.Expand(item)))
	return nil
}

// CountStep publishes the length of the list under the list port key.
type CountStep struct{}

// TypeID implements extension.Step.
func (s *CountStep) TypeID() string { return "list.count" }

// Execute implements extension.Step.
func (s *CountStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "list")
	if err != nil {
		return err
	}
	outKey, err := stepio.RequiredOutput(def, "count")
	if err != nil {
		return err
	}
	items, err := listAt(state, inKey)
	if err != nil {
		return err
	}
	state.Set(outKey, len(items))
	return nil
}

// GetStep publishes the element at the index parameter, failing on an
// out of range index rather than clamping.
type GetStep struct{}

// TypeID implements extension.Step.
func (s *GetStep) TypeID() string { return "list.get" }

// Execute implements extension.Step.
func (s *GetStep) Execute(ctx context.Context, def *model.StepDefinition, state *execution.Context) error {
	inKey, err := stepio.RequiredInput(def, "list")
	if err != nil {
		return err
	}
	outKey, err := stepio.RequiredOutput(def, "item")
	if err != nil {
		return err
	}
	items, err := listAt(state, inKey)
	if err != nil {
		return err
	}
	index := def.IntParameter("index", -1)
	if index < 0 || index >= len(items) {
		return types.NewDataError(types.ReasonInvalidParameter, "index",
			fmt.Sprintf("index %v out of range for list of %v", index, len(items)))
	}
	state.Set(outKey, items[index])
	return nil
}
