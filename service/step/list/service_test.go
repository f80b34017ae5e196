package list

import (
	"context"
	"errors"
	"testing"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/renderflow/renderflow/runtime/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLifecycle(t *testing.T) {
	ctx := context.Background()
	state := execution.NewContextWith(map[string]interface{}{"extra": "c"})

	create := &CreateStep{}
	require.NoError(t, create.Execute(ctx, &model.StepDefinition{
		Type:       create.TypeID(),
		Parameters: map[string]interface{}{"items": []interface{}{"a", "b"}},
		Outputs:    map[string]string{"list": "letters"},
	}, state))

	appendStep := &AppendStep{}
	require.NoError(t, appendStep.Execute(ctx, &model.StepDefinition{
		Type:       appendStep.TypeID(),
		Parameters: map[string]interface{}{"item": "$extra"},
		Inputs:     map[string]string{"list": "letters"},
	}, state))

	value, _ := state.Lookup("letters")
	assert.Equal(t, []interface{}{"a", "b", "c"}, value)

	count := &CountStep{}
	require.NoError(t, count.Execute(ctx, &model.StepDefinition{
		Type:    count.TypeID(),
		Inputs:  map[string]string{"list": "letters"},
		Outputs: map[string]string{"count": "letters.count"},
	}, state))
	n, err := state.Int("letters.count")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	get := &GetStep{}
	require.NoError(t, get.Execute(ctx, &model.StepDefinition{
		Type:       get.TypeID(),
		Parameters: map[string]interface{}{"index": 1},
		Inputs:     map[string]string{"list": "letters"},
		Outputs:    map[string]string{"item": "letters.second"},
	}, state))
	item, _ := state.Lookup("letters.second")
	assert.Equal(t, "b", item)
}

func TestGetOutOfRange(t *testing.T) {
	state := execution.NewContextWith(map[string]interface{}{"letters": []interface{}{"a"}})
	get := &GetStep{}
	err := get.Execute(context.Background(), &model.StepDefinition{
		Type:       get.TypeID(),
		Parameters: map[string]interface{}{"index": 5},
		Inputs:     map[string]string{"list": "letters"},
		Outputs:    map[string]string{"item": "out"},
	}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrData))
}

func TestListTypeMismatch(t *testing.T) {
	state := execution.NewContextWith(map[string]interface{}{"letters": "not a list"})
	count := &CountStep{}
	err := count.Execute(context.Background(), &model.StepDefinition{
		Type:    count.TypeID(),
		Inputs:  map[string]string{"list": "letters"},
		Outputs: map[string]string{"count": "n"},
	}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindData, Reason: types.ReasonTypeMismatch}))
}
