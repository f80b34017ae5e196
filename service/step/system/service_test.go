package system

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

func TestCommandsExpansion(t *testing.T) {
	step := &ExecStep{}
	state := execution.NewContextWith(map[string]interface{}{"name": "frame.png"})

	commands, err := step.commands(&model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"commands": []interface{}{"ls $name", "wc -c $name"}},
	}, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls frame.png", "wc -c frame.png"}, commands)

	commands, err = step.commands(&model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"command": "cat $name"},
	}, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat frame.png"}, commands)
}

func TestCommandsRejectsMissingAndMalformed(t *testing.T) {
	step := &ExecStep{}
	state := execution.NewContext()

	_, err := step.commands(&model.StepDefinition{Type: step.TypeID()}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = step.commands(&model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"commands": "ls"},
	}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestExecRunsLocally(t *testing.T) {
	step := &ExecStep{}
	state := execution.NewContext()
	err := step.Execute(context.Background(), &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"command": "echo render complete"},
	}, state)
	require.NoError(t, err)
	output, err := state.String("exec.output")
	require.NoError(t, err)
	assert.Contains(t, output, "render complete")
	status, err := state.Int("exec.status")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExit(t *testing.T) {
	step := &ExitStep{}
	state := execution.NewContext()
	assert.NoError(t, step.Execute(context.Background(), &model.StepDefinition{Type: step.TypeID()}, state))

	err := step.Execute(context.Background(), &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"code": 2},
	}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrData))
	code, _ := state.Int("exit.code")
	assert.Equal(t, 2, code)
}
