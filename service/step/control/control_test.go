package control

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

// stubRunner records recursion into the executor.
type stubRunner struct {
	ranSteps   [][]*model.StepDefinition
	workflows  int
	onWorkflow func(pkg, name string, state *execution.Context) error
}

func (r *stubRunner) RunSteps(ctx context.Context, steps []*model.StepDefinition, state *execution.Context) error {
	r.ranSteps = append(r.ranSteps, steps)
	return nil
}

func (r *stubRunner) RunWorkflow(ctx context.Context, pkg, name string, state *execution.Context) error {
	r.workflows++
	if r.onWorkflow != nil {
		return r.onWorkflow(pkg, name, state)
	}
	return nil
}

func TestWhileRunsUntilConditionClears(t *testing.T) {
	runner := &stubRunner{}
	runner.onWorkflow = func(pkg, name string, state *execution.Context) error {
		iteration, err := state.Int(IterationKey)
		require.NoError(t, err)
		if iteration == 2 {
			state.Set("run", false)
		}
		return nil
	}
	step := NewWhileStep(runner, 0)

	def := &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"workflow": "body"},
		Inputs:     map[string]string{"condition": "run"},
	}
	state := execution.NewContextWith(map[string]interface{}{"run": true})
	require.NoError(t, step.Execute(context.Background(), def, state))
	assert.Equal(t, 3, runner.workflows)
}

func TestWhileCeilingIsExact(t *testing.T) {
	runner := &stubRunner{}
	step := NewWhileStep(runner, 0)

	def := &model.StepDefinition{
		Type: step.TypeID(),
		Parameters: map[string]interface{}{
			"workflow":       "body",
			"max_iterations": 100,
		},
		Inputs: map[string]string{"condition": "run"},
	}
	// the condition never clears
	state := execution.NewContextWith(map[string]interface{}{"run": true})
	err := step.Execute(context.Background(), def, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindControlFlow, Reason: types.ReasonLoopOverrun}))
	assert.Equal(t, 100, runner.workflows, "exactly the ceiling's worth of iterations ran")
}

func TestWhileRequiresConditionAndWorkflow(t *testing.T) {
	step := NewWhileStep(&stubRunner{}, 0)

	err := step.Execute(context.Background(), &model.StepDefinition{Type: step.TypeID()}, execution.NewContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindConfiguration, Reason: types.ReasonMissingInput, Subject: "condition"}))

	err = step.Execute(context.Background(), &model.StepDefinition{
		Type:   step.TypeID(),
		Inputs: map[string]string{"condition": "run"},
	}, execution.NewContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestSwitchRunsExactlyOneBranch(t *testing.T) {
	runner := &stubRunner{}
	step := NewSwitchStep(runner)

	def := &model.StepDefinition{
		Type: step.TypeID(),
		Parameters: map[string]interface{}{
			"cases": map[string]interface{}{
				"fast": []interface{}{
					map[string]interface{}{"type": "debug.log", "parameters": map[string]interface{}{"message": "fast"}},
				},
				"slow": []interface{}{
					map[string]interface{}{"type": "debug.log", "parameters": map[string]interface{}{"message": "slow"}},
					map[string]interface{}{"type": "debug.log", "parameters": map[string]interface{}{"message": "slower"}},
				},
			},
		},
		Inputs: map[string]string{"value": "mode"},
	}
	state := execution.NewContextWith(map[string]interface{}{"mode": "slow"})
	require.NoError(t, step.Execute(context.Background(), def, state))
	require.Len(t, runner.ranSteps, 1, "exactly one branch executed")
	assert.Len(t, runner.ranSteps[0], 2)
	assert.Equal(t, "slow", runner.ranSteps[0][0].StringParameter("message", ""))
}

func TestSwitchDefaultBranch(t *testing.T) {
	runner := &stubRunner{}
	step := NewSwitchStep(runner)

	def := &model.StepDefinition{
		Type: step.TypeID(),
		Parameters: map[string]interface{}{
			"cases": map[string]interface{}{
				"fast": []interface{}{
					map[string]interface{}{"type": "debug.log"},
				},
			},
			"default": []interface{}{
				map[string]interface{}{"type": "system.exit"},
			},
		},
		Inputs: map[string]string{"value": "mode"},
	}
	state := execution.NewContextWith(map[string]interface{}{"mode": "other"})
	require.NoError(t, step.Execute(context.Background(), def, state))
	require.Len(t, runner.ranSteps, 1)
	assert.Equal(t, "system.exit", runner.ranSteps[0][0].Type)
}

func TestSwitchNoBranch(t *testing.T) {
	runner := &stubRunner{}
	step := NewSwitchStep(runner)

	def := &model.StepDefinition{
		Type: step.TypeID(),
		Parameters: map[string]interface{}{
			"cases": map[string]interface{}{},
		},
		Inputs: map[string]string{"value": "mode"},
	}
	// numeric discriminants render as strings
	state := execution.NewContextWith(map[string]interface{}{"mode": 42})
	err := step.Execute(context.Background(), def, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.Error{Kind: types.KindControlFlow, Reason: types.ReasonNoBranch, Subject: "42"}))
	assert.Empty(t, runner.ranSteps, "no branch executed")
}

func TestInvokeSharesContextByDefault(t *testing.T) {
	runner := &stubRunner{}
	var seen *execution.Context
	runner.onWorkflow = func(pkg, name string, state *execution.Context) error {
		seen = state
		assert.Equal(t, "demo", pkg)
		assert.Equal(t, "child", name)
		return nil
	}
	step := NewInvokeStep(runner)

	def := &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"package": "demo", "workflow": "child"},
	}
	state := execution.NewContext()
	require.NoError(t, step.Execute(context.Background(), def, state))
	assert.Same(t, state, seen)
}

func TestInvokeIsolated(t *testing.T) {
	runner := &stubRunner{}
	runner.onWorkflow = func(pkg, name string, state *execution.Context) error {
		width, err := state.Int("width")
		require.NoError(t, err)
		state.Set("area", width*width)
		return nil
	}
	step := NewInvokeStep(runner)

	def := &model.StepDefinition{
		Type:       step.TypeID(),
		Parameters: map[string]interface{}{"workflow": "child", "isolate": true},
		Inputs:     map[string]string{"width": "frame.width"},
		Outputs:    map[string]string{"area": "frame.area"},
	}
	state := execution.NewContextWith(map[string]interface{}{
		"frame.width": 8,
		"secret":      "parent-only",
	})
	require.NoError(t, step.Execute(context.Background(), def, state))

	area, err := state.Int("frame.area")
	require.NoError(t, err)
	assert.Equal(t, 64, area)
	// the isolated child never saw unmapped parent keys
	assert.False(t, state.Contains("area"))
}
